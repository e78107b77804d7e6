package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config defines backoff behavior. The zero value is not usable; start from
// DefaultConfig and override fields as needed.
type Config struct {
	// MaxRetries is the number of retries after the initial call, so the
	// wrapped function runs at most MaxRetries+1 times.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// Jitter is a fraction (0-1) of the computed delay added or subtracted
	// randomly to avoid synchronized retry storms.
	Jitter float64

	// Classes lists the error classes worth retrying. An error outside this
	// set is returned immediately without sleeping.
	Classes []Class

	// Sleep overrides the delay function. Tests use this to capture delays;
	// nil means sleep on the wall clock, honoring ctx cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig mirrors the retry policy applied to every store call.
var DefaultConfig = Config{
	MaxRetries: 3,
	BaseDelay:  2 * time.Second,
	MaxDelay:   60 * time.Second,
	Jitter:     0.1,
	Classes:    []Class{ClassTransient, ClassResource},
}

// RetryError signals that all retries were exhausted. It wraps the last
// underlying cause so callers can tell "gave up after backoff" from "failed
// immediately as permanent".
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Do executes fn with exponential backoff. The first call happens
// immediately; each subsequent attempt sleeps min(BaseDelay*2^n, MaxDelay)
// plus jitter. Errors whose class is not in cfg.Classes short-circuit.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !classAllowed(Classify(err), cfg.Classes) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		if err := sleep(ctx, cfg.delay(attempt)); err != nil {
			return zero, err
		}
	}

	return zero, &RetryError{Attempts: cfg.MaxRetries + 1, Err: lastErr}
}

// delay computes the backoff for the given attempt (0-indexed).
func (c Config) delay(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter > 0 {
		d += rand.Float64()*2*c.Jitter*d - c.Jitter*d
		if d < float64(100*time.Millisecond) {
			d = float64(100 * time.Millisecond)
		}
	}
	return time.Duration(d)
}

func classAllowed(class Class, allowed []Class) bool {
	for _, c := range allowed {
		if c == class {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
