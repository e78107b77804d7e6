// Package recovery drains the durable retry queue: documents that failed
// analysis or persistence are re-run once their backoff window has passed,
// and abandoned once they exhaust their attempt budget.
package recovery

import (
	"math"
	"time"
)

// Backoff gates how soon a queued document may be retried based on how
// often it has already failed.
type Backoff struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultBackoff waits 30s, 1m, 2m, 4m (capped at 10m) between queue
// retries. Queue retries are deliberately slower than the in-band retries
// the pipeline already performed; by the time a document lands here the
// fast retries have failed.
func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay:   30 * time.Second,
		MaxDelay:    10 * time.Minute,
		MaxAttempts: 5,
	}
}

// Delay returns the wait before the given attempt (1-indexed: the value
// stored on the queue entry).
func (b Backoff) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := float64(b.BaseDelay) * math.Pow(2, float64(attempts-1))
	if d > float64(b.MaxDelay) {
		return b.MaxDelay
	}
	return time.Duration(d)
}

// Exhausted reports whether the entry has used up its attempt budget.
func (b Backoff) Exhausted(attempts int) bool {
	return attempts >= b.MaxAttempts
}
