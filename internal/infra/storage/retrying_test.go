package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/core/retry"
)

// testRetry retries transient failures without sleeping.
func testRetry() retry.Config {
	return retry.Config{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		Classes:    []retry.Class{retry.ClassTransient, retry.ClassResource},
		Sleep:      func(ctx context.Context, d time.Duration) error { return nil },
	}
}

// flakyCheckpoints fails the first `failures` calls with a transient error.
type flakyCheckpoints struct {
	failures int
	calls    int
	saved    string
}

func (f *flakyCheckpoints) fail() error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset by peer")
	}
	return nil
}

func (f *flakyCheckpoints) Save(ctx context.Context, lastProcessedID string, stats domain.Stats) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.saved = lastProcessedID
	return nil
}

func (f *flakyCheckpoints) Load(ctx context.Context) (*domain.Checkpoint, bool, error) {
	if err := f.fail(); err != nil {
		return nil, false, err
	}
	if f.saved == "" {
		return nil, false, nil
	}
	return &domain.Checkpoint{LastProcessedID: f.saved}, true, nil
}

func (f *flakyCheckpoints) Reset(ctx context.Context) error { return f.fail() }

type flakyQueue struct {
	failures int
	calls    int
	entries  map[string]*domain.RetryEntry
}

func newFlakyQueue(failures int) *flakyQueue {
	return &flakyQueue{failures: failures, entries: make(map[string]*domain.RetryEntry)}
}

func (q *flakyQueue) fail() error {
	q.calls++
	if q.calls <= q.failures {
		return errors.New("connection reset by peer")
	}
	return nil
}

func (q *flakyQueue) Add(ctx context.Context, doc *domain.SourceDocument, errorMsg string, retryType domain.RetryType) error {
	if err := q.fail(); err != nil {
		return err
	}
	q.entries[doc.ID] = &domain.RetryEntry{Document: doc, Error: errorMsg, RetryType: retryType}
	return nil
}

func (q *flakyQueue) List(ctx context.Context) ([]*domain.RetryEntry, error) {
	if err := q.fail(); err != nil {
		return nil, err
	}
	out := make([]*domain.RetryEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e)
	}
	return out, nil
}

func (q *flakyQueue) Remove(ctx context.Context, documentID string) error {
	if err := q.fail(); err != nil {
		return err
	}
	delete(q.entries, documentID)
	return nil
}

func (q *flakyQueue) Count(ctx context.Context) (int, error) {
	if err := q.fail(); err != nil {
		return 0, err
	}
	return len(q.entries), nil
}

func TestRetryingCheckpoints_SaveSurvivesTransientBlip(t *testing.T) {
	inner := &flakyCheckpoints{failures: 2}
	cps := WithCheckpointRetry(inner, testRetry())

	if err := cps.Save(context.Background(), "doc-000010", domain.Stats{}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if inner.saved != "doc-000010" {
		t.Errorf("saved = %q, want doc-000010", inner.saved)
	}
	if inner.calls != 3 {
		t.Errorf("inner called %d times, want 3", inner.calls)
	}

	cp, found, err := cps.Load(context.Background())
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if cp.LastProcessedID != "doc-000010" {
		t.Errorf("LastProcessedID = %s, want doc-000010", cp.LastProcessedID)
	}
}

func TestRetryingCheckpoints_SaveExhaustsIntoRetryError(t *testing.T) {
	inner := &flakyCheckpoints{failures: 100}
	cps := WithCheckpointRetry(inner, testRetry())

	err := cps.Save(context.Background(), "doc-000010", domain.Stats{})
	var retryErr *retry.RetryError
	if !errors.As(err, &retryErr) {
		t.Fatalf("expected RetryError, got %v", err)
	}
	if inner.calls != 4 { // MaxRetries + 1
		t.Errorf("inner called %d times, want 4", inner.calls)
	}
}

func TestRetryingRetryQueue_AddSurvivesTransientBlip(t *testing.T) {
	inner := newFlakyQueue(2)
	queue := WithQueueRetry(inner, testRetry())

	doc := &domain.SourceDocument{ID: "doc-000007"}
	if err := queue.Add(context.Background(), doc, "timeout", domain.RetryTypeAnalyzeFailed); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, ok := inner.entries["doc-000007"]; !ok {
		t.Error("entry not stored after retries")
	}

	entries, err := queue.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List = %d entries, want 1", len(entries))
	}

	if err := queue.Remove(context.Background(), "doc-000007"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if n, err := queue.Count(context.Background()); err != nil || n != 0 {
		t.Errorf("Count = %d (err=%v), want 0", n, err)
	}
}
