package storage

import (
	"context"

	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/core/retry"
)

// RetryingDocuments decorates a DocumentRepository so every call goes through
// the backoff retrier. Callers must treat each call as potentially slow and
// cancellable: it may sleep between attempts.
type RetryingDocuments struct {
	inner DocumentRepository
	cfg   retry.Config
}

// WithRetry wraps repo with the given backoff policy.
func WithRetry(repo DocumentRepository, cfg retry.Config) *RetryingDocuments {
	return &RetryingDocuments{inner: repo, cfg: cfg}
}

type fetchResult struct {
	docs    []*domain.SourceDocument
	firstID string
	lastID  string
}

func (r *RetryingDocuments) FetchUnprocessed(
	ctx context.Context,
	batchSize int,
	lastObjectID string,
) ([]*domain.SourceDocument, string, string, error) {
	res, err := retry.Do(ctx, r.cfg, func(ctx context.Context) (fetchResult, error) {
		docs, first, last, err := r.inner.FetchUnprocessed(ctx, batchSize, lastObjectID)
		return fetchResult{docs, first, last}, err
	})
	return res.docs, res.firstID, res.lastID, err
}

func (r *RetryingDocuments) UpdateStatus(
	ctx context.Context,
	docID string,
	status domain.DocumentStatus,
	resultID string,
) error {
	_, err := retry.Do(ctx, r.cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.UpdateStatus(ctx, docID, status, resultID)
	})
	return err
}

func (r *RetryingDocuments) Insert(ctx context.Context, doc *domain.SourceDocument) error {
	_, err := retry.Do(ctx, r.cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.Insert(ctx, doc)
	})
	return err
}

func (r *RetryingDocuments) CountUnprocessed(ctx context.Context) (int, error) {
	return retry.Do(ctx, r.cfg, func(ctx context.Context) (int, error) {
		return r.inner.CountUnprocessed(ctx)
	})
}

// RetryingResults decorates a ResultRepository with backoff retries.
type RetryingResults struct {
	inner ResultRepository
	cfg   retry.Config
}

// WithResultRetry wraps repo with the given backoff policy.
func WithResultRetry(repo ResultRepository, cfg retry.Config) *RetryingResults {
	return &RetryingResults{inner: repo, cfg: cfg}
}

func (r *RetryingResults) Insert(ctx context.Context, result *domain.ResultDocument) error {
	_, err := retry.Do(ctx, r.cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.Insert(ctx, result)
	})
	return err
}

func (r *RetryingResults) ListBySource(
	ctx context.Context,
	sourceObjectID string,
) ([]*domain.ResultDocument, error) {
	return retry.Do(ctx, r.cfg, func(ctx context.Context) ([]*domain.ResultDocument, error) {
		return r.inner.ListBySource(ctx, sourceObjectID)
	})
}

func (r *RetryingResults) Count(ctx context.Context) (int, error) {
	return retry.Do(ctx, r.cfg, func(ctx context.Context) (int, error) {
		return r.inner.Count(ctx)
	})
}

// RetryingCheckpoints decorates a CheckpointRepository with backoff retries.
type RetryingCheckpoints struct {
	inner CheckpointRepository
	cfg   retry.Config
}

// WithCheckpointRetry wraps repo with the given backoff policy.
func WithCheckpointRetry(repo CheckpointRepository, cfg retry.Config) *RetryingCheckpoints {
	return &RetryingCheckpoints{inner: repo, cfg: cfg}
}

func (r *RetryingCheckpoints) Save(ctx context.Context, lastProcessedID string, stats domain.Stats) error {
	_, err := retry.Do(ctx, r.cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.Save(ctx, lastProcessedID, stats)
	})
	return err
}

type loadResult struct {
	cp    *domain.Checkpoint
	found bool
}

func (r *RetryingCheckpoints) Load(ctx context.Context) (*domain.Checkpoint, bool, error) {
	res, err := retry.Do(ctx, r.cfg, func(ctx context.Context) (loadResult, error) {
		cp, found, err := r.inner.Load(ctx)
		return loadResult{cp, found}, err
	})
	return res.cp, res.found, err
}

func (r *RetryingCheckpoints) Reset(ctx context.Context) error {
	_, err := retry.Do(ctx, r.cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.Reset(ctx)
	})
	return err
}

// RetryingRetryQueue decorates a RetryQueueRepository with backoff retries.
type RetryingRetryQueue struct {
	inner RetryQueueRepository
	cfg   retry.Config
}

// WithQueueRetry wraps repo with the given backoff policy.
func WithQueueRetry(repo RetryQueueRepository, cfg retry.Config) *RetryingRetryQueue {
	return &RetryingRetryQueue{inner: repo, cfg: cfg}
}

func (r *RetryingRetryQueue) Add(
	ctx context.Context,
	doc *domain.SourceDocument,
	errorMsg string,
	retryType domain.RetryType,
) error {
	_, err := retry.Do(ctx, r.cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.Add(ctx, doc, errorMsg, retryType)
	})
	return err
}

func (r *RetryingRetryQueue) List(ctx context.Context) ([]*domain.RetryEntry, error) {
	return retry.Do(ctx, r.cfg, func(ctx context.Context) ([]*domain.RetryEntry, error) {
		return r.inner.List(ctx)
	})
}

func (r *RetryingRetryQueue) Remove(ctx context.Context, documentID string) error {
	_, err := retry.Do(ctx, r.cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.Remove(ctx, documentID)
	})
	return err
}

func (r *RetryingRetryQueue) Count(ctx context.Context) (int, error) {
	return retry.Do(ctx, r.cfg, func(ctx context.Context) (int, error) {
		return r.inner.Count(ctx)
	})
}
