// Package pipeline drives one ingestion job: fetch a window of unprocessed
// documents, classify them concurrently, persist results, and advance the
// checkpoint cursor.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/ingestor/internal/core/config"
	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/core/retry"
	"github.com/vietddude/ingestor/internal/infra/analyzer"
	"github.com/vietddude/ingestor/internal/infra/batchfile"
	"github.com/vietddude/ingestor/internal/infra/storage"
	"github.com/vietddude/ingestor/internal/ingest/metrics"
)

// Config wires one pipeline's dependencies and tuning.
type Config struct {
	JobName       string
	BatchSize     int
	MaxConcurrent int
	Mode          config.JobMode
	PollInterval  time.Duration

	Documents   storage.DocumentRepository
	Results     storage.ResultRepository
	Checkpoints storage.CheckpointRepository
	RetryQueue  storage.RetryQueueRepository
	Analyzer    analyzer.Analyzer

	// Manifests snapshots each fetched window to disk before processing so a
	// crash mid-window can resume from the manifest. Nil disables snapshots.
	Manifests *batchfile.Manager

	// AnalyzeRetry is the backoff policy for classification calls.
	AnalyzeRetry retry.Config
}

// Pipeline processes one job until the source drains (batch mode) or the
// context is cancelled (continuous mode).
type Pipeline struct {
	cfg     Config
	running atomic.Bool
	now     func() time.Time
}

// New creates a pipeline. Config fields must be populated; see control for
// the standard wiring.
func New(cfg Config) *Pipeline {
	// SetLimit(0) would block every worker forever.
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	return &Pipeline{cfg: cfg, now: time.Now}
}

// windowResult carries the per-window counters back to the run loop.
type windowResult struct {
	successful int
	failed     int
	retried    int
}

// Run executes the job and returns its final stats. Cancellation is
// graceful: the in-flight window finishes and the checkpoint is saved
// before returning ctx.Err().
func (p *Pipeline) Run(ctx context.Context) (*domain.Stats, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("pipeline %s already running", p.cfg.JobName)
	}
	defer p.running.Store(false)

	start := p.now().UTC()
	stats := &domain.Stats{
		JobID:     "job_" + start.Format("20060102_150405"),
		StartTime: start,
	}

	lastID := ""
	if cp, found, err := p.cfg.Checkpoints.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	} else if found {
		lastID = cp.LastProcessedID
		slog.Info("Resuming from checkpoint",
			"job", p.cfg.JobName,
			"last_processed_id", lastID,
			"checkpoint_time", cp.Timestamp,
		)
	} else {
		slog.Info("No checkpoint found, starting from beginning", "job", p.cfg.JobName)
	}

	// Windows snapshotted before a crash are reprocessed first. Documents
	// already marked processed inside them are skipped by status, so replay
	// is safe.
	resumedLastID, err := p.resumePending(ctx, stats)
	if err != nil {
		return stats, err
	}
	if resumedLastID > lastID {
		lastID = resumedLastID
	}

	for {
		if ctx.Err() != nil {
			break
		}

		docs, _, windowLastID, err := p.cfg.Documents.FetchUnprocessed(ctx, p.cfg.BatchSize, lastID)
		if err != nil {
			p.finalize(stats)
			return stats, fmt.Errorf("failed to fetch documents: %w", err)
		}

		if len(docs) == 0 {
			if p.cfg.Mode == config.ModeBatch {
				slog.Info("Source drained, batch job complete", "job", p.cfg.JobName)
				break
			}
			if err := sleepCtx(ctx, p.cfg.PollInterval); err != nil {
				break
			}
			continue
		}

		batchID := ""
		if p.cfg.Manifests != nil {
			manifest, err := p.cfg.Manifests.CreateBatch(docs, docs[0].ID, windowLastID, "")
			if err != nil {
				// The window can still be processed; only crash resume is lost.
				slog.Warn("Failed to snapshot batch manifest", "job", p.cfg.JobName, "error", err)
			} else {
				batchID = manifest.Metadata.BatchID
			}
		}

		res := p.processWindow(ctx, docs, stats.JobID)

		if batchID != "" {
			if err := p.cfg.Manifests.MarkCompleted(batchID); err != nil {
				slog.Warn("Failed to mark batch completed", "job", p.cfg.JobName, "batch_id", batchID, "error", err)
			}
		}

		stats.Add(len(docs), res.successful, res.failed, res.retried)
		if err := p.checkpoint(ctx, windowLastID, stats); err != nil {
			p.finalize(stats)
			return stats, err
		}
		p.observeWindow(ctx, res)

		slog.Info("Processed batch",
			"job", p.cfg.JobName,
			"documents", len(docs),
			"successful", res.successful,
			"failed", res.failed,
			"last_id", windowLastID,
		)

		lastID = windowLastID
	}

	p.finalize(stats)
	if err := p.checkpoint(ctx, lastID, stats); err != nil {
		return stats, err
	}

	slog.Info("Job finished",
		"job", p.cfg.JobName,
		"job_id", stats.JobID,
		"documents_processed", stats.DocumentsProcessed,
		"successful", stats.Successful,
		"failed", stats.Failed,
		"duration_seconds", stats.DurationSeconds,
	)
	return stats, ctx.Err()
}

// resumePending replays manifests left in pending by a previous crash and
// returns the highest last object id seen across them.
func (p *Pipeline) resumePending(ctx context.Context, stats *domain.Stats) (string, error) {
	if p.cfg.Manifests == nil {
		return "", nil
	}

	pending, err := p.cfg.Manifests.ListPending()
	if err != nil {
		return "", fmt.Errorf("failed to list pending batches: %w", err)
	}
	if len(pending) == 0 {
		return "", nil
	}
	slog.Info("Resuming pending batches", "job", p.cfg.JobName, "count", len(pending))

	lastID := ""
	for _, manifest := range pending {
		if ctx.Err() != nil {
			return lastID, nil
		}

		// Skip documents already processed before the crash.
		var remaining []*domain.SourceDocument
		for _, doc := range manifest.Documents {
			if doc.Status != domain.DocumentStatusProcessed {
				remaining = append(remaining, doc)
			}
		}

		res := p.processWindow(ctx, remaining, stats.JobID)
		stats.Add(len(remaining), res.successful, res.failed, res.retried)

		if err := p.cfg.Manifests.MarkCompleted(manifest.Metadata.BatchID); err != nil {
			slog.Warn("Failed to mark resumed batch completed",
				"job", p.cfg.JobName, "batch_id", manifest.Metadata.BatchID, "error", err)
		}
		if manifest.Metadata.LastObjectID > lastID {
			lastID = manifest.Metadata.LastObjectID
		}
		if err := p.checkpoint(ctx, lastID, stats); err != nil {
			return lastID, err
		}
	}
	return lastID, nil
}

// processWindow classifies and persists one window of documents with
// bounded concurrency. Per-document failures are absorbed into counters and
// the retry queue; they never abort the window.
func (p *Pipeline) processWindow(
	ctx context.Context,
	docs []*domain.SourceDocument,
	jobID string,
) windowResult {
	var mu sync.Mutex
	var res windowResult

	g := errgroup.Group{}
	g.SetLimit(p.cfg.MaxConcurrent)

	for _, doc := range docs {
		g.Go(func() error {
			outcome := p.processDocument(ctx, doc, jobID)
			mu.Lock()
			switch outcome {
			case outcomeSuccess:
				res.successful++
			case outcomeRetried:
				res.failed++
				res.retried++
			default:
				res.failed++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return res
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailed
	outcomeRetried
)

// processDocument runs one document through classify -> persist result ->
// mark processed.
func (p *Pipeline) processDocument(
	ctx context.Context,
	doc *domain.SourceDocument,
	jobID string,
) outcome {
	cls, err := retry.Do(ctx, p.cfg.AnalyzeRetry, func(ctx context.Context) (*domain.Classification, error) {
		metrics.AnalyzeCallsTotal.WithLabelValues(p.cfg.JobName).Inc()
		timer := p.now()
		cls, err := p.cfg.Analyzer.Analyze(ctx, doc)
		metrics.AnalyzeLatency.WithLabelValues(p.cfg.JobName).Observe(time.Since(timer).Seconds())
		return cls, err
	})
	if err != nil {
		return p.handleFailure(ctx, doc, err, domain.RetryTypeAnalyzeFailed)
	}

	// Some producers omit the conversation number; fall back to the object id
	// so results always carry a stable conversation reference.
	convNum := doc.ConversationNumber
	if convNum == "" {
		convNum = doc.ID
	}

	result := &domain.ResultDocument{
		ID:                 uuid.NewString(),
		ConversationNumber: convNum,
		SourceObjectID:     doc.ID,
		Classification:     *cls,
		ProcessedAt:        p.now().UTC(),
		ProcessingMetadata: domain.ProcessingMetadata{
			BatchJobID:         jobID,
			ProcessingAttempts: doc.ProcessingAttempts + 1,
		},
	}

	if err := p.cfg.Results.Insert(ctx, result); err != nil {
		return p.handleFailure(ctx, doc, err, domain.RetryTypeWriteFailed)
	}

	if err := p.cfg.Documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessed, result.ID); err != nil {
		// The result exists but the source still looks unprocessed. Queue as a
		// write failure; a later pass will re-mark it (results are insert-only,
		// consumers dedupe on source_object_id).
		return p.handleFailure(ctx, doc, err, domain.RetryTypeWriteFailed)
	}

	metrics.DocumentsProcessed.WithLabelValues(p.cfg.JobName, "success").Inc()
	return outcomeSuccess
}

// handleFailure marks the document failed and, unless the error is
// permanent, queues it for the recovery worker.
func (p *Pipeline) handleFailure(
	ctx context.Context,
	doc *domain.SourceDocument,
	cause error,
	retryType domain.RetryType,
) outcome {
	// The checkpoint will advance past this document, so the status update
	// and queue entry below are the only record that it still needs work.
	// They must complete even when the failure was the cancellation itself.
	ctx = context.WithoutCancel(ctx)

	class := retry.Classify(cause)
	metrics.AnalyzeErrorsTotal.WithLabelValues(p.cfg.JobName, string(class)).Inc()
	metrics.DocumentsProcessed.WithLabelValues(p.cfg.JobName, "failed").Inc()

	slog.Warn("Document processing failed",
		"job", p.cfg.JobName,
		"document_id", doc.ID,
		"retry_type", string(retryType),
		"error_class", string(class),
		"error", cause,
	)

	if err := p.cfg.Documents.UpdateStatus(ctx, doc.ID, domain.DocumentStatusFailed, ""); err != nil {
		slog.Error("Failed to mark document failed", "document_id", doc.ID, "error", err)
	}

	// Permanent failures (bad auth, invalid documents) can never succeed on
	// retry, so queueing them would just churn the recovery worker.
	if class == retry.ClassPermanent {
		return outcomeFailed
	}

	if err := p.cfg.RetryQueue.Add(ctx, doc, cause.Error(), retryType); err != nil {
		slog.Error("Failed to queue document for retry", "document_id", doc.ID, "error", err)
		return outcomeFailed
	}
	return outcomeRetried
}

// checkpoint saves the cursor position. It runs on a detached context so a
// cancellation mid-window cannot abort the write that makes the window
// durable; a failure here (after the store retries) fails the run.
func (p *Pipeline) checkpoint(ctx context.Context, lastID string, stats *domain.Stats) error {
	if lastID == "" {
		return nil
	}
	if err := p.cfg.Checkpoints.Save(context.WithoutCancel(ctx), lastID, *stats); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	metrics.LastCheckpointTimestamp.WithLabelValues(p.cfg.JobName).Set(float64(p.now().Unix()))
	return nil
}

func (p *Pipeline) observeWindow(ctx context.Context, res windowResult) {
	metrics.BatchesProcessed.WithLabelValues(p.cfg.JobName).Inc()
	if depth, err := p.cfg.RetryQueue.Count(ctx); err == nil {
		metrics.RetryQueueDepth.WithLabelValues(p.cfg.JobName).Set(float64(depth))
	}
}

func (p *Pipeline) finalize(stats *domain.Stats) {
	end := p.now().UTC()
	stats.EndTime = end
	stats.DurationSeconds = end.Sub(stats.StartTime).Seconds()
	if stats.DurationSeconds > 0 {
		stats.ProcessingRate = float64(stats.DocumentsProcessed) / stats.DurationSeconds
	}
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
