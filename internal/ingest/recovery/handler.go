package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/core/retry"
	"github.com/vietddude/ingestor/internal/infra/analyzer"
	"github.com/vietddude/ingestor/internal/infra/storage"
	"github.com/vietddude/ingestor/internal/ingest/metrics"
)

// Handler reprocesses queued documents.
type Handler struct {
	jobName  string
	queue    storage.RetryQueueRepository
	docs     storage.DocumentRepository
	results  storage.ResultRepository
	analyzer analyzer.Analyzer
	backoff  Backoff
	now      func() time.Time
}

// NewHandler creates a recovery handler for one job's retry queue.
func NewHandler(
	jobName string,
	queue storage.RetryQueueRepository,
	docs storage.DocumentRepository,
	results storage.ResultRepository,
	an analyzer.Analyzer,
	backoff Backoff,
) *Handler {
	return &Handler{
		jobName:  jobName,
		queue:    queue,
		docs:     docs,
		results:  results,
		analyzer: an,
		backoff:  backoff,
		now:      time.Now,
	}
}

// Run processes the queue on a fixed interval until ctx is cancelled.
func (h *Handler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.ProcessQueue(ctx); err != nil {
				slog.Error("Retry queue pass failed", "job", h.jobName, "error", err)
			}
		}
	}
}

// ProcessQueue makes one pass over the queue, retrying every entry whose
// backoff window has elapsed.
func (h *Handler) ProcessQueue(ctx context.Context) error {
	entries, err := h.queue.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list retry queue: %w", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.Document == nil {
			continue
		}

		if h.backoff.Exhausted(entry.Attempts) {
			slog.Error("Abandoning document after exhausting retries",
				"job", h.jobName,
				"document_id", entry.Document.ID,
				"attempts", entry.Attempts,
				"last_error", entry.Error,
			)
			if err := h.queue.Remove(ctx, entry.Document.ID); err != nil {
				slog.Error("Failed to remove abandoned entry", "document_id", entry.Document.ID, "error", err)
			}
			continue
		}

		if h.now().Before(entry.LastAttempt.Add(h.backoff.Delay(entry.Attempts))) {
			continue
		}

		h.retryEntry(ctx, entry)
	}

	if depth, err := h.queue.Count(ctx); err == nil {
		metrics.RetryQueueDepth.WithLabelValues(h.jobName).Set(float64(depth))
	}
	return nil
}

// retryEntry re-runs the full classify-and-persist path for one entry.
// Write failures also re-analyze: the queue entry only carries the source
// document, and results are insert-only so a duplicate result is harmless.
func (h *Handler) retryEntry(ctx context.Context, entry *domain.RetryEntry) {
	doc := entry.Document

	cls, err := h.analyzer.Analyze(ctx, doc)
	if err != nil {
		h.requeue(ctx, entry, err)
		return
	}

	convNum := doc.ConversationNumber
	if convNum == "" {
		convNum = doc.ID
	}

	result := &domain.ResultDocument{
		ID:                 uuid.NewString(),
		ConversationNumber: convNum,
		SourceObjectID:     doc.ID,
		Classification:     *cls,
		ProcessedAt:        h.now().UTC(),
		ProcessingMetadata: domain.ProcessingMetadata{
			BatchJobID:         "recovery_" + h.jobName,
			ProcessingAttempts: entry.Attempts + 1,
		},
	}
	if err := h.results.Insert(ctx, result); err != nil {
		h.requeue(ctx, entry, err)
		return
	}
	if err := h.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessed, result.ID); err != nil {
		h.requeue(ctx, entry, err)
		return
	}

	if err := h.queue.Remove(ctx, doc.ID); err != nil {
		slog.Error("Failed to remove recovered entry", "document_id", doc.ID, "error", err)
		return
	}

	metrics.DocumentsProcessed.WithLabelValues(h.jobName, "recovered").Inc()
	slog.Info("Recovered document from retry queue",
		"job", h.jobName,
		"document_id", doc.ID,
		"attempts", entry.Attempts+1,
	)
}

// requeue records another failed attempt. Permanent failures are dropped
// instead; they would exhaust the budget without ever succeeding.
func (h *Handler) requeue(ctx context.Context, entry *domain.RetryEntry, cause error) {
	doc := entry.Document

	if retry.Classify(cause) == retry.ClassPermanent {
		slog.Error("Dropping retry entry with permanent failure",
			"job", h.jobName, "document_id", doc.ID, "error", cause)
		if err := h.queue.Remove(ctx, doc.ID); err != nil {
			slog.Error("Failed to remove entry", "document_id", doc.ID, "error", err)
		}
		return
	}

	// Add derives the stored attempt count from the document snapshot, so
	// line it up with the entry's count before upserting.
	doc.ProcessingAttempts = entry.Attempts
	if err := h.queue.Add(ctx, doc, cause.Error(), entry.RetryType); err != nil {
		slog.Error("Failed to requeue entry", "document_id", doc.ID, "error", err)
	}
	slog.Warn("Retry attempt failed",
		"job", h.jobName,
		"document_id", doc.ID,
		"attempts", entry.Attempts+1,
		"error", cause,
	)
}
