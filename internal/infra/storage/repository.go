package storage

import (
	"context"
	"errors"

	"github.com/vietddude/ingestor/internal/core/domain"
)

var (
	// ErrDocumentNotFound is returned when a source document doesn't exist.
	ErrDocumentNotFound = errors.New("document not found")
)

// DocumentRepository handles the source document collection.
type DocumentRepository interface {
	// FetchUnprocessed returns the next window of documents with
	// status != processed, strictly after lastObjectID ("" means from the
	// start), in ascending id order, capped at batchSize. It also returns the
	// first and last ids actually returned so the caller can chain pagination
	// without re-deriving bounds from the document set.
	FetchUnprocessed(
		ctx context.Context,
		batchSize int,
		lastObjectID string,
	) (docs []*domain.SourceDocument, firstID, lastID string, err error)

	// UpdateStatus sets status and last_processed_at, optionally sets
	// result_id (when resultID != ""), and atomically increments
	// processing_attempts by 1.
	UpdateStatus(ctx context.Context, docID string, status domain.DocumentStatus, resultID string) error

	// Insert adds a source document. Used by seeding tools and tests; the
	// collection is otherwise owned by the upstream producer.
	Insert(ctx context.Context, doc *domain.SourceDocument) error

	// CountUnprocessed returns how many documents still await processing.
	CountUnprocessed(ctx context.Context) (int, error)
}

// ResultRepository handles the analysis result collection. Results are
// insert-only; reprocessing creates a new result rather than updating one.
type ResultRepository interface {
	Insert(ctx context.Context, result *domain.ResultDocument) error

	// ListBySource returns results referencing a source document. Downstream
	// consumers dedupe on source_object_id if strict exactly-once result
	// counts matter.
	ListBySource(ctx context.Context, sourceObjectID string) ([]*domain.ResultDocument, error)

	Count(ctx context.Context) (int, error)
}

// CheckpointRepository persists the last processed position for one job.
type CheckpointRepository interface {
	// Save upserts the single live checkpoint record for the job.
	Save(ctx context.Context, lastProcessedID string, stats domain.Stats) error

	// Load returns found=false (not an error) when no checkpoint exists yet;
	// that is the expected state on first run.
	Load(ctx context.Context) (cp *domain.Checkpoint, found bool, err error)

	// Reset deletes the checkpoint so the next run starts from the beginning.
	Reset(ctx context.Context) error
}

// RetryQueueRepository is the durable queue of documents that failed
// analysis or persistence, keyed by document id. At most one live entry per
// document; Add upserts.
type RetryQueueRepository interface {
	Add(ctx context.Context, doc *domain.SourceDocument, errorMsg string, retryType domain.RetryType) error
	List(ctx context.Context) ([]*domain.RetryEntry, error)
	Remove(ctx context.Context, documentID string) error
	Count(ctx context.Context) (int, error)
}
