package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// RetryQueueRepo implements storage.RetryQueueRepository using PostgreSQL.
// The upsert-by-key primitive makes Add atomic under concurrent writers,
// unlike a whole-collection read-modify-write.
type RetryQueueRepo struct {
	db *DB
}

// NewRetryQueueRepo creates a new PostgreSQL retry queue repository.
func NewRetryQueueRepo(db *DB) *RetryQueueRepo {
	return &RetryQueueRepo{db: db}
}

// Add upserts a retry entry keyed by document id. Attempts are derived from
// the document's processing_attempts rather than the previous entry so that
// a re-enqueued document reflects the latest failure.
func (r *RetryQueueRepo) Add(
	ctx context.Context,
	doc *domain.SourceDocument,
	errorMsg string,
	retryType domain.RetryType,
) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	query := `
		INSERT INTO retry_queue (document_id, document, error_msg, retry_type, attempts, last_attempt)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (document_id) DO UPDATE
		SET document = EXCLUDED.document,
		    error_msg = EXCLUDED.error_msg,
		    retry_type = EXCLUDED.retry_type,
		    attempts = EXCLUDED.attempts,
		    last_attempt = EXCLUDED.last_attempt
	`
	_, err = r.db.ExecContext(
		ctx,
		query,
		doc.ID,
		docJSON,
		errorMsg,
		string(retryType),
		doc.ProcessingAttempts+1,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to add retry entry: %w", err)
	}
	return nil
}

// List returns all queued entries ordered by last attempt (oldest first).
func (r *RetryQueueRepo) List(ctx context.Context) ([]*domain.RetryEntry, error) {
	query := `
		SELECT document, error_msg, retry_type, attempts, last_attempt
		FROM retry_queue
		ORDER BY last_attempt ASC
	`

	var rows []struct {
		Document    []byte    `db:"document"`
		ErrorMsg    string    `db:"error_msg"`
		RetryType   string    `db:"retry_type"`
		Attempts    int       `db:"attempts"`
		LastAttempt time.Time `db:"last_attempt"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list retry queue: %w", err)
	}

	entries := make([]*domain.RetryEntry, 0, len(rows))
	for _, row := range rows {
		var doc domain.SourceDocument
		if err := json.Unmarshal(row.Document, &doc); err != nil {
			// Unreadable entries are skipped rather than blocking the queue.
			continue
		}
		entries = append(entries, &domain.RetryEntry{
			Document:    &doc,
			Error:       row.ErrorMsg,
			RetryType:   domain.RetryType(row.RetryType),
			Attempts:    row.Attempts,
			LastAttempt: row.LastAttempt,
		})
	}
	return entries, nil
}

// Remove deletes the entry for a document.
func (r *RetryQueueRepo) Remove(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM retry_queue WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to remove retry entry: %w", err)
	}
	return nil
}

// Count returns the number of queued entries.
func (r *RetryQueueRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM retry_queue`); err != nil {
		return 0, fmt.Errorf("failed to count retry queue: %w", err)
	}
	return count, nil
}
