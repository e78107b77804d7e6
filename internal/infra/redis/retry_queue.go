package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// RetryQueueRepo implements storage.RetryQueueRepository on a Redis hash,
// one field per document id. HSET is atomic per key, so concurrent Add calls
// for different documents never clobber each other.
type RetryQueueRepo struct {
	client  *Client
	jobName string
}

// NewRetryQueueRepo creates a Redis-backed retry queue scoped to one job.
func NewRetryQueueRepo(client *Client, jobName string) *RetryQueueRepo {
	return &RetryQueueRepo{client: client, jobName: jobName}
}

func (r *RetryQueueRepo) queueKey() string {
	return fmt.Sprintf("retry_queue:%s", r.jobName)
}

// Add upserts the entry for the document id.
func (r *RetryQueueRepo) Add(
	ctx context.Context,
	doc *domain.SourceDocument,
	errorMsg string,
	retryType domain.RetryType,
) error {
	entry := domain.RetryEntry{
		Document:    doc,
		Error:       errorMsg,
		RetryType:   retryType,
		Attempts:    doc.ProcessingAttempts + 1,
		LastAttempt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal retry entry: %w", err)
	}

	if err := r.client.rdb.HSet(ctx, r.queueKey(), doc.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to add retry entry: %w", err)
	}
	return nil
}

// List returns all queued entries. Unreadable fields are dropped with a
// warning rather than failing the whole read.
func (r *RetryQueueRepo) List(ctx context.Context) ([]*domain.RetryEntry, error) {
	fields, err := r.client.rdb.HGetAll(ctx, r.queueKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read retry queue: %w", err)
	}

	entries := make([]*domain.RetryEntry, 0, len(fields))
	for docID, data := range fields {
		var entry domain.RetryEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			slog.Warn("Dropping unreadable retry entry", "document_id", docID, "error", err)
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// Remove deletes the entry for a document.
func (r *RetryQueueRepo) Remove(ctx context.Context, documentID string) error {
	if err := r.client.rdb.HDel(ctx, r.queueKey(), documentID).Err(); err != nil {
		return fmt.Errorf("failed to remove retry entry: %w", err)
	}
	return nil
}

// Count returns the number of queued entries.
func (r *RetryQueueRepo) Count(ctx context.Context) (int, error) {
	count, err := r.client.rdb.HLen(ctx, r.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count retry queue: %w", err)
	}
	return int(count), nil
}
