package batchfile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// RetryQueue persists failed documents to a JSON file so they survive a
// restart. Entries are keyed by document id, so re-adding a document
// replaces its previous entry. The whole file is rewritten on every
// mutation under a process-local mutex; fine at retry-queue scale.
type RetryQueue struct {
	path string
	mu   sync.Mutex
}

// NewRetryQueue stores the queue at <dir>/retry/retry_queue.json.
func NewRetryQueue(dir string) *RetryQueue {
	return &RetryQueue{path: filepath.Join(dir, retryDir, "retry_queue.json")}
}

// load reads the queue file. A missing or corrupt file yields an empty
// queue; queued work is best-effort and must never block the pipeline.
func (q *RetryQueue) load() []*domain.RetryEntry {
	var entries []*domain.RetryEntry
	if err := readJSON(q.path, &entries); err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Retry queue file unreadable, starting empty", "path", q.path, "error", err)
		}
		return nil
	}
	return entries
}

func (q *RetryQueue) save(entries []*domain.RetryEntry) error {
	return writeJSON(q.path, entries)
}

// Add upserts the entry for the document id.
func (q *RetryQueue) Add(
	ctx context.Context,
	doc *domain.SourceDocument,
	errorMsg string,
	retryType domain.RetryType,
) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry := &domain.RetryEntry{
		Document:    doc,
		Error:       errorMsg,
		RetryType:   retryType,
		Attempts:    doc.ProcessingAttempts + 1,
		LastAttempt: time.Now().UTC(),
	}

	entries := q.load()
	replaced := false
	for i, e := range entries {
		if e.Document != nil && e.Document.ID == doc.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return q.save(entries)
}

// List returns all queued entries in file order.
func (q *RetryQueue) List(ctx context.Context) ([]*domain.RetryEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(), nil
}

// Remove deletes the entry for a document. Removing an absent document is
// a no-op.
func (q *RetryQueue) Remove(ctx context.Context, documentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.load()
	kept := entries[:0]
	for _, e := range entries {
		if e.Document == nil || e.Document.ID != documentID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return q.save(kept)
}

// Count returns the number of queued entries.
func (q *RetryQueue) Count(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.load()), nil
}
