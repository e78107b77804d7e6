package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/infra/storage"
)

// MemoryStorage backs all repositories with process-local maps. Used in
// tests and when no database URL is configured.
type MemoryStorage struct {
	documents   map[string]*domain.SourceDocument
	results     []*domain.ResultDocument
	checkpoints map[string]*domain.Checkpoint
	retries     map[string]*domain.RetryEntry
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		documents:   make(map[string]*domain.SourceDocument),
		checkpoints: make(map[string]*domain.Checkpoint),
		retries:     make(map[string]*domain.RetryEntry),
	}
}

// -----------------------------------------------------------------------------
// Document Repository
// -----------------------------------------------------------------------------

type DocumentRepo struct {
	store *MemoryStorage
}

func NewDocumentRepo(store *MemoryStorage) *DocumentRepo {
	return &DocumentRepo{store: store}
}

func (r *DocumentRepo) FetchUnprocessed(
	ctx context.Context,
	batchSize int,
	lastObjectID string,
) ([]*domain.SourceDocument, string, string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := make([]string, 0, len(r.store.documents))
	for id, doc := range r.store.documents {
		if doc.Status == domain.DocumentStatusProcessed {
			continue
		}
		if lastObjectID != "" && id <= lastObjectID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var docs []*domain.SourceDocument
	var firstID, lastID string
	for _, id := range ids {
		if len(docs) >= batchSize {
			break
		}
		doc := *r.store.documents[id]
		if firstID == "" {
			firstID = id
		}
		lastID = id
		docs = append(docs, &doc)
	}
	return docs, firstID, lastID, nil
}

func (r *DocumentRepo) UpdateStatus(
	ctx context.Context,
	docID string,
	status domain.DocumentStatus,
	resultID string,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	doc, ok := r.store.documents[docID]
	if !ok {
		return fmt.Errorf("document %s: %w", docID, storage.ErrDocumentNotFound)
	}
	doc.Status = status
	doc.LastProcessedAt = time.Now().UTC()
	doc.ProcessingAttempts++
	if resultID != "" {
		doc.ResultID = resultID
	}
	return nil
}

func (r *DocumentRepo) Insert(ctx context.Context, doc *domain.SourceDocument) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *doc
	if cp.Status == "" {
		cp.Status = domain.DocumentStatusPending
	}
	r.store.documents[cp.ID] = &cp
	return nil
}

func (r *DocumentRepo) CountUnprocessed(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, doc := range r.store.documents {
		if doc.Status != domain.DocumentStatusProcessed {
			count++
		}
	}
	return count, nil
}

// Get returns a document by id (test helper).
func (r *DocumentRepo) Get(ctx context.Context, docID string) (*domain.SourceDocument, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	doc, ok := r.store.documents[docID]
	if !ok {
		return nil, storage.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

// -----------------------------------------------------------------------------
// Result Repository
// -----------------------------------------------------------------------------

type ResultRepo struct {
	store *MemoryStorage
}

func NewResultRepo(store *MemoryStorage) *ResultRepo {
	return &ResultRepo{store: store}
}

func (r *ResultRepo) Insert(ctx context.Context, result *domain.ResultDocument) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *result
	r.store.results = append(r.store.results, &cp)
	return nil
}

func (r *ResultRepo) ListBySource(
	ctx context.Context,
	sourceObjectID string,
) ([]*domain.ResultDocument, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.ResultDocument
	for _, res := range r.store.results {
		if res.SourceObjectID == sourceObjectID {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *ResultRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.results), nil
}

// -----------------------------------------------------------------------------
// Checkpoint Repository
// -----------------------------------------------------------------------------

type CheckpointRepo struct {
	store   *MemoryStorage
	jobName string
}

func NewCheckpointRepo(store *MemoryStorage, jobName string) *CheckpointRepo {
	return &CheckpointRepo{store: store, jobName: jobName}
}

func (r *CheckpointRepo) Save(ctx context.Context, lastProcessedID string, stats domain.Stats) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.checkpoints[r.jobName] = &domain.Checkpoint{
		JobName:         r.jobName,
		LastProcessedID: lastProcessedID,
		Timestamp:       time.Now().UTC(),
		Stats:           stats,
	}
	return nil
}

func (r *CheckpointRepo) Load(ctx context.Context) (*domain.Checkpoint, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	cp, ok := r.store.checkpoints[r.jobName]
	if !ok {
		return nil, false, nil
	}
	out := *cp
	return &out, true, nil
}

func (r *CheckpointRepo) Reset(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.checkpoints, r.jobName)
	return nil
}

// -----------------------------------------------------------------------------
// Retry Queue Repository
// -----------------------------------------------------------------------------

type RetryQueueRepo struct {
	store *MemoryStorage
}

func NewRetryQueueRepo(store *MemoryStorage) *RetryQueueRepo {
	return &RetryQueueRepo{store: store}
}

func (r *RetryQueueRepo) Add(
	ctx context.Context,
	doc *domain.SourceDocument,
	errorMsg string,
	retryType domain.RetryType,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *doc
	r.store.retries[doc.ID] = &domain.RetryEntry{
		Document:    &cp,
		Error:       errorMsg,
		RetryType:   retryType,
		Attempts:    doc.ProcessingAttempts + 1,
		LastAttempt: time.Now().UTC(),
	}
	return nil
}

func (r *RetryQueueRepo) List(ctx context.Context) ([]*domain.RetryEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := make([]*domain.RetryEntry, 0, len(r.store.retries))
	for _, e := range r.store.retries {
		cp := *e
		entries = append(entries, &cp)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAttempt.Before(entries[j].LastAttempt)
	})
	return entries, nil
}

func (r *RetryQueueRepo) Remove(ctx context.Context, documentID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.retries, documentID)
	return nil
}

func (r *RetryQueueRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.retries), nil
}
