package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/infra/storage"
)

// DocumentRepo implements storage.DocumentRepository using PostgreSQL.
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo creates a new PostgreSQL document repository.
func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

type documentRow struct {
	ID                 string         `db:"id"`
	ConversationNumber sql.NullString `db:"conversation_number"`
	Status             string         `db:"status"`
	ProcessingAttempts int            `db:"processing_attempts"`
	ResultID           sql.NullString `db:"result_id"`
	LastProcessedAt    sql.NullTime   `db:"last_processed_at"`
	Payload            []byte         `db:"payload"`
}

func (r documentRow) toDomain() (*domain.SourceDocument, error) {
	var payload map[string]any
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload for %s: %w", r.ID, err)
		}
	}
	doc := &domain.SourceDocument{
		ID:                 r.ID,
		ConversationNumber: r.ConversationNumber.String,
		Status:             domain.DocumentStatus(r.Status),
		ProcessingAttempts: r.ProcessingAttempts,
		ResultID:           r.ResultID.String,
		Payload:            payload,
	}
	if r.LastProcessedAt.Valid {
		doc.LastProcessedAt = r.LastProcessedAt.Time
	}
	return doc, nil
}

// FetchUnprocessed pulls the next window of unprocessed documents using
// exclusive-lower-bound pagination on the primary key. The LIMIT already
// bounds the result but the loop re-checks batchSize so an over-returning
// store can never inflate a window.
func (r *DocumentRepo) FetchUnprocessed(
	ctx context.Context,
	batchSize int,
	lastObjectID string,
) ([]*domain.SourceDocument, string, string, error) {
	query := `
		SELECT id, conversation_number, status, processing_attempts, result_id, last_processed_at, payload
		FROM source_documents
		WHERE status != 'processed' AND id > $1
		ORDER BY id ASC
		LIMIT $2
	`

	var rows []documentRow
	if err := r.db.SelectContext(ctx, &rows, query, lastObjectID, batchSize); err != nil {
		return nil, "", "", fmt.Errorf("failed to fetch unprocessed documents: %w", err)
	}

	var docs []*domain.SourceDocument
	var firstID, lastID string
	for _, row := range rows {
		if len(docs) >= batchSize {
			break
		}
		doc, err := row.toDomain()
		if err != nil {
			return nil, "", "", err
		}
		if firstID == "" {
			firstID = doc.ID
		}
		lastID = doc.ID
		docs = append(docs, doc)
	}

	return docs, firstID, lastID, nil
}

// UpdateStatus sets status and last_processed_at, optionally records the
// result id, and increments processing_attempts atomically so concurrent
// callers never lose an increment.
func (r *DocumentRepo) UpdateStatus(
	ctx context.Context,
	docID string,
	status domain.DocumentStatus,
	resultID string,
) error {
	var res sql.Result
	var err error

	if resultID != "" {
		query := `
			UPDATE source_documents
			SET status = $1,
			    last_processed_at = $2,
			    result_id = $3,
			    processing_attempts = processing_attempts + 1
			WHERE id = $4
		`
		res, err = r.db.ExecContext(ctx, query, string(status), time.Now().UTC(), resultID, docID)
	} else {
		query := `
			UPDATE source_documents
			SET status = $1,
			    last_processed_at = $2,
			    processing_attempts = processing_attempts + 1
			WHERE id = $3
		`
		res, err = r.db.ExecContext(ctx, query, string(status), time.Now().UTC(), docID)
	}
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", docID, storage.ErrDocumentNotFound)
	}
	return nil
}

// Insert adds a source document.
func (r *DocumentRepo) Insert(ctx context.Context, doc *domain.SourceDocument) error {
	payload, err := json.Marshal(doc.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	query := `
		INSERT INTO source_documents (id, conversation_number, status, processing_attempts, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	status := doc.Status
	if status == "" {
		status = domain.DocumentStatusPending
	}
	if _, err := r.db.ExecContext(
		ctx, query, doc.ID, doc.ConversationNumber, string(status), doc.ProcessingAttempts, payload,
	); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// CountUnprocessed returns how many documents still await processing.
func (r *DocumentRepo) CountUnprocessed(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM source_documents WHERE status != 'processed'`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count unprocessed documents: %w", err)
	}
	return count, nil
}
