package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// ResultRepo implements storage.ResultRepository using PostgreSQL.
// Results are insert-only.
type ResultRepo struct {
	db *DB
}

// NewResultRepo creates a new PostgreSQL result repository.
func NewResultRepo(db *DB) *ResultRepo {
	return &ResultRepo{db: db}
}

type resultRow struct {
	ID                 string         `db:"id"`
	ConversationNumber sql.NullString `db:"conversation_number"`
	SourceObjectID     string         `db:"source_object_id"`
	Intent             string         `db:"intent"`
	Topic              string         `db:"topic"`
	Sentiment          string         `db:"sentiment"`
	Categorization     string         `db:"categorization"`
	ProcessedAt        time.Time      `db:"processed_at"`
	BatchJobID         string         `db:"batch_job_id"`
	ProcessingAttempts int            `db:"processing_attempts"`
}

func (r resultRow) toDomain() *domain.ResultDocument {
	return &domain.ResultDocument{
		ID:                 r.ID,
		ConversationNumber: r.ConversationNumber.String,
		SourceObjectID:     r.SourceObjectID,
		Classification: domain.Classification{
			Intent:         r.Intent,
			Topic:          r.Topic,
			Sentiment:      r.Sentiment,
			Categorization: r.Categorization,
		},
		ProcessedAt: r.ProcessedAt,
		ProcessingMetadata: domain.ProcessingMetadata{
			BatchJobID:         r.BatchJobID,
			ProcessingAttempts: r.ProcessingAttempts,
		},
	}
}

// Insert stores a classification result.
func (r *ResultRepo) Insert(ctx context.Context, result *domain.ResultDocument) error {
	query := `
		INSERT INTO classification_results
			(id, conversation_number, source_object_id, intent, topic, sentiment, categorization,
			 processed_at, batch_job_id, processing_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		result.ID,
		result.ConversationNumber,
		result.SourceObjectID,
		result.Classification.Intent,
		result.Classification.Topic,
		result.Classification.Sentiment,
		result.Classification.Categorization,
		result.ProcessedAt,
		result.ProcessingMetadata.BatchJobID,
		result.ProcessingMetadata.ProcessingAttempts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

// ListBySource returns all results referencing a source document.
func (r *ResultRepo) ListBySource(
	ctx context.Context,
	sourceObjectID string,
) ([]*domain.ResultDocument, error) {
	query := `
		SELECT id, conversation_number, source_object_id, intent, topic, sentiment, categorization,
		       processed_at, batch_job_id, processing_attempts
		FROM classification_results
		WHERE source_object_id = $1
		ORDER BY processed_at ASC
	`
	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, sourceObjectID); err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	results := make([]*domain.ResultDocument, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toDomain())
	}
	return results, nil
}

// Count returns the number of stored results.
func (r *ResultRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM classification_results`); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}
