package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// CheckpointRepo implements storage.CheckpointRepository using PostgreSQL,
// one row per job name, overwritten in place.
type CheckpointRepo struct {
	db      *DB
	jobName string
}

// NewCheckpointRepo creates a checkpoint repository scoped to one job.
func NewCheckpointRepo(db *DB, jobName string) *CheckpointRepo {
	return &CheckpointRepo{db: db, jobName: jobName}
}

// Save upserts the job's checkpoint.
func (r *CheckpointRepo) Save(ctx context.Context, lastProcessedID string, stats domain.Stats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	query := `
		INSERT INTO checkpoints (job_name, last_processed_id, updated_at, stats)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_name) DO UPDATE
		SET last_processed_id = EXCLUDED.last_processed_id,
		    updated_at = EXCLUDED.updated_at,
		    stats = EXCLUDED.stats
	`
	if _, err := r.db.ExecContext(ctx, query, r.jobName, lastProcessedID, time.Now().UTC(), statsJSON); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load returns found=false when no checkpoint row exists for the job.
func (r *CheckpointRepo) Load(ctx context.Context) (*domain.Checkpoint, bool, error) {
	var row struct {
		LastProcessedID string    `db:"last_processed_id"`
		UpdatedAt       time.Time `db:"updated_at"`
		Stats           []byte    `db:"stats"`
	}

	query := `SELECT last_processed_id, updated_at, stats FROM checkpoints WHERE job_name = $1`
	err := r.db.GetContext(ctx, &row, query, r.jobName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	cp := &domain.Checkpoint{
		JobName:         r.jobName,
		LastProcessedID: row.LastProcessedID,
		Timestamp:       row.UpdatedAt,
	}
	if len(row.Stats) > 0 {
		if err := json.Unmarshal(row.Stats, &cp.Stats); err != nil {
			// Corrupt stats are an observability loss, not a reason to
			// refuse resuming from the position.
			cp.Stats = domain.Stats{}
		}
	}
	return cp, true, nil
}

// Reset deletes the job's checkpoint.
func (r *CheckpointRepo) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE job_name = $1`, r.jobName); err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	return nil
}
