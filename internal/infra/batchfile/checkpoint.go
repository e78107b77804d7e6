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

// CheckpointStore persists the last processed cursor position to a JSON
// file in the batch directory. It implements storage.CheckpointRepository
// for deployments without a database.
type CheckpointStore struct {
	path    string
	jobName string
	mu      sync.Mutex
}

// NewCheckpointStore stores the checkpoint at <dir>/checkpoint.json.
func NewCheckpointStore(dir, jobName string) *CheckpointStore {
	return &CheckpointStore{
		path:    filepath.Join(dir, "checkpoint.json"),
		jobName: jobName,
	}
}

func (s *CheckpointStore) Save(ctx context.Context, lastProcessedID string, stats domain.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := domain.Checkpoint{
		JobName:         s.jobName,
		LastProcessedID: lastProcessedID,
		Timestamp:       time.Now().UTC(),
		Stats:           stats,
	}
	return writeJSON(s.path, &cp)
}

// Load returns found=false when the file is missing or unreadable. A
// corrupt checkpoint means restarting from the beginning; already-processed
// documents are excluded by status, so a re-run is wasteful but safe.
func (s *CheckpointStore) Load(ctx context.Context) (*domain.Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cp domain.Checkpoint
	if err := readJSON(s.path, &cp); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		slog.Warn("Checkpoint file unreadable, starting from beginning", "path", s.path, "error", err)
		return nil, false, nil
	}
	return &cp, true, nil
}

func (s *CheckpointStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
