// Package batchfile keeps the local file cache used for crash recovery:
// batch manifests (pending/completed), the checkpoint file and the retry
// queue file. All writes go through a temp file + rename so a crash never
// leaves a half-written JSON document behind. The package assumes a single
// process per batch directory; it carries no cross-process locking.
package batchfile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/ingestor/internal/core/domain"
)

const (
	pendingDir   = "pending"
	completedDir = "completed"
	retryDir     = "retry"
)

// Manager handles batch manifest creation, tracking and recovery.
type Manager struct {
	dir string
}

// NewManager creates the batch directory layout if it doesn't exist.
func NewManager(dir string) (*Manager, error) {
	for _, sub := range []string{pendingDir, completedDir, retryDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create batch dir: %w", err)
		}
	}
	return &Manager{dir: dir}, nil
}

// GenerateBatchID returns a timestamp-derived batch id. The uuid suffix
// keeps two windows created within the same second from colliding on disk;
// batch ids are local recovery bookkeeping, not database keys.
func GenerateBatchID() string {
	ts := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("batch_%s_%s", ts, uuid.NewString()[:8])
}

func (m *Manager) pendingPath(batchID string) string {
	return filepath.Join(m.dir, pendingDir, batchID+".json")
}

func (m *Manager) completedPath(batchID string) string {
	return filepath.Join(m.dir, completedDir, batchID+".json")
}

// CreateBatch snapshots a fetched window into the pending area. batchID may
// be "" to have one generated.
func (m *Manager) CreateBatch(
	documents []*domain.SourceDocument,
	firstObjectID, lastObjectID, batchID string,
) (*domain.BatchManifest, error) {
	if batchID == "" {
		batchID = GenerateBatchID()
	}

	manifest := &domain.BatchManifest{
		Metadata: domain.BatchMetadata{
			BatchID:       batchID,
			CreatedAt:     time.Now().UTC(),
			DocumentCount: len(documents),
			FirstObjectID: firstObjectID,
			LastObjectID:  lastObjectID,
			Status:        domain.BatchStatusPending,
		},
		Documents: documents,
	}

	if err := writeJSON(m.pendingPath(batchID), manifest); err != nil {
		return nil, fmt.Errorf("failed to create batch %s: %w", batchID, err)
	}

	slog.Info("Created batch manifest", "batch_id", batchID, "documents", len(documents))
	return manifest, nil
}

// ListPending returns pending manifests sorted by filename, which orders
// them by creation time and gives a deterministic resume order after a
// crash. Unreadable manifests are skipped with a warning.
func (m *Manager) ListPending() ([]*domain.BatchManifest, error) {
	entries, err := os.ReadDir(filepath.Join(m.dir, pendingDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending batches: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	manifests := make([]*domain.BatchManifest, 0, len(names))
	for _, name := range names {
		path := filepath.Join(m.dir, pendingDir, name)
		var manifest domain.BatchManifest
		if err := readJSON(path, &manifest); err != nil {
			slog.Warn("Skipping unreadable batch manifest", "path", path, "error", err)
			continue
		}
		manifests = append(manifests, &manifest)
	}
	return manifests, nil
}

// MarkCompleted flips the manifest to completed and relocates it. A missing
// pending file (already moved, or never created) is a warning, not an
// error: completion marking is best-effort idempotent.
func (m *Manager) MarkCompleted(batchID string) error {
	srcPath := m.pendingPath(batchID)

	var manifest domain.BatchManifest
	if err := readJSON(srcPath, &manifest); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Batch manifest not found in pending, cannot mark completed", "batch_id", batchID)
			return nil
		}
		return fmt.Errorf("failed to read batch %s: %w", batchID, err)
	}

	now := time.Now().UTC()
	manifest.Metadata.Status = domain.BatchStatusCompleted
	manifest.Metadata.CompletedAt = &now

	if err := writeJSON(m.completedPath(batchID), &manifest); err != nil {
		return fmt.Errorf("failed to write completed batch %s: %w", batchID, err)
	}
	if err := os.Remove(srcPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pending batch %s: %w", batchID, err)
	}

	slog.Info("Marked batch completed", "batch_id", batchID)
	return nil
}

// writeJSON writes v to path via a temp file + rename in the same
// directory, so readers never observe a partial file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
