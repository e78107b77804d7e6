package batchfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vietddude/ingestor/internal/core/domain"
)

func TestCheckpointStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	store := NewCheckpointStore(dir, "classification")
	ctx := context.Background()

	if _, found, err := store.Load(ctx); err != nil || found {
		t.Fatalf("Load before save: found=%v err=%v, want false/nil", found, err)
	}

	stats := domain.Stats{DocumentsProcessed: 100, Successful: 95, Failed: 5}
	if err := store.Save(ctx, "doc-000100", stats); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A fresh store over the same directory must see the saved state.
	reopened := NewCheckpointStore(dir, "classification")
	cp, found, err := reopened.Load(ctx)
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if cp.LastProcessedID != "doc-000100" {
		t.Errorf("LastProcessedID = %s, want doc-000100", cp.LastProcessedID)
	}
	if cp.Stats.Successful != 95 {
		t.Errorf("Stats.Successful = %d, want 95", cp.Stats.Successful)
	}
	if cp.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestCheckpointStore_CorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	store := NewCheckpointStore(dir, "classification")
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "checkpoint.json"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("writing corrupt checkpoint: %v", err)
	}

	cp, found, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load on corrupt file returned error: %v", err)
	}
	if found || cp != nil {
		t.Error("corrupt checkpoint should load as not found")
	}
}

func TestCheckpointStore_Reset(t *testing.T) {
	dir := t.TempDir()
	store := NewCheckpointStore(dir, "classification")
	ctx := context.Background()

	if err := store.Save(ctx, "doc-1", domain.Stats{}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, found, _ := store.Load(ctx); found {
		t.Error("checkpoint still present after reset")
	}
	// Reset is idempotent.
	if err := store.Reset(ctx); err != nil {
		t.Errorf("second Reset failed: %v", err)
	}
}
