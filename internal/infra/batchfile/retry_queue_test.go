package batchfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vietddude/ingestor/internal/core/domain"
)

func newTestQueue(t *testing.T) (*RetryQueue, string) {
	t.Helper()
	dir := t.TempDir()
	if _, err := NewManager(dir); err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return NewRetryQueue(dir), dir
}

func TestRetryQueue_AddListRemove(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	docA := &domain.SourceDocument{ID: "doc-a", ProcessingAttempts: 0}
	docB := &domain.SourceDocument{ID: "doc-b", ProcessingAttempts: 2}

	if err := q.Add(ctx, docA, "timeout", domain.RetryTypeAnalyzeFailed); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := q.Add(ctx, docB, "connection refused", domain.RetryTypeWriteFailed); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	entries, err := q.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[1].Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", entries[1].Attempts)
	}

	if err := q.Remove(ctx, "doc-a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if n, _ := q.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
	// Removing an absent document is a no-op.
	if err := q.Remove(ctx, "doc-a"); err != nil {
		t.Errorf("second Remove failed: %v", err)
	}
}

func TestRetryQueue_DedupByDocumentID(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	doc := &domain.SourceDocument{ID: "doc-1"}
	if err := q.Add(ctx, doc, "first", domain.RetryTypeAnalyzeFailed); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	doc.ProcessingAttempts = 1
	if err := q.Add(ctx, doc, "second", domain.RetryTypeAnalyzeFailed); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	entries, err := q.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Error != "second" || entries[0].Attempts != 2 {
		t.Errorf("entry = %+v, want error=second attempts=2", entries[0])
	}
}

func TestRetryQueue_SurvivesRestart(t *testing.T) {
	q, dir := newTestQueue(t)
	ctx := context.Background()

	if err := q.Add(ctx, &domain.SourceDocument{ID: "doc-1"}, "timeout", domain.RetryTypeAnalyzeFailed); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	reopened := NewRetryQueue(dir)
	entries, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Document.ID != "doc-1" {
		t.Fatalf("entries after reopen = %v, want one doc-1", entries)
	}
}

func TestRetryQueue_CorruptFileStartsEmpty(t *testing.T) {
	q, dir := newTestQueue(t)
	ctx := context.Background()

	path := filepath.Join(dir, retryDir, "retry_queue.json")
	if err := os.WriteFile(path, []byte("[{broken"), 0o644); err != nil {
		t.Fatalf("writing corrupt queue: %v", err)
	}

	entries, err := q.List(ctx)
	if err != nil {
		t.Fatalf("List on corrupt file returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}

	// The queue is usable again after the corrupt read.
	if err := q.Add(ctx, &domain.SourceDocument{ID: "doc-1"}, "x", domain.RetryTypeWriteFailed); err != nil {
		t.Fatalf("Add after corrupt read failed: %v", err)
	}
	if n, _ := q.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}
