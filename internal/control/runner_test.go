package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/ingestor/internal/core/config"
)

func testAnalyzerServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"classification": map[string]string{"intent": "support"},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, analyzerURL string) config.AppConfig {
	t.Helper()
	return config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		Jobs: []config.JobConfig{{
			Name:          "classification",
			BatchSize:     10,
			MaxConcurrent: 2,
			Mode:          config.ModeBatch,
			PollInterval:  time.Second,
			BatchDir:      t.TempDir(),
		}},
		Analyzer: config.AnalyzerConfig{
			URL:        analyzerURL,
			Timeout:    5 * time.Second,
			MaxRetries: 1,
			BaseDelay:  time.Millisecond,
			MaxDelay:   time.Millisecond,
		},
	}
}

func TestNewRunner_MemoryMode(t *testing.T) {
	srv := testAnalyzerServer(t)

	runner, err := NewRunner(context.Background(), testConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	docs, queue, cps, ok := runner.Job("classification")
	if !ok {
		t.Fatal("job classification not registered")
	}
	if docs == nil || queue == nil || cps == nil {
		t.Error("job wiring incomplete")
	}
	if _, _, _, ok := runner.Job("nope"); ok {
		t.Error("unknown job reported as registered")
	}
}

func TestRunner_BatchJobDrainsAndStops(t *testing.T) {
	srv := testAnalyzerServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runner, err := NewRunner(ctx, testConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Empty source in batch mode: the pipeline drains immediately.
	done := make(chan struct{})
	go func() {
		runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("batch job did not drain before timeout")
	}

	if err := runner.Stop(context.Background()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := runner.Err(); err != nil {
		t.Errorf("clean drain reported failure: %v", err)
	}
}

func TestNewRunner_RejectsEmptyAndDuplicateJobs(t *testing.T) {
	srv := testAnalyzerServer(t)

	cfg := testConfig(t, srv.URL)
	cfg.Jobs = nil
	if _, err := NewRunner(context.Background(), cfg); err == nil {
		t.Error("NewRunner with no jobs should fail")
	}

	cfg = testConfig(t, srv.URL)
	dup := cfg.Jobs[0]
	dup.BatchDir = t.TempDir()
	cfg.Jobs = append(cfg.Jobs, dup)
	if _, err := NewRunner(context.Background(), cfg); err == nil {
		t.Error("NewRunner with duplicate job names should fail")
	}
}
