// Package control assembles the application: storage backends, the
// analyzer client, one pipeline and recovery worker per configured job, and
// the health server.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/ingestor/internal/core/config"
	"github.com/vietddude/ingestor/internal/core/retry"
	"github.com/vietddude/ingestor/internal/infra/analyzer"
	"github.com/vietddude/ingestor/internal/infra/batchfile"
	redisclient "github.com/vietddude/ingestor/internal/infra/redis"
	"github.com/vietddude/ingestor/internal/infra/storage"
	"github.com/vietddude/ingestor/internal/infra/storage/memory"
	"github.com/vietddude/ingestor/internal/infra/storage/postgres"
	"github.com/vietddude/ingestor/internal/ingest/health"
	"github.com/vietddude/ingestor/internal/ingest/pipeline"
	"github.com/vietddude/ingestor/internal/ingest/recovery"
)

// recoveryInterval is how often each recovery worker sweeps its queue.
const recoveryInterval = 30 * time.Second

// job bundles one configured job's runtime pieces.
type job struct {
	cfg      config.JobConfig
	pipeline *pipeline.Pipeline
	recovery *recovery.Handler
	queue    storage.RetryQueueRepository
	docs     storage.DocumentRepository
	cps      storage.CheckpointRepository
}

// Runner is the main application struct managing the ingestion lifecycle.
type Runner struct {
	cfg          config.AppConfig
	jobs         map[string]*job
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger

	wg     sync.WaitGroup
	errMu  sync.Mutex
	runErr error
}

// NewRunner creates a Runner with all dependencies initialized.
func NewRunner(ctx context.Context, cfg config.AppConfig) (*Runner, error) {
	if len(cfg.Jobs) == 0 {
		return nil, fmt.Errorf("no jobs configured")
	}

	// 1. Storage backend
	var db *postgres.DB
	var store *memory.MemoryStorage
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		slog.Info("Using PostgreSQL storage")
	} else {
		store = memory.NewMemoryStorage()
		slog.Info("Using memory storage with file-backed checkpoints")
	}

	// 2. Redis retry queue backend (optional)
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, falling back to file retry queue", "error", err)
		}
	}

	// 3. Analyzer client
	an := analyzer.NewHTTPAnalyzer(cfg.Analyzer.URL, cfg.Analyzer.Timeout)
	analyzeRetry := retry.Config{
		MaxRetries: cfg.Analyzer.MaxRetries,
		BaseDelay:  cfg.Analyzer.BaseDelay,
		MaxDelay:   cfg.Analyzer.MaxDelay,
		Jitter:     0.1,
		Classes:    []retry.Class{retry.ClassTransient, retry.ClassResource},
	}

	// 4. Per-job wiring
	jobs := make(map[string]*job, len(cfg.Jobs))
	probes := make([]health.JobProbe, 0, len(cfg.Jobs))

	for _, jc := range cfg.Jobs {
		if _, dup := jobs[jc.Name]; dup {
			return nil, fmt.Errorf("duplicate job name %q", jc.Name)
		}

		manager, err := batchfile.NewManager(jc.BatchDir)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", jc.Name, err)
		}

		var docs storage.DocumentRepository
		var results storage.ResultRepository
		var cps storage.CheckpointRepository
		var queue storage.RetryQueueRepository

		if db != nil {
			docs = postgres.NewDocumentRepo(db)
			results = postgres.NewResultRepo(db)
			cps = postgres.NewCheckpointRepo(db, jc.Name)
			queue = postgres.NewRetryQueueRepo(db)
		} else {
			docs = memory.NewDocumentRepo(store)
			results = memory.NewResultRepo(store)
			cps = batchfile.NewCheckpointStore(jc.BatchDir, jc.Name)
			queue = batchfile.NewRetryQueue(jc.BatchDir)
		}
		if redisClient != nil {
			queue = redisclient.NewRetryQueueRepo(redisClient, jc.Name)
		}

		// Store calls ride the default backoff policy; the analyzer has its
		// own, configurable one. The health probes and status CLI keep the
		// raw repos so an outage surfaces immediately instead of sleeping
		// through backoff.
		retryingDocs := storage.WithRetry(docs, retry.DefaultConfig)
		retryingResults := storage.WithResultRetry(results, retry.DefaultConfig)
		retryingCps := storage.WithCheckpointRetry(cps, retry.DefaultConfig)
		retryingQueue := storage.WithQueueRetry(queue, retry.DefaultConfig)

		var manifests *batchfile.Manager
		if jc.Manifests {
			manifests = manager
		}

		p := pipeline.New(pipeline.Config{
			JobName:       jc.Name,
			BatchSize:     jc.BatchSize,
			MaxConcurrent: jc.MaxConcurrent,
			Mode:          jc.Mode,
			PollInterval:  jc.PollInterval,
			Documents:     retryingDocs,
			Results:       retryingResults,
			Checkpoints:   retryingCps,
			RetryQueue:    retryingQueue,
			Analyzer:      an,
			Manifests:     manifests,
			AnalyzeRetry:  analyzeRetry,
		})

		rec := recovery.NewHandler(
			jc.Name, retryingQueue, retryingDocs, retryingResults, an, recovery.DefaultBackoff(),
		)

		jobs[jc.Name] = &job{
			cfg:      jc,
			pipeline: p,
			recovery: rec,
			queue:    queue,
			docs:     docs,
			cps:      cps,
		}
		probes = append(probes, health.JobProbe{
			Name:        jc.Name,
			Documents:   docs,
			Queue:       queue,
			Checkpoints: cps,
		})
	}

	// 5. Health monitor and server
	healthMon := health.NewMonitor(probes, an)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	return &Runner{
		cfg:          cfg,
		jobs:         jobs,
		healthServer: healthServer,
		db:           db,
		redisClient:  redisClient,
		log:          slog.Default(),
	}, nil
}

// Start launches the health server, pipelines and recovery workers.
// Pipelines in batch mode finish on their own; use Wait to block until all
// of them have drained.
func (r *Runner) Start(ctx context.Context) error {
	go func() {
		if err := r.healthServer.Start(); err != nil {
			r.log.Error("Health server failed", "error", err)
		}
	}()

	if r.db != nil {
		r.db.StartMetricsCollector(ctx)
	}

	for name, j := range r.jobs {
		r.log.Info("Starting job", "job", name, "mode", string(j.cfg.Mode))

		r.wg.Add(1)
		go func(name string, j *job) {
			defer r.wg.Done()
			if _, err := j.pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.log.Error("Pipeline failed", "job", name, "error", err)
				r.recordErr(err)
			}
		}(name, j)

		go j.recovery.Run(ctx, recoveryInterval)
	}

	return nil
}

// Wait blocks until every pipeline has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) recordErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.runErr == nil {
		r.runErr = err
	}
}

// Err returns the first pipeline failure, if any. Call after Wait; a
// shutdown via context cancellation is not a failure.
func (r *Runner) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.runErr
}

// Stop shuts down shared resources. Pipelines stop via context
// cancellation; call Wait first so in-flight windows can checkpoint.
func (r *Runner) Stop(ctx context.Context) error {
	r.log.Info("Stopping ingestor")

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			r.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if r.db != nil {
		r.db.Close()
	}
	return r.healthServer.Stop(ctx)
}

// Job returns the runtime state for one job, for status inspection.
func (r *Runner) Job(name string) (docs storage.DocumentRepository, queue storage.RetryQueueRepository, cps storage.CheckpointRepository, ok bool) {
	j, found := r.jobs[name]
	if !found {
		return nil, nil, nil, false
	}
	return j.docs, j.queue, j.cps, true
}
