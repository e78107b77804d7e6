package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/ingestor/internal/infra/analyzer"
	"github.com/vietddude/ingestor/internal/infra/storage"
)

// JobProbe bundles the repositories the monitor inspects for one job.
type JobProbe struct {
	Name        string
	Documents   storage.DocumentRepository
	Queue       storage.RetryQueueRepository
	Checkpoints storage.CheckpointRepository
}

// Monitor aggregates health status from the jobs and the analyzer service.
type Monitor struct {
	probes     []JobProbe
	analyzer   analyzer.Analyzer
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.RWMutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(probes []JobProbe, an analyzer.Analyzer) *Monitor {
	return &Monitor{probes: probes, analyzer: an}
}

// CheckHealth probes every job and rolls the worst per-job state up into
// SystemStatus. Results are cached for 10s so the health endpoint cannot
// hammer the stores.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport.Jobs != nil {
		return m.lastReport
	}

	analyzerUp := true
	if m.analyzer != nil {
		if err := m.analyzer.Health(ctx); err != nil {
			analyzerUp = false
		}
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Jobs:         make(map[string]JobHealth, len(m.probes)),
	}
	for _, probe := range m.probes {
		health := m.checkJob(ctx, probe, analyzerUp)
		report.Jobs[probe.Name] = health
		if health.Status.WorseThan(report.SystemStatus) {
			report.SystemStatus = health.Status
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func (m *Monitor) checkJob(ctx context.Context, probe JobProbe, analyzerUp bool) JobHealth {
	health := JobHealth{
		Job:               probe.Name,
		Status:            StatusHealthy,
		AnalyzerReachable: analyzerUp,
	}

	if backlog, err := probe.Documents.CountUnprocessed(ctx); err == nil {
		health.Backlog = backlog
	} else {
		health.Status = StatusDegraded
	}

	if depth, err := probe.Queue.Count(ctx); err == nil {
		health.RetryQueueDepth = depth
	} else {
		health.Status = StatusDegraded
	}

	if cp, found, err := probe.Checkpoints.Load(ctx); err == nil && found {
		health.LastCheckpoint = cp.Timestamp.UTC().Format(time.RFC3339)
	}

	// An unreachable analyzer stalls every job; a deep retry queue means
	// failures are piling up faster than recovery drains them.
	if !analyzerUp || health.RetryQueueDepth > 100 {
		health.Status = StatusCritical
	} else if health.RetryQueueDepth > 0 {
		health.Status = StatusDegraded
	}
	return health
}
