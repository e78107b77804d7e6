// Package health provides system health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

var severity = map[SystemStatus]int{
	StatusHealthy:  0,
	StatusDegraded: 1,
	StatusCritical: 2,
}

// WorseThan reports whether s is a more severe state than other.
func (s SystemStatus) WorseThan(other SystemStatus) bool {
	return severity[s] > severity[other]
}

// JobHealth contains health metrics for a single ingestion job.
type JobHealth struct {
	Job               string       `json:"job"`
	Status            SystemStatus `json:"status"`
	Backlog           int          `json:"backlog"`
	RetryQueueDepth   int          `json:"retry_queue_depth"`
	AnalyzerReachable bool         `json:"analyzer_reachable"`
	LastCheckpoint    string       `json:"last_checkpoint,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus         `json:"system_status"`
	Jobs         map[string]JobHealth `json:"jobs"`
}
