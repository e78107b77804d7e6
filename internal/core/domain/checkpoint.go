package domain

import "time"

// Stats is the counters bag carried through checkpoints for observability.
// It has no effect on control flow.
type Stats struct {
	JobID              string    `json:"job_id"`
	StartTime          time.Time `json:"start_time,omitempty"`
	EndTime            time.Time `json:"end_time,omitempty"`
	DocumentsProcessed int       `json:"documents_processed"`
	Successful         int       `json:"successful"`
	Failed             int       `json:"failed"`
	Retried            int       `json:"retried"`
	BatchesProcessed   int       `json:"batches_processed"`
	DurationSeconds    float64   `json:"duration_seconds"`
	ProcessingRate     float64   `json:"processing_rate"`
}

// Add merges per-window counters into the running totals.
func (s *Stats) Add(processed, successful, failed, retried int) {
	s.DocumentsProcessed += processed
	s.Successful += successful
	s.Failed += failed
	s.Retried += retried
	s.BatchesProcessed++
}

// Checkpoint records the last primary-key value known to have been included in
// a completed processing window. One live record per job name; the last id is
// monotonically non-decreasing under single-writer operation.
type Checkpoint struct {
	JobName         string    `json:"job_name,omitempty"`
	LastProcessedID string    `json:"last_processed_object_id"`
	Timestamp       time.Time `json:"timestamp"`
	Stats           Stats     `json:"stats"`
}
