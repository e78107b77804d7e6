package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsProcessed tracks total documents processed per job and outcome
	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_documents_processed_total",
			Help: "Total number of documents processed",
		},
		[]string{"job", "outcome"},
	)

	// BatchesProcessed tracks completed batch windows per job
	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_batches_processed_total",
			Help: "Total number of batch windows processed",
		},
		[]string{"job"},
	)

	// AnalyzeCallsTotal tracks calls to the classification service
	AnalyzeCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_analyze_calls_total",
			Help: "Total number of classification calls",
		},
		[]string{"job"},
	)

	// AnalyzeErrorsTotal tracks classification failures by error class
	AnalyzeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_analyze_errors_total",
			Help: "Total number of classification errors",
		},
		[]string{"job", "error_class"},
	)

	// AnalyzeLatency tracks classification call latency
	AnalyzeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingestor_analyze_latency_seconds",
			Help:    "Classification call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// RetryQueueDepth tracks the number of documents waiting for retry
	RetryQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestor_retry_queue_depth",
			Help: "Number of documents in the retry queue",
		},
		[]string{"job"},
	)

	// LastCheckpointTimestamp tracks when each job last saved a checkpoint
	LastCheckpointTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestor_last_checkpoint_timestamp_seconds",
			Help: "Unix timestamp of the last saved checkpoint",
		},
		[]string{"job"},
	)

	// DBConnectionPoolUsage tracks database connection pool utilization
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingestor_db_connection_pool_usage",
			Help: "Fraction of database connections in use",
		},
	)
)
