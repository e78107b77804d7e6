package config

import (
	"time"

	redisclient "github.com/vietddude/ingestor/internal/infra/redis"
	"github.com/vietddude/ingestor/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Jobs     []JobConfig        `yaml:"jobs"`
	Analyzer AnalyzerConfig     `yaml:"analyzer"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP health/metrics server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// JobMode selects how a job behaves once the source is drained.
type JobMode string

const (
	// ModeBatch processes until no unprocessed documents remain, then exits.
	ModeBatch JobMode = "batch"
	// ModeContinuous keeps polling the source at PollInterval.
	ModeContinuous JobMode = "continuous"
)

// JobConfig holds settings for one ingestion job. Exactly one active runner
// per job name is assumed; there is no distributed lock.
type JobConfig struct {
	Name          string        `yaml:"name"`
	BatchSize     int           `yaml:"batch_size"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	Mode          JobMode       `yaml:"mode"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	BatchDir      string        `yaml:"batch_dir"`

	// Manifests controls whether fetched windows are snapshotted to disk
	// before processing so a crash mid-window can resume from the manifest.
	Manifests bool `yaml:"manifests"`
}

// AnalyzerConfig holds settings for the external classification service.
type AnalyzerConfig struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}
