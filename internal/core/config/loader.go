package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Analyzer.Timeout == 0 {
		cfg.Analyzer.Timeout = 30 * time.Second
	}
	if cfg.Analyzer.MaxRetries == 0 {
		cfg.Analyzer.MaxRetries = 3
	}
	if cfg.Analyzer.BaseDelay == 0 {
		cfg.Analyzer.BaseDelay = 2 * time.Second
	}
	if cfg.Analyzer.MaxDelay == 0 {
		cfg.Analyzer.MaxDelay = 60 * time.Second
	}

	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		if job.BatchSize == 0 {
			job.BatchSize = 100
		}
		if job.MaxConcurrent == 0 {
			job.MaxConcurrent = 5
		}
		if job.Mode == "" {
			job.Mode = ModeBatch
		}
		if job.PollInterval == 0 {
			job.PollInterval = 60 * time.Second
		}
		if job.BatchDir == "" {
			job.BatchDir = "batch_files/" + job.Name
		}
	}
}
