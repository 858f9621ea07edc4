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

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in zero-valued settings.
func (cfg *AppConfig) ApplyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Monitor.SamplingInterval == 0 {
		cfg.Monitor.SamplingInterval = Duration(30 * time.Second)
	}
	if cfg.Monitor.GoroutineLimit == 0 {
		cfg.Monitor.GoroutineLimit = 5000
	}
	if cfg.Monitor.HeapLimitBytes == 0 {
		cfg.Monitor.HeapLimitBytes = 1 << 30 // 1 GiB
	}
	if cfg.Monitor.QueueWarnDepth == 0 {
		cfg.Monitor.QueueWarnDepth = 64
	}
	if cfg.Monitor.WindowSize == 0 {
		cfg.Monitor.WindowSize = 120
	}
	if cfg.Healing.MaxRetryAttempts == 0 {
		cfg.Healing.MaxRetryAttempts = 3
	}
	if cfg.Healing.AttemptTimeout == 0 {
		cfg.Healing.AttemptTimeout = Duration(30 * time.Second)
	}
	if cfg.Healing.BackoffBase == 0 {
		cfg.Healing.BackoffBase = Duration(time.Second)
	}
	if cfg.Healing.BackoffMax == 0 {
		cfg.Healing.BackoffMax = Duration(60 * time.Second)
	}
	if cfg.Healing.WorkerCount == 0 {
		cfg.Healing.WorkerCount = 4
	}
	if cfg.Healing.QueueSize == 0 {
		cfg.Healing.QueueSize = 256
	}
	if cfg.Healing.MinSampleThreshold == 0 {
		cfg.Healing.MinSampleThreshold = 5
	}
	if cfg.Healing.MaxPriorStep == 0 {
		cfg.Healing.MaxPriorStep = 0.05
	}
	if cfg.Healing.ReconcileInterval == 0 {
		cfg.Healing.ReconcileInterval = Duration(5 * time.Minute)
	}
	if len(cfg.Bucket.Keys) == 0 {
		cfg.Bucket.Keys = []string{"operation"}
	}
}
