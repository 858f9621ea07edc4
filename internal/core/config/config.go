package config

import (
	redisclient "selfmend/internal/infra/redis"
	"selfmend/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Monitor  MonitorConfig      `yaml:"monitor"`
	Healing  HealingConfig      `yaml:"healing"`
	Bucket   BucketConfig       `yaml:"bucket"`
}

// ServerConfig holds HTTP status server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MonitorConfig holds health monitor settings.
type MonitorConfig struct {
	SamplingInterval Duration `yaml:"sampling_interval"`
	GoroutineLimit   int      `yaml:"goroutine_limit"`
	HeapLimitBytes   uint64   `yaml:"heap_limit_bytes"`
	QueueWarnDepth   int      `yaml:"queue_warn_depth"`
	WindowSize       int      `yaml:"window_size"`
}

// HealingConfig holds coordinator and learning settings.
type HealingConfig struct {
	MaxRetryAttempts   int      `yaml:"max_retry_attempts"`
	AttemptTimeout     Duration `yaml:"attempt_timeout"`
	BackoffBase        Duration `yaml:"backoff_base"`
	BackoffMax         Duration `yaml:"backoff_max"`
	WorkerCount        int      `yaml:"worker_count"`
	QueueSize          int      `yaml:"queue_size"`
	MinSampleThreshold int      `yaml:"min_sample_threshold"`
	MaxPriorStep       float64  `yaml:"max_prior_step"`
	ReconcileInterval  Duration `yaml:"reconcile_interval"`
}

// BucketConfig declares the context bucket projection: which context keys
// scope learned statistics, and whether coarse severity is part of the key.
type BucketConfig struct {
	Keys            []string `yaml:"keys"`
	IncludeSeverity bool     `yaml:"include_severity"`
}
