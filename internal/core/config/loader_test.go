package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadParsesDurationsAndValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
logging:
  level: debug
  format: json
monitor:
  sampling_interval: 15s
  goroutine_limit: 2000
healing:
  max_retry_attempts: 5
  attempt_timeout: 45s
  backoff_base: 500ms
  reconcile_interval: 2m
bucket:
  keys: [operation, tool]
  include_severity: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Monitor.SamplingInterval.Std() != 15*time.Second {
		t.Errorf("SamplingInterval = %v", cfg.Monitor.SamplingInterval.Std())
	}
	if cfg.Healing.MaxRetryAttempts != 5 {
		t.Errorf("MaxRetryAttempts = %d", cfg.Healing.MaxRetryAttempts)
	}
	if cfg.Healing.AttemptTimeout.Std() != 45*time.Second {
		t.Errorf("AttemptTimeout = %v", cfg.Healing.AttemptTimeout.Std())
	}
	if cfg.Healing.BackoffBase.Std() != 500*time.Millisecond {
		t.Errorf("BackoffBase = %v", cfg.Healing.BackoffBase.Std())
	}
	if cfg.Healing.ReconcileInterval.Std() != 2*time.Minute {
		t.Errorf("ReconcileInterval = %v", cfg.Healing.ReconcileInterval.Std())
	}
	if len(cfg.Bucket.Keys) != 2 || cfg.Bucket.Keys[1] != "tool" {
		t.Errorf("Bucket keys = %v", cfg.Bucket.Keys)
	}
	if !cfg.Bucket.IncludeSeverity {
		t.Error("IncludeSeverity not parsed")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 0\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Default port = %d", cfg.Server.Port)
	}
	if cfg.Monitor.SamplingInterval.Std() != 30*time.Second {
		t.Errorf("Default sampling interval = %v", cfg.Monitor.SamplingInterval.Std())
	}
	if cfg.Healing.MaxRetryAttempts != 3 {
		t.Errorf("Default max attempts = %d", cfg.Healing.MaxRetryAttempts)
	}
	if cfg.Healing.MinSampleThreshold != 5 {
		t.Errorf("Default min samples = %d", cfg.Healing.MinSampleThreshold)
	}
	if cfg.Healing.MaxPriorStep != 0.05 {
		t.Errorf("Default prior step = %f", cfg.Healing.MaxPriorStep)
	}
	if len(cfg.Bucket.Keys) != 1 || cfg.Bucket.Keys[0] != "operation" {
		t.Errorf("Default bucket keys = %v", cfg.Bucket.Keys)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_DB_URL", "postgres://localhost:5432/selfmend")
	path := writeConfig(t, "database:\n  url: ${TEST_DB_URL}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.URL != "postgres://localhost:5432/selfmend" {
		t.Errorf("URL = %q", cfg.Database.URL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDurationBareSecondsAndStrings(t *testing.T) {
	path := writeConfig(t, `
monitor:
  sampling_interval: 45
healing:
  attempt_timeout: 1m30s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Monitor.SamplingInterval.Std() != 45*time.Second {
		t.Errorf("Bare int should parse as seconds, got %v", cfg.Monitor.SamplingInterval.Std())
	}
	if cfg.Healing.AttemptTimeout.Std() != 90*time.Second {
		t.Errorf("Compound duration parse failed: %v", cfg.Healing.AttemptTimeout.Std())
	}
}
