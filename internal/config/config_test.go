package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("storage.driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Delivery.Workers != 32 {
		t.Errorf("delivery.workers = %d, want 32", cfg.Delivery.Workers)
	}
	if cfg.Delivery.MaxAttempts != 3 {
		t.Errorf("delivery.max_attempts = %d, want 3", cfg.Delivery.MaxAttempts)
	}
	if cfg.Delivery.DisableThreshold != 10 {
		t.Errorf("delivery.disable_threshold = %d, want 10", cfg.Delivery.DisableThreshold)
	}

	want := []time.Duration{time.Second, 5 * time.Second, 25 * time.Second}
	if len(cfg.Delivery.BackoffSchedule) != len(want) {
		t.Fatalf("backoff_schedule = %v, want %v", cfg.Delivery.BackoffSchedule, want)
	}
	for i, d := range want {
		if cfg.Delivery.BackoffSchedule[i] != d {
			t.Errorf("backoff_schedule[%d] = %s, want %s", i, cfg.Delivery.BackoffSchedule[i], d)
		}
	}

	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics.enabled should default to true")
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()

	path := filepath.Join(t.TempDir(), "stockhook.yaml")
	data := `
server:
  port: 9191
  auth_token: sekrit
storage:
  driver: memory
delivery:
  workers: 4
  sweep_interval: 500ms
logging:
  level: debug
metrics:
  enabled: false
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("server.port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Server.AuthToken != "sekrit" {
		t.Errorf("server.auth_token = %q", cfg.Server.AuthToken)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("storage.driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Delivery.Workers != 4 {
		t.Errorf("delivery.workers = %d, want 4", cfg.Delivery.Workers)
	}
	if cfg.Delivery.SweepInterval != 500*time.Millisecond {
		t.Errorf("delivery.sweep_interval = %s, want 500ms", cfg.Delivery.SweepInterval)
	}

	// Values the file does not mention keep their defaults.
	if cfg.Delivery.MaxAttempts != 3 {
		t.Errorf("delivery.max_attempts = %d, want default 3", cfg.Delivery.MaxAttempts)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging.format = %q, want default json", cfg.Logging.Format)
	}
}

func TestLoadMissingFile(t *testing.T) {
	viper.Reset()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for an explicitly named missing file")
	}
}
