package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultBackendConfigIsMemoryWithThirtySecondRetention(t *testing.T) {
	cfg := DefaultBackendConfig()
	if cfg.Backend != BackendMemory {
		t.Fatalf("got backend %q, want %q", cfg.Backend, BackendMemory)
	}
	if cfg.Retention.Interval != 30*time.Second {
		t.Fatalf("got interval %v, want 30s", cfg.Retention.Interval)
	}
}

func TestSaveThenLoadBackendConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := BackendConfig{
		Backend:   BackendSQLite,
		Path:      "/var/lib/reifydb/data.db",
		Retention: RetentionConfig{Interval: time.Minute, CronSpec: "@every 1m"},
	}
	if err := SaveBackendConfig(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadBackendConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Backend != cfg.Backend || got.Path != cfg.Path || got.Retention.CronSpec != cfg.Retention.CronSpec {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, cfg)
	}
}

func TestLoadBackendConfigRejectsSQLiteWithoutPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveBackendConfig(path, BackendConfig{Backend: BackendSQLite}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := LoadBackendConfig(path); err == nil {
		t.Fatalf("expected an error loading a sqlite backend config with no path")
	}
}

func TestLoadBackendConfigRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveBackendConfig(path, BackendConfig{Backend: "postgres"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := LoadBackendConfig(path); err == nil {
		t.Fatalf("expected an error loading an unrecognized backend kind")
	}
}

func TestLoadBackendConfigMissingFile(t *testing.T) {
	if _, err := LoadBackendConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
