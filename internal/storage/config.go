// BackendConfig - on-disk storage backend configuration (spec §4.A, §9).
//
// What: Which Tier backend to open and its tuning knobs (SQLite file path,
// retention sweep interval). Loaded once at startup, never mutated after.
// How: gopkg.in/yaml.v3, the same choice tinySQL's own go.mod carries for
// config it cannot express as flags, and the shape cuemby/warren uses for
// its deployment config (a small struct, Unmarshal into it, defaults
// applied in code rather than duplicated in the YAML).
package storage

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BackendKind selects which Tier implementation a BackendConfig opens.
type BackendKind string

const (
	BackendMemory BackendKind = "memory"
	BackendSQLite BackendKind = "sqlite"
)

// BackendConfig is the YAML-serializable shape of a Tier's startup config.
type BackendConfig struct {
	Backend  BackendKind   `yaml:"backend"`
	Path     string        `yaml:"path,omitempty"`     // sqlite file path, or ":memory:"
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig tunes the background pruning sweep (package mvcc).
type RetentionConfig struct {
	Interval time.Duration `yaml:"interval"`
	CronSpec string        `yaml:"cron_spec,omitempty"` // overrides Interval if set
}

// DefaultBackendConfig is what a fresh install runs with absent a config
// file: an in-memory tier, 30s retention sweeps.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Backend:   BackendMemory,
		Retention: RetentionConfig{Interval: 30 * time.Second},
	}
}

// LoadBackendConfig reads and validates a BackendConfig from a YAML file.
func LoadBackendConfig(path string) (BackendConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return BackendConfig{}, fmt.Errorf("storage: read config %s: %w", path, err)
	}
	cfg := DefaultBackendConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return BackendConfig{}, fmt.Errorf("storage: parse config %s: %w", path, err)
	}
	if cfg.Backend != BackendMemory && cfg.Backend != BackendSQLite {
		return BackendConfig{}, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
	if cfg.Backend == BackendSQLite && cfg.Path == "" {
		return BackendConfig{}, fmt.Errorf("storage: sqlite backend requires a path")
	}
	return cfg, nil
}

// SaveBackendConfig writes cfg to path as YAML, for `reifydb init`-style
// tooling to scaffold a starting config.
func SaveBackendConfig(path string, cfg BackendConfig) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("storage: marshal config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("storage: write config %s: %w", path, err)
	}
	return nil
}
