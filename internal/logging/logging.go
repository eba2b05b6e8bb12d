// Package logging - structured logging setup (ambient stack).
//
// What: Configures the process-wide zerolog.Logger (level, console vs
// JSON output) and hands out per-component child loggers, so every
// subsystem (mvcc, txn, commit, catalog, executor, flow, router) logs
// through the same sink with a consistent "component" field.
// How: Grounded on cuemby-warren's pkg/log/log.go (global Logger var,
// Config{Level,JSONOutput,Output}, Init, WithComponent), generalized
// from warren's cluster-node fields (WithNodeID/WithServiceID) to
// reifydb's storage/transaction fields (WithVersion/WithTransaction).
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide base logger. Init configures it; every
// subsystem derives its own child via WithComponent rather than logging
// through this directly.
var Logger zerolog.Logger

// Level names the configured verbosity, independent of zerolog's own
// Level type so config files don't need to import zerolog.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls Init's output shape.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer // nil defaults to os.Stdout
}

// Init configures the package-global Logger. Call once at process
// startup, before any subsystem is started.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent derives a child logger tagging every entry with the
// subsystem name ("mvcc", "txn", "commit", "catalog", "executor",
// "flow", "router", ...).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithVersion derives a child logger tagging entries with the mvcc
// version they pertain to, for commit/watermark diagnostics.
func WithVersion(version uint64) zerolog.Logger {
	return Logger.With().Uint64("version", version).Logger()
}

// WithTransaction derives a child logger tagging entries with a
// transaction's identity, for conflict and rollback diagnostics.
func WithTransaction(txID uint64) zerolog.Logger {
	return Logger.With().Uint64("txn", txID).Logger()
}
