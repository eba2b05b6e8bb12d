// Package lifecycle - subsystem start/shutdown orchestration (spec §6, §9).
//
// What: Starts every subsystem (storage tier, commit queue, watermarks,
// router retention sweep, metrics server) in dependency order and tears
// them down in reverse on shutdown, turning a panic anywhere in the
// process into the documented runtime-panic exit code instead of a raw
// crash.
// How: Grounded on tinySQL's internal/storage/scheduler.go Start/Stop
// pair (each subsystem owns a stopCh it closes on Stop, and Stop blocks
// until the subsystem's goroutine has actually exited), generalized from
// one cron scheduler to an ordered list of independent subsystems.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Exit codes spec §9 assigns to the process as a whole.
const (
	ExitClean          = 0
	ExitStartupFailure = 1
	ExitRuntimePanic   = 2
)

// Subsystem is one independently startable/stoppable unit of the process
// (a storage tier, the commit queue's drain loop, the retention sweeper,
// a metrics HTTP server, ...).
type Subsystem interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// funcSubsystem adapts two plain functions into a Subsystem, for
// subsystems too small to deserve their own type (mirrors how
// tinySQL's scheduler wraps a goroutine + stopCh per job rather than
// defining a type per job kind).
type funcSubsystem struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

func (f *funcSubsystem) Name() string                       { return f.name }
func (f *funcSubsystem) Start(ctx context.Context) error     { return f.start(ctx) }
func (f *funcSubsystem) Stop(ctx context.Context) error      { return f.stop(ctx) }

// NewFunc wraps start/stop callbacks as a named Subsystem.
func NewFunc(name string, start, stop func(context.Context) error) Subsystem {
	return &funcSubsystem{name: name, start: start, stop: stop}
}

// Manager starts subsystems in registration order and stops them in
// reverse, so a subsystem never outlives the ones it depends on.
type Manager struct {
	log zerolog.Logger

	mu      sync.Mutex
	subs    []Subsystem
	started []Subsystem // subset of subs that Start succeeded for, in start order
}

// New creates a Manager logging through log.
func New(log zerolog.Logger) *Manager {
	return &Manager{log: log.With().Str("component", "lifecycle").Logger()}
}

// Register adds a subsystem, to be started after every subsystem
// registered before it.
func (m *Manager) Register(s Subsystem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, s)
}

// Start brings up every registered subsystem in order. On the first
// failure it stops everything already started (reverse order) and
// returns the failure, so the process never runs with a half-started
// dependency graph.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	subs := append([]Subsystem{}, m.subs...)
	m.mu.Unlock()

	for _, s := range subs {
		m.log.Info().Str("subsystem", s.Name()).Msg("starting")
		if err := s.Start(ctx); err != nil {
			m.log.Error().Err(err).Str("subsystem", s.Name()).Msg("startup failed")
			m.stopStarted(ctx)
			return fmt.Errorf("lifecycle: starting %s: %w", s.Name(), err)
		}
		m.mu.Lock()
		m.started = append(m.started, s)
		m.mu.Unlock()
	}
	return nil
}

// Stop shuts down every started subsystem in reverse start order,
// collecting (not short-circuiting on) individual failures.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	started := append([]Subsystem{}, m.started...)
	m.started = nil
	m.mu.Unlock()
	return stopAll(ctx, m.log, started)
}

func (m *Manager) stopStarted(ctx context.Context) {
	m.mu.Lock()
	started := append([]Subsystem{}, m.started...)
	m.started = nil
	m.mu.Unlock()
	_ = stopAll(ctx, m.log, started)
}

func stopAll(ctx context.Context, log zerolog.Logger, started []Subsystem) error {
	var firstErr error
	for i := len(started) - 1; i >= 0; i-- {
		s := started[i]
		log.Info().Str("subsystem", s.Name()).Msg("stopping")
		if err := s.Stop(ctx); err != nil {
			log.Error().Err(err).Str("subsystem", s.Name()).Msg("shutdown error")
			if firstErr == nil {
				firstErr = fmt.Errorf("lifecycle: stopping %s: %w", s.Name(), err)
			}
		}
	}
	return firstErr
}

// Guard recovers a panic in fn, logs it, and reports whether one occurred.
// Callers (main.go) use this to turn an uncaught panic into ExitRuntimePanic
// instead of letting the runtime dump a stack trace and exit(2) itself.
func Guard(log zerolog.Logger, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered panic")
			panicked = true
		}
	}()
	fn()
	return false
}
