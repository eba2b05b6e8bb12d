package router

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reifydb/reifydb/internal/metric"
)

// backoff schedule for deferred-flow retries: doubles each failure, caps at
// maxBackoff, and parks the flow after maxAttempts consecutive failures so
// a permanently broken sink can't retry forever (spec §4.H).
const (
	baseBackoff   = 200 * time.Millisecond
	maxBackoff    = 30 * time.Second
	maxAttempts   = 8
)

type retryTask func(ctx context.Context) error

type flowRetryState struct {
	attempts int
	parked   bool
	timer    *time.Timer
}

// retryManager schedules retryTask reruns per FlowID with exponential
// backoff, parking a flow once it exhausts maxAttempts.
type retryManager struct {
	log zerolog.Logger

	mu     sync.Mutex
	states map[FlowID]*flowRetryState
}

func newRetryManager(log zerolog.Logger) *retryManager {
	return &retryManager{log: log, states: make(map[FlowID]*flowRetryState)}
}

// recordSuccess clears a flow's failure streak, letting it retry at the
// base interval next time it fails.
func (m *retryManager) recordSuccess(id FlowID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[id]; ok {
		st.attempts = 0
	}
}

// recordFailure schedules task to run again after an exponentially
// growing delay, or parks the flow once maxAttempts is reached.
func (m *retryManager) recordFailure(id FlowID, task retryTask) {
	m.mu.Lock()
	st, ok := m.states[id]
	if !ok {
		st = &flowRetryState{}
		m.states[id] = st
	}
	st.attempts++
	if st.attempts >= maxAttempts {
		st.parked = true
		m.mu.Unlock()
		metric.RouterParkedFlows.Set(float64(len(m.parked())))
		m.log.Warn().Uint64("flow", uint64(id)).Int("attempts", st.attempts).Msg("parking deferred flow after repeated failure")
		return
	}
	delay := backoffFor(st.attempts)
	m.mu.Unlock()

	m.log.Debug().Uint64("flow", uint64(id)).Dur("delay", delay).Msg("scheduling deferred flow retry")
	time.AfterFunc(delay, func() {
		if err := task(context.Background()); err != nil {
			m.recordFailure(id, task)
			return
		}
		m.recordSuccess(id)
	})
}

// parked returns every FlowID currently parked.
func (m *retryManager) parked() []FlowID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []FlowID
	for id, st := range m.states {
		if st.parked {
			out = append(out, id)
		}
	}
	return out
}

// resume clears a parked flow's state so its next failure starts a fresh
// backoff sequence.
func (m *retryManager) resume(id FlowID) {
	m.mu.Lock()
	delete(m.states, id)
	remaining := 0
	for _, st := range m.states {
		if st.parked {
			remaining++
		}
	}
	m.mu.Unlock()
	metric.RouterParkedFlows.Set(float64(remaining))
}

func backoffFor(attempt int) time.Duration {
	d := baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
