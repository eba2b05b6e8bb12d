package flow

import "fmt"

// ViewMode distinguishes a transactional sink (applies synchronously,
// inside the commit that produced the change) from a deferred one (queues
// and is flushed later by the router's backoff/retry loop, spec §4.H).
type ViewMode byte

const (
	ViewTransactional ViewMode = iota
	ViewDeferred
)

// Writer persists one Diff into a view's backing storage. Supplied by the
// router (package router), which owns the mvcc/catalog wiring; this
// package stays storage-agnostic so it can be unit-tested without a store.
type Writer func(ctx ApplyContext, diff Diff) error

// SinkToView terminates a FlowGraph path by writing every incoming Diff to
// a materialized view. In ViewDeferred mode, failed writes are queued for
// the router to retry with backoff instead of failing the triggering
// commit (spec §4.H).
type SinkToView struct {
	id     NodeId
	mode   ViewMode
	write  Writer
	queued []Diff
}

// NewSinkToView creates a sink operator writing via write in the given mode.
func NewSinkToView(mode ViewMode, write Writer) *SinkToView {
	return &SinkToView{mode: mode, write: write}
}

func (s *SinkToView) ID() NodeId     { return s.id }
func (s *SinkToView) bind(id NodeId) { s.id = id }

func (s *SinkToView) Apply(ctx ApplyContext, _ int, change Change) (Change, error) {
	for _, d := range change.Diffs {
		if err := s.write(ctx, d); err != nil {
			if s.mode == ViewTransactional {
				return Change{}, fmt.Errorf("flow: transactional sink write: %w", err)
			}
			s.queued = append(s.queued, d)
		}
	}
	return Change{}, nil
}

func (s *SinkToView) Pull(ApplyContext, []uint64) (Change, error) { return Change{}, nil }

// DrainRetry is called by the router's backoff loop for a deferred sink: it
// retries every queued write and keeps only the ones that still fail.
func (s *SinkToView) DrainRetry(ctx ApplyContext) (succeeded, failed int) {
	var still []Diff
	for _, d := range s.queued {
		if err := s.write(ctx, d); err != nil {
			still = append(still, d)
			failed++
			continue
		}
		succeeded++
	}
	s.queued = still
	return succeeded, failed
}

// Pending reports how many writes are currently queued for retry.
func (s *SinkToView) Pending() int { return len(s.queued) }
