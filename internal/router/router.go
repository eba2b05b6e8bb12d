// Package router - flow scheduling and CDC fan-out (spec §4.H).
//
// What: Resolves which FlowGraphs a committed (or about-to-commit)
// primitive id feeds, and drives Propagate for each. Transactional flows
// run synchronously before a transaction's commit becomes durable, so a
// failure there aborts the whole transaction (spec §4.H "pre-commit
// interception"); deferred flows run after commit, from the commit queue's
// onApplied hook on the writer goroutine, and a failed deferred flow is
// retried off that goroutine with exponential backoff and parked after
// repeated failure so one broken view can't spin forever.
// How: Grounded on cuemby-warren's pkg/events Broker
// (_examples/cuemby-warren/pkg/events/events.go) for the "registry of
// subscribers fed by one dispatch loop" shape, reworked from warren's
// fire-and-forget channel broadcast to a fan-out that must report success/
// failure per flow (so transactional flows can veto a commit) and that
// uses golang.org/x/sync/errgroup to run several flows' propagation
// concurrently and join on the first error.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/reifydb/reifydb/internal/flow"
	"github.com/reifydb/reifydb/internal/metric"
	"github.com/reifydb/reifydb/internal/mvcc"
)

// FlowID identifies one registered FlowGraph.
type FlowID uint64

// Mode is whether a FlowGraph's sink(s) run inside the triggering commit
// (Transactional) or after it, from the commit queue's onApplied hook
// (Deferred).
type Mode byte

const (
	Transactional Mode = iota
	Deferred
)

// RowDecoder turns a committed row's raw bytes into a flow.Row, keyed by
// the primitive (table) id the bytes belong to. Supplied by the caller
// wiring the router to a live catalog/schema (package executor owns
// schema knowledge; this package stays storage-agnostic).
type RowDecoder func(primitiveID uint64, raw []byte) (flow.Row, error)

// PrimitiveResolver maps a committed row key to the primitive id it
// belongs to (e.g. decoding a RowKey's tableID), kept as a callback for the
// same reason as RowDecoder.
type PrimitiveResolver func(key []byte) (primitiveID uint64, ok bool)

type registration struct {
	id    FlowID
	mode  Mode
	graph *flow.Graph
}

// Router owns the primitive->flow binding table and the deferred-flow
// retry loop.
type Router struct {
	log      zerolog.Logger
	decode   RowDecoder
	resolve  PrimitiveResolver

	mu    sync.RWMutex
	flows map[FlowID]*registration

	retry *retryManager
}

// New creates a Router. decode/resolve translate raw commit bytes into the
// flow.Row/primitive-id shape Propagate needs.
func New(log zerolog.Logger, decode RowDecoder, resolve PrimitiveResolver) *Router {
	r := &Router{
		log:     log.With().Str("component", "router").Logger(),
		decode:  decode,
		resolve: resolve,
		flows:   make(map[FlowID]*registration),
	}
	r.retry = newRetryManager(r.log)
	return r
}

// Register binds a FlowGraph under id, in the given mode.
func (r *Router) Register(id FlowID, mode Mode, g *flow.Graph) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[id] = &registration{id: id, mode: mode, graph: g}
}

// Unregister removes a FlowGraph, e.g. when its owning view is dropped.
func (r *Router) Unregister(id FlowID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flows, id)
}

// flowsFor returns every registration whose graph has at least one Source
// reading primitiveID, split by mode.
func (r *Router) flowsFor(primitiveID uint64, mode Mode) []*registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*registration
	for _, reg := range r.flows {
		if reg.mode != mode {
			continue
		}
		if len(reg.graph.SourcesFor(primitiveID)) > 0 {
			out = append(out, reg)
		}
	}
	return out
}

// changeFor builds a flow.Change from deltas. All deltas must already be
// known to belong to primitiveID by the caller.
func (r *Router) changeFor(primitiveID uint64, deltas []mvcc.Delta) (flow.Change, error) {
	var diffs []flow.Diff
	for _, d := range deltas {
		switch d.Kind {
		case mvcc.DeltaSet:
			post, err := r.decode(primitiveID, d.Values)
			if err != nil {
				return flow.Change{}, err
			}
			diffs = append(diffs, flow.Diff{Kind: flow.DiffInsert, Post: post})
		case mvcc.DeltaRemove:
			diffs = append(diffs, flow.Diff{Kind: flow.DiffRemove})
		}
	}
	return flow.Change{Diffs: diffs}, nil
}

// groupByPrimitive buckets deltas by the primitive id their key resolves
// to, skipping any key the resolver doesn't recognize (non-row keys such
// as catalog/CDC entries never feed a flow).
func (r *Router) groupByPrimitive(deltas []mvcc.Delta) map[uint64][]mvcc.Delta {
	groups := make(map[uint64][]mvcc.Delta)
	for _, d := range deltas {
		primitiveID, ok := r.resolve(d.Key)
		if !ok {
			continue
		}
		groups[primitiveID] = append(groups[primitiveID], d)
	}
	return groups
}

// ValidateBeforeCommit runs every Transactional flow reachable from
// deltas' primitives, synchronously, before the caller hands deltas to the
// commit queue. Returning an error here means the transaction must abort
// without ever reaching the commit queue (spec §4.H pre-commit
// interception).
func (r *Router) ValidateBeforeCommit(ctx context.Context, version mvcc.Version, deltas []mvcc.Delta) error {
	groups := r.groupByPrimitive(deltas)
	if len(groups) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for primitiveID, ds := range groups {
		primitiveID, ds := primitiveID, ds
		for _, reg := range r.flowsFor(primitiveID, Transactional) {
			reg := reg
			g.Go(func() error {
				change, err := r.changeFor(primitiveID, ds)
				if err != nil {
					return fmt.Errorf("router: decode primitive %d: %w", primitiveID, err)
				}
				timer := metric.NewTimer()
				actx := flow.ApplyContext{Context: gctx, Version: uint64(version)}
				for _, src := range reg.graph.SourcesFor(primitiveID) {
					if err := reg.graph.Propagate(actx, src, 0, change); err != nil {
						return fmt.Errorf("router: flow %d: %w", reg.id, err)
					}
				}
				timer.ObserveDurationVec(metric.FlowPropagationDuration, "transactional")
				return nil
			})
		}
	}
	return g.Wait()
}

// RouteCommitted is installed as the commit queue's onApplied hook: it
// fans the committed record out to every Deferred flow. Failures are
// queued for retry, not returned, since the commit is already durable by
// the time this runs.
func (r *Router) RouteCommitted(record mvcc.Record) {
	ctx := context.Background()
	deltas := make([]mvcc.Delta, 0, len(record.Changes))
	for _, c := range record.Changes {
		if c.PostSet {
			deltas = append(deltas, mvcc.Delta{Kind: mvcc.DeltaSet, Key: c.Key, Values: c.Post})
		} else {
			deltas = append(deltas, mvcc.Delta{Kind: mvcc.DeltaRemove, Key: c.Key})
		}
	}
	groups := r.groupByPrimitive(deltas)
	for primitiveID, ds := range groups {
		for _, reg := range r.flowsFor(primitiveID, Deferred) {
			change, err := r.changeFor(primitiveID, ds)
			if err != nil {
				r.log.Error().Err(err).Uint64("primitive", primitiveID).Msg("deferred flow decode failed")
				continue
			}
			timer := metric.NewTimer()
			actx := flow.ApplyContext{Context: ctx, Version: uint64(record.Version)}
			reg := reg
			for _, src := range reg.graph.SourcesFor(primitiveID) {
				src := src
				if err := reg.graph.Propagate(actx, src, 0, change); err != nil {
					metric.RouterRetriesTotal.WithLabelValues(fmt.Sprintf("%d", reg.id)).Inc()
					r.retry.recordFailure(reg.id, func(retryCtx context.Context) error {
						rctx := flow.ApplyContext{Context: retryCtx, Version: uint64(record.Version)}
						return reg.graph.Propagate(rctx, src, 0, change)
					})
					continue
				}
				r.retry.recordSuccess(reg.id)
			}
			// A deferred sink queues failed writes instead of returning an error.
			for id := flow.NodeId(0); ; id++ {
				op, ok := reg.graph.Operator(id)
				if !ok {
					break
				}
				sink, ok := op.(*flow.SinkToView)
				if !ok || sink.Pending() == 0 {
					continue
				}
				r.retry.recordFailure(reg.id, func(retryCtx context.Context) error {
					if _, failed := sink.DrainRetry(flow.ApplyContext{Context: retryCtx, Version: uint64(record.Version)}); failed > 0 {
						return fmt.Errorf("router: flow %d: %d deferred sink writes still failing", reg.id, failed)
					}
					return nil
				})
			}
			timer.ObserveDurationVec(metric.FlowPropagationDuration, "deferred")
		}
	}
}

// Parked reports the FlowIDs currently parked after repeated deferred
// failures, for an operator to inspect and manually Resume.
func (r *Router) Parked() []FlowID { return r.retry.parked() }

// Resume clears a parked flow's failure count and parked state, so its next
// failure starts a fresh backoff sequence; the parked retry is not rerun.
func (r *Router) Resume(id FlowID) { r.retry.resume(id) }
