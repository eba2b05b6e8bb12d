// Package commit - the single-writer commit queue (spec §4.C).
//
// What: A dedicated writer goroutine serializes every durable write.
// CommitMulti applies deltas to the MVCC map and computes CDC: for each
// delta it reads the current latest value as "pre", appends the delta at
// the commit version (None for Remove), and records (sequence, pre, post).
// One Cdc record is appended after all deltas for a commit. Commits may
// arrive out of order (the version is issued by package txn before the
// commit is queued); the writer buffers out-of-order arrivals and drains
// the contiguous prefix, so CDC emission is always in strict version
// order even when commits race to the queue.
// How: Grounded on tinySQL's own "single writer thread consumes an
// unbounded-logical/bounded-physical channel" framing (spec §5, and
// tinySQL's concurrency.go WorkerPool/ConcurrencyManager shape): one
// goroutine owns the buffer and the tier writes; everyone else talks to it
// only through the Commit channel and a reply channel per request.
package commit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reifydb/reifydb/internal/encoding"
	"github.com/reifydb/reifydb/internal/metric"
	"github.com/reifydb/reifydb/internal/mvcc"
	"github.com/reifydb/reifydb/internal/storage"
)

// Request is one commit message. Exactly one of CommitMulti's fields is
// meaningful per variant; Shutdown carries no payload.
type Request struct {
	Version mvcc.Version
	TxID    mvcc.TransactionID
	Ts      time.Time
	Deltas  []mvcc.Delta
	Reply   chan Reply

	shutdown bool
}

// Reply is the single response sent for a Request, success or failure,
// never sent before the commit is durable in the tier.
type Reply struct {
	Version mvcc.Version
	Record  mvcc.Record
	Err     error
}

// Queue is the single-writer commit pipeline. Callers enqueue via Commit
// and await their own reply channel; they never share the writer's
// internal state.
type Queue struct {
	tier     storage.Tier
	store    *mvcc.Store
	cdcKind  storage.Kind

	in     chan Request
	done   chan struct{}
	log    zerolog.Logger

	mu      sync.Mutex // guards pending/lastApplied, read by watermark callers
	pending map[mvcc.Version]Request
	lastApplied mvcc.Version

	onApplied func(mvcc.Record) // notifies the CDC router (package router)
}

// New creates a commit queue over tier/store. onApplied is invoked
// synchronously, in commit-version order, immediately after each commit is
// durable and before its reply is sent — this is how the CDC router (§4.H)
// observes new versions without polling.
func New(tier storage.Tier, store *mvcc.Store, cdcKind storage.Kind, log zerolog.Logger, onApplied func(mvcc.Record)) *Queue {
	q := &Queue{
		tier:      tier,
		store:     store,
		cdcKind:   cdcKind,
		in:        make(chan Request, 256),
		done:      make(chan struct{}),
		log:       log.With().Str("component", "commit_queue").Logger(),
		pending:   make(map[mvcc.Version]Request),
		onApplied: onApplied,
	}
	return q
}

// Run is the writer goroutine's loop. Call it once, from the lifecycle
// manager's start(), on its own goroutine.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			for {
				select {
				case req := <-q.in:
					q.enqueue(req)
					q.drain(ctx)
				default:
					return
				}
			}
		case req := <-q.in:
			if req.shutdown {
				return
			}
			q.enqueue(req)
			q.drain(ctx)
		}
	}
}

// Shutdown stops the writer loop after any requests already waiting on the
// input channel have been processed; callers should stop sending new
// requests first.
func (q *Queue) Shutdown() {
	close(q.done)
}

// CommitMulti submits a multi-delta transaction commit at the given
// version and blocks until it is durable (or ctx is cancelled). It may be
// called concurrently by many transactions; the queue itself serializes
// their effects.
func (q *Queue) CommitMulti(ctx context.Context, version mvcc.Version, txID mvcc.TransactionID, deltas []mvcc.Delta) (mvcc.Record, error) {
	reply := make(chan Reply, 1)
	req := Request{Version: version, TxID: txID, Ts: time.Now().UTC(), Deltas: deltas, Reply: reply}
	select {
	case q.in <- req:
	case <-ctx.Done():
		return mvcc.Record{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.Record, r.Err
	case <-ctx.Done():
		return mvcc.Record{}, ctx.Err()
	}
}

// CommitSingle submits a commit for non-versioned (Single) keys: applied
// immediately, not buffered for ordering, and does not emit CDC.
func (q *Queue) CommitSingle(ctx context.Context, writes []storage.Write) error {
	return q.tier.Set(ctx, writes)
}

func (q *Queue) enqueue(req Request) {
	q.mu.Lock()
	q.pending[req.Version] = req
	q.mu.Unlock()
}

// drain applies every buffered request whose version is contiguous with
// the last-applied version, in order, so CDC is always emitted in strict
// version order regardless of arrival order.
func (q *Queue) drain(ctx context.Context) {
	for {
		q.mu.Lock()
		next := q.lastApplied + 1
		req, ok := q.pending[next]
		if ok {
			delete(q.pending, next)
		}
		q.mu.Unlock()
		if !ok {
			return
		}

		q.mu.Lock()
		metric.CommitQueueDepth.Set(float64(len(q.pending)))
		q.mu.Unlock()

		timer := metric.NewTimer()
		record, err := q.applyCommit(ctx, req)
		timer.ObserveDuration(metric.CommitDuration)
		if err == nil {
			q.mu.Lock()
			q.lastApplied = req.Version
			q.mu.Unlock()
			metric.CommitsTotal.WithLabelValues("committed").Inc()
			if q.onApplied != nil {
				q.onApplied(record)
			}
		} else {
			outcome := "failed"
			if errors.Is(err, mvcc.ErrSequenceExhausted) {
				outcome = "sequence_exhausted"
			}
			metric.CommitsTotal.WithLabelValues(outcome).Inc()
			q.log.Error().Err(err).Uint64("version", uint64(req.Version)).Msg("commit failed")
		}
		req.Reply <- Reply{Version: req.Version, Record: record, Err: err}
	}
}

// applyCommit performs the actual tier write plus CDC computation for one
// commit. It is only ever called from drain, so it never runs concurrently
// with itself — the one invariant the whole queue exists to provide.
func (q *Queue) applyCommit(ctx context.Context, req Request) (mvcc.Record, error) {
	if len(req.Deltas) > math.MaxUint16 {
		return mvcc.Record{}, mvcc.ErrSequenceExhausted
	}

	deltas := req.Deltas
	writes := make([]storage.Write, 0, len(deltas)+1)
	changes := make([]mvcc.ChangeDiff, 0, len(deltas))

	for i, d := range deltas {
		seq := i + 1
		if seq > math.MaxUint16 {
			return mvcc.Record{}, mvcc.ErrSequenceExhausted
		}
		pre, preOK, err := q.store.Get(ctx, d.Key, req.Version-1)
		if err != nil {
			return mvcc.Record{}, fmt.Errorf("commit: read pre-image: %w", err)
		}

		diff := mvcc.ChangeDiff{Sequence: uint16(seq), Key: d.Key, Pre: pre, PreSet: preOK}
		switch d.Kind {
		case mvcc.DeltaSet:
			diff.Post = d.Values
			diff.PostSet = true
			writes = append(writes, storage.Write{Kind: storage.KindMulti, Key: d.Key, Value: d.Values})
		case mvcc.DeltaRemove:
			writes = append(writes, storage.Write{Kind: storage.KindMulti, Key: d.Key, Value: nil})
		default:
			return mvcc.Record{}, fmt.Errorf("commit: unknown delta kind %d", d.Kind)
		}
		changes = append(changes, diff)
	}

	record := mvcc.Record{Version: req.Version, TxID: req.TxID, Timestamp: req.Ts, Changes: changes}
	cdcKey := encoding.CdcKey(uint64(req.Version))
	cdcValue, err := encodeRecord(record)
	if err != nil {
		return mvcc.Record{}, fmt.Errorf("commit: encode cdc: %w", err)
	}
	writes = append(writes, storage.Write{Kind: q.cdcKind, Key: cdcKey.Bytes(), Value: cdcValue})

	if err := q.tier.Set(ctx, writes); err != nil {
		return mvcc.Record{}, fmt.Errorf("commit: tier write: %w", err)
	}

	for _, d := range deltas {
		switch d.Kind {
		case mvcc.DeltaSet:
			q.store.Apply(req.Version, d.Key, d.Values, true)
		case mvcc.DeltaRemove:
			q.store.Apply(req.Version, d.Key, nil, false)
		}
	}

	return record, nil
}
