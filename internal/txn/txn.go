// Package txn - the optimistic transaction manager (spec §4.D).
//
// What: Begin-at-snapshot, per-transaction read/write tracking, conflict
// detection at commit time, commit-version issue, and watermark tracking.
// How: Grounded on tinySQL's MVCCManager (internal/storage/mvcc.go) for
// the begin/commit/abort lifecycle shape (atomic counters for ids,
// a map of active transactions, visibility bisection) but reworked to
// match spec §4.D's actual contract: optimistic (validate-at-commit, not
// lock-at-write), a conservative read-all flag for range scans, and a
// retained window of committed transactions rather than tinySQL's
// simplified single-table conflict scan.
package txn

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reifydb/reifydb/internal/commit"
	"github.com/reifydb/reifydb/internal/diagnostic"
	"github.com/reifydb/reifydb/internal/mvcc"
)

// Kind is one of the three transaction classes spec §4.D names.
type Kind byte

const (
	Query Kind = iota
	Command
	Admin
)

func (k Kind) String() string {
	switch k {
	case Query:
		return "query"
	case Command:
		return "command"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Status is a transaction's lifecycle state.
type Status byte

const (
	StatusActive Status = iota
	StatusCommitted
	StatusAborted
)

// orderedDelta preserves write-insertion order so later writes overwrite
// earlier ones on the same key without losing FIFO semantics for distinct
// keys (spec §3: "buffer of pending deltas (ordered map from key to last
// delta)").
type orderedDelta struct {
	order []string
	byKey map[string]mvcc.Delta
}

func newOrderedDelta() *orderedDelta {
	return &orderedDelta{byKey: make(map[string]mvcc.Delta)}
}

func (o *orderedDelta) put(key []byte, d mvcc.Delta) {
	k := string(key)
	if _, exists := o.byKey[k]; !exists {
		o.order = append(o.order, k)
	}
	o.byKey[k] = d
}

func (o *orderedDelta) get(key []byte) (mvcc.Delta, bool) {
	d, ok := o.byKey[string(key)]
	return d, ok
}

func (o *orderedDelta) slice() []mvcc.Delta {
	out := make([]mvcc.Delta, 0, len(o.order))
	for _, k := range o.order {
		out = append(out, o.byKey[k])
	}
	return out
}

// Transaction is one unit of work: a snapshot, a pending write buffer, and
// the read/write conflict set built up as it runs.
type Transaction struct {
	ID              mvcc.TransactionID
	Label           string // audit label; a UUID, independent of commit ordering
	Kind            Kind
	SnapshotVersion mvcc.Version

	mgr *Manager

	mu      sync.Mutex
	status  Status
	pending *orderedDelta
	conflict *conflictSet
}

// PreCommitValidator runs transactional-flow propagation against a
// transaction's deltas at the version it is about to commit at. Returning
// an error aborts the commit before it ever reaches the commit queue
// (spec §4.H pre-commit interception). Satisfied by
// router.Router.ValidateBeforeCommit.
type PreCommitValidator func(ctx context.Context, version mvcc.Version, deltas []mvcc.Delta) error

// Manager owns the shared transaction-manager state: version/txid
// providers, the read and commit watermarks, the conflict registry, and
// the handle to the single-writer commit queue.
type Manager struct {
	store       *mvcc.Store
	queue       *commit.Queue
	versionSeq  atomic.Uint64
	txIDSeq     atomic.Uint64
	readWm      *ReadWatermark
	commitWm    *CommitWatermark
	registry    *registry
	log         zerolog.Logger

	validate PreCommitValidator
}

// SetPreCommitValidator installs the router's transactional-flow check.
// Optional: a Manager with none set never vetoes a commit on flow grounds.
func (m *Manager) SetPreCommitValidator(fn PreCommitValidator) { m.validate = fn }

// New creates a transaction manager over store/queue. The version provider
// starts at 1 so that version 0 can mean "no commits yet".
func New(store *mvcc.Store, queue *commit.Queue, log zerolog.Logger) *Manager {
	m := &Manager{
		store:    store,
		queue:    queue,
		readWm:   newReadWatermark(),
		commitWm: newCommitWatermark(0),
		registry: newRegistry(),
		log:      log.With().Str("component", "txn_manager").Logger(),
	}
	return m
}

func (m *Manager) nextVersion() mvcc.Version { return mvcc.Version(m.versionSeq.Add(1)) }
func (m *Manager) nextTxID() mvcc.TransactionID {
	return mvcc.TransactionID(m.txIDSeq.Add(1))
}

// ReadWatermark exposes the current read-watermark, used by the MVCC
// retention sweeper.
func (m *Manager) ReadWatermark() mvcc.Version {
	return m.readWm.Min(mvcc.Version(m.versionSeq.Load()))
}

// CommitWatermark exposes the commit-watermark (max contiguous committed
// version).
func (m *Manager) CommitWatermark() *CommitWatermark { return m.commitWm }

// Begin starts a new transaction at the current version-timeline
// position and registers it with the read-watermark.
func (m *Manager) Begin(kind Kind) *Transaction {
	v := mvcc.Version(m.versionSeq.Load())
	m.readWm.register(v)
	tx := &Transaction{
		ID:              m.nextTxID(),
		Label:           uuid.NewString(),
		Kind:            kind,
		SnapshotVersion: v,
		mgr:             m,
		pending:         newOrderedDelta(),
		conflict:        newConflictSet(),
	}
	return tx
}

// Get reads key as of the transaction's snapshot, consulting the pending
// write buffer first.
func (t *Transaction) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	t.mu.Lock()
	if t.status != StatusActive {
		t.mu.Unlock()
		return nil, false, diagnostic.Invariant("transaction is not active")
	}
	if d, ok := t.pending.get(key); ok {
		t.mu.Unlock()
		if d.Kind == mvcc.DeltaRemove {
			return nil, false, nil
		}
		return d.Values, true, nil
	}
	t.conflict.recordRead(key)
	snapshot := t.SnapshotVersion
	t.mu.Unlock()

	return t.mgr.store.Get(ctx, key, snapshot)
}

// RangeMarksReadAll should be called by any range/scan read path before
// iterating, marking this transaction conservatively conflicting with any
// concurrent write (spec §3 "iteration flag").
func (t *Transaction) RangeMarksReadAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conflict.markReadAll()
}

// SnapshotForRange returns the version this transaction's range reads
// should use.
func (t *Transaction) SnapshotForRange() mvcc.Version { return t.SnapshotVersion }

// Put buffers a Set delta, overwriting any earlier pending delta on the
// same key.
func (t *Transaction) Put(key []byte, values []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusActive {
		return diagnostic.Invariant("transaction is not active")
	}
	t.conflict.recordWrite(key)
	t.pending.put(key, mvcc.Delta{Kind: mvcc.DeltaSet, Key: key, Values: values})
	return nil
}

// Remove buffers a tombstone delta.
func (t *Transaction) Remove(key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusActive {
		return diagnostic.Invariant("transaction is not active")
	}
	t.conflict.recordWrite(key)
	t.pending.put(key, mvcc.Delta{Kind: mvcc.DeltaRemove, Key: key})
	return nil
}

// Rollback discards the transaction's state and deregisters its snapshot
// from the read-watermark. Safe to call at any time; idempotent.
func (t *Transaction) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusActive {
		return
	}
	t.status = StatusAborted
	t.mgr.readWm.deregister(t.SnapshotVersion)
}

// Commit validates the transaction against every concurrently-committed
// transaction and, if clean, hands its deltas to the commit queue at a
// freshly issued commit version. On conflict the transaction is aborted
// and diagnostic.Conflict is returned.
func (t *Transaction) Commit(ctx context.Context) (mvcc.Version, error) {
	t.mu.Lock()
	if t.status != StatusActive {
		t.mu.Unlock()
		return 0, diagnostic.Invariant("transaction is not active")
	}
	if len(t.pending.order) == 0 {
		t.status = StatusCommitted
		t.mu.Unlock()
		t.mgr.readWm.deregister(t.SnapshotVersion)
		return t.SnapshotVersion, nil
	}
	cs := t.conflict
	deltas := t.pending.slice()
	t.mu.Unlock()

	if t.mgr.registry.conflicts(t.SnapshotVersion, cs) {
		t.Rollback()
		return 0, diagnostic.Conflict(fmt.Sprintf("transaction %d conflicts with a concurrently committed write", t.ID))
	}

	commitVersion := t.mgr.nextVersion()

	if t.mgr.validate != nil {
		if err := t.mgr.validate(ctx, commitVersion, deltas); err != nil {
			t.Rollback()
			return 0, fmt.Errorf("txn: transactional flow rejected commit: %w", err)
		}
	}

	record, err := t.mgr.queue.CommitMulti(ctx, commitVersion, t.ID, deltas)
	if err != nil {
		t.Rollback()
		return 0, fmt.Errorf("txn: commit: %w", err)
	}
	_ = record

	t.mgr.registry.record(committedRecord{snapshotVersion: t.SnapshotVersion, commitVersion: commitVersion, set: cs})

	t.mu.Lock()
	t.status = StatusCommitted
	t.mu.Unlock()
	t.mgr.readWm.deregister(t.SnapshotVersion)
	t.mgr.commitWm.Advance(commitVersion)

	floor := t.mgr.ReadWatermark()
	t.mgr.registry.pruneBelow(floor)

	return commitVersion, nil
}

// Status returns the transaction's current lifecycle state.
func (t *Transaction) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
