// Package storage - raw key/value tier (spec §4.A).
//
// What: The storage tier is a trait (interface, in Go terms) for untyped
// byte-key/byte-value I/O: point get/contains, an atomic multi-kind set,
// and cursor-based forward/reverse range iteration. It knows nothing about
// MVCC, transactions, or CDC — that is layered on top in package mvcc.
// How: Two backends satisfy Tier identically (memtier, sqlitetier).
// Atomicity of Set across every (kind, key, value) triple it is given is
// the one non-negotiable contract; everything above this package (the
// commit queue in particular) depends on it.
// Why: Keeping the tier oblivious to versioning lets the MVCC/CDC logic
// live in one place and be backend-agnostic.
package storage

import (
	"context"
	"fmt"
)

// Kind identifies which logical table a key/value pair belongs to inside
// a backend (row data, CDC, per-source/operator state, ...). It is
// distinct from encoding.Kind: a Tier Kind additionally discriminates
// per-source/per-operator instances (Source(id), Operator(id)) which the
// encoding layer folds into the byte-key itself.
type Kind string

const (
	KindMulti    Kind = "multi"    // row MVCC containers
	KindSingle   Kind = "single"   // non-versioned entries
	KindCdc      Kind = "cdc"      // CDC records, keyed by commit version
	KindCatalog  Kind = "catalog"  // catalog metadata
)

// SourceKind returns the Kind for a Source(id) table (per-primitive row
// storage), matching spec §4.B's "Source(id)" logical kind.
func SourceKind(id uint64) Kind { return Kind(fmt.Sprintf("source:%d", id)) }

// OperatorKind returns the Kind for an Operator(id) table (flow operator
// state), matching spec §4.B's "Operator(id)" logical kind.
func OperatorKind(id uint64) Kind { return Kind(fmt.Sprintf("operator:%d", id)) }

// Entry is one (key, optional value) pair. A nil Value is a tombstone.
type Entry struct {
	Key   []byte
	Value []byte // nil means tombstone / absent
}

// Write is one pending mutation within a Set batch, scoped to a Kind.
type Write struct {
	Kind  Kind
	Key   []byte
	Value []byte // nil deletes the key
}

// Cursor tracks forward/reverse range-scan progress. The zero value is a
// fresh cursor positioned before the first key. Cursors are append-only:
// callers never rewind, they simply stop calling Next.
type Cursor struct {
	lastKey   []byte
	started   bool
	exhausted bool
}

// Exhausted reports whether the cursor has reached the end of its range.
func (c *Cursor) Exhausted() bool { return c.exhausted }

// LastKey returns the last key this cursor has yielded, or nil if it has
// not yielded anything yet. Backends use this as the Excluded(last_key)
// continuation point for their next scan.
func (c *Cursor) LastKey() []byte { return c.lastKey }

// Started reports whether the cursor has yielded at least one entry.
func (c *Cursor) Started() bool { return c.started }

// Advance records the last key yielded in a batch and whether the
// underlying range is now exhausted. Backends call this once per
// RangeNext/RangeRevNext call after computing the batch.
func (c *Cursor) Advance(lastKey []byte, exhausted bool) {
	if lastKey != nil {
		c.lastKey = lastKey
		c.started = true
	}
	c.exhausted = exhausted
}

// Batch is a bounded page of range results.
type Batch struct {
	Entries []Entry
	HasMore bool
}

// Tier is the storage backend contract. Implementations must be safe for
// concurrent use by multiple readers and (logically) a single writer.
type Tier interface {
	// Get returns the raw value for key under kind, or (nil, false) if
	// absent (no tombstone distinction at this layer: absence is absence).
	Get(ctx context.Context, kind Kind, key []byte) ([]byte, bool, error)

	// Contains reports whether key exists under kind without copying its
	// value.
	Contains(ctx context.Context, kind Kind, key []byte) (bool, error)

	// Set atomically applies every write in the batch, regardless of how
	// many distinct kinds it spans. This is the tier's one non-negotiable
	// contract.
	Set(ctx context.Context, writes []Write) error

	// RangeNext returns up to batchSize entries with key in [start, end)
	// greater than cursor's last-seen key, in ascending key order.
	RangeNext(ctx context.Context, kind Kind, cursor *Cursor, start, end []byte, batchSize int) (Batch, error)

	// RangeRevNext is RangeNext in descending key order.
	RangeRevNext(ctx context.Context, kind Kind, cursor *Cursor, start, end []byte, batchSize int) (Batch, error)

	// EnsureTable creates the backing storage for kind if it does not
	// already exist. Idempotent.
	EnsureTable(ctx context.Context, kind Kind) error

	// ClearTable removes every entry under kind.
	ClearTable(ctx context.Context, kind Kind) error

	// Close releases backend resources.
	Close() error
}
