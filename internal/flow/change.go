package flow

import "context"

// Value is a flow-level scalar; identical in shape to executor.Value
// (bool/int64/float64/string/[]byte/nil) but kept as its own alias so this
// package never depends on executor (dependency runs the other way: a
// SinkToView's deferred path hands materialized rows to the executor/
// catalog layer, package router wires that up).
type Value = any

// Row is one decoded row, by column name.
type Row map[string]Value

// DiffKind classifies one row-level change an operator must react to.
type DiffKind byte

const (
	DiffInsert DiffKind = iota
	DiffUpdate
	DiffRemove
)

func (k DiffKind) String() string {
	switch k {
	case DiffInsert:
		return "insert"
	case DiffUpdate:
		return "update"
	case DiffRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Diff is one row-level change: Pre is the row's prior image (nil for
// Insert), Post is its new image (nil for Remove).
type Diff struct {
	Kind DiffKind
	Pre  Row
	Post Row
}

// Change is a batch of Diffs propagated through one FlowGraph edge.
type Change struct {
	Diffs []Diff
}

// ApplyContext carries the commit version driving one Propagate pass and a
// cancellation signal; operators must not block beyond ctx's lifetime.
type ApplyContext struct {
	Context context.Context
	Version uint64
}

// Operator is one FlowGraph node's behavior (spec §4.G: "apply/pull/id()").
type Operator interface {
	ID() NodeId
	// Apply reacts to change arriving on upstream slot fromSlot (0 for a
	// Source, or the join side for a two-input operator) and returns the
	// Change to propagate downstream.
	Apply(ctx ApplyContext, fromSlot int, change Change) (Change, error)
	// Pull reads back the operator's current materialized state for the
	// given row numbers, for a deferred view's on-demand refresh.
	Pull(ctx ApplyContext, rowNumbers []uint64) (Change, error)
}
