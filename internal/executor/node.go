package executor

import (
	"context"

	"github.com/reifydb/reifydb/internal/catalog"
	"github.com/reifydb/reifydb/internal/mvcc"
	"github.com/reifydb/reifydb/internal/txn"
)

// Env carries everything a Node needs to run: the context, the active
// transaction, the catalog overlay for this statement, and the script's
// bound variables.
// Grounded on tinySQL's ExecEnv (internal/engine/exec.go), generalized from
// a bare *storage.DB handle to the transaction/catalog pair spec §4.F names.
type Env struct {
	Ctx     context.Context
	Tx      *txn.Transaction
	Overlay *catalog.Overlay
	Vars    map[string]Value // LET-bound scalars and frames, scoped to one script run
}

// Node is one step of the pull-based pipeline: Initialize prepares it
// (opening scans, evaluating constant subexpressions), Next pulls the
// following Batch or (Batch{}, false, nil) at end of input.
type Node interface {
	Initialize(env *Env) error
	Next(env *Env) (Batch, bool, error)
}

// Source yields the declared output shape without being pulled, for
// planning purposes (column names feeding a downstream Project).
type Source interface {
	Node
	Columns() []catalog.ColumnDef
}

// signal is returned by control-flow nodes to unwind Loop/For bodies.
type signal byte

const (
	signalNone signal = iota
	signalBreak
	signalContinue
	signalReturn
)
