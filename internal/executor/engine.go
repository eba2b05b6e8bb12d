package executor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/reifydb/reifydb/internal/catalog"
	"github.com/reifydb/reifydb/internal/encoding"
	"github.com/reifydb/reifydb/internal/mvcc"
)

// Engine owns the state a statement's Node tree needs but that does not
// belong to any one Transaction: the store and row-id allocation per table
// (the encoding.Schema for a catalog.TableDef comes from SchemaOf, not from
// Engine). One Engine is shared across every transaction against the same
// store.
type Engine struct {
	store *mvcc.Store

	rowIDsMu sync.Mutex
	rowIDs   map[catalog.ID]*atomic.Uint64
}

// NewEngine creates an Engine over store.
func NewEngine(store *mvcc.Store) *Engine {
	return &Engine{store: store, rowIDs: make(map[catalog.ID]*atomic.Uint64)}
}

// NextRowID allocates the next row id for tableID. The counter is process-
// local scratch state (spec §4.A row ids are opaque uint64s); it is not
// itself versioned, matching spec's "row id allocation is not part of the
// MVCC timeline" note.
func (e *Engine) NextRowID(tableID catalog.ID) uint64 {
	e.rowIDsMu.Lock()
	counter, ok := e.rowIDs[tableID]
	if !ok {
		counter = &atomic.Uint64{}
		e.rowIDs[tableID] = counter
	}
	e.rowIDsMu.Unlock()
	return counter.Add(1)
}

// SchemaOf converts a catalog.TableDef's columns into an encoding.Schema
// usable by EncodeRow/DecodeRow.
func SchemaOf(def catalog.TableDef) encoding.Schema {
	fields := make([]encoding.Field, len(def.Columns))
	for i, c := range def.Columns {
		fields[i] = encoding.Field{Name: c.Name, Type: columnFieldType(c.Type)}
	}
	return encoding.Schema{Fields: fields}
}

func columnFieldType(name string) encoding.FieldType {
	switch name {
	case "bool":
		return encoding.FieldBool
	case "int64":
		return encoding.FieldInt64
	case "float64":
		return encoding.FieldFloat64
	case "blob":
		return encoding.FieldBlob
	default:
		return encoding.FieldText
	}
}

// Store exposes the underlying mvcc store for nodes that read outside the
// active transaction's pending buffer (e.g. catalog bootstrap).
func (e *Engine) Store() *mvcc.Store { return e.store }

// contextOrBackground returns ctx if non-nil, else context.Background();
// Env.Ctx is always set by callers but nodes constructed in tests may omit it.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
