// Package executor - the pull-based operator pipeline (spec §4.F).
//
// What: Scan/Filter/Map/Extend/Aggregate/Sort/Take/Distinct/Join/Insert/
// Update/Delete/CreateX nodes plus If/Loop/For/Let/Return/Break/Continue
// control flow, pulling columnar Batches through an initialize/next
// contract.
// How: Grounded on tinySQL's engine.Execute/ExecEnv (internal/engine/exec.go)
// for the "env carries the active transaction and evaluates expressions
// row-by-row" shape, but reworked from tinySQL's row-at-a-time []Row model
// to the columnar Batch the spec requires, and from tinySQL's one-shot
// Execute(stmt) to a pull-based Node tree driven by repeated Next calls.
package executor

import "github.com/reifydb/reifydb/internal/diagnostic"

// Column is one named, typed vector of values, all of equal length.
type Column struct {
	Name string
	Type ColumnType
	Data []Value
}

// Value is an executor-level scalar: exactly the Go types diagnostic.Kind
// coercion errors reason about (bool, int64, float64, string, []byte, nil).
type Value = any

// ColumnType mirrors encoding.FieldType, kept distinct so the executor is
// not coupled to the on-disk row encoding.
type ColumnType byte

const (
	TypeBool ColumnType = iota
	TypeInt64
	TypeFloat64
	TypeText
	TypeBlob
)

// Batch is one columnar chunk flowing between operators. All Columns in a
// Batch share RowCount.
type Batch struct {
	Columns  []Column
	RowCount int
}

// Empty reports whether the batch carries no rows.
func (b Batch) Empty() bool { return b.RowCount == 0 }

// ColumnIndex finds a column by name, or -1.
func (b Batch) ColumnIndex(name string) int {
	for i, c := range b.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Row materializes row i as a name->value map, for expression evaluation
// contexts that want row-at-a-time access.
func (b Batch) Row(i int) map[string]Value {
	row := make(map[string]Value, len(b.Columns))
	for _, c := range b.Columns {
		row[c.Name] = c.Data[i]
	}
	return row
}

// Project selects a subset of columns by name, preserving row order.
func (b Batch) Project(names []string) (Batch, error) {
	out := Batch{RowCount: b.RowCount}
	for _, n := range names {
		idx := b.ColumnIndex(n)
		if idx < 0 {
			return Batch{}, diagnostic.Plan("unknown column: "+n, nil)
		}
		out.Columns = append(out.Columns, b.Columns[idx])
	}
	return out, nil
}

// Take returns a new Batch containing only rows whose index is set in keep.
func (b Batch) Take(keep []int) Batch {
	out := Batch{RowCount: len(keep)}
	for _, c := range b.Columns {
		data := make([]Value, len(keep))
		for i, rowIdx := range keep {
			data[i] = c.Data[rowIdx]
		}
		out.Columns = append(out.Columns, Column{Name: c.Name, Type: c.Type, Data: data})
	}
	return out
}

// Concat appends other onto b, requiring identical column names/order.
func (b Batch) Concat(other Batch) Batch {
	if b.RowCount == 0 {
		return other
	}
	if other.RowCount == 0 {
		return b
	}
	out := Batch{RowCount: b.RowCount + other.RowCount}
	for i, c := range b.Columns {
		merged := append(append([]Value{}, c.Data...), other.Columns[i].Data...)
		out.Columns = append(out.Columns, Column{Name: c.Name, Type: c.Type, Data: merged})
	}
	return out
}
