// Insert/Update/Delete translate pulled Batches into mvcc.Delta values
// buffered on the active Transaction, and CreateX stages catalog changes
// through the active Overlay. Grounded on tinySQL's
// executeInsert/executeUpdate/executeDelete (internal/engine/exec.go),
// reworked from tinySQL's direct storage.Table mutation to buffering
// through txn.Transaction.Put/Remove so every write participates in
// optimistic conflict detection and the single-writer commit queue.
package executor

import (
	"github.com/reifydb/reifydb/internal/catalog"
	"github.com/reifydb/reifydb/internal/diagnostic"
	"github.com/reifydb/reifydb/internal/encoding"
)

// Insert appends each row of Child's output as a new row of Table.
type Insert struct {
	Child   Node
	TableID catalog.ID
	Def     catalog.TableDef
	Engine  *Engine

	inserted int
	done     bool
}

func (ins *Insert) Initialize(env *Env) error { return ins.Child.Initialize(env) }

func (ins *Insert) Next(env *Env) (Batch, bool, error) {
	if ins.done {
		return Batch{}, false, nil
	}
	schema := SchemaOf(ins.Def)
	for {
		batch, more, err := ins.Child.Next(env)
		if err != nil {
			return Batch{}, false, err
		}
		for i := 0; i < batch.RowCount; i++ {
			values, err := rowValues(batch, i, ins.Def)
			if err != nil {
				return Batch{}, false, err
			}
			raw, err := encoding.EncodeRow(schema, values)
			if err != nil {
				return Batch{}, false, err
			}
			rowID := ins.Engine.NextRowID(ins.TableID)
			key := encoding.RowKey(uint64(ins.TableID), rowID)
			if err := env.Tx.Put(key.Bytes(), raw); err != nil {
				return Batch{}, false, err
			}
			ins.inserted++
		}
		if !more {
			break
		}
	}
	ins.done = true
	return countBatch(ins.inserted), false, nil
}

func rowValues(batch Batch, rowIdx int, def catalog.TableDef) ([]Value, error) {
	values := make([]Value, len(def.Columns))
	for i, c := range def.Columns {
		idx := batch.ColumnIndex(c.Name)
		if idx < 0 {
			if c.Nullable {
				values[i] = nil
				continue
			}
			return nil, diagnostic.Coercion("missing required column: "+c.Name, "none", c.Type, diagnostic.Fragment{})
		}
		values[i] = batch.Columns[idx].Data[rowIdx]
	}
	return values, nil
}

func countBatch(n int) Batch {
	return Batch{RowCount: 1, Columns: []Column{{Name: "count", Type: TypeInt64, Data: []Value{int64(n)}}}}
}

// Update re-encodes matching rows with Assignments applied and writes them
// back under their existing row key.
type Update struct {
	Child       Node // yields existing rows plus a hidden "__row_id" column
	TableID     catalog.ID
	Def         catalog.TableDef
	Assignments []Projection

	updated int
	done    bool
}

func (u *Update) Initialize(env *Env) error { return u.Child.Initialize(env) }

func (u *Update) Next(env *Env) (Batch, bool, error) {
	if u.done {
		return Batch{}, false, nil
	}
	schema := SchemaOf(u.Def)
	for {
		batch, more, err := u.Child.Next(env)
		if err != nil {
			return Batch{}, false, err
		}
		rowIDIdx := batch.ColumnIndex(rowIDColumn)
		for i := 0; i < batch.RowCount; i++ {
			row := batch.Row(i)
			for _, a := range u.Assignments {
				v, err := a.Expr.eval(row)
				if err != nil {
					return Batch{}, false, err
				}
				row[a.Name] = v
			}
			values := make([]Value, len(u.Def.Columns))
			for ci, c := range u.Def.Columns {
				values[ci] = row[c.Name]
			}
			raw, err := encoding.EncodeRow(schema, values)
			if err != nil {
				return Batch{}, false, err
			}
			var rowID uint64
			if rowIDIdx >= 0 {
				rowID, _ = batch.Columns[rowIDIdx].Data[i].(uint64)
			}
			key := encoding.RowKey(uint64(u.TableID), rowID)
			if err := env.Tx.Put(key.Bytes(), raw); err != nil {
				return Batch{}, false, err
			}
			u.updated++
		}
		if !more {
			break
		}
	}
	u.done = true
	return countBatch(u.updated), false, nil
}

// rowIDColumn is the reserved column name Scan-for-mutation plans attach to
// carry a row's physical key alongside its decoded values.
const rowIDColumn = "__row_id"

// Delete removes every row Child yields, keyed by its __row_id column.
type Delete struct {
	Child   Node
	TableID catalog.ID

	deleted int
	done    bool
}

func (d *Delete) Initialize(env *Env) error { return d.Child.Initialize(env) }

func (d *Delete) Next(env *Env) (Batch, bool, error) {
	if d.done {
		return Batch{}, false, nil
	}
	for {
		batch, more, err := d.Child.Next(env)
		if err != nil {
			return Batch{}, false, err
		}
		idx := batch.ColumnIndex(rowIDColumn)
		for i := 0; i < batch.RowCount; i++ {
			var rowID uint64
			if idx >= 0 {
				rowID, _ = batch.Columns[idx].Data[i].(uint64)
			}
			key := encoding.RowKey(uint64(d.TableID), rowID)
			if err := env.Tx.Remove(key.Bytes()); err != nil {
				return Batch{}, false, err
			}
			d.deleted++
		}
		if !more {
			break
		}
	}
	d.done = true
	return countBatch(d.deleted), false, nil
}

// CreateTable stages a new table definition in the active Overlay.
type CreateTable struct {
	Namespace catalog.ID
	Name      string
	Def       catalog.TableDef

	done bool
}

func (c *CreateTable) Initialize(*Env) error { return nil }

func (c *CreateTable) Next(env *Env) (Batch, bool, error) {
	if c.done {
		return Batch{}, false, nil
	}
	c.done = true
	if _, existing, _ := env.Overlay.Lookup(c.Namespace, catalog.KindTable, c.Name); existing != nil {
		return Batch{}, false, diagnostic.CatalogConflict("table already exists: " + c.Name)
	}
	payload, err := catalog.EncodeTableDef(c.Def)
	if err != nil {
		return Batch{}, false, err
	}
	id := env.Overlay.Create(catalog.KindTable, c.Namespace, c.Name, payload)
	return idBatch(id), false, nil
}

func idBatch(id catalog.ID) Batch {
	return Batch{RowCount: 1, Columns: []Column{{Name: "id", Type: TypeInt64, Data: []Value{int64(id)}}}}
}

// DropTable stages a deletion of an existing table from the active Overlay.
type DropTable struct {
	Namespace catalog.ID
	Name      string

	done bool
}

func (d *DropTable) Initialize(*Env) error { return nil }

func (d *DropTable) Next(env *Env) (Batch, bool, error) {
	if d.done {
		return Batch{}, false, nil
	}
	d.done = true
	id, existing, err := env.Overlay.Lookup(d.Namespace, catalog.KindTable, d.Name)
	if err != nil {
		return Batch{}, false, err
	}
	if existing == nil {
		return Batch{}, false, diagnostic.NotFound("no such table: " + d.Name)
	}
	env.Overlay.Drop(id, existing)
	return Batch{}, false, nil
}
