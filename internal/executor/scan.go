package executor

import (
	"github.com/reifydb/reifydb/internal/catalog"
	"github.com/reifydb/reifydb/internal/encoding"
	"github.com/reifydb/reifydb/internal/mvcc"
)

const defaultScanBatchSize = 256

// Scan pulls every live row of one table as of the active transaction's
// snapshot, decoding each row with the table's current schema.
//
// Grounded on tinySQL's executeSelect table scan (internal/engine/exec.go),
// generalized from tinySQL's "load whole table into []Row" approach to a
// cursor-driven batch pull matching spec §4.A's {entries, has_more}
// contract, since a transactional store cannot assume a table fits in
// memory.
type Scan struct {
	TableID catalog.ID
	Schema  encoding.Schema
	Engine  *Engine
	columns []catalog.ColumnDef

	iter     func() ([]mvcc.RangeResult, bool, error)
	finished bool
}

// NewScan builds a Scan node over tableID using def's column list.
func NewScan(engine *Engine, tableID catalog.ID, def catalog.TableDef) *Scan {
	return &Scan{TableID: tableID, Schema: SchemaOf(def), Engine: engine, columns: def.Columns}
}

func (s *Scan) Columns() []catalog.ColumnDef { return s.columns }

func (s *Scan) Initialize(env *Env) error {
	env.Tx.RangeMarksReadAll()
	start := encoding.RowKey(uint64(s.TableID), 0)
	nextTableStart := encoding.RowKey(uint64(s.TableID)+1, 0)
	s.iter = s.Engine.Store().Range(contextOrBackground(env.Ctx), start.Bytes(), nextTableStart.Bytes(), env.Tx.SnapshotForRange(), defaultScanBatchSize)
	return nil
}

func (s *Scan) Next(env *Env) (Batch, bool, error) {
	if s.finished {
		return Batch{}, false, nil
	}
	results, hasMore, err := s.iter()
	if err != nil {
		return Batch{}, false, err
	}
	if !hasMore {
		s.finished = true
	}
	if len(results) == 0 {
		if s.finished {
			return Batch{}, false, nil
		}
		return Batch{RowCount: 0}, true, nil
	}
	batch, err := s.decode(results)
	if err != nil {
		return Batch{}, false, err
	}
	return batch, !s.finished, nil
}

func (s *Scan) decode(results []mvcc.RangeResult) (Batch, error) {
	cols := make([]Column, len(s.Schema.Fields))
	for i, f := range s.Schema.Fields {
		cols[i] = Column{Name: f.Name, Type: fieldToColumnType(f.Type), Data: make([]Value, 0, len(results))}
	}
	for _, r := range results {
		values, err := encoding.DecodeRow(s.Schema, encoding.EncodedValues(r.Value))
		if err != nil {
			return Batch{}, err
		}
		for i, v := range values {
			cols[i].Data = append(cols[i].Data, v)
		}
	}
	return Batch{Columns: cols, RowCount: len(results)}, nil
}

func fieldToColumnType(t encoding.FieldType) ColumnType {
	switch t {
	case encoding.FieldBool:
		return TypeBool
	case encoding.FieldInt64:
		return TypeInt64
	case encoding.FieldFloat64:
		return TypeFloat64
	case encoding.FieldBlob:
		return TypeBlob
	default:
		return TypeText
	}
}
