package executor

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/reifydb/reifydb/internal/catalog"
	"github.com/reifydb/reifydb/internal/commit"
	"github.com/reifydb/reifydb/internal/mvcc"
	"github.com/reifydb/reifydb/internal/storage"
	"github.com/reifydb/reifydb/internal/storage/memtier"
	"github.com/reifydb/reifydb/internal/txn"
)

func newTestEnv(t *testing.T) (*Engine, *txn.Manager) {
	t.Helper()
	tier := memtier.New()
	store := mvcc.NewStore(tier, storage.KindMulti)
	queue := commit.New(tier, store, storage.KindCdc, zerolog.Nop(), nil)
	go queue.Run(context.Background())
	t.Cleanup(queue.Shutdown)
	mgr := txn.New(store, queue, zerolog.Nop())
	return NewEngine(store), mgr
}

func personsDef() catalog.TableDef {
	return catalog.TableDef{Columns: []catalog.ColumnDef{
		{Name: "id", Type: "int64"},
		{Name: "name", Type: "text"},
		{Name: "age", Type: "int64"},
	}}
}

func TestInsertThenScan(t *testing.T) {
	engine, mgr := newTestEnv(t)
	def := personsDef()
	tableID := catalog.ID(1)

	tx := mgr.Begin(txn.Command)
	env := &Env{Ctx: context.Background(), Tx: tx, Vars: map[string]Value{}}

	rows := Batch{RowCount: 2, Columns: []Column{
		{Name: "id", Type: TypeInt64, Data: []Value{int64(1), int64(2)}},
		{Name: "name", Type: TypeText, Data: []Value{"alice", "bob"}},
		{Name: "age", Type: TypeInt64, Data: []Value{int64(30), int64(40)}},
	}}
	src := &staticSource{batch: rows}
	ins := &Insert{Child: src, TableID: tableID, Def: def, Engine: engine}
	if err := ins.Initialize(env); err != nil {
		t.Fatalf("initialize insert: %v", err)
	}
	result, _, err := ins.Next(env)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if result.Columns[0].Data[0].(int64) != 2 {
		t.Fatalf("expected 2 rows inserted, got %v", result.Columns[0].Data[0])
	}
	if _, err := tx.Commit(env.Ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx2 := mgr.Begin(txn.Query)
	env2 := &Env{Ctx: context.Background(), Tx: tx2}
	scan := NewScan(engine, tableID, def)
	if err := scan.Initialize(env2); err != nil {
		t.Fatalf("initialize scan: %v", err)
	}
	batch, more, err := scan.Next(env2)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if more {
		t.Fatalf("expected scan to finish in one batch")
	}
	if batch.RowCount != 2 {
		t.Fatalf("expected 2 rows, got %d", batch.RowCount)
	}
}

func TestFilterKeepsMatchingRows(t *testing.T) {
	batch := Batch{RowCount: 3, Columns: []Column{
		{Name: "age", Type: TypeInt64, Data: []Value{int64(10), int64(20), int64(30)}},
	}}
	f := &Filter{Child: &staticSource{batch: batch}, Predicate: Binary{Op: ">", Left: ColumnRef{"age"}, Right: Literal{int64(15)}}}
	env := &Env{}
	if err := f.Initialize(env); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	out, _, err := f.Next(env)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if out.RowCount != 2 {
		t.Fatalf("expected 2 rows, got %d", out.RowCount)
	}
}

func TestAggregateSum(t *testing.T) {
	batch := Batch{RowCount: 4, Columns: []Column{
		{Name: "grp", Type: TypeText, Data: []Value{"a", "a", "b", "b"}},
		{Name: "amount", Type: TypeInt64, Data: []Value{int64(1), int64(2), int64(3), int64(4)}},
	}}
	agg := &Aggregate{
		Child:   &staticSource{batch: batch},
		GroupBy: []string{"grp"},
		Specs:   []AggregateSpec{{Output: AggSum, Name: "total", Input: "amount"}},
	}
	env := &Env{}
	if err := agg.Initialize(env); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	out, more, err := agg.Next(env)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if more {
		t.Fatalf("expected single batch")
	}
	if out.RowCount != 2 {
		t.Fatalf("expected 2 groups, got %d", out.RowCount)
	}
	got := map[string]int64{}
	for i := 0; i < out.RowCount; i++ {
		row := out.Row(i)
		grp, _ := row["grp"].(string)
		total, _ := row["total"].(float64)
		got[grp] = int64(total)
	}
	want := map[string]int64{"a": 3, "b": 7}
	if got["a"] != want["a"] || got["b"] != want["b"] {
		t.Fatalf("expected group->total pairings %v, got %v", want, got)
	}
}

// staticSource is a test-only Node that yields one fixed batch then ends.
type staticSource struct {
	batch Batch
	done  bool
}

func (s *staticSource) Initialize(*Env) error { return nil }

func (s *staticSource) Next(*Env) (Batch, bool, error) {
	if s.done {
		return Batch{}, false, nil
	}
	s.done = true
	return s.batch, false, nil
}
