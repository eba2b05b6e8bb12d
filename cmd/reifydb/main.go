// Command reifydb wires every component (storage tier through router) and
// runs a scripted lifecycle demo: create a table, insert rows inside one
// Command transaction, commit, then read them back in a fresh Query
// transaction, observing a deferred materialized-view flow updated along
// the way. Grounded on tinySQL's cmd/catalog_demo (a single-binary
// walkthrough of the storage layer) for the "no flags, print what each
// step did" shape.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/reifydb/reifydb/internal/catalog"
	"github.com/reifydb/reifydb/internal/commit"
	"github.com/reifydb/reifydb/internal/encoding"
	"github.com/reifydb/reifydb/internal/executor"
	"github.com/reifydb/reifydb/internal/flow"
	"github.com/reifydb/reifydb/internal/lifecycle"
	"github.com/reifydb/reifydb/internal/logging"
	"github.com/reifydb/reifydb/internal/mvcc"
	"github.com/reifydb/reifydb/internal/router"
	"github.com/reifydb/reifydb/internal/storage"
	"github.com/reifydb/reifydb/internal/storage/memtier"
	"github.com/reifydb/reifydb/internal/storage/sqlitetier"
	"github.com/reifydb/reifydb/internal/txn"

	"github.com/rs/zerolog"
)

func main() {
	os.Exit(run())
}

func run() int {
	logging.Init(logging.Config{Level: logging.InfoLevel})
	log := logging.WithComponent("main")

	backendCfg := storage.DefaultBackendConfig()
	if path := os.Getenv("REIFYDB_CONFIG"); path != "" {
		cfg, err := storage.LoadBackendConfig(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("failed to load backend config, using defaults")
		} else {
			backendCfg = cfg
		}
	}

	var tier storage.Tier
	switch backendCfg.Backend {
	case storage.BackendSQLite:
		sqliteTier, err := sqlitetier.Open(backendCfg.Path)
		if err != nil {
			log.Error().Err(err).Msg("failed to open sqlite backend")
			return lifecycle.ExitStartupFailure
		}
		tier = sqliteTier
	default:
		tier = memtier.New()
	}
	store := mvcc.NewStore(tier, storage.KindMulti)

	schemas := make(map[uint64]encoding.Schema)
	r := router.New(logging.WithComponent("router"),
		func(tableID uint64, raw []byte) (flow.Row, error) {
			schema, ok := schemas[tableID]
			if !ok {
				return nil, fmt.Errorf("main: no schema registered for table %d", tableID)
			}
			values, err := encoding.DecodeRow(schema, encoding.EncodedValues(raw))
			if err != nil {
				return nil, err
			}
			row := make(flow.Row, len(schema.Fields))
			for i, f := range schema.Fields {
				row[f.Name] = values[i]
			}
			return row, nil
		},
		func(key []byte) (uint64, bool) {
			tableID, _, err := encoding.DecodeRowKey(encoding.EncodedKey(key))
			if err != nil {
				return 0, false
			}
			return tableID, true
		},
	)

	queue := commit.New(tier, store, storage.KindCdc, logging.WithComponent("commit_queue"), r.RouteCommitted)
	mgr := txn.New(store, queue, logging.WithComponent("txn"))
	mgr.SetPreCommitValidator(r.ValidateBeforeCommit)
	engine := executor.NewEngine(store)
	cat := catalog.New()

	lm := lifecycle.New(log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lm.Register(lifecycle.NewFunc("commit-queue",
		func(context.Context) error { go queue.Run(ctx); return nil },
		func(context.Context) error { queue.Shutdown(); return nil },
	))
	retention := mvcc.NewRetention(store, mgr.ReadWatermark, backendCfg.Retention.Interval, logging.WithComponent("retention"))
	cronSpec := backendCfg.Retention.CronSpec
	if cronSpec == "" {
		cronSpec = "@every 30s"
	}
	lm.Register(lifecycle.NewFunc("retention",
		func(context.Context) error { go func() { _ = retention.RunCron(ctx, cronSpec) }(); return nil },
		func(context.Context) error { return nil },
	))

	if err := lm.Start(ctx); err != nil {
		log.Error().Err(err).Msg("startup failed")
		return lifecycle.ExitStartupFailure
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = lm.Stop(stopCtx)
	}()

	panicked := lifecycle.Guard(log, func() {
		demo(ctx, log, mgr, engine, cat, schemas, r)
	})
	if panicked {
		return lifecycle.ExitRuntimePanic
	}
	return lifecycle.ExitClean
}

func demo(ctx context.Context, log zerolog.Logger, mgr *txn.Manager, engine *executor.Engine, cat *catalog.Catalog, schemas map[uint64]encoding.Schema, r *router.Router) {
	def := catalog.TableDef{Columns: []catalog.ColumnDef{
		{Name: "id", Type: "int64"},
		{Name: "name", Type: "text"},
		{Name: "amount", Type: "int64"},
	}}

	tx := mgr.Begin(txn.Command)
	env := &executor.Env{Ctx: ctx, Tx: tx, Overlay: catalog.NewOverlay(cat, tx.SnapshotForRange()), Vars: map[string]executor.Value{}}

	create := &executor.CreateTable{Namespace: catalog.ID(0), Name: "orders", Def: def}
	if err := create.Initialize(env); err != nil {
		fmt.Fprintln(os.Stderr, "create table:", err)
		return
	}
	if _, _, err := create.Next(env); err != nil {
		fmt.Fprintln(os.Stderr, "create table:", err)
		return
	}
	tableID := catalog.ID(1)
	schemas[uint64(tableID)] = executor.SchemaOf(def)

	g := flow.NewGraph()
	totals := make(map[string]int64)
	sink := flow.NewSinkToView(flow.ViewDeferred, func(_ flow.ApplyContext, d flow.Diff) error {
		if d.Post != nil {
			name, _ := d.Post["name"].(string)
			amount, _ := d.Post["amount"].(int64)
			totals[name] += amount
		}
		return nil
	})
	src := g.AddSource(uint64(tableID), flow.NewSource())
	g.AddNode(flow.KindSinkToView, sink, src)
	r.Register(router.FlowID(1), router.Deferred, g)

	rows := executor.Batch{RowCount: 2, Columns: []executor.Column{
		{Name: "id", Type: executor.TypeInt64, Data: []executor.Value{int64(1), int64(2)}},
		{Name: "name", Type: executor.TypeText, Data: []executor.Value{"alice", "bob"}},
		{Name: "amount", Type: executor.TypeInt64, Data: []executor.Value{int64(100), int64(250)}},
	}}
	insert := &executor.Insert{Child: &fixedBatch{batch: rows}, TableID: tableID, Def: def, Engine: engine}
	if err := insert.Initialize(env); err != nil {
		fmt.Fprintln(os.Stderr, "insert:", err)
		return
	}
	if _, _, err := insert.Next(env); err != nil {
		fmt.Fprintln(os.Stderr, "insert:", err)
		return
	}
	version, err := tx.Commit(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "commit:", err)
		return
	}
	env.Overlay.Commit(version)

	tx2 := mgr.Begin(txn.Query)
	env2 := &executor.Env{Ctx: ctx, Tx: tx2}
	scan := executor.NewScan(engine, tableID, def)
	if err := scan.Initialize(env2); err != nil {
		fmt.Fprintln(os.Stderr, "scan:", err)
		return
	}
	for {
		batch, more, err := scan.Next(env2)
		if err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			return
		}
		for i := 0; i < batch.RowCount; i++ {
			fmt.Printf("row: %v\n", batch.Row(i))
		}
		if !more {
			break
		}
	}

	for name, total := range totals {
		log.Info().Str("name", name).Int64("total", total).Msg("deferred view updated")
	}
}

// fixedBatch is a one-shot Node yielding a single fixed Batch, matching
// the executor package's own staticSource test helper.
type fixedBatch struct {
	batch executor.Batch
	done  bool
}

func (f *fixedBatch) Initialize(*executor.Env) error { return nil }

func (f *fixedBatch) Next(*executor.Env) (executor.Batch, bool, error) {
	if f.done {
		return executor.Batch{}, false, nil
	}
	f.done = true
	return f.batch, false, nil
}
