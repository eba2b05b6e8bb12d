package commit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reifydb/reifydb/internal/mvcc"
	"github.com/reifydb/reifydb/internal/storage"
	"github.com/reifydb/reifydb/internal/storage/memtier"
)

func newTestQueue(t *testing.T, onApplied func(mvcc.Record)) (*Queue, *mvcc.Store, context.CancelFunc) {
	t.Helper()
	tier := memtier.New()
	store := mvcc.NewStore(tier, storage.KindMulti)
	q := New(tier, store, storage.KindCdc, zerolog.Nop(), onApplied)
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	return q, store, cancel
}

func TestCommitMultiAppliesDeltasAndRecordsCdc(t *testing.T) {
	var applied []mvcc.Record
	q, store, cancel := newTestQueue(t, func(r mvcc.Record) { applied = append(applied, r) })
	defer cancel()

	deltas := []mvcc.Delta{
		{Kind: mvcc.DeltaSet, Key: []byte("a"), Values: []byte("1")},
		{Kind: mvcc.DeltaSet, Key: []byte("b"), Values: []byte("2")},
	}
	record, err := q.CommitMulti(context.Background(), 1, 100, deltas)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(record.Changes) != 2 {
		t.Fatalf("expected 2 change diffs, got %d", len(record.Changes))
	}

	v, ok, err := store.Get(context.Background(), []byte("a"), 1)
	if err != nil || !ok || string(v) != "1" {
		t.Fatalf("store.Get a: v=%q ok=%v err=%v", v, ok, err)
	}

	deadline := time.Now().Add(time.Second)
	for len(applied) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(applied) != 1 || applied[0].Version != 1 {
		t.Fatalf("onApplied not invoked with the committed record: %+v", applied)
	}
}

func TestCommitMultiAssignsSequenceByInsertionOrderNotKeyOrder(t *testing.T) {
	q, _, cancel := newTestQueue(t, func(mvcc.Record) {})
	defer cancel()

	deltas := []mvcc.Delta{
		{Kind: mvcc.DeltaSet, Key: []byte("b"), Values: []byte("2")},
		{Kind: mvcc.DeltaSet, Key: []byte("a"), Values: []byte("1")},
	}
	record, err := q.CommitMulti(context.Background(), 1, 100, deltas)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(record.Changes) != 2 {
		t.Fatalf("expected 2 change diffs, got %d", len(record.Changes))
	}
	if record.Changes[0].Sequence != 1 || string(record.Changes[0].Key) != "b" {
		t.Fatalf("expected sequence 1 to be key %q (insertion order), got seq=%d key=%q",
			"b", record.Changes[0].Sequence, record.Changes[0].Key)
	}
	if record.Changes[1].Sequence != 2 || string(record.Changes[1].Key) != "a" {
		t.Fatalf("expected sequence 2 to be key %q (insertion order), got seq=%d key=%q",
			"a", record.Changes[1].Sequence, record.Changes[1].Key)
	}
}

func TestCommitMultiAppliesOutOfOrderArrivalsInVersionOrder(t *testing.T) {
	var order []mvcc.Version
	q, _, cancel := newTestQueue(t, func(r mvcc.Record) { order = append(order, r.Version) })
	defer cancel()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = q.CommitMulti(context.Background(), 2, 2, []mvcc.Delta{{Kind: mvcc.DeltaSet, Key: []byte("b"), Values: []byte("2")}})
		done <- struct{}{}
	}()
	time.Sleep(20 * time.Millisecond) // let version 2 arrive and buffer first
	go func() {
		_, _ = q.CommitMulti(context.Background(), 1, 1, []mvcc.Delta{{Kind: mvcc.DeltaSet, Key: []byte("a"), Values: []byte("1")}})
		done <- struct{}{}
	}()
	<-done
	<-done

	deadline := time.Now().Add(time.Second)
	for len(order) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected CDC applied in strict version order [1 2], got %v", order)
	}
}

func TestCommitSingleWritesDirectlyWithoutCdc(t *testing.T) {
	var applied []mvcc.Record
	q, _, cancel := newTestQueue(t, func(r mvcc.Record) { applied = append(applied, r) })
	defer cancel()

	writes := []storage.Write{{Kind: storage.KindSingle, Key: []byte("cfg"), Value: []byte("v")}}
	if err := q.CommitSingle(context.Background(), writes); err != nil {
		t.Fatalf("commit single: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("CommitSingle must not emit CDC or call onApplied, got %v", applied)
	}
}
