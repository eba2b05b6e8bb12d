package memtier

import (
	"context"
	"testing"

	"github.com/reifydb/reifydb/internal/storage"
)

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	b := New()
	_, ok, err := b.Get(context.Background(), storage.KindMulti, []byte("missing"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected miss for an unset key")
	}
}

func TestSetThenGetRoundTrips(t *testing.T) {
	b := New()
	ctx := context.Background()
	writes := []storage.Write{
		{Kind: storage.KindMulti, Key: []byte("a"), Value: []byte("1")},
		{Kind: storage.KindMulti, Key: []byte("b"), Value: []byte("2")},
	}
	if err := b.Set(ctx, writes); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := b.Get(ctx, storage.KindMulti, []byte("a"))
	if err != nil || !ok {
		t.Fatalf("get a: %v, ok=%v", err, ok)
	}
	if string(v) != "1" {
		t.Fatalf("got %q, want %q", v, "1")
	}
}

func TestSetNilValueDeletesKey(t *testing.T) {
	b := New()
	ctx := context.Background()
	if err := b.Set(ctx, []storage.Write{{Kind: storage.KindMulti, Key: []byte("a"), Value: []byte("1")}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := b.Set(ctx, []storage.Write{{Kind: storage.KindMulti, Key: []byte("a"), Value: nil}}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, err := b.Get(ctx, storage.KindMulti, []byte("a"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestSetSpansMultipleKinds(t *testing.T) {
	b := New()
	ctx := context.Background()
	writes := []storage.Write{
		{Kind: storage.KindMulti, Key: []byte("a"), Value: []byte("row")},
		{Kind: storage.KindCdc, Key: []byte("a"), Value: []byte("cdc")},
	}
	if err := b.Set(ctx, writes); err != nil {
		t.Fatalf("set: %v", err)
	}
	rowVal, _, _ := b.Get(ctx, storage.KindMulti, []byte("a"))
	cdcVal, _, _ := b.Get(ctx, storage.KindCdc, []byte("a"))
	if string(rowVal) != "row" || string(cdcVal) != "cdc" {
		t.Fatalf("cross-kind write leaked: row=%q cdc=%q", rowVal, cdcVal)
	}
}

func TestRangeNextPagesInAscendingOrder(t *testing.T) {
	b := New()
	ctx := context.Background()
	for _, k := range []string{"c", "a", "b", "d"} {
		if err := b.Set(ctx, []storage.Write{{Kind: storage.KindMulti, Key: []byte(k), Value: []byte(k)}}); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	cursor := &storage.Cursor{}
	var got []string
	for {
		batch, err := b.RangeNext(ctx, storage.KindMulti, cursor, nil, nil, 2)
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		for _, e := range batch.Entries {
			got = append(got, string(e.Key))
		}
		if !batch.HasMore {
			break
		}
	}
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRangeRevNextPagesInDescendingOrder(t *testing.T) {
	b := New()
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		if err := b.Set(ctx, []storage.Write{{Kind: storage.KindMulti, Key: []byte(k), Value: []byte(k)}}); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	cursor := &storage.Cursor{}
	batch, err := b.RangeRevNext(ctx, storage.KindMulti, cursor, nil, nil, 10)
	if err != nil {
		t.Fatalf("range rev: %v", err)
	}
	if len(batch.Entries) != 3 || string(batch.Entries[0].Key) != "c" || string(batch.Entries[2].Key) != "a" {
		t.Fatalf("unexpected order: %+v", batch.Entries)
	}
}

func TestClearTableRemovesAllEntries(t *testing.T) {
	b := New()
	ctx := context.Background()
	if err := b.Set(ctx, []storage.Write{{Kind: storage.KindMulti, Key: []byte("a"), Value: []byte("1")}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := b.ClearTable(ctx, storage.KindMulti); err != nil {
		t.Fatalf("clear: %v", err)
	}
	_, ok, _ := b.Get(ctx, storage.KindMulti, []byte("a"))
	if ok {
		t.Fatalf("expected table to be cleared")
	}
}
