package mvcc

import (
	"context"
	"testing"

	"github.com/reifydb/reifydb/internal/storage"
	"github.com/reifydb/reifydb/internal/storage/memtier"
)

func TestGetReturnsGreatestVersionAtOrBelowSnapshot(t *testing.T) {
	s := NewStore(memtier.New(), storage.KindMulti)
	key := []byte("k")
	s.Apply(1, key, []byte("v1"), true)
	s.Apply(5, key, []byte("v5"), true)

	v, ok, err := s.Get(context.Background(), key, 3)
	if err != nil || !ok {
		t.Fatalf("get at v3: err=%v ok=%v", err, ok)
	}
	if string(v) != "v1" {
		t.Fatalf("got %q, want %q (snapshot 3 must not see version 5)", v, "v1")
	}

	v, ok, err = s.Get(context.Background(), key, 5)
	if err != nil || !ok || string(v) != "v5" {
		t.Fatalf("get at v5: got %q ok=%v err=%v", v, ok, err)
	}
}

func TestGetBeforeFirstVersionIsAbsent(t *testing.T) {
	s := NewStore(memtier.New(), storage.KindMulti)
	key := []byte("k")
	s.Apply(10, key, []byte("v10"), true)

	_, ok, err := s.Get(context.Background(), key, 5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be invisible before its first version")
	}
}

func TestTombstoneHidesKeyFromLaterSnapshots(t *testing.T) {
	s := NewStore(memtier.New(), storage.KindMulti)
	key := []byte("k")
	s.Apply(1, key, []byte("v1"), true)
	s.Apply(2, key, nil, false)

	_, ok, err := s.Get(context.Background(), key, 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected tombstone to hide the key")
	}

	v, ok, err := s.Get(context.Background(), key, 1)
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("earlier snapshot should still see v1: got %q ok=%v err=%v", v, ok, err)
	}
}

func TestContainerPruneBelowKeepsNewestVersionUnderFloor(t *testing.T) {
	c := &Container{}
	c.insert(1, []byte("v1"), true)
	c.insert(2, []byte("v2"), true)
	c.insert(5, []byte("v5"), true)

	removed := c.pruneBelow(5)
	if removed != 1 {
		t.Fatalf("expected exactly one entry pruned (version 1), got %d", removed)
	}

	e, ok := c.visibleAt(4)
	if !ok || e.version != 2 {
		t.Fatalf("expected version 2 to remain visible at snapshot 4, got version=%d ok=%v", e.version, ok)
	}
}

func TestContainerPruneBelowIsNoopWhenNothingBelowFloor(t *testing.T) {
	c := &Container{}
	c.insert(5, []byte("v5"), true)

	if removed := c.pruneBelow(1); removed != 0 {
		t.Fatalf("expected no pruning below the earliest version, got %d removed", removed)
	}
}

func TestRangeStreamsAllVisibleKeysAcrossBatches(t *testing.T) {
	tier := memtier.New()
	s := NewStore(tier, storage.KindMulti)
	for _, k := range []string{"a", "b", "c", "d"} {
		key := []byte(k)
		if err := tier.Set(context.Background(), []storage.Write{{Kind: storage.KindMulti, Key: key, Value: []byte(k)}}); err != nil {
			t.Fatalf("seed tier: %v", err)
		}
		s.Apply(1, key, []byte(k), true)
	}

	next := s.Range(context.Background(), nil, nil, 1, 2)
	var got []string
	for {
		batch, more, err := next()
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		for _, r := range batch {
			got = append(got, string(r.Key))
		}
		if !more {
			break
		}
	}
	if len(got) != 4 {
		t.Fatalf("got %v, want 4 entries", got)
	}
}
