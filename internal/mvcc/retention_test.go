package mvcc

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reifydb/reifydb/internal/storage"
	"github.com/reifydb/reifydb/internal/storage/memtier"
)

func TestSweepOncePrunesVersionsBelowWatermark(t *testing.T) {
	store := NewStore(memtier.New(), storage.KindMulti)
	key := []byte("k")
	store.Apply(1, key, []byte("v1"), true)
	store.Apply(2, key, []byte("v2"), true)
	store.Apply(5, key, []byte("v5"), true)

	r := NewRetention(store, func() Version { return 5 }, 0, zerolog.Nop())
	r.sweepOnce()

	if r.LastSwept() != 1 {
		t.Fatalf("expected exactly one version pruned (version 1), got %d", r.LastSwept())
	}
	if _, ok := store.container(key).visibleAt(4); !ok {
		t.Fatalf("the newest version below the floor must still be visible to a straggling reader")
	}
}

func TestSweepOnceIsNoopWhenNothingIsBelowTheWatermark(t *testing.T) {
	store := NewStore(memtier.New(), storage.KindMulti)
	store.Apply(5, []byte("k"), []byte("v5"), true)

	r := NewRetention(store, func() Version { return 1 }, 0, zerolog.Nop())
	r.sweepOnce()

	if r.LastSwept() != 0 {
		t.Fatalf("expected no pruning when the watermark is below every version, got %d", r.LastSwept())
	}
}

func TestRunCronRejectsAnInvalidSpec(t *testing.T) {
	store := NewStore(memtier.New(), storage.KindMulti)
	r := NewRetention(store, func() Version { return 0 }, 0, zerolog.Nop())
	if err := r.RunCron(context.Background(), "not a cron spec"); err == nil {
		t.Fatalf("expected an error for a malformed cron spec")
	}
}

func TestRunCronSweepsOnScheduleAndStopsOnCancel(t *testing.T) {
	store := NewStore(memtier.New(), storage.KindMulti)
	key := []byte("k")
	store.Apply(1, key, []byte("v1"), true)
	store.Apply(2, key, []byte("v2"), true)

	r := NewRetention(store, func() Version { return 3 }, 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.RunCron(ctx, "@every 10ms") }()

	deadline := time.Now().Add(time.Second)
	for r.LastSwept() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.LastSwept() == 0 {
		t.Fatalf("expected at least one cron-triggered sweep")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunCron returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("RunCron did not stop after context cancellation")
	}
}
