package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestStartStopsInReverseOrder(t *testing.T) {
	m := New(zerolog.Nop())
	var order []string

	for _, name := range []string{"storage", "commit-queue", "router"} {
		name := name
		m.Register(NewFunc(name,
			func(context.Context) error { order = append(order, "start:"+name); return nil },
			func(context.Context) error { order = append(order, "stop:"+name); return nil },
		))
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{
		"start:storage", "start:commit-queue", "start:router",
		"stop:router", "stop:commit-queue", "stop:storage",
	}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %q, want %q (full: %v)", i, order[i], want[i], order)
		}
	}
}

func TestStartFailureRollsBackAlreadyStarted(t *testing.T) {
	m := New(zerolog.Nop())
	var stopped []string

	m.Register(NewFunc("storage",
		func(context.Context) error { return nil },
		func(context.Context) error { stopped = append(stopped, "storage"); return nil },
	))
	m.Register(NewFunc("commit-queue",
		func(context.Context) error { return errors.New("boom") },
		func(context.Context) error { stopped = append(stopped, "commit-queue"); return nil },
	))

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("expected start failure")
	}
	if len(stopped) != 1 || stopped[0] != "storage" {
		t.Fatalf("expected only storage to be rolled back, got %v", stopped)
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	panicked := Guard(zerolog.Nop(), func() { panic("runtime panic") })
	if !panicked {
		t.Fatal("expected Guard to report the panic")
	}
	notPanicked := Guard(zerolog.Nop(), func() {})
	if notPanicked {
		t.Fatal("expected Guard to report no panic for a clean function")
	}
}
