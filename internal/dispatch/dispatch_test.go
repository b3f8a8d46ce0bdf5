package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/event"
	"github.com/fleetkeeper/fleetkeeper/internal/fleet"
	"github.com/fleetkeeper/fleetkeeper/internal/queue"
	"github.com/fleetkeeper/fleetkeeper/internal/retention"
)

func onlineAgent(t *testing.T, store *fleet.Store, lc *fleet.Lifecycle, cfg fleet.AgentConfig) *fleet.Agent {
	t.Helper()
	a, err := store.Add(cfg, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	store.WithLock(func() { lc.Connect(cfg.Name) })
	// Connect delay is zero in tests but the online transition is still
	// asynchronous; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var online bool
		store.WithLock(func() { online = a.State() == retention.StateOnline })
		if online {
			return a
		}
		if time.Now().After(deadline) {
			t.Fatalf("agent %s never came online", cfg.Name)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAssignerRunOnce(t *testing.T) {
	t.Run("assigns in queue order to the first capable agent", func(t *testing.T) {
		store := fleet.NewStore()
		bus := event.NewBus()
		lc := fleet.NewLifecycle(store, bus, 0)
		q := queue.New()
		d := NewAssigner(store, q, bus)

		a := onlineAgent(t, store, lc, fleet.AgentConfig{
			Name: "a", Executors: 1, Labels: []string{"linux"}, Accepting: true,
		})
		b := onlineAgent(t, store, lc, fleet.AgentConfig{
			Name: "b", Executors: 1, Labels: []string{"linux"}, Accepting: true,
		})

		store.WithLock(func() {
			q.Enqueue([]string{"linux"}, time.Hour, time.Now())
			q.Enqueue([]string{"linux"}, time.Hour, time.Now())
			d.RunOnce()
		})

		store.WithLock(func() {
			if a.IdleSlots() != 0 || b.IdleSlots() != 0 {
				t.Errorf("slots a=%d b=%d, want both busy", a.IdleSlots(), b.IdleSlots())
			}
		})
		if q.Len() != 0 {
			t.Errorf("queue len = %d, want 0", q.Len())
		}
	})

	t.Run("leaves unmatchable items queued", func(t *testing.T) {
		store := fleet.NewStore()
		bus := event.NewBus()
		lc := fleet.NewLifecycle(store, bus, 0)
		q := queue.New()
		d := NewAssigner(store, q, bus)

		onlineAgent(t, store, lc, fleet.AgentConfig{
			Name: "a", Executors: 1, Labels: []string{"linux"}, Accepting: true,
		})

		store.WithLock(func() {
			q.Enqueue([]string{"windows"}, time.Hour, time.Now())
			d.RunOnce()
		})

		if q.Len() != 1 {
			t.Errorf("queue len = %d, want 1 (no agent carries the label)", q.Len())
		}
	})

	t.Run("skips non-accepting agents", func(t *testing.T) {
		store := fleet.NewStore()
		bus := event.NewBus()
		lc := fleet.NewLifecycle(store, bus, 0)
		q := queue.New()
		d := NewAssigner(store, q, bus)

		onlineAgent(t, store, lc, fleet.AgentConfig{
			Name: "a", Executors: 1, Labels: []string{"linux"}, Accepting: false,
		})

		store.WithLock(func() {
			q.Enqueue([]string{"linux"}, time.Hour, time.Now())
			d.RunOnce()
		})

		if q.Len() != 1 {
			t.Errorf("queue len = %d, want 1 (agent not accepting)", q.Len())
		}
	})

	t.Run("completion frees the slot", func(t *testing.T) {
		store := fleet.NewStore()
		bus := event.NewBus()
		lc := fleet.NewLifecycle(store, bus, 0)
		q := queue.New()
		d := NewAssigner(store, q, bus)

		done := make(chan struct{})
		bus.Subscribe(event.EventItemCompleted, func(ctx context.Context, e event.Event) error {
			close(done)
			return nil
		})

		a := onlineAgent(t, store, lc, fleet.AgentConfig{
			Name: "a", Executors: 1, Labels: []string{"linux"}, Accepting: true,
		})

		store.WithLock(func() {
			q.Enqueue([]string{"linux"}, 10*time.Millisecond, time.Now())
			d.RunOnce()
		})

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("item never completed")
		}

		deadline := time.Now().Add(time.Second)
		for {
			var idle bool
			store.WithLock(func() { idle = a.Idle() })
			if idle {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("slot never freed after completion")
			}
			time.Sleep(5 * time.Millisecond)
		}
	})
}
