package driver

import (
	"context"
	"testing"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/dispatch"
	"github.com/fleetkeeper/fleetkeeper/internal/event"
	"github.com/fleetkeeper/fleetkeeper/internal/fleet"
	"github.com/fleetkeeper/fleetkeeper/internal/policy"
	"github.com/fleetkeeper/fleetkeeper/internal/queue"
	"github.com/fleetkeeper/fleetkeeper/internal/retention"
)

func newTestDriver(t *testing.T, def retention.Policy) (*Driver, *fleet.Store, *queue.Queue, event.Bus) {
	t.Helper()
	store := fleet.NewStore()
	bus := event.NewBus()
	q := queue.New()
	lc := fleet.NewLifecycle(store, bus, 0)
	d := New(store, q, lc, policy.NewStore(def), dispatch.NewAssigner(store, q, bus), bus, time.Second)
	return d, store, q, bus
}

func collectVerdicts(bus event.Bus) *[]event.VerdictEvent {
	var got []event.VerdictEvent
	bus.Subscribe(event.EventVerdict, func(ctx context.Context, e event.Event) error {
		got = append(got, e.Payload.(event.VerdictEvent))
		return nil
	})
	return &got
}

func TestTickLaunchesInDemandAgent(t *testing.T) {
	def := retention.NewPolicy(5*time.Minute, 10*time.Minute, "")
	d, store, q, bus := newTestDriver(t, def)
	verdicts := collectVerdicts(bus)

	a, err := store.Add(fleet.AgentConfig{
		Name: "x", Executors: 1, Labels: []string{"linux"}, Launchable: true, Accepting: true,
	}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	store.WithLock(func() {
		q.Enqueue([]string{"linux"}, time.Hour, time.Now().Add(-6*time.Minute))
	})

	d.Tick(context.Background())

	if len(*verdicts) != 1 || (*verdicts)[0].Verdict != "launch" {
		t.Fatalf("verdicts = %+v, want one launch", *verdicts)
	}

	var state retention.State
	store.WithLock(func() { state = a.State() })
	if state == retention.StateOffline {
		t.Error("agent still offline after a launch verdict")
	}
}

func TestTickHonorsRecheckDeadline(t *testing.T) {
	def := retention.NewPolicy(0, 10*time.Minute, "")
	d, store, _, _ := newTestDriver(t, def)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	if _, err := store.Add(fleet.AgentConfig{Name: "x", Executors: 1, Accepting: true}, base); err != nil {
		t.Fatal(err)
	}
	store.WithLock(func() {
		a, _ := store.Agent("x")
		a.MarkOnline(base.Add(-3 * time.Minute))
	})

	d.Tick(context.Background())
	// Idle 3m of 10m: deferred, next check in 7m.
	due, ok := d.nextCheck["x"]
	if !ok || !due.Equal(base.Add(7*time.Minute)) {
		t.Fatalf("nextCheck = %v (%v), want %v", due, ok, base.Add(7*time.Minute))
	}

	// A tick before the deadline must skip the agent entirely.
	d.now = func() time.Time { return base.Add(time.Minute) }
	d.Tick(context.Background())
	if got := d.nextCheck["x"]; !got.Equal(base.Add(7 * time.Minute)) {
		t.Errorf("nextCheck moved to %v on a premature tick", got)
	}

	// Once past the idle delay the agent is disconnected.
	d.now = func() time.Time { return base.Add(11 * time.Minute) }
	d.Tick(context.Background())
	store.WithLock(func() {
		a, _ := store.Agent("x")
		if a.State() != retention.StateOffline {
			t.Errorf("state = %v, want offline after idle timeout", a.State())
		}
		if a.OfflineCause() != retention.CauseIdleTimeout {
			t.Errorf("cause = %q, want idle timeout", a.OfflineCause())
		}
	})
}

func TestTickDispatchesBeforeEvaluating(t *testing.T) {
	def := retention.NewPolicy(0, 10*time.Minute, "")
	d, store, q, bus := newTestDriver(t, def)
	verdicts := collectVerdicts(bus)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	// One online agent that can take the queued item, one offline
	// launchable agent: dispatch absorbs the item, so the offline agent
	// must not be launched.
	if _, err := store.Add(fleet.AgentConfig{
		Name: "busybee", Executors: 1, Labels: []string{"linux"}, Accepting: true,
	}, base); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Add(fleet.AgentConfig{
		Name: "spare", Executors: 1, Labels: []string{"linux"}, Launchable: true, Accepting: true,
	}, base); err != nil {
		t.Fatal(err)
	}
	store.WithLock(func() {
		a, _ := store.Agent("busybee")
		a.MarkOnline(base)
		q.Enqueue([]string{"linux"}, time.Hour, base.Add(-time.Hour))
	})

	d.Tick(context.Background())

	for _, v := range *verdicts {
		if v.Agent == "spare" && v.Verdict == "launch" {
			t.Error("spare launched although dispatch absorbed the only item")
		}
	}
	if q.Len() != 0 {
		t.Errorf("queue len = %d, want 0 after dispatch", q.Len())
	}
}
