package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/event"
	"github.com/fleetkeeper/fleetkeeper/internal/fleet"
	"github.com/fleetkeeper/fleetkeeper/internal/retention"
)

func newAgentsFixture(t *testing.T) (*AgentsHandler, *fleet.Store) {
	t.Helper()
	store := fleet.NewStore()
	lc := fleet.NewLifecycle(store, event.NewBus(), 0)
	now := time.Now()
	for _, cfg := range []fleet.AgentConfig{
		{Name: "linux-1", Executors: 2, Labels: []string{"linux", "docker"}, Launchable: true, Accepting: true},
		{Name: "win-1", Executors: 1, Labels: []string{"windows"}, Accepting: true},
	} {
		if _, err := store.Add(cfg, now); err != nil {
			t.Fatal(err)
		}
	}
	return NewAgentsHandler(store, lc), store
}

func TestAgentsList(t *testing.T) {
	h, _ := newAgentsFixture(t)

	out, err := h.List(context.Background(), &ListAgentsInput{})
	if err != nil {
		t.Fatal(err)
	}
	agents := out.Body.Data
	if len(agents) != 2 {
		t.Fatalf("agents = %d, want 2", len(agents))
	}
	if agents[0].Name != "linux-1" || agents[1].Name != "win-1" {
		t.Errorf("order = %s, %s; want name order", agents[0].Name, agents[1].Name)
	}
	if agents[0].State != "offline" || agents[0].IdleSlots != 2 {
		t.Errorf("linux-1 = %+v", agents[0])
	}
	if len(agents[0].Labels) != 2 || agents[0].Labels[0] != "docker" {
		t.Errorf("labels not sorted: %v", agents[0].Labels)
	}
}

func TestAgentsGet(t *testing.T) {
	h, _ := newAgentsFixture(t)

	out, err := h.Get(context.Background(), &AgentNameInput{Name: "win-1"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Body.Data.Name != "win-1" || out.Body.Data.Launchable {
		t.Errorf("win-1 = %+v", out.Body.Data)
	}

	if _, err := h.Get(context.Background(), &AgentNameInput{Name: "ghost"}); err == nil {
		t.Error("expected not-found for unknown agent")
	}
}

func TestAgentsConnectDisconnect(t *testing.T) {
	h, store := newAgentsFixture(t)

	if _, err := h.Connect(context.Background(), &AgentNameInput{Name: "linux-1"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		var st retention.State
		store.WithLock(func() {
			a, _ := store.Agent("linux-1")
			st = a.State()
		})
		if st == retention.StateOnline {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("agent never came online, state %v", st)
		}
		time.Sleep(time.Millisecond)
	}

	in := &DisconnectInput{Name: "linux-1"}
	in.Body.Cause = "maintenance window"
	if _, err := h.Disconnect(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	store.WithLock(func() {
		a, _ := store.Agent("linux-1")
		if a.State() != retention.StateOffline {
			t.Errorf("state = %v, want offline", a.State())
		}
		if a.OfflineCause() != "maintenance window" {
			t.Errorf("cause = %q", a.OfflineCause())
		}
	})

	if _, err := h.Connect(context.Background(), &AgentNameInput{Name: "ghost"}); err == nil {
		t.Error("expected not-found for unknown agent")
	}
}
