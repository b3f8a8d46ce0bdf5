package retention

import (
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func TestTakeSnapshot(t *testing.T) {
	self := &fakeAgent{name: "x", state: StateOffline, launchable: true}

	t.Run("busy conflicting agent still blocks", func(t *testing.T) {
		// Zero idle slots: not a capacity provider, but its presence
		// alone must register as a conflict.
		y := &fakeAgent{name: "y1", state: StateOnline, accepting: true, idleSlots: 0}
		m := compileConflicts("^y", "x", zerolog.Nop())
		snap := takeSnapshot([]Agent{self, y}, self, m)

		if _, ok := snap.conflicts["y1"]; !ok {
			t.Error("y1 missing from conflict set")
		}
		if len(snap.slots) != 0 {
			t.Errorf("slots = %v, want empty", snap.slots)
		}
	})

	t.Run("conflicting agent is excluded from capacity", func(t *testing.T) {
		y := &fakeAgent{name: "y1", state: StateOnline, accepting: true, idleSlots: 3}
		m := compileConflicts("^y", "x", zerolog.Nop())
		snap := takeSnapshot([]Agent{self, y}, self, m)

		if _, ok := snap.slots["y1"]; ok {
			t.Error("conflicting agent listed as a capacity provider")
		}
	})

	t.Run("own name never conflicts", func(t *testing.T) {
		// A record with the evaluated agent's own name showing as online
		// (stale registry entry) must not self-suppress.
		ghost := &fakeAgent{name: "x", state: StateOnline, accepting: true, idleSlots: 1}
		m := compileConflicts("^x", "x", zerolog.Nop())
		snap := takeSnapshot([]Agent{self, ghost}, self, m)

		if len(snap.conflicts) != 0 {
			t.Errorf("conflicts = %v, want empty", snap.conflictNames())
		}
		if _, ok := snap.slots["x"]; !ok {
			t.Error("same-name online record should still count as capacity")
		}
	})

	t.Run("offline agents are invisible", func(t *testing.T) {
		off := &fakeAgent{name: "y1", state: StateOffline, accepting: true, idleSlots: 4}
		m := compileConflicts("^y", "x", zerolog.Nop())
		snap := takeSnapshot([]Agent{self, off}, self, m)

		if len(snap.conflicts) != 0 || len(snap.slots) != 0 {
			t.Errorf("offline agent leaked into snapshot: conflicts=%v slots=%v",
				snap.conflictNames(), snap.slots)
		}
	})

	t.Run("non-accepting agents offer no capacity", func(t *testing.T) {
		o := &fakeAgent{name: "o", state: StateOnline, accepting: false, idleSlots: 2}
		snap := takeSnapshot([]Agent{self, o}, self, conflictMatcher{})
		if len(snap.slots) != 0 {
			t.Errorf("slots = %v, want empty for a non-accepting agent", snap.slots)
		}
	})

	t.Run("idle slot counts are recorded", func(t *testing.T) {
		a := &fakeAgent{name: "a", state: StateOnline, accepting: true, idleSlots: 2}
		b := &fakeAgent{name: "b", state: StateConnecting, accepting: true, idleSlots: 1}
		snap := takeSnapshot([]Agent{self, a, b}, self, conflictMatcher{})
		want := map[string]int{"a": 2, "b": 1}
		if !reflect.DeepEqual(snap.slots, want) {
			t.Errorf("slots = %v, want %v", snap.slots, want)
		}
	})

	t.Run("nil agents are skipped", func(t *testing.T) {
		snap := takeSnapshot([]Agent{self, nil}, self, conflictMatcher{})
		if len(snap.slots) != 0 || len(snap.conflicts) != 0 {
			t.Error("nil agent affected the snapshot")
		}
	})

	t.Run("conflict names come back sorted", func(t *testing.T) {
		b := &fakeAgent{name: "yb", state: StateOnline}
		a := &fakeAgent{name: "ya", state: StateOnline}
		m := compileConflicts("^y", "x", zerolog.Nop())
		snap := takeSnapshot([]Agent{self, b, a}, self, m)
		if got := snap.conflictNames(); !reflect.DeepEqual(got, []string{"ya", "yb"}) {
			t.Errorf("conflictNames = %v, want [ya yb]", got)
		}
	})
}
