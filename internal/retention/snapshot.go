package retention

import "sort"

// snapshot is the per-evaluation view of the rest of the cluster: which
// active agents block the evaluated agent, and how many idle slots the
// non-conflicting ones currently offer. Built fresh at the start of each
// evaluation and discarded at its end; it never aliases live fleet
// records, so mutating it during the demand scan is side-effect free.
type snapshot struct {
	conflicts map[string]struct{}
	slots     map[string]int
	providers map[string]Agent
}

// takeSnapshot scans every other online or connecting agent once. The
// conflict test runs first and independently of the capacity test: an
// agent that is fully busy but matches the pattern still blocks the
// launch, because conflicts are about presence, not spare capacity.
func takeSnapshot(agents []Agent, self Agent, m conflictMatcher) *snapshot {
	snap := &snapshot{
		conflicts: make(map[string]struct{}),
		slots:     make(map[string]int),
		providers: make(map[string]Agent),
	}
	selfName := self.Name()
	for _, o := range agents {
		if o == nil {
			continue
		}
		if o.State() != StateOnline && o.State() != StateConnecting {
			continue
		}
		name := o.Name()
		if m.active() && name != selfName && m.matches(name) {
			snap.conflicts[name] = struct{}{}
		}
		if _, conflicted := snap.conflicts[name]; conflicted {
			continue
		}
		if o.PartiallyIdle() && o.AcceptingTasks() {
			if idle := o.IdleSlots(); idle > 0 {
				snap.slots[name] = idle
				snap.providers[name] = o
			}
		}
	}
	return snap
}

// absorb tries to serve the item from the snapshot's idle capacity,
// decrementing the chosen provider and dropping it once exhausted.
// Providers are tried in sorted name order; the tie-break between
// equally capable providers is deterministic.
func (s *snapshot) absorb(item Item) bool {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if s.providers[name].CanTake(item) != nil {
			continue
		}
		if s.slots[name] > 1 {
			s.slots[name]--
		} else {
			delete(s.slots, name)
			delete(s.providers, name)
		}
		return true
	}
	return false
}

// conflictNames returns the conflicting agent names, sorted.
func (s *snapshot) conflictNames() []string {
	names := make([]string, 0, len(s.conflicts))
	for name := range s.conflicts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
