package retention

import "time"

// evalDemand walks buildable items in scheduler order, tentatively
// absorbing each into the snapshot's idle capacity. The first item no
// other agent can take but the evaluated agent can decides the verdict:
// its wait so far is the demand duration, and the agent is needed once
// that exceeds the in-demand delay. Items nobody can run are skipped.
//
// The decision is driven by the first qualifying item in scheduler
// order, not the longest-waiting one; that only favors the oldest item
// if the scheduler order is itself age-ordered.
func evalDemand(now time.Time, items []Item, snap *snapshot, self Agent, inDemandDelay time.Duration) (needed bool, demandFor time.Duration) {
	for _, item := range items {
		if item == nil {
			continue
		}
		if snap.absorb(item) {
			// Absorbed elsewhere; no bearing on this agent.
			continue
		}
		if self.CanTake(item) == nil {
			demandFor = now.Sub(item.BuildableSince())
			return demandFor > inDemandDelay, demandFor
		}
	}
	return false, 0
}
