package retention

import (
	"strings"
	"time"
)

// DefaultRecheck is the floor on the re-check delay handed back to the
// tick driver; the driver never needs sub-minute resolution.
const DefaultRecheck = time.Minute

// Policy is the per-agent retention configuration.
type Policy struct {
	// InDemandDelay is how long unmet demand must persist before the
	// agent may be launched.
	InDemandDelay time.Duration

	// IdleDelay is how long the agent must sit fully idle before it is
	// disconnected. Always at least one minute.
	IdleDelay time.Duration

	// ConflictsWith is an optional regex over agent names. While any
	// other online or connecting agent matches it, this agent is not
	// launched. Empty disables conflict checking.
	//
	// The check is one-way: it only answers "may this agent start".
	// Mutual exclusion requires both agents to name each other.
	ConflictsWith string
}

// NewPolicy clamps the delays to their floors (in-demand >= 0, idle >= 1
// minute) and trims the conflict pattern.
func NewPolicy(inDemandDelay, idleDelay time.Duration, conflictsWith string) Policy {
	if inDemandDelay < 0 {
		inDemandDelay = 0
	}
	if idleDelay < time.Minute {
		idleDelay = time.Minute
	}
	return Policy{
		InDemandDelay: inDemandDelay,
		IdleDelay:     idleDelay,
		ConflictsWith: strings.TrimSpace(conflictsWith),
	}
}
