// Package fleet holds the live state of every known build agent and the
// cluster-wide scheduling lock that serializes all scheduling decisions
// against it.
package fleet

import (
	"errors"
	"fmt"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/retention"
)

// AgentConfig describes one statically configured fleet member.
type AgentConfig struct {
	Name       string   `koanf:"name"`
	Executors  int      `koanf:"executors"`
	Labels     []string `koanf:"labels"`
	Launchable bool     `koanf:"launchable"`
	Accepting  bool     `koanf:"accepting"`
}

// ErrNoExecutors rejects capability checks against an agent configured
// without executors.
var ErrNoExecutors = errors.New("agent has no executors")

// Agent is one fleet member's live record. Every field is guarded by
// the store's cluster lock; none of the methods lock on their own.
type Agent struct {
	name         string
	state        retention.State
	launchable   bool
	accepting    bool
	executors    int
	busy         int
	labels       map[string]struct{}
	idleSince    time.Time
	offlineCause string
}

func newAgent(cfg AgentConfig, now time.Time) *Agent {
	labels := make(map[string]struct{}, len(cfg.Labels))
	for _, l := range cfg.Labels {
		labels[l] = struct{}{}
	}
	return &Agent{
		name:       cfg.Name,
		state:      retention.StateOffline,
		launchable: cfg.Launchable,
		accepting:  cfg.Accepting,
		executors:  cfg.Executors,
		labels:     labels,
		idleSince:  now,
	}
}

func (a *Agent) Name() string           { return a.name }
func (a *Agent) State() retention.State { return a.state }
func (a *Agent) LaunchSupported() bool  { return a.launchable }
func (a *Agent) AcceptingTasks() bool   { return a.accepting }
func (a *Agent) IdleSlots() int         { return a.executors - a.busy }
func (a *Agent) Idle() bool             { return a.busy == 0 }
func (a *Agent) PartiallyIdle() bool    { return a.executors-a.busy > 0 }
func (a *Agent) IdleSince() time.Time   { return a.idleSince }
func (a *Agent) OfflineCause() string   { return a.offlineCause }
func (a *Agent) Executors() int         { return a.executors }
func (a *Agent) Busy() int              { return a.busy }

// Labels returns the agent's label set as a slice, unordered.
func (a *Agent) Labels() []string {
	out := make([]string, 0, len(a.labels))
	for l := range a.labels {
		out = append(out, l)
	}
	return out
}

// CanTake reports whether this agent could run the item: nil to accept,
// otherwise the rejection reason. An item without a capability
// descriptor is rejected rather than failing the caller's scan.
func (a *Agent) CanTake(item retention.Item) error {
	if a.executors == 0 {
		return ErrNoExecutors
	}
	req, ok := item.(interface{ RequiredLabels() []string })
	if !ok {
		return errors.New("item carries no capability requirement")
	}
	for _, l := range req.RequiredLabels() {
		if _, ok := a.labels[l]; !ok {
			return fmt.Errorf("agent lacks label %q", l)
		}
	}
	return nil
}

// State transitions, called under the cluster lock.

func (a *Agent) MarkConnecting() {
	a.state = retention.StateConnecting
	a.offlineCause = ""
}

func (a *Agent) MarkOnline(now time.Time) {
	a.state = retention.StateOnline
	a.busy = 0
	a.idleSince = now
	a.offlineCause = ""
}

func (a *Agent) MarkOffline(cause string, now time.Time) {
	a.state = retention.StateOffline
	a.busy = 0
	a.idleSince = now
	a.offlineCause = cause
}

// Assign occupies one executor. Reports false when no slot is free.
// Caller must hold the cluster lock.
func (a *Agent) Assign() bool {
	if a.busy >= a.executors {
		return false
	}
	a.busy++
	return true
}

// Release frees one executor and restamps idleSince when the agent goes
// fully idle again. Caller must hold the cluster lock.
func (a *Agent) Release(now time.Time) {
	if a.busy > 0 {
		a.busy--
	}
	if a.busy == 0 {
		a.idleSince = now
	}
}
