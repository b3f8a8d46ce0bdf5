// Package retention decides, once per tick per agent, whether an
// offline agent should be launched because unmet demand has persisted
// long enough, whether that launch must be suppressed by a conflicting
// active agent, or whether an online-but-idle agent should be
// disconnected.
package retention

import (
	"time"

	"github.com/rs/zerolog"
)

// State is an agent's connectivity state.
type State int

const (
	StateOffline State = iota
	StateConnecting
	StateOnline
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateConnecting:
		return "connecting"
	case StateOnline:
		return "online"
	}
	return "unknown"
}

// Agent is the engine's read-only view of one fleet member.
type Agent interface {
	Name() string
	State() State
	// LaunchSupported reports whether the agent can be brought online
	// programmatically.
	LaunchSupported() bool
	AcceptingTasks() bool
	// IdleSlots is the number of currently unused executors.
	IdleSlots() int
	// Idle reports whether every executor is unused.
	Idle() bool
	// PartiallyIdle reports whether at least one executor is unused.
	PartiallyIdle() bool
	// IdleSince is only meaningful while the agent is online and idle.
	IdleSince() time.Time
	// CanTake returns nil when the agent could run the item, otherwise
	// the rejection reason.
	CanTake(item Item) error
}

// Item is one buildable unit of queued work. Its capability requirement
// is opaque to the engine, tested only through Agent.CanTake.
type Item interface {
	BuildableSince() time.Time
}

// Registry enumerates the fleet.
type Registry interface {
	Agents() []Agent
}

// Queue lists buildable items in scheduler order, assumed stable for
// the duration of one evaluation.
type Queue interface {
	BuildableItems() []Item
}

// Lifecycle receives connect/disconnect requests. Implementations may
// act asynchronously; the engine fires the request and moves on.
type Lifecycle interface {
	Connect(name string)
	Disconnect(name, cause string)
}

// CauseIdleTimeout marks disconnects issued by the idle-delay path.
const CauseIdleTimeout = "idle timeout"

// Verdict is the outcome class of one evaluation.
type Verdict int

const (
	VerdictNoOp Verdict = iota
	VerdictLaunch
	VerdictSuppressed
	VerdictDisconnect
	VerdictDefer
)

func (v Verdict) String() string {
	switch v {
	case VerdictNoOp:
		return "no-op"
	case VerdictLaunch:
		return "launch"
	case VerdictSuppressed:
		return "suppressed-launch"
	case VerdictDisconnect:
		return "disconnect"
	case VerdictDefer:
		return "defer"
	}
	return "unknown"
}

// Result is the outcome of one evaluation.
type Result struct {
	Verdict Verdict

	// Recheck is how long the driver should wait before evaluating this
	// agent again. Whole minutes, at least one.
	Recheck time.Duration

	// DemandFor is how long the deciding queue item had been waiting,
	// set on launch and suppressed-launch verdicts.
	DemandFor time.Duration

	// IdleFor is how long the agent had been idle, set on disconnect
	// and defer verdicts.
	IdleFor time.Duration

	// Conflicts holds the names of the active agents that suppressed
	// the launch, sorted.
	Conflicts []string
}

// Engine evaluates retention policies against live cluster state. All
// collaborators are injected so evaluations can run against fakes.
type Engine struct {
	registry  Registry
	queue     Queue
	lifecycle Lifecycle
	log       zerolog.Logger
	now       func() time.Time
}

func NewEngine(registry Registry, queue Queue, lifecycle Lifecycle, logger zerolog.Logger) *Engine {
	return &Engine{
		registry:  registry,
		queue:     queue,
		lifecycle: lifecycle,
		log:       logger,
		now:       time.Now,
	}
}

// Check evaluates one agent against its policy and issues at most one
// lifecycle action. The caller must hold the cluster scheduling lock
// for the whole call: the capacity simulation is only a valid stand-in
// for real assignment while nothing else can reassign slots or mutate
// the queue mid-scan. Check never panics and never returns an error;
// irregular input degrades into a no-op for the affected part.
func (e *Engine) Check(a Agent, pol Policy) Result {
	if a == nil {
		return Result{Verdict: VerdictNoOp, Recheck: DefaultRecheck}
	}
	switch {
	case a.State() == StateOffline && a.LaunchSupported():
		return e.checkOffline(a, pol)
	case a.State() == StateOnline && a.Idle():
		return e.checkIdle(a, pol)
	}
	return Result{Verdict: VerdictNoOp, Recheck: DefaultRecheck}
}

func (e *Engine) checkOffline(a Agent, pol Policy) Result {
	m := compileConflicts(pol.ConflictsWith, a.Name(), e.log)
	snap := takeSnapshot(e.registry.Agents(), a, m)
	needed, demandFor := evalDemand(e.now(), e.queue.BuildableItems(), snap, a, pol.InDemandDelay)

	res := Result{Verdict: VerdictNoOp, Recheck: DefaultRecheck, DemandFor: demandFor}
	if !needed {
		return res
	}

	if len(snap.conflicts) > 0 {
		res.Verdict = VerdictSuppressed
		res.Conflicts = snap.conflictNames()
		e.log.Warn().
			Str("agent", a.Name()).
			Dur("in_demand_for", demandFor).
			Str("conflicts_with", pol.ConflictsWith).
			Strs("conflicting", res.Conflicts).
			Msg("launch suppressed by conflicting active agents")
		return res
	}

	res.Verdict = VerdictLaunch
	ev := e.log.Info().
		Str("agent", a.Name()).
		Dur("in_demand_for", demandFor)
	if m.active() {
		// Worth noting for the operator that the pattern was checked
		// and found nothing.
		ev = ev.Str("conflicts_with", pol.ConflictsWith).Bool("conflicts_found", false)
	}
	ev.Msg("launching agent on sustained demand")
	e.lifecycle.Connect(a.Name())
	return res
}

func (e *Engine) checkIdle(a Agent, pol Policy) Result {
	idleFor := e.now().Sub(a.IdleSince())
	if idleFor > pol.IdleDelay {
		e.log.Info().
			Str("agent", a.Name()).
			Dur("idle_for", idleFor).
			Msg("disconnecting idle agent")
		e.lifecycle.Disconnect(a.Name(), CauseIdleTimeout)
		return Result{Verdict: VerdictDisconnect, Recheck: DefaultRecheck, IdleFor: idleFor}
	}
	// No point re-checking before the idle delay can possibly elapse.
	return Result{
		Verdict: VerdictDefer,
		Recheck: ceilMinutes(pol.IdleDelay - idleFor),
		IdleFor: idleFor,
	}
}

// ceilMinutes rounds up to whole minutes, never below one.
func ceilMinutes(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultRecheck
	}
	m := (d + time.Minute - 1) / time.Minute
	return m * time.Minute
}
