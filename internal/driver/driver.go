// Package driver runs the periodic scheduling tick: dispatch first,
// then retention evaluations for every agent whose re-check deadline
// has passed.
package driver

import (
	"context"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/dispatch"
	"github.com/fleetkeeper/fleetkeeper/internal/event"
	"github.com/fleetkeeper/fleetkeeper/internal/fleet"
	"github.com/fleetkeeper/fleetkeeper/internal/policy"
	"github.com/fleetkeeper/fleetkeeper/internal/queue"
	"github.com/fleetkeeper/fleetkeeper/internal/retention"
	"github.com/rs/zerolog/log"
)

// registryView adapts the fleet store to the engine's Registry. Only
// used while the cluster lock is held.
type registryView struct{ store *fleet.Store }

func (v registryView) Agents() []retention.Agent {
	agents := v.store.Agents()
	out := make([]retention.Agent, len(agents))
	for i, a := range agents {
		out[i] = a
	}
	return out
}

// queueView adapts the buildable queue to the engine's Queue.
type queueView struct{ queue *queue.Queue }

func (v queueView) BuildableItems() []retention.Item {
	items := v.queue.Items()
	out := make([]retention.Item, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

type Driver struct {
	store    *fleet.Store
	queue    *queue.Queue
	engine   *retention.Engine
	policies *policy.Store
	assigner *dispatch.Assigner
	bus      event.Bus
	interval time.Duration
	now      func() time.Time

	// nextCheck holds per-agent re-check deadlines. Evaluating earlier
	// than the deadline is harmless (state is read fresh), deadlines
	// only stop the loop from busy-polling.
	nextCheck map[string]time.Time
}

func New(store *fleet.Store, q *queue.Queue, lifecycle retention.Lifecycle,
	policies *policy.Store, assigner *dispatch.Assigner, bus event.Bus,
	interval time.Duration) *Driver {

	d := &Driver{
		store:     store,
		queue:     q,
		policies:  policies,
		assigner:  assigner,
		bus:       bus,
		interval:  interval,
		now:       time.Now,
		nextCheck: make(map[string]time.Time),
	}
	d.engine = retention.NewEngine(registryView{store}, queueView{q}, lifecycle, log.Logger)
	return d
}

// Run ticks until the context is cancelled.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one dispatch pass and the due retention evaluations as a
// single critical section under the cluster lock.
func (d *Driver) Tick(ctx context.Context) {
	var verdicts []event.VerdictEvent
	d.store.WithLock(func() {
		d.assigner.RunOnce()

		now := d.now()
		for _, a := range d.store.Agents() {
			name := a.Name()
			if due, ok := d.nextCheck[name]; ok && now.Before(due) {
				continue
			}
			res := d.engine.Check(a, d.policies.PolicyFor(name))
			d.nextCheck[name] = now.Add(res.Recheck)

			if res.Verdict == retention.VerdictNoOp || res.Verdict == retention.VerdictDefer {
				continue
			}
			verdicts = append(verdicts, event.VerdictEvent{
				Agent:     name,
				Verdict:   res.Verdict.String(),
				DemandFor: res.DemandFor,
				IdleFor:   res.IdleFor,
				Recheck:   res.Recheck,
				Conflicts: res.Conflicts,
			})
		}
	})

	// Published outside the lock; subscribers may touch the database.
	for _, v := range verdicts {
		d.bus.Publish(ctx, event.Event{Type: event.EventVerdict, Payload: v})
	}
}
