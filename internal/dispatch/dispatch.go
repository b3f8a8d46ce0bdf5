// Package dispatch assigns buildable items to online agents with spare
// capacity. It is the real-assignment counterpart of the tentative
// simulation the retention engine runs per evaluation.
package dispatch

import (
	"context"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/event"
	"github.com/fleetkeeper/fleetkeeper/internal/fleet"
	"github.com/fleetkeeper/fleetkeeper/internal/queue"
	"github.com/fleetkeeper/fleetkeeper/internal/retention"
	"github.com/rs/zerolog/log"
)

type Assigner struct {
	store *fleet.Store
	queue *queue.Queue
	bus   event.Bus
	now   func() time.Time
}

func NewAssigner(store *fleet.Store, q *queue.Queue, bus event.Bus) *Assigner {
	return &Assigner{store: store, queue: q, bus: bus, now: time.Now}
}

// RunOnce walks the buildable queue in scheduler order and starts each
// item on the first capable agent, by agent-name order — the same
// tie-break the retention engine simulates with. Must be called with
// the cluster lock held.
func (d *Assigner) RunOnce() {
	for _, item := range d.queue.Items() {
		agent := d.pick(item)
		if agent == nil {
			continue
		}
		if !agent.Assign() {
			continue
		}
		d.queue.Remove(item.ID)
		d.start(agent, item)
	}
}

func (d *Assigner) pick(item *queue.Item) *fleet.Agent {
	for _, a := range d.store.Agents() {
		if a.State() != retention.StateOnline || !a.AcceptingTasks() {
			continue
		}
		if a.IdleSlots() <= 0 {
			continue
		}
		if a.CanTake(item) != nil {
			continue
		}
		return a
	}
	return nil
}

// start runs the item for its simulated duration, then frees the slot.
func (d *Assigner) start(agent *fleet.Agent, item *queue.Item) {
	name := agent.Name()
	log.Debug().
		Str("agent", name).
		Str("item", item.ID).
		Dur("run_for", item.RunFor).
		Msg("item assigned")
	d.bus.Publish(context.Background(), event.Event{
		Type:    event.EventItemAssigned,
		Payload: event.ItemEvent{ItemID: item.ID, Agent: name, Labels: item.Labels},
	})

	time.AfterFunc(item.RunFor, func() {
		d.store.WithLock(func() {
			if a, ok := d.store.Agent(name); ok {
				a.Release(d.now())
			}
		})
		d.bus.Publish(context.Background(), event.Event{
			Type:    event.EventItemCompleted,
			Payload: event.ItemEvent{ItemID: item.ID, Agent: name, Labels: item.Labels},
		})
	})
}
