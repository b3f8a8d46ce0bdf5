// Package queue holds the ordered list of buildable work items waiting
// for an agent.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Item is one buildable unit of queued work.
type Item struct {
	ID string

	// Labels the executing agent must carry. Empty means any agent.
	Labels []string

	// RunFor is the simulated execution time once the item is assigned.
	RunFor time.Duration

	// BuildableAt is when the item entered the waiting-to-run state.
	BuildableAt time.Time
}

// BuildableSince reports when the item became buildable.
func (i *Item) BuildableSince() time.Time { return i.BuildableAt }

// RequiredLabels is the item's capability requirement, matched against
// agent labels.
func (i *Item) RequiredLabels() []string { return i.Labels }

// Queue is a FIFO of buildable items. It carries no lock of its own:
// every access runs under the fleet store's cluster scheduling lock,
// the same lock that serializes retention evaluations, so the order the
// retention engine sees is stable for the duration of one tick.
type Queue struct {
	items []*Item
}

func New() *Queue {
	return &Queue{}
}

// Enqueue appends a new buildable item.
func (q *Queue) Enqueue(labels []string, runFor time.Duration, now time.Time) *Item {
	item := &Item{
		ID:          uuid.NewString(),
		Labels:      labels,
		RunFor:      runFor,
		BuildableAt: now,
	}
	q.items = append(q.items, item)
	return item
}

// Remove drops the item with the given ID, keeping order.
func (q *Queue) Remove(id string) bool {
	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Items returns the buildable items in scheduler order. The returned
// slice is a copy; the items are shared.
func (q *Queue) Items() []*Item {
	out := make([]*Item, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Len() int { return len(q.items) }
