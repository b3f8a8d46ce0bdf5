// Package event is the in-process pub/sub channel between the tick
// loop, the dispatcher and the API layer.
package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Handler func(ctx context.Context, event Event) error

type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler Handler) (unsubscribe func())
}

// NewBus creates an in-process event bus. Handlers run synchronously in
// subscription order; a failing handler is logged and does not stop the
// rest.
func NewBus() Bus {
	return &inProcessBus{subs: make(map[EventType]map[uint64]Handler)}
}

type inProcessBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventType]map[uint64]Handler
}

func (b *inProcessBus) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	ids := make([]uint64, 0, len(b.subs[event.Type]))
	for id := range b.subs[event.Type] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = b.subs[event.Type][id]
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			log.Error().Err(err).
				Str("event", string(event.Type)).
				Msg("event handler error")
		}
	}
	return nil
}

func (b *inProcessBus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]Handler)
	}
	b.subs[eventType][id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs[eventType], id)
		b.mu.Unlock()
	}
}
