package fleet

import (
	"context"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/event"
	"github.com/fleetkeeper/fleetkeeper/internal/retention"
	"github.com/rs/zerolog/log"
)

// Lifecycle applies connect/disconnect requests to the fleet. Connect
// behaves like a real agent attach: the record flips to Connecting
// immediately and comes Online after the configured connect delay, off
// the caller's goroutine. Requests are fire-and-forget from the
// retention engine's point of view.
//
// Connect and Disconnect must be called with the cluster lock held;
// the delayed online transition re-acquires it on its own.
type Lifecycle struct {
	store        *Store
	bus          event.Bus
	connectDelay time.Duration
	now          func() time.Time
}

func NewLifecycle(store *Store, bus event.Bus, connectDelay time.Duration) *Lifecycle {
	return &Lifecycle{
		store:        store,
		bus:          bus,
		connectDelay: connectDelay,
		now:          time.Now,
	}
}

func (l *Lifecycle) Connect(name string) {
	a, ok := l.store.Agent(name)
	if !ok {
		log.Warn().Str("agent", name).Msg("connect requested for unknown agent")
		return
	}
	a.MarkConnecting()
	l.bus.Publish(context.Background(), event.Event{
		Type:    event.EventAgentConnecting,
		Payload: event.AgentEvent{Agent: name},
	})

	time.AfterFunc(l.connectDelay, func() {
		l.store.WithLock(func() {
			a, ok := l.store.Agent(name)
			if !ok || a.State() != retention.StateConnecting {
				return
			}
			a.MarkOnline(l.now())
		})
		log.Info().Str("agent", name).Msg("agent online")
		l.bus.Publish(context.Background(), event.Event{
			Type:    event.EventAgentOnline,
			Payload: event.AgentEvent{Agent: name},
		})
	})
}

func (l *Lifecycle) Disconnect(name, cause string) {
	a, ok := l.store.Agent(name)
	if !ok {
		log.Warn().Str("agent", name).Msg("disconnect requested for unknown agent")
		return
	}
	a.MarkOffline(cause, l.now())
	l.bus.Publish(context.Background(), event.Event{
		Type:    event.EventAgentOffline,
		Payload: event.AgentEvent{Agent: name, Cause: cause},
	})
}
