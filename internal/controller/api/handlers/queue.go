package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fleetkeeper/fleetkeeper/internal/event"
	"github.com/fleetkeeper/fleetkeeper/internal/fleet"
	"github.com/fleetkeeper/fleetkeeper/internal/queue"
)

// QueueHandler exposes the pending work queue.
type QueueHandler struct {
	fleet *fleet.Store
	queue *queue.Queue
	bus   event.Bus
}

func NewQueueHandler(fleetStore *fleet.Store, q *queue.Queue, bus event.Bus) *QueueHandler {
	return &QueueHandler{fleet: fleetStore, queue: q, bus: bus}
}

type QueueItemDTO struct {
	ID          string    `json:"id" doc:"Item ID"`
	Labels      []string  `json:"labels" doc:"Labels an agent must carry to run this item"`
	RunFor      string    `json:"run_for" doc:"Simulated execution time once assigned"`
	BuildableAt time.Time `json:"buildable_at" doc:"When the item entered the queue"`
	WaitingFor  string    `json:"waiting_for" doc:"How long the item has been waiting"`
}

type ListQueueInput struct{}

type EnqueueInput struct {
	Body struct {
		Labels []string `json:"labels,omitempty" doc:"Labels an agent must carry to run this item"`
		RunFor string   `json:"run_for,omitempty" doc:"Simulated execution time, e.g. 5m (default 1m)"`
	}
}

func (h *QueueHandler) List(ctx context.Context, _ *ListQueueInput) (*Reply[[]QueueItemDTO], error) {
	now := time.Now()
	var out []QueueItemDTO
	h.fleet.WithLock(func() {
		for _, item := range h.queue.Items() {
			out = append(out, QueueItemDTO{
				ID:          item.ID,
				Labels:      item.Labels,
				RunFor:      item.RunFor.String(),
				BuildableAt: item.BuildableAt,
				WaitingFor:  now.Sub(item.BuildableAt).Truncate(time.Second).String(),
			})
		}
	})
	if out == nil {
		out = []QueueItemDTO{}
	}
	return OK(out), nil
}

func (h *QueueHandler) Enqueue(ctx context.Context, input *EnqueueInput) (*Reply[QueueItemDTO], error) {
	runFor := time.Minute
	if input.Body.RunFor != "" {
		d, err := time.ParseDuration(input.Body.RunFor)
		if err != nil || d <= 0 {
			return nil, huma.Error422UnprocessableEntity("run_for must be a positive duration")
		}
		runFor = d
	}

	now := time.Now()
	var dto QueueItemDTO
	h.fleet.WithLock(func() {
		item := h.queue.Enqueue(input.Body.Labels, runFor, now)
		dto = QueueItemDTO{
			ID:          item.ID,
			Labels:      item.Labels,
			RunFor:      item.RunFor.String(),
			BuildableAt: item.BuildableAt,
			WaitingFor:  "0s",
		}
	})
	h.bus.Publish(ctx, event.Event{
		Type:    event.EventItemEnqueued,
		Payload: event.ItemEvent{ItemID: dto.ID, Labels: dto.Labels},
	})
	return OK(dto), nil
}
