package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fleetkeeper/fleetkeeper/internal/fleet"
)

// AgentsHandler exposes the live fleet state and manual lifecycle
// controls. Every read and mutation happens under the cluster lock.
type AgentsHandler struct {
	store     *fleet.Store
	lifecycle *fleet.Lifecycle
}

func NewAgentsHandler(store *fleet.Store, lifecycle *fleet.Lifecycle) *AgentsHandler {
	return &AgentsHandler{store: store, lifecycle: lifecycle}
}

type AgentDTO struct {
	Name         string    `json:"name" doc:"Agent name"`
	State        string    `json:"state" doc:"offline, connecting or online"`
	Executors    int       `json:"executors" doc:"Total executor slots"`
	Busy         int       `json:"busy" doc:"Occupied executor slots"`
	IdleSlots    int       `json:"idle_slots" doc:"Free executor slots"`
	Labels       []string  `json:"labels" doc:"Capability labels"`
	Launchable   bool      `json:"launchable" doc:"Whether the controller may launch this agent"`
	Accepting    bool      `json:"accepting" doc:"Whether the agent accepts new work"`
	IdleSince    time.Time `json:"idle_since" doc:"When the agent last went fully idle"`
	OfflineCause string    `json:"offline_cause,omitempty" doc:"Reason for the last disconnect"`
}

func agentDTO(a *fleet.Agent) AgentDTO {
	labels := a.Labels()
	sort.Strings(labels)
	return AgentDTO{
		Name:         a.Name(),
		State:        a.State().String(),
		Executors:    a.Executors(),
		Busy:         a.Busy(),
		IdleSlots:    a.IdleSlots(),
		Labels:       labels,
		Launchable:   a.LaunchSupported(),
		Accepting:    a.AcceptingTasks(),
		IdleSince:    a.IdleSince(),
		OfflineCause: a.OfflineCause(),
	}
}

type ListAgentsInput struct{}

type AgentNameInput struct {
	Name string `path:"name" doc:"Agent name"`
}

type DisconnectInput struct {
	Name string `path:"name" doc:"Agent name"`
	Body struct {
		Cause string `json:"cause,omitempty" doc:"Reason to record for the disconnect"`
	}
}

func (h *AgentsHandler) List(ctx context.Context, _ *ListAgentsInput) (*Reply[[]AgentDTO], error) {
	var out []AgentDTO
	h.store.WithLock(func() {
		for _, a := range h.store.Agents() {
			out = append(out, agentDTO(a))
		}
	})
	if out == nil {
		out = []AgentDTO{}
	}
	return OK(out), nil
}

func (h *AgentsHandler) Get(ctx context.Context, input *AgentNameInput) (*Reply[AgentDTO], error) {
	var dto AgentDTO
	var found bool
	h.store.WithLock(func() {
		a, ok := h.store.Agent(input.Name)
		if !ok {
			return
		}
		dto = agentDTO(a)
		found = true
	})
	if !found {
		return nil, huma.Error404NotFound("agent not found")
	}
	return OK(dto), nil
}

func (h *AgentsHandler) Connect(ctx context.Context, input *AgentNameInput) (*MsgReply, error) {
	var found bool
	h.store.WithLock(func() {
		if _, ok := h.store.Agent(input.Name); !ok {
			return
		}
		found = true
		h.lifecycle.Connect(input.Name)
	})
	if !found {
		return nil, huma.Error404NotFound("agent not found")
	}
	return Msg("connect requested"), nil
}

func (h *AgentsHandler) Disconnect(ctx context.Context, input *DisconnectInput) (*MsgReply, error) {
	cause := input.Body.Cause
	if cause == "" {
		cause = "requested by operator"
	}
	var found bool
	h.store.WithLock(func() {
		if _, ok := h.store.Agent(input.Name); !ok {
			return
		}
		found = true
		h.lifecycle.Disconnect(input.Name, cause)
	})
	if !found {
		return nil, huma.Error404NotFound("agent not found")
	}
	return Msg("agent disconnected"), nil
}
