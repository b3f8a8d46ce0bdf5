package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/fleetkeeper/fleetkeeper/internal/database"
	"github.com/fleetkeeper/fleetkeeper/internal/fleet"
	"github.com/fleetkeeper/fleetkeeper/internal/policy"
	"github.com/fleetkeeper/fleetkeeper/internal/retention"
)

// PoliciesHandler edits per-agent retention overrides. Writes go to the
// in-memory policy store first (that is what the tick loop reads) and
// are then persisted so they survive a restart.
type PoliciesHandler struct {
	fleet    *fleet.Store
	policies *policy.Store
	pool     *pgxpool.Pool
}

func NewPoliciesHandler(fleetStore *fleet.Store, policies *policy.Store, pool *pgxpool.Pool) *PoliciesHandler {
	return &PoliciesHandler{fleet: fleetStore, policies: policies, pool: pool}
}

type PolicyDTO struct {
	AgentName            string `json:"agent_name" doc:"Agent the policy applies to"`
	InDemandDelayMinutes int64  `json:"in_demand_delay_minutes" doc:"Sustained demand required before a launch"`
	IdleDelayMinutes     int64  `json:"idle_delay_minutes" doc:"Idle time tolerated before a disconnect"`
	ConflictsWith        string `json:"conflicts_with" doc:"Regex matched against other agents' names"`
	Override             bool   `json:"override" doc:"False when the fleet-wide default applies"`
}

func policyDTO(name string, p retention.Policy, override bool) PolicyDTO {
	return PolicyDTO{
		AgentName:            name,
		InDemandDelayMinutes: int64(p.InDemandDelay / time.Minute),
		IdleDelayMinutes:     int64(p.IdleDelay / time.Minute),
		ConflictsWith:        p.ConflictsWith,
		Override:             override,
	}
}

type GetPolicyInput struct {
	Name string `path:"name" doc:"Agent name"`
}

type PutPolicyInput struct {
	Name string `path:"name" doc:"Agent name"`
	Body struct {
		InDemandDelayMinutes int64  `json:"in_demand_delay_minutes" minimum:"0" doc:"Sustained demand required before a launch"`
		IdleDelayMinutes     int64  `json:"idle_delay_minutes" minimum:"1" doc:"Idle time tolerated before a disconnect"`
		ConflictsWith        string `json:"conflicts_with,omitempty" doc:"Regex matched against other agents' names"`
	}
}

type ValidatePatternInput struct {
	Body struct {
		Pattern string `json:"pattern" doc:"Regex to validate"`
	}
}

type ValidatePatternDTO struct {
	Pattern string `json:"pattern" doc:"The validated pattern"`
	Valid   bool   `json:"valid" doc:"Whether the pattern compiles"`
	Error   string `json:"error,omitempty" doc:"Compile error when invalid"`
}

func (h *PoliciesHandler) knownAgent(name string) bool {
	var ok bool
	h.fleet.WithLock(func() {
		_, ok = h.fleet.Agent(name)
	})
	return ok
}

func (h *PoliciesHandler) Get(ctx context.Context, input *GetPolicyInput) (*Reply[PolicyDTO], error) {
	if !h.knownAgent(input.Name) {
		return nil, huma.Error404NotFound("agent not found")
	}
	_, override := h.policies.Override(input.Name)
	return OK(policyDTO(input.Name, h.policies.PolicyFor(input.Name), override)), nil
}

func (h *PoliciesHandler) Put(ctx context.Context, input *PutPolicyInput) (*Reply[PolicyDTO], error) {
	if !h.knownAgent(input.Name) {
		return nil, huma.Error404NotFound("agent not found")
	}
	if err := retention.ValidateConflictPattern(input.Body.ConflictsWith); err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid conflicts_with pattern", err)
	}

	p := retention.NewPolicy(
		time.Duration(input.Body.InDemandDelayMinutes)*time.Minute,
		time.Duration(input.Body.IdleDelayMinutes)*time.Minute,
		input.Body.ConflictsWith,
	)
	h.policies.Set(input.Name, p)

	if err := database.UpsertPolicy(ctx, h.pool, database.PolicyRow{
		AgentName:            input.Name,
		InDemandDelayMinutes: int64(p.InDemandDelay / time.Minute),
		IdleDelayMinutes:     int64(p.IdleDelay / time.Minute),
		ConflictsWith:        p.ConflictsWith,
	}); err != nil {
		log.Error().Err(err).Str("agent", input.Name).Msg("failed to persist policy")
		return nil, huma.Error500InternalServerError("failed to persist policy")
	}

	return OK(policyDTO(input.Name, p, true)), nil
}

func (h *PoliciesHandler) Delete(ctx context.Context, input *GetPolicyInput) (*MsgReply, error) {
	if !h.knownAgent(input.Name) {
		return nil, huma.Error404NotFound("agent not found")
	}
	h.policies.Delete(input.Name)
	if err := database.DeletePolicy(ctx, h.pool, input.Name); err != nil && !errors.Is(err, database.ErrPolicyNotFound) {
		log.Error().Err(err).Str("agent", input.Name).Msg("failed to delete stored policy")
		return nil, huma.Error500InternalServerError("failed to delete stored policy")
	}
	return Msg("policy override removed, default applies"), nil
}

// ValidatePattern checks a conflict regex without storing anything.
func (h *PoliciesHandler) ValidatePattern(ctx context.Context, input *ValidatePatternInput) (*Reply[ValidatePatternDTO], error) {
	dto := ValidatePatternDTO{Pattern: input.Body.Pattern, Valid: true}
	if err := retention.ValidateConflictPattern(input.Body.Pattern); err != nil {
		dto.Valid = false
		dto.Error = err.Error()
	}
	return OK(dto), nil
}
