package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPolicyNotFound is returned when no stored override exists for an agent.
var ErrPolicyNotFound = errors.New("policy not found")

// PolicyRow is a stored per-agent retention override.
type PolicyRow struct {
	AgentName            string    `json:"agent_name"`
	InDemandDelayMinutes int64     `json:"in_demand_delay_minutes"`
	IdleDelayMinutes     int64     `json:"idle_delay_minutes"`
	ConflictsWith        string    `json:"conflicts_with"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func ListPolicies(ctx context.Context, pool *pgxpool.Pool) ([]PolicyRow, error) {
	rows, err := pool.Query(ctx, `
		SELECT agent_name, in_demand_delay_minutes, idle_delay_minutes, conflicts_with, updated_at
		FROM retention_policies
		ORDER BY agent_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var out []PolicyRow
	for rows.Next() {
		var r PolicyRow
		if err := rows.Scan(&r.AgentName, &r.InDemandDelayMinutes, &r.IdleDelayMinutes, &r.ConflictsWith, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func GetPolicy(ctx context.Context, pool *pgxpool.Pool, agentName string) (PolicyRow, error) {
	var r PolicyRow
	err := pool.QueryRow(ctx, `
		SELECT agent_name, in_demand_delay_minutes, idle_delay_minutes, conflicts_with, updated_at
		FROM retention_policies
		WHERE agent_name = $1
	`, agentName).Scan(&r.AgentName, &r.InDemandDelayMinutes, &r.IdleDelayMinutes, &r.ConflictsWith, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PolicyRow{}, ErrPolicyNotFound
	}
	if err != nil {
		return PolicyRow{}, fmt.Errorf("get policy: %w", err)
	}
	return r, nil
}

func UpsertPolicy(ctx context.Context, pool *pgxpool.Pool, r PolicyRow) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO retention_policies (agent_name, in_demand_delay_minutes, idle_delay_minutes, conflicts_with, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (agent_name) DO UPDATE SET
			in_demand_delay_minutes = EXCLUDED.in_demand_delay_minutes,
			idle_delay_minutes = EXCLUDED.idle_delay_minutes,
			conflicts_with = EXCLUDED.conflicts_with,
			updated_at = NOW()
	`, r.AgentName, r.InDemandDelayMinutes, r.IdleDelayMinutes, r.ConflictsWith)
	if err != nil {
		return fmt.Errorf("upsert policy: %w", err)
	}
	return nil
}

func DeletePolicy(ctx context.Context, pool *pgxpool.Pool, agentName string) error {
	tag, err := pool.Exec(ctx, "DELETE FROM retention_policies WHERE agent_name = $1", agentName)
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPolicyNotFound
	}
	return nil
}
