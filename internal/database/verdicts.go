package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VerdictRow is one persisted retention decision.
type VerdictRow struct {
	ID          string    `json:"id"`
	AgentName   string    `json:"agent_name"`
	Verdict     string    `json:"verdict"`
	DemandForMs int64     `json:"demand_for_ms"`
	IdleForMs   int64     `json:"idle_for_ms"`
	Conflicts   []string  `json:"conflicts"`
	CreatedAt   time.Time `json:"created_at"`
}

func InsertVerdict(ctx context.Context, pool *pgxpool.Pool, r VerdictRow) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Conflicts == nil {
		r.Conflicts = []string{}
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO verdict_log (id, agent_name, verdict, demand_for_ms, idle_for_ms, conflicts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.AgentName, r.Verdict, r.DemandForMs, r.IdleForMs, r.Conflicts)
	if err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	return nil
}

// ListRecentVerdicts returns the newest verdicts first, optionally filtered
// by agent name.
func ListRecentVerdicts(ctx context.Context, pool *pgxpool.Pool, agentName string, limit int) ([]VerdictRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := pool.Query(ctx, `
		SELECT id, agent_name, verdict, demand_for_ms, idle_for_ms, conflicts, created_at
		FROM verdict_log
		WHERE ($1 = '' OR agent_name = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, agentName, limit)
	if err != nil {
		return nil, fmt.Errorf("list verdicts: %w", err)
	}
	defer rows.Close()

	var out []VerdictRow
	for rows.Next() {
		var r VerdictRow
		if err := rows.Scan(&r.ID, &r.AgentName, &r.Verdict, &r.DemandForMs, &r.IdleForMs, &r.Conflicts, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
