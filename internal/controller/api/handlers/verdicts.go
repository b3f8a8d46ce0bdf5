package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetkeeper/fleetkeeper/internal/database"
)

// VerdictsHandler reads the persisted decision log.
type VerdictsHandler struct {
	pool *pgxpool.Pool
}

func NewVerdictsHandler(pool *pgxpool.Pool) *VerdictsHandler {
	return &VerdictsHandler{pool: pool}
}

type ListVerdictsInput struct {
	Agent string `query:"agent" doc:"Filter by agent name"`
	Limit int    `query:"limit" doc:"Max rows to return (default 100, cap 500)"`
}

func (h *VerdictsHandler) List(ctx context.Context, input *ListVerdictsInput) (*Reply[[]database.VerdictRow], error) {
	rows, err := database.ListRecentVerdicts(ctx, h.pool, input.Agent, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list verdicts")
	}
	if rows == nil {
		rows = []database.VerdictRow{}
	}
	return OK(rows), nil
}
