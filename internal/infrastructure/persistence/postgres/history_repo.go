package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

type historyRepoPG struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewHistoryRepository creates a PostgreSQL history repository
func NewHistoryRepository(pool *pgxpool.Pool, logger *zap.Logger) port.HistoryRepository {
	return &historyRepoPG{pool: pool, logger: logger}
}

func (r *historyRepoPG) Create(ctx context.Context, h *entity.HistoryEntry) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO case_history (id, case_id, actor_id, previous_status, new_status, action, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		h.ID, h.CaseID, h.ActorID, string(h.PreviousStatus), string(h.NewStatus), h.Action, h.Detail, h.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("case_id", h.CaseID), zap.Error(err))
		return fmt.Errorf("history create: %w", err)
	}
	return nil
}

func (r *historyRepoPG) ListByCase(ctx context.Context, caseID string) ([]*entity.HistoryEntry, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, case_id, actor_id, previous_status, new_status, action, detail, created_at
		FROM case_history WHERE case_id = $1 ORDER BY created_at, seq`, caseID)
	if err != nil {
		return nil, fmt.Errorf("history list: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.HistoryEntry, 0)
	for rows.Next() {
		var (
			h              entity.HistoryEntry
			previous, next string
		)
		if err := rows.Scan(&h.ID, &h.CaseID, &h.ActorID, &previous, &next, &h.Action, &h.Detail, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		h.PreviousStatus = workflow.Status(previous)
		h.NewStatus = workflow.Status(next)
		out = append(out, &h)
	}
	return out, rows.Err()
}
