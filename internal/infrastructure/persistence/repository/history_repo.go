package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, h *entity.HistoryEntry) error {
	query := `
		INSERT INTO case_history (
			id, case_id, actor_id, previous_status, new_status,
			action, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		h.ID,
		h.CaseID,
		h.ActorID,
		string(h.PreviousStatus),
		string(h.NewStatus),
		h.Action,
		h.Detail,
		formatTime(h.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("case_id", h.CaseID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	return nil
}

// ListByCase retrieves all history records for a case, oldest first
func (r *HistoryRepository) ListByCase(ctx context.Context, caseID string) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT id, case_id, actor_id, previous_status, new_status,
			action, detail, created_at
		FROM case_history
		WHERE case_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, caseID)
	if err != nil {
		r.logger.Error("Failed to get history by case ID", zap.String("case_id", caseID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := make([]*entity.HistoryEntry, 0)
	for rows.Next() {
		var (
			h        entity.HistoryEntry
			previous string
			next     string
		)
		err := rows.Scan(
			&h.ID,
			&h.CaseID,
			&h.ActorID,
			&previous,
			&next,
			&h.Action,
			&h.Detail,
			&h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		h.PreviousStatus = workflow.Status(previous)
		h.NewStatus = workflow.Status(next)
		h.CreatedAt = utc(h.CreatedAt)
		records = append(records, &h)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
