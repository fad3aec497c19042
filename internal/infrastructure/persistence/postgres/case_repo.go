package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/persistence/record"
)

const caseCols = `id, kind, patient, insurance, prescription, vaccine_appointment,
	current_stage, status, entered_workflow_at, current_stage_entered_at,
	assigned_to_user_id, assigned_by_user_id, notes, priority, completed_at,
	version, created_at, updated_at`

type caseRepoPG struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewCaseRepository creates a PostgreSQL case repository
func NewCaseRepository(pool *pgxpool.Pool, logger *zap.Logger) port.CaseRepository {
	return &caseRepoPG{pool: pool, logger: logger}
}

func (r *caseRepoPG) Create(ctx context.Context, c *entity.Case) error {
	rec, err := record.FromCase(c)
	if err != nil {
		return err
	}

	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO cases (`+caseCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		rec.ID, rec.Kind, rec.Patient, rec.Insurance, rec.Prescription, rec.VaccineAppointment,
		rec.CurrentStage, rec.Status, rec.EnteredWorkflowAt, rec.CurrentStageEnteredAt,
		rec.AssignedToUserID, rec.AssignedByUserID, rec.Notes, rec.Priority, rec.CompletedAt,
		rec.Version, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create case", zap.String("case_id", c.ID), zap.Error(err))
		return fmt.Errorf("case create: %w", err)
	}
	return nil
}

func (r *caseRepoPG) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	c, err := scanCase(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+caseCols+` FROM cases WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: case %q", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get case", zap.String("case_id", id), zap.Error(err))
		return nil, fmt.Errorf("case get: %w", err)
	}
	return c, nil
}

func (r *caseRepoPG) Save(ctx context.Context, c *entity.Case, expectedVersion int64) error {
	rec, err := record.FromCase(c)
	if err != nil {
		return err
	}

	q := conn(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE cases SET
			patient = $1, insurance = $2, prescription = $3, vaccine_appointment = $4,
			current_stage = $5, status = $6, current_stage_entered_at = $7,
			assigned_to_user_id = $8, assigned_by_user_id = $9, notes = $10, priority = $11,
			completed_at = $12, version = $13, updated_at = $14
		WHERE id = $15 AND version = $16`,
		rec.Patient, rec.Insurance, rec.Prescription, rec.VaccineAppointment,
		rec.CurrentStage, rec.Status, rec.CurrentStageEnteredAt,
		rec.AssignedToUserID, rec.AssignedByUserID, rec.Notes, rec.Priority,
		rec.CompletedAt, expectedVersion+1, rec.UpdatedAt,
		rec.ID, expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to save case", zap.String("case_id", c.ID), zap.Error(err))
		return fmt.Errorf("case save: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cases WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
			return fmt.Errorf("case save: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: case %q", workflow.ErrNotFound, c.ID)
		}
		return fmt.Errorf("%w: case %q changed since version %d", workflow.ErrConcurrentModification, c.ID, expectedVersion)
	}

	c.Version = expectedVersion + 1
	return nil
}

func (r *caseRepoPG) List(ctx context.Context, filter port.CaseFilter) ([]*entity.Case, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if filter.Stage != "" {
		where = append(where, "current_stage = "+arg(string(filter.Stage)))
	}
	if filter.Kind != "" {
		where = append(where, "kind = "+arg(string(filter.Kind)))
	}
	if filter.AssignedToUserID != "" {
		where = append(where, "assigned_to_user_id = "+arg(filter.AssignedToUserID))
	}
	if filter.PriorityOnly {
		where = append(where, "priority")
	}

	query := `SELECT ` + caseCols + ` FROM cases`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY priority DESC, current_stage_entered_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list cases", zap.Error(err))
		return nil, fmt.Errorf("case list: %w", err)
	}
	defer rows.Close()

	cases := make([]*entity.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("case scan: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func scanCase(row pgx.Row) (*entity.Case, error) {
	var rec record.CaseRecord
	err := row.Scan(
		&rec.ID, &rec.Kind, &rec.Patient, &rec.Insurance, &rec.Prescription, &rec.VaccineAppointment,
		&rec.CurrentStage, &rec.Status, &rec.EnteredWorkflowAt, &rec.CurrentStageEnteredAt,
		&rec.AssignedToUserID, &rec.AssignedByUserID, &rec.Notes, &rec.Priority, &rec.CompletedAt,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec.ToCase()
}
