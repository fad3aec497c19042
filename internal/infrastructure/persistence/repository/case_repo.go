// Package repository holds the SQLite implementations of the application ports.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/persistence/record"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/persistence/sqlite"
)

const caseColumns = `id, kind, patient, insurance, prescription, vaccine_appointment,
	current_stage, status, entered_workflow_at, current_stage_entered_at,
	assigned_to_user_id, assigned_by_user_id, notes, priority, completed_at,
	version, created_at, updated_at`

// CaseRepository implements port.CaseRepository
type CaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *sql.DB, logger *zap.Logger) port.CaseRepository {
	return &CaseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new case
func (r *CaseRepository) Create(ctx context.Context, c *entity.Case) error {
	rec, err := record.FromCase(c)
	if err != nil {
		return err
	}

	query := `INSERT INTO cases (` + caseColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		rec.ID,
		rec.Kind,
		rec.Patient,
		rec.Insurance,
		rec.Prescription,
		rec.VaccineAppointment,
		rec.CurrentStage,
		rec.Status,
		formatTime(rec.EnteredWorkflowAt),
		formatTime(rec.CurrentStageEnteredAt),
		rec.AssignedToUserID,
		rec.AssignedByUserID,
		rec.Notes,
		rec.Priority,
		formatOptionalTime(rec.CompletedAt),
		rec.Version,
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create case", zap.String("case_id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to create case: %w", err)
	}

	return nil
}

// GetByID retrieves a case by ID
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = ?`

	c, err := scanCase(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: case %q", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get case", zap.String("case_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	return c, nil
}

// Save writes the case if the stored version still equals expectedVersion
func (r *CaseRepository) Save(ctx context.Context, c *entity.Case, expectedVersion int64) error {
	rec, err := record.FromCase(c)
	if err != nil {
		return err
	}

	query := `
		UPDATE cases SET
			patient = ?, insurance = ?, prescription = ?, vaccine_appointment = ?,
			current_stage = ?, status = ?, current_stage_entered_at = ?,
			assigned_to_user_id = ?, assigned_by_user_id = ?, notes = ?, priority = ?,
			completed_at = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	exec := r.getExecutor(ctx)
	result, err := exec.ExecContext(ctx, query,
		rec.Patient,
		rec.Insurance,
		rec.Prescription,
		rec.VaccineAppointment,
		rec.CurrentStage,
		rec.Status,
		formatTime(rec.CurrentStageEnteredAt),
		rec.AssignedToUserID,
		rec.AssignedByUserID,
		rec.Notes,
		rec.Priority,
		formatOptionalTime(rec.CompletedAt),
		expectedVersion+1,
		formatTime(rec.UpdatedAt),
		rec.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to save case", zap.String("case_id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to save case: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		err := exec.QueryRowContext(ctx, `SELECT 1 FROM cases WHERE id = ?`, c.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: case %q", workflow.ErrNotFound, c.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to check case: %w", err)
		}
		return fmt.Errorf("%w: case %q changed since version %d", workflow.ErrConcurrentModification, c.ID, expectedVersion)
	}

	c.Version = expectedVersion + 1
	return nil
}

// List returns cases matching the filter, priority first then oldest in stage
func (r *CaseRepository) List(ctx context.Context, filter port.CaseFilter) ([]*entity.Case, error) {
	var (
		where []string
		args  []interface{}
	)

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Stage != "" {
		where = append(where, "current_stage = ?")
		args = append(args, string(filter.Stage))
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.AssignedToUserID != "" {
		where = append(where, "assigned_to_user_id = ?")
		args = append(args, filter.AssignedToUserID)
	}
	if filter.PriorityOnly {
		where = append(where, "priority = 1")
	}

	query := `SELECT ` + caseColumns + ` FROM cases`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY priority DESC, current_stage_entered_at ASC, id ASC"

	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit == 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list cases", zap.Error(err))
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	cases := make([]*entity.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCase(row rowScanner) (*entity.Case, error) {
	var (
		rec         record.CaseRecord
		completedAt sql.NullTime
	)

	err := row.Scan(
		&rec.ID,
		&rec.Kind,
		&rec.Patient,
		&rec.Insurance,
		&rec.Prescription,
		&rec.VaccineAppointment,
		&rec.CurrentStage,
		&rec.Status,
		&rec.EnteredWorkflowAt,
		&rec.CurrentStageEnteredAt,
		&rec.AssignedToUserID,
		&rec.AssignedByUserID,
		&rec.Notes,
		&rec.Priority,
		&completedAt,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := utc(completedAt.Time)
		rec.CompletedAt = &t
	}
	rec.EnteredWorkflowAt = utc(rec.EnteredWorkflowAt)
	rec.CurrentStageEnteredAt = utc(rec.CurrentStageEnteredAt)
	rec.CreatedAt = utc(rec.CreatedAt)
	rec.UpdatedAt = utc(rec.UpdatedAt)

	return rec.ToCase()
}

// getExecutor returns appropriate executor based on context
func (r *CaseRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.CaseRepository = (*CaseRepository)(nil)
