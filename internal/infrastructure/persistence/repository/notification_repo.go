package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/persistence/sqlite"
)

const notificationColumns = `id, case_id, case_kind, recipient_phone, message, status,
	error_message, sent_at, created_at, updated_at`

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a notification for an existing case
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	exec := r.getExecutor(ctx)

	var exists int
	err := exec.QueryRowContext(ctx, `SELECT 1 FROM cases WHERE id = ?`, n.CaseID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: case %q", workflow.ErrNotFound, n.CaseID)
	}
	if err != nil {
		return fmt.Errorf("failed to check case: %w", err)
	}

	query := `INSERT INTO notifications (` + notificationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = exec.ExecContext(ctx, query,
		n.ID,
		n.CaseID,
		string(n.CaseKind),
		n.RecipientPhone,
		n.Message,
		string(n.Status),
		n.ErrorMessage,
		formatOptionalTime(n.SentAt),
		formatTime(n.CreatedAt),
		formatTime(n.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("case_id", n.CaseID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// GetByID retrieves a notification by ID
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`

	n, err := scanNotification(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: notification %q", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get notification", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	return n, nil
}

// ListByCase returns a case's notifications oldest first
func (r *NotificationRepository) ListByCase(ctx context.Context, caseID string) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE case_id = ? ORDER BY created_at ASC, rowid ASC`
	return r.list(ctx, query, caseID)
}

// ListByStatus returns notifications in a status oldest first; limit 0 means all
func (r *NotificationRepository) ListByStatus(ctx context.Context, status entity.NotificationStatus, limit int) ([]*entity.Notification, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE status = ? ORDER BY created_at ASC, rowid ASC LIMIT ?`
	return r.list(ctx, query, string(status), limit)
}

func (r *NotificationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Notification, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*entity.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// Update writes the delivery outcome if the stored status still equals expected
func (r *NotificationRepository) Update(ctx context.Context, n *entity.Notification, expected entity.NotificationStatus) error {
	query := `
		UPDATE notifications
		SET recipient_phone = ?, message = ?, status = ?, error_message = ?, sent_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	exec := r.getExecutor(ctx)
	result, err := exec.ExecContext(ctx, query,
		n.RecipientPhone,
		n.Message,
		string(n.Status),
		n.ErrorMessage,
		formatOptionalTime(n.SentAt),
		formatTime(n.UpdatedAt),
		n.ID,
		string(expected),
	)
	if err != nil {
		r.logger.Error("Failed to update notification",
			zap.String("id", n.ID),
			zap.String("status", string(n.Status)),
			zap.Error(err))
		return fmt.Errorf("failed to update notification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, n.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: notification %q is no longer %s", workflow.ErrConcurrentModification, n.ID, expected)
	}

	return nil
}

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var (
		n        entity.Notification
		caseKind string
		status   string
		sentAt   sql.NullTime
	)

	err := row.Scan(
		&n.ID,
		&n.CaseID,
		&caseKind,
		&n.RecipientPhone,
		&n.Message,
		&status,
		&n.ErrorMessage,
		&sentAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.CaseKind = entity.CaseKind(caseKind)
	n.Status = entity.NotificationStatus(status)
	n.CreatedAt = utc(n.CreatedAt)
	n.UpdatedAt = utc(n.UpdatedAt)
	if sentAt.Valid {
		t := utc(sentAt.Time)
		n.SentAt = &t
	}

	return &n, nil
}

// getExecutor returns appropriate executor based on context
func (r *NotificationRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
