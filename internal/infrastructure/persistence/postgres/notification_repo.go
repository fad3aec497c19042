package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

const notificationCols = `id, case_id, case_kind, recipient_phone, message, status,
	error_message, sent_at, created_at, updated_at`

// foreignKeyViolation is the SQLSTATE raised when case_id references no case
const foreignKeyViolation = "23503"

type notificationRepoPG struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewNotificationRepository creates a PostgreSQL notification repository
func NewNotificationRepository(pool *pgxpool.Pool, logger *zap.Logger) port.NotificationRepository {
	return &notificationRepoPG{pool: pool, logger: logger}
}

func (r *notificationRepoPG) Create(ctx context.Context, n *entity.Notification) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO notifications (`+notificationCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		n.ID, n.CaseID, string(n.CaseKind), n.RecipientPhone, n.Message, string(n.Status),
		n.ErrorMessage, n.SentAt, n.CreatedAt, n.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: case %q", workflow.ErrNotFound, n.CaseID)
	}
	if err != nil {
		r.logger.Error("Failed to create notification", zap.String("case_id", n.CaseID), zap.Error(err))
		return fmt.Errorf("notification create: %w", err)
	}
	return nil
}

func (r *notificationRepoPG) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	n, err := scanNotification(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+notificationCols+` FROM notifications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: notification %q", workflow.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("notification get: %w", err)
	}
	return n, nil
}

func (r *notificationRepoPG) ListByCase(ctx context.Context, caseID string) ([]*entity.Notification, error) {
	return r.list(ctx, `SELECT `+notificationCols+` FROM notifications WHERE case_id = $1 ORDER BY created_at, seq`, caseID)
}

func (r *notificationRepoPG) ListByStatus(ctx context.Context, status entity.NotificationStatus, limit int) ([]*entity.Notification, error) {
	if limit > 0 {
		return r.list(ctx, `SELECT `+notificationCols+` FROM notifications WHERE status = $1 ORDER BY created_at, seq LIMIT $2`, string(status), limit)
	}
	return r.list(ctx, `SELECT `+notificationCols+` FROM notifications WHERE status = $1 ORDER BY created_at, seq`, string(status))
}

func (r *notificationRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Notification, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Error(err))
		return nil, fmt.Errorf("notification list: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("notification scan: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *notificationRepoPG) Update(ctx context.Context, n *entity.Notification, expected entity.NotificationStatus) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE notifications
		SET recipient_phone = $1, message = $2, status = $3, error_message = $4, sent_at = $5, updated_at = $6
		WHERE id = $7 AND status = $8`,
		n.RecipientPhone, n.Message, string(n.Status), n.ErrorMessage, n.SentAt, n.UpdatedAt,
		n.ID, string(expected),
	)
	if err != nil {
		r.logger.Error("Failed to update notification", zap.String("id", n.ID), zap.Error(err))
		return fmt.Errorf("notification update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, n.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: notification %q is no longer %s", workflow.ErrConcurrentModification, n.ID, expected)
	}
	return nil
}

func scanNotification(row pgx.Row) (*entity.Notification, error) {
	var (
		n        entity.Notification
		caseKind string
		status   string
	)
	err := row.Scan(
		&n.ID, &n.CaseID, &caseKind, &n.RecipientPhone, &n.Message, &status,
		&n.ErrorMessage, &n.SentAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.CaseKind = entity.CaseKind(caseKind)
	n.Status = entity.NotificationStatus(status)
	return &n, nil
}
