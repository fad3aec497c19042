package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

type notificationRow struct {
	n   entity.Notification
	seq int64
}

// NotificationRepository implements port.NotificationRepository in memory
type NotificationRepository struct {
	store *Store
}

func copyNotification(n entity.Notification) *entity.Notification {
	if n.SentAt != nil {
		sent := *n.SentAt
		n.SentAt = &sent
	}
	return &n
}

// Create inserts a new notification
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	s := r.store
	return s.write(ctx, func(t *tx) error {
		if _, exists := s.notificationView(t, n.ID); exists {
			return fmt.Errorf("%w: notification %q already exists", workflow.ErrStorageFailure, n.ID)
		}
		if _, exists := s.caseView(t, n.CaseID); !exists {
			return fmt.Errorf("%w: case %q", workflow.ErrNotFound, n.CaseID)
		}
		t.notifications[n.ID] = &stagedNotification{
			row:     notificationRow{n: *copyNotification(*n), seq: s.nextSeq()},
			created: true,
		}
		return nil
	})
}

// GetByID returns a copy of the stored notification
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.notificationView(txFrom(ctx), id)
	if !exists {
		return nil, fmt.Errorf("%w: notification %q", workflow.ErrNotFound, id)
	}
	return copyNotification(row.n), nil
}

// ListByCase returns a case's notifications oldest first
func (r *NotificationRepository) ListByCase(ctx context.Context, caseID string) ([]*entity.Notification, error) {
	return r.list(ctx, func(n *entity.Notification) bool { return n.CaseID == caseID }, 0), nil
}

// ListByStatus returns notifications in a status oldest first
func (r *NotificationRepository) ListByStatus(ctx context.Context, status entity.NotificationStatus, limit int) ([]*entity.Notification, error) {
	return r.list(ctx, func(n *entity.Notification) bool { return n.Status == status }, limit), nil
}

func (r *NotificationRepository) list(ctx context.Context, keep func(*entity.Notification) bool, limit int) []*entity.Notification {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := txFrom(ctx)
	rows := make([]notificationRow, 0)
	for id, row := range s.notifications {
		if t != nil && t.notifications[id] != nil {
			continue
		}
		if keep(&row.n) {
			rows = append(rows, row)
		}
	}
	if t != nil {
		for _, sn := range t.notifications {
			if keep(&sn.row.n) {
				rows = append(rows, sn.row)
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].n.CreatedAt.Equal(rows[j].n.CreatedAt) {
			return rows[i].n.CreatedAt.Before(rows[j].n.CreatedAt)
		}
		return rows[i].seq < rows[j].seq
	})
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	result := make([]*entity.Notification, len(rows))
	for i, row := range rows {
		result[i] = copyNotification(row.n)
	}
	return result
}

// Update replaces the stored notification when its status matches expected
func (r *NotificationRepository) Update(ctx context.Context, n *entity.Notification, expected entity.NotificationStatus) error {
	s := r.store
	return s.write(ctx, func(t *tx) error {
		existing, exists := s.notificationView(t, n.ID)
		if !exists {
			return fmt.Errorf("%w: notification %q", workflow.ErrNotFound, n.ID)
		}
		if existing.n.Status != expected {
			return fmt.Errorf("%w: notification %q is %s, expected %s",
				workflow.ErrConcurrentModification, n.ID, existing.n.Status, expected)
		}

		staged := &stagedNotification{
			row:  notificationRow{n: *copyNotification(*n), seq: existing.seq},
			base: expected,
		}
		if prev, ok := t.notifications[n.ID]; ok {
			staged.created = prev.created
			staged.base = prev.base
		}
		t.notifications[n.ID] = staged
		return nil
	})
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
