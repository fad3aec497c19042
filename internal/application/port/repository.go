package port

import (
	"context"

	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// CaseFilter narrows a case listing. Zero values mean "any".
type CaseFilter struct {
	Statuses         []workflow.Status
	Stage            workflow.Stage
	Kind             entity.CaseKind
	AssignedToUserID string
	PriorityOnly     bool
	Limit            int
	Offset           int
}

// CaseRepository is the case record store.
// Listings are ordered priority first, then oldest current_stage_entered_at, then id.
type CaseRepository interface {
	// Create inserts a new case at its current version
	Create(ctx context.Context, c *entity.Case) error

	// GetByID returns workflow.ErrNotFound when the case does not exist
	GetByID(ctx context.Context, id string) (*entity.Case, error)

	// Save writes c only if the stored version equals expectedVersion, then sets
	// c.Version to expectedVersion+1. A stale version yields workflow.ErrConcurrentModification.
	Save(ctx context.Context, c *entity.Case, expectedVersion int64) error

	// List returns cases matching the filter in queue order
	List(ctx context.Context, filter CaseFilter) ([]*entity.Case, error)
}

// NotificationRepository persists queued patient notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error

	// GetByID returns workflow.ErrNotFound when the notification does not exist
	GetByID(ctx context.Context, id string) (*entity.Notification, error)

	// ListByCase returns a case's notifications oldest first
	ListByCase(ctx context.Context, caseID string) ([]*entity.Notification, error)

	// ListByStatus returns notifications in the given status oldest first; limit <= 0 means no limit
	ListByStatus(ctx context.Context, status entity.NotificationStatus, limit int) ([]*entity.Notification, error)

	// Update writes n only if its stored status equals expected.
	// A mismatch yields workflow.ErrConcurrentModification.
	Update(ctx context.Context, n *entity.Notification, expected entity.NotificationStatus) error
}

// HistoryRepository persists the audit trail of cases
type HistoryRepository interface {
	Create(ctx context.Context, h *entity.HistoryEntry) error
	ListByCase(ctx context.Context, caseID string) ([]*entity.HistoryEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
