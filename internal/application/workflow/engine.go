package workflow

import (
	"context"

	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/event"
	domainwf "github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// SystemActor is recorded as the actor for transitions driven by callbacks
const SystemActor = "system"

// Engine owns every change to a case's workflow state.
// Each mutating operation reads, validates, writes and records history inside one
// transaction and returns the updated case. Failures leave the case untouched and
// carry one of the domain error kinds (see domainwf.Classify).
type Engine interface {
	// Advance moves a case from a stage-completing status to the next stage
	Advance(ctx context.Context, caseID, actorID string) (*entity.Case, error)

	// RejectToPreviousStage sends a rejected review back one stage and records the reason
	RejectToPreviousStage(ctx context.Context, caseID, reason, actorID string) (*entity.Case, error)

	// AssignToUser sets the assignee of a non-terminal case
	AssignToUser(ctx context.Context, caseID, assignedUserID, assignedByUserID string) (*entity.Case, error)

	// AddNotes appends an attributed note
	AddNotes(ctx context.Context, caseID, note, actorID string) (*entity.Case, error)

	// MarkAsPriority sets or clears the priority flag
	MarkAsPriority(ctx context.Context, caseID string, isPriority bool, actorID string) (*entity.Case, error)

	// ApplyDecision fires a within-stage operator decision such as START or APPROVE
	ApplyDecision(ctx context.Context, caseID string, trigger domainwf.Trigger, actorID string) (*entity.Case, error)

	// Cancel terminates a case from any non-terminal status
	Cancel(ctx context.Context, caseID, reason, actorID string) (*entity.Case, error)

	// RetryNotification returns a case with a failed notification to NOTIFICATIONS_PENDING
	// and queues a fresh notification
	RetryNotification(ctx context.Context, caseID, actorID string) (*entity.Case, error)

	// GetCase returns the current state of a case
	GetCase(ctx context.Context, caseID string) (*entity.Case, error)

	// History returns the audit trail of a case, oldest first
	History(ctx context.Context, caseID string) ([]*entity.HistoryEntry, error)

	// HandleNotificationEvent records a sender outcome against the case.
	// It runs inside the caller's transaction.
	HandleNotificationEvent(ctx context.Context, evt *event.Event) error
}

// NotificationQueue is the part of the notification bridge the engine drives
type NotificationQueue interface {
	Enqueue(ctx context.Context, caseID string, kind entity.CaseKind, recipientPhone, message string) (*entity.Notification, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
