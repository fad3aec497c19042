package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/pharmacy-workflow/internal/application/dispatcher"
	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/event"
	domainwf "github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// errUnchanged short-circuits an operation that would not alter the case
var errUnchanged = errors.New("unchanged")

type engineImpl struct {
	caseRepo    port.CaseRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	queue       NotificationQueue
	logger      Logger

	table     *domainwf.Table
	publisher dispatcher.Publisher
	now       func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithPublisher emits case.status_changed and notification.enqueued after each commit
func WithPublisher(p dispatcher.Publisher) EngineOption {
	return func(e *engineImpl) {
		e.publisher = p
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithTable overrides the transition table
func WithTable(t *domainwf.Table) EngineOption {
	return func(e *engineImpl) {
		e.table = t
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	caseRepo port.CaseRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	queue NotificationQueue,
	logger Logger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		caseRepo:    caseRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		queue:       queue,
		logger:      logger,
		table:       domainwf.DefaultTable,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// operation describes one read-validate-write cycle against a case
type operation struct {
	name    string
	action  string
	caseID  string
	actorID string
	apply   func(c *entity.Case, now time.Time) (detail string, err error)
}

// outcome is what a committed operation produced
type outcome struct {
	updated  *entity.Case
	previous domainwf.Status
	enqueued *entity.Notification
}

func (e *engineImpl) execute(ctx context.Context, op operation) (*entity.Case, error) {
	var out outcome

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.caseRepo.GetByID(txCtx, op.caseID)
		if err != nil {
			return err
		}

		next := current.Clone()
		now := e.now()
		out.previous = current.Workflow.Status

		detail, err := op.apply(next, now)
		if errors.Is(err, errUnchanged) {
			out.updated = current
			return nil
		}
		if err != nil {
			return err
		}

		if err := e.caseRepo.Save(txCtx, next, current.Version); err != nil {
			return err
		}

		entry := &entity.HistoryEntry{
			ID:             uuid.NewString(),
			CaseID:         next.ID,
			ActorID:        op.actorID,
			PreviousStatus: out.previous,
			NewStatus:      next.Workflow.Status,
			Action:         op.action,
			Detail:         detail,
			CreatedAt:      now,
		}
		if err := e.historyRepo.Create(txCtx, entry); err != nil {
			return fmt.Errorf("record history: %w", err)
		}

		if next.Workflow.Status == domainwf.StatusNotificationsPending && out.previous != domainwf.StatusNotificationsPending {
			n, err := e.queue.Enqueue(txCtx, next.ID, next.Kind, "", "")
			if err != nil {
				return fmt.Errorf("enqueue notification: %w", err)
			}
			out.enqueued = n
		}

		out.updated = next
		return nil
	})
	if err != nil {
		return nil, e.fail(op, err)
	}

	msg := "Workflow operation applied"
	if dispatcher.InBatch(ctx) {
		msg = "Workflow operation staged in caller transaction"
	}
	e.logger.Info(msg,
		"operation", op.name,
		"case_id", op.caseID,
		"actor_id", op.actorID,
		"previous_status", out.previous,
		"new_status", out.updated.Workflow.Status,
		"version", out.updated.Version,
	)
	e.publish(ctx, op, out)

	return out.updated, nil
}

// fail logs and normalizes an operation error
func (e *engineImpl) fail(op operation, err error) error {
	err = domainwf.AsStorageFailure(err)
	kind := domainwf.Classify(err)

	if kind.IsClientError() {
		e.logger.Info("Workflow operation rejected",
			"operation", op.name,
			"case_id", op.caseID,
			"actor_id", op.actorID,
			"kind", kind,
			"error", err,
		)
		return err
	}

	e.logger.Error("Workflow operation failed",
		"operation", op.name,
		"case_id", op.caseID,
		"actor_id", op.actorID,
		"error", err,
	)
	return err
}

func (e *engineImpl) publish(ctx context.Context, op operation, out outcome) {
	if e.publisher == nil {
		return
	}

	if out.updated.Workflow.Status != out.previous {
		e.emit(ctx, event.NewEvent(event.TypeCaseStatusChanged, out.updated.ID, map[string]interface{}{
			event.KeyPreviousStatus: out.previous.String(),
			event.KeyNewStatus:      out.updated.Workflow.Status.String(),
			event.KeyActorID:        op.actorID,
		}))
	}
	if out.enqueued != nil {
		e.emit(ctx, event.NewEvent(event.TypeNotificationEnqueued, out.updated.ID, map[string]interface{}{
			event.KeyNotificationID: out.enqueued.ID,
		}))
	}
}

// emit holds the event until the caller's transaction commits when the operation joined one
func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if dispatcher.Defer(ctx, e.publisher, evt) {
		return
	}
	e.publisher.DispatchAsync(ctx, evt)
}

// fire moves the case along the table and applies the resulting status
func (e *engineImpl) fire(c *entity.Case, trigger domainwf.Trigger, now time.Time) error {
	next, err := e.table.Next(c.Workflow.Status, trigger)
	if err != nil {
		return err
	}
	c.ApplyStatus(next, now)
	return nil
}

// Advance moves a case to the first status of its next stage
func (e *engineImpl) Advance(ctx context.Context, caseID, actorID string) (*entity.Case, error) {
	return e.execute(ctx, operation{
		name:    "advance",
		action:  entity.ActionAdvance,
		caseID:  caseID,
		actorID: actorID,
		apply: func(c *entity.Case, now time.Time) (string, error) {
			return "", e.fire(c, domainwf.TriggerAdvance, now)
		},
	})
}

// RejectToPreviousStage sends a rejected review back one stage
func (e *engineImpl) RejectToPreviousStage(ctx context.Context, caseID, reason, actorID string) (*entity.Case, error) {
	return e.execute(ctx, operation{
		name:    "reject_to_previous_stage",
		action:  entity.ActionRejectToPrevious,
		caseID:  caseID,
		actorID: actorID,
		apply: func(c *entity.Case, now time.Time) (string, error) {
			if err := e.fire(c, domainwf.TriggerRejectToPrevious, now); err != nil {
				return "", err
			}
			if reason != "" {
				c.AppendNote(actorID, reason, now)
			}
			return reason, nil
		},
	})
}

// AssignToUser sets who works the case next
func (e *engineImpl) AssignToUser(ctx context.Context, caseID, assignedUserID, assignedByUserID string) (*entity.Case, error) {
	return e.execute(ctx, operation{
		name:    "assign",
		action:  entity.ActionAssign,
		caseID:  caseID,
		actorID: assignedByUserID,
		apply: func(c *entity.Case, now time.Time) (string, error) {
			if c.IsTerminal() {
				return "", fmt.Errorf("%w: case %s is %s", domainwf.ErrCaseTerminal, c.ID, c.Workflow.CurrentStage)
			}
			c.Assign(assignedUserID, assignedByUserID, now)
			return assignedUserID, nil
		},
	})
}

// AddNotes appends a note; allowed at any stage
func (e *engineImpl) AddNotes(ctx context.Context, caseID, note, actorID string) (*entity.Case, error) {
	return e.execute(ctx, operation{
		name:    "add_notes",
		action:  entity.ActionNote,
		caseID:  caseID,
		actorID: actorID,
		apply: func(c *entity.Case, now time.Time) (string, error) {
			c.AppendNote(actorID, note, now)
			return note, nil
		},
	})
}

// MarkAsPriority sets the priority flag; repeating the same value is a no-op
func (e *engineImpl) MarkAsPriority(ctx context.Context, caseID string, isPriority bool, actorID string) (*entity.Case, error) {
	return e.execute(ctx, operation{
		name:    "mark_as_priority",
		action:  entity.ActionPriority,
		caseID:  caseID,
		actorID: actorID,
		apply: func(c *entity.Case, now time.Time) (string, error) {
			if c.Workflow.Priority == isPriority {
				return "", errUnchanged
			}
			c.SetPriority(isPriority, now)
			return fmt.Sprintf("priority=%t", isPriority), nil
		},
	})
}

// ApplyDecision fires an operator decision inside the current stage
func (e *engineImpl) ApplyDecision(ctx context.Context, caseID string, trigger domainwf.Trigger, actorID string) (*entity.Case, error) {
	if !trigger.IsDecision() {
		return nil, e.fail(operation{name: "apply_decision", caseID: caseID, actorID: actorID},
			fmt.Errorf("%w: %q is not a decision", domainwf.ErrValidation, trigger))
	}

	return e.execute(ctx, operation{
		name:    "apply_decision",
		action:  entity.ActionDecision,
		caseID:  caseID,
		actorID: actorID,
		apply: func(c *entity.Case, now time.Time) (string, error) {
			return trigger.String(), e.fire(c, trigger, now)
		},
	})
}

// Cancel terminates a case
func (e *engineImpl) Cancel(ctx context.Context, caseID, reason, actorID string) (*entity.Case, error) {
	return e.execute(ctx, operation{
		name:    "cancel",
		action:  entity.ActionCancel,
		caseID:  caseID,
		actorID: actorID,
		apply: func(c *entity.Case, now time.Time) (string, error) {
			if err := e.fire(c, domainwf.TriggerCancel, now); err != nil {
				return "", err
			}
			if reason != "" {
				c.AppendNote(actorID, reason, now)
			}
			return reason, nil
		},
	})
}

// RetryNotification re-queues a failed patient notification
func (e *engineImpl) RetryNotification(ctx context.Context, caseID, actorID string) (*entity.Case, error) {
	return e.execute(ctx, operation{
		name:    "retry_notification",
		action:  entity.ActionRetryNotification,
		caseID:  caseID,
		actorID: actorID,
		apply: func(c *entity.Case, now time.Time) (string, error) {
			return "", e.fire(c, domainwf.TriggerRetryNotification, now)
		},
	})
}

// GetCase returns the current state of a case
func (e *engineImpl) GetCase(ctx context.Context, caseID string) (*entity.Case, error) {
	c, err := e.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, e.fail(operation{name: "get_case", caseID: caseID}, err)
	}
	return c, nil
}

// History returns the audit trail of a case
func (e *engineImpl) History(ctx context.Context, caseID string) ([]*entity.HistoryEntry, error) {
	if _, err := e.caseRepo.GetByID(ctx, caseID); err != nil {
		return nil, e.fail(operation{name: "history", caseID: caseID}, err)
	}
	entries, err := e.historyRepo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, e.fail(operation{name: "history", caseID: caseID}, err)
	}
	return entries, nil
}

// HandleNotificationEvent moves a case waiting at NOTIFICATIONS_PENDING to SENT or FAILED.
// Cases anywhere else are left alone.
func (e *engineImpl) HandleNotificationEvent(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("%w: event cannot be nil", domainwf.ErrValidation)
	}

	var (
		trigger domainwf.Trigger
		action  string
	)
	switch evt.Type {
	case event.TypeNotificationSent:
		trigger, action = domainwf.TriggerNotificationSent, entity.ActionNotificationSent
	case event.TypeNotificationFailed:
		trigger, action = domainwf.TriggerNotificationFailed, entity.ActionNotificationFailed
	default:
		return fmt.Errorf("%w: unexpected event type %s", domainwf.ErrValidation, evt.Type)
	}

	actor := evt.GetPayloadString(event.KeyActorID)
	if actor == "" {
		actor = SystemActor
	}

	_, err := e.execute(ctx, operation{
		name:    "notification_outcome",
		action:  action,
		caseID:  evt.CaseID,
		actorID: actor,
		apply: func(c *entity.Case, now time.Time) (string, error) {
			if c.Workflow.Status != domainwf.StatusNotificationsPending {
				return "", errUnchanged
			}
			detail := evt.GetPayloadString(event.KeyNotificationID)
			if reason := evt.GetPayloadString(event.KeyReason); reason != "" {
				detail += ": " + reason
			}
			return detail, e.fire(c, trigger, now)
		},
	})
	return err
}

// Subscribe registers the engine's notification outcome handler
func Subscribe(d dispatcher.Dispatcher, e Engine) {
	d.Subscribe(event.TypeNotificationSent, "workflow-engine", e.HandleNotificationEvent)
	d.Subscribe(event.TypeNotificationFailed, "workflow-engine", e.HandleNotificationEvent)
}
