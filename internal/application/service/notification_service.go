package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/pharmacy-workflow/internal/application/dispatcher"
	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/event"
	domainwf "github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// NotificationBridge queues patient notifications and tracks their delivery status
type NotificationBridge interface {
	// Enqueue creates a PENDING notification. An empty phone is resolved from the
	// case's patient contact; an empty message is rendered from the case kind's template.
	Enqueue(ctx context.Context, caseID string, kind entity.CaseKind, recipientPhone, message string) (*entity.Notification, error)

	// MarkSent records a successful delivery of a PENDING notification
	MarkSent(ctx context.Context, notificationID string) (*entity.Notification, error)

	// MarkFailed records a failed delivery of a PENDING notification
	MarkFailed(ctx context.Context, notificationID, reason string) (*entity.Notification, error)

	Get(ctx context.Context, notificationID string) (*entity.Notification, error)
	ListPending(ctx context.Context) ([]*entity.Notification, error)
	ListByCase(ctx context.Context, caseID string) ([]*entity.Notification, error)
	ListByStatus(ctx context.Context, status entity.NotificationStatus) ([]*entity.Notification, error)
}

// MessageTemplates are the default patient messages per case kind.
// Placeholders: {first_name} {last_name} {case_id} {vaccine_type} {appointment_at}
type MessageTemplates struct {
	Prescription       string
	VaccineAppointment string
}

// DefaultMessageTemplates returns the built-in patient messages
func DefaultMessageTemplates() MessageTemplates {
	return MessageTemplates{
		Prescription:       "Hi {first_name}, your prescription is ready for pickup.",
		VaccineAppointment: "Hi {first_name}, your {vaccine_type} vaccination on {appointment_at} is confirmed.",
	}
}

type notificationBridgeImpl struct {
	notificationRepo port.NotificationRepository
	caseRepo         port.CaseRepository
	contacts         port.ContactResolver
	txManager        port.TransactionManager
	publisher        dispatcher.Publisher
	templates        MessageTemplates
	logger           Logger
	now              func() time.Time
}

// NewNotificationBridge creates a new NotificationBridge.
// The publisher receives notification.sent and notification.failed synchronously
// inside the status update transaction; it may be nil.
func NewNotificationBridge(
	notificationRepo port.NotificationRepository,
	caseRepo port.CaseRepository,
	contacts port.ContactResolver,
	txManager port.TransactionManager,
	publisher dispatcher.Publisher,
	templates MessageTemplates,
	logger Logger,
) NotificationBridge {
	return &notificationBridgeImpl{
		notificationRepo: notificationRepo,
		caseRepo:         caseRepo,
		contacts:         contacts,
		txManager:        txManager,
		publisher:        publisher,
		templates:        templates,
		logger:           logger,
		now:              time.Now,
	}
}

// Enqueue creates a PENDING notification for a case
func (s *notificationBridgeImpl) Enqueue(ctx context.Context, caseID string, kind entity.CaseKind, recipientPhone, message string) (*entity.Notification, error) {
	c, err := s.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, s.fail("enqueue", caseID, err)
	}
	if kind == "" {
		kind = c.Kind
	}
	if kind != c.Kind {
		return nil, s.fail("enqueue", caseID, fmt.Errorf("%w: case %s is %s, not %s", domainwf.ErrValidation, caseID, c.Kind, kind))
	}

	phone, err := s.recipient(ctx, caseID, recipientPhone)
	if err != nil {
		return nil, s.fail("enqueue", caseID, err)
	}
	if phone == "" {
		s.logger.Info("No patient phone on file, notification queued without recipient", "case_id", caseID)
	}
	if message == "" {
		message = s.render(c)
	}

	now := s.now()
	n := &entity.Notification{
		ID:             uuid.NewString(),
		CaseID:         caseID,
		CaseKind:       kind,
		RecipientPhone: phone,
		Message:        message,
		Status:         entity.NotificationStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return nil, s.fail("enqueue", caseID, err)
	}

	s.logger.Info("Notification enqueued", "notification_id", n.ID, "case_id", caseID, "case_kind", kind)
	return n, nil
}

func (s *notificationBridgeImpl) recipient(ctx context.Context, caseID, supplied string) (string, error) {
	if supplied != "" {
		phone, err := s.contacts.NormalizePhone(supplied)
		if err != nil {
			return "", fmt.Errorf("%w: recipient phone: %v", domainwf.ErrValidation, err)
		}
		return phone, nil
	}
	return s.contacts.ResolvePhone(ctx, caseID)
}

func (s *notificationBridgeImpl) render(c *entity.Case) string {
	tmpl := s.templates.Prescription
	vaccine, appointment := "", ""
	if c.Kind == entity.CaseKindVaccineAppointment {
		tmpl = s.templates.VaccineAppointment
		if v := c.VaccineAppointment; v != nil {
			vaccine = v.VaccineType
			appointment = v.AppointmentAt.Format("Jan 2, 2006 3:04 PM")
		}
	}

	return strings.NewReplacer(
		"{first_name}", c.Patient.FirstName,
		"{last_name}", c.Patient.LastName,
		"{case_id}", c.ID,
		"{vaccine_type}", vaccine,
		"{appointment_at}", appointment,
	).Replace(tmpl)
}

// MarkSent moves a PENDING notification to SENT and records the outcome on its case
func (s *notificationBridgeImpl) MarkSent(ctx context.Context, notificationID string) (*entity.Notification, error) {
	return s.resolve(ctx, notificationID, entity.NotificationStatusSent, "")
}

// MarkFailed moves a PENDING notification to FAILED and records the outcome on its case
func (s *notificationBridgeImpl) MarkFailed(ctx context.Context, notificationID, reason string) (*entity.Notification, error) {
	return s.resolve(ctx, notificationID, entity.NotificationStatusFailed, reason)
}

func (s *notificationBridgeImpl) resolve(ctx context.Context, notificationID string, to entity.NotificationStatus, reason string) (*entity.Notification, error) {
	var result *entity.Notification

	// case-level events raised by outcome handlers are published once this commits
	batchCtx, batch := dispatcher.WithBatch(ctx)
	err := s.txManager.WithTransaction(batchCtx, func(txCtx context.Context) error {
		n, err := s.notificationRepo.GetByID(txCtx, notificationID)
		if err != nil {
			return err
		}
		if n.Status != entity.NotificationStatusPending {
			return fmt.Errorf("%w: notification %s is %s", domainwf.ErrInvalidTransition, n.ID, n.Status)
		}

		now := s.now()
		n.Status = to
		n.UpdatedAt = now
		evtType := event.TypeNotificationFailed
		if to == entity.NotificationStatusSent {
			n.SentAt = &now
			evtType = event.TypeNotificationSent
		} else {
			n.ErrorMessage = reason
		}

		if err := s.notificationRepo.Update(txCtx, n, entity.NotificationStatusPending); err != nil {
			return err
		}

		if s.publisher != nil {
			payload := map[string]interface{}{event.KeyNotificationID: n.ID}
			if reason != "" {
				payload[event.KeyReason] = reason
			}
			if err := s.publisher.Dispatch(txCtx, event.NewEvent(evtType, n.CaseID, payload)); err != nil {
				return err
			}
		}

		result = n
		return nil
	})
	if err != nil {
		return nil, s.fail("mark_"+strings.ToLower(string(to)), notificationID, err)
	}
	batch.Flush(ctx)

	s.logger.Info("Notification resolved",
		"notification_id", result.ID,
		"case_id", result.CaseID,
		"status", result.Status,
	)
	return result, nil
}

// Get returns one notification
func (s *notificationBridgeImpl) Get(ctx context.Context, notificationID string) (*entity.Notification, error) {
	n, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, s.fail("get", notificationID, err)
	}
	return n, nil
}

// ListPending returns every PENDING notification oldest first
func (s *notificationBridgeImpl) ListPending(ctx context.Context) ([]*entity.Notification, error) {
	return s.ListByStatus(ctx, entity.NotificationStatusPending)
}

// ListByCase returns the notifications of one case
func (s *notificationBridgeImpl) ListByCase(ctx context.Context, caseID string) ([]*entity.Notification, error) {
	list, err := s.notificationRepo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, s.fail("list_by_case", caseID, err)
	}
	return list, nil
}

// ListByStatus returns notifications in a status oldest first
func (s *notificationBridgeImpl) ListByStatus(ctx context.Context, status entity.NotificationStatus) ([]*entity.Notification, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: notification status %q", domainwf.ErrValidation, status)
	}
	list, err := s.notificationRepo.ListByStatus(ctx, status, 0)
	if err != nil {
		return nil, s.fail("list_by_status", string(status), err)
	}
	return list, nil
}

func (s *notificationBridgeImpl) fail(op, id string, err error) error {
	err = domainwf.AsStorageFailure(err)
	if domainwf.Classify(err).IsClientError() {
		s.logger.Info("Notification operation rejected", "operation", op, "id", id, "error", err)
	} else {
		s.logger.Error("Notification operation failed", "operation", op, "id", id, "error", err)
	}
	return err
}
