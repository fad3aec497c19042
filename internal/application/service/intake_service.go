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

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CaseDraft is the intake payload for a new case
type CaseDraft struct {
	Kind               entity.CaseKind
	Patient            entity.ContactInfo
	Insurance          *entity.InsuranceInfo
	Prescription       *entity.PrescriptionDetails
	VaccineAppointment *entity.VaccineAppointmentDetails
	Priority           bool
	Note               string
	CreatedBy          string
}

// IntakeService creates cases at the start of the pipeline
type IntakeService interface {
	CreateCase(ctx context.Context, draft CaseDraft) (*entity.Case, error)
}

type intakeServiceImpl struct {
	caseRepo    port.CaseRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	publisher   dispatcher.Publisher
	logger      Logger
	now         func() time.Time
}

// NewIntakeService creates a new IntakeService; publisher may be nil
func NewIntakeService(
	caseRepo port.CaseRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	publisher dispatcher.Publisher,
	logger Logger,
) IntakeService {
	return &intakeServiceImpl{
		caseRepo:    caseRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateCase validates the draft and stores it at DATA_ENTRY_PENDING
func (s *intakeServiceImpl) CreateCase(ctx context.Context, draft CaseDraft) (*entity.Case, error) {
	if strings.TrimSpace(draft.Patient.FirstName) == "" && strings.TrimSpace(draft.Patient.LastName) == "" {
		return nil, fmt.Errorf("%w: patient name is required", domainwf.ErrValidation)
	}

	now := s.now()
	c := entity.NewCase(uuid.NewString(), draft.Kind, draft.Patient, now)
	c.Insurance = draft.Insurance
	c.Prescription = draft.Prescription
	c.VaccineAppointment = draft.VaccineAppointment
	c.Workflow.Priority = draft.Priority
	if c.VaccineAppointment != nil && c.VaccineAppointment.AppointmentStatus == "" {
		c.VaccineAppointment.AppointmentStatus = entity.AppointmentScheduled
	}
	if draft.Note != "" {
		c.AppendNote(draft.CreatedBy, draft.Note, now)
	}

	if err := c.Validate(); err != nil {
		s.logger.Info("Case draft rejected", "error", err)
		return nil, err
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.caseRepo.Create(txCtx, c); err != nil {
			return fmt.Errorf("create case: %w", err)
		}

		history := &entity.HistoryEntry{
			ID:        uuid.NewString(),
			CaseID:    c.ID,
			ActorID:   draft.CreatedBy,
			NewStatus: c.Workflow.Status,
			Action:    entity.ActionCreate,
			Detail:    string(c.Kind),
			CreatedAt: now,
		}
		if err := s.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		err = domainwf.AsStorageFailure(err)
		s.logger.Error("Failed to create case", "error", err, "kind", c.Kind)
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.DispatchAsync(ctx, event.NewEvent(event.TypeCaseCreated, c.ID, map[string]interface{}{
			event.KeyNewStatus: c.Workflow.Status.String(),
			event.KeyActorID:   draft.CreatedBy,
		}))
	}

	s.logger.Info("Case created", "case_id", c.ID, "kind", c.Kind, "priority", c.Workflow.Priority)
	return c, nil
}
