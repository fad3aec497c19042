package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// CaseQueryService answers "what work is outstanding" for operator dashboards.
// Every listing is ordered priority first, then longest waiting in its current stage.
type CaseQueryService interface {
	ListByStatus(ctx context.Context, status domainwf.Status) ([]*entity.Case, error)
	ListByAssignee(ctx context.Context, userID string) ([]*entity.Case, error)
	ListPriority(ctx context.Context) ([]*entity.Case, error)

	// PendingQueue lists the cases waiting for an operator in a stage
	PendingQueue(ctx context.Context, stage domainwf.Stage) ([]*entity.Case, error)

	Search(ctx context.Context, filter port.CaseFilter) ([]*entity.Case, error)

	// ExportQueue writes the matching cases through the configured exporter
	ExportQueue(ctx context.Context, filter port.CaseFilter, w io.Writer) error
}

type caseQueryServiceImpl struct {
	caseRepo port.CaseRepository
	exporter port.QueueExporter
	logger   Logger
	maxLimit int
}

// NewCaseQueryService creates a new CaseQueryService. maxLimit caps page sizes; 0 means no cap.
func NewCaseQueryService(caseRepo port.CaseRepository, exporter port.QueueExporter, logger Logger, maxLimit int) CaseQueryService {
	return &caseQueryServiceImpl{
		caseRepo: caseRepo,
		exporter: exporter,
		logger:   logger,
		maxLimit: maxLimit,
	}
}

// ListByStatus returns the cases currently in a status
func (s *caseQueryServiceImpl) ListByStatus(ctx context.Context, status domainwf.Status) ([]*entity.Case, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", domainwf.ErrInvalidStatus, status)
	}
	return s.Search(ctx, port.CaseFilter{Statuses: []domainwf.Status{status}})
}

// ListByAssignee returns the cases assigned to a user
func (s *caseQueryServiceImpl) ListByAssignee(ctx context.Context, userID string) ([]*entity.Case, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: assignee is required", domainwf.ErrValidation)
	}
	return s.Search(ctx, port.CaseFilter{AssignedToUserID: userID})
}

// ListPriority returns the cases flagged as priority
func (s *caseQueryServiceImpl) ListPriority(ctx context.Context) ([]*entity.Case, error) {
	return s.Search(ctx, port.CaseFilter{PriorityOnly: true})
}

// PendingQueue returns the work queue of a stage
func (s *caseQueryServiceImpl) PendingQueue(ctx context.Context, stage domainwf.Stage) ([]*entity.Case, error) {
	statuses := domainwf.QueueStatuses(stage)
	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: stage %q has no work queue", domainwf.ErrValidation, stage)
	}
	return s.Search(ctx, port.CaseFilter{Stage: stage, Statuses: statuses})
}

// Search returns cases matching an arbitrary filter
func (s *caseQueryServiceImpl) Search(ctx context.Context, filter port.CaseFilter) ([]*entity.Case, error) {
	if err := s.normalize(&filter); err != nil {
		return nil, err
	}

	cases, err := s.caseRepo.List(ctx, filter)
	if err != nil {
		err = domainwf.AsStorageFailure(err)
		s.logger.Error("Failed to list cases", "error", err)
		return nil, err
	}
	return cases, nil
}

func (s *caseQueryServiceImpl) normalize(f *port.CaseFilter) error {
	for _, st := range f.Statuses {
		if !st.IsValid() {
			return fmt.Errorf("%w: %q", domainwf.ErrInvalidStatus, st)
		}
	}
	if f.Stage != "" && !f.Stage.IsValid() {
		return fmt.Errorf("%w: unknown stage %q", domainwf.ErrValidation, f.Stage)
	}
	if f.Kind != "" && !f.Kind.IsValid() {
		return fmt.Errorf("%w: unknown case kind %q", domainwf.ErrValidation, f.Kind)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("%w: limit and offset must not be negative", domainwf.ErrValidation)
	}
	if s.maxLimit > 0 && (f.Limit == 0 || f.Limit > s.maxLimit) {
		f.Limit = s.maxLimit
	}
	return nil
}

// ExportQueue writes the matching cases as a document
func (s *caseQueryServiceImpl) ExportQueue(ctx context.Context, filter port.CaseFilter, w io.Writer) error {
	cases, err := s.Search(ctx, filter)
	if err != nil {
		return err
	}
	if err := s.exporter.Export(w, cases); err != nil {
		s.logger.Error("Failed to export queue", "error", err, "case_count", len(cases))
		return fmt.Errorf("%w: export queue: %v", domainwf.ErrStorageFailure, err)
	}

	s.logger.Info("Queue exported", "case_count", len(cases))
	return nil
}
