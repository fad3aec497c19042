// Package record maps entities to the flat column layout shared by the SQL repositories.
package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// CaseRecord is one row of the cases table. JSON columns hold nested structures.
type CaseRecord struct {
	ID                    string
	Kind                  string
	Patient               []byte
	Insurance             []byte
	Prescription          []byte
	VaccineAppointment    []byte
	CurrentStage          string
	Status                string
	EnteredWorkflowAt     time.Time
	CurrentStageEnteredAt time.Time
	AssignedToUserID      string
	AssignedByUserID      string
	Notes                 []byte
	Priority              bool
	CompletedAt           *time.Time
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// FromCase flattens a case into a row
func FromCase(c *entity.Case) (*CaseRecord, error) {
	patient, err := json.Marshal(c.Patient)
	if err != nil {
		return nil, fmt.Errorf("marshal patient: %w", err)
	}
	insurance, err := marshalOptional(c.Insurance)
	if err != nil {
		return nil, fmt.Errorf("marshal insurance: %w", err)
	}
	prescription, err := marshalOptional(c.Prescription)
	if err != nil {
		return nil, fmt.Errorf("marshal prescription: %w", err)
	}
	appointment, err := marshalOptional(c.VaccineAppointment)
	if err != nil {
		return nil, fmt.Errorf("marshal vaccine appointment: %w", err)
	}

	notes := c.Workflow.Notes
	if notes == nil {
		notes = []entity.Note{}
	}
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return nil, fmt.Errorf("marshal notes: %w", err)
	}

	return &CaseRecord{
		ID:                    c.ID,
		Kind:                  string(c.Kind),
		Patient:               patient,
		Insurance:             insurance,
		Prescription:          prescription,
		VaccineAppointment:    appointment,
		CurrentStage:          string(c.Workflow.CurrentStage),
		Status:                string(c.Workflow.Status),
		EnteredWorkflowAt:     c.Workflow.EnteredWorkflowAt,
		CurrentStageEnteredAt: c.Workflow.CurrentStageEnteredAt,
		AssignedToUserID:      c.Workflow.AssignedToUserID,
		AssignedByUserID:      c.Workflow.AssignedByUserID,
		Notes:                 notesJSON,
		Priority:              c.Workflow.Priority,
		CompletedAt:           c.Workflow.CompletedAt,
		Version:               c.Version,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}, nil
}

// ToCase rebuilds the case held in a row
func (r *CaseRecord) ToCase() (*entity.Case, error) {
	c := &entity.Case{
		ID:   r.ID,
		Kind: entity.CaseKind(r.Kind),
		Workflow: entity.WorkflowState{
			CurrentStage:          workflow.Stage(r.CurrentStage),
			Status:                workflow.Status(r.Status),
			EnteredWorkflowAt:     r.EnteredWorkflowAt,
			CurrentStageEnteredAt: r.CurrentStageEnteredAt,
			AssignedToUserID:      r.AssignedToUserID,
			AssignedByUserID:      r.AssignedByUserID,
			Priority:              r.Priority,
			CompletedAt:           r.CompletedAt,
		},
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if err := json.Unmarshal(r.Patient, &c.Patient); err != nil {
		return nil, fmt.Errorf("case %s: unmarshal patient: %w", r.ID, err)
	}
	if err := unmarshalOptional(r.Insurance, &c.Insurance); err != nil {
		return nil, fmt.Errorf("case %s: unmarshal insurance: %w", r.ID, err)
	}
	if err := unmarshalOptional(r.Prescription, &c.Prescription); err != nil {
		return nil, fmt.Errorf("case %s: unmarshal prescription: %w", r.ID, err)
	}
	if err := unmarshalOptional(r.VaccineAppointment, &c.VaccineAppointment); err != nil {
		return nil, fmt.Errorf("case %s: unmarshal vaccine appointment: %w", r.ID, err)
	}

	c.Workflow.Notes = []entity.Note{}
	if len(r.Notes) > 0 {
		if err := json.Unmarshal(r.Notes, &c.Workflow.Notes); err != nil {
			return nil, fmt.Errorf("case %s: unmarshal notes: %w", r.ID, err)
		}
	}

	return c, nil
}

func marshalOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalOptional[T any](data []byte, dst **T) error {
	if len(data) == 0 || string(data) == "null" {
		*dst = nil
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	*dst = v
	return nil
}
