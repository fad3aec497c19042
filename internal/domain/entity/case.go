package entity

import (
	"fmt"
	"time"

	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// CaseKind tags which subject a case carries
type CaseKind string

const (
	CaseKindPrescription       CaseKind = "PRESCRIPTION"
	CaseKindVaccineAppointment CaseKind = "VACCINE_APPOINTMENT"
)

// IsValid returns true for a known case kind
func (k CaseKind) IsValid() bool {
	return k == CaseKindPrescription || k == CaseKindVaccineAppointment
}

// ContactInfo is the patient contact shared by every case kind
type ContactInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zip_code,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Sex       string `json:"sex,omitempty"`
}

// FullName joins first and last name
func (c ContactInfo) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// InsuranceInfo is the payer data attached to a case
type InsuranceInfo struct {
	Provider string `json:"provider"`
	MemberID string `json:"member_id"`
	BIN      string `json:"bin,omitempty"`
	PCN      string `json:"pcn,omitempty"`
	GroupID  string `json:"group_id,omitempty"`
}

// PrescriptionItem is one medication line on a prescription
type PrescriptionItem struct {
	MedicationID string  `json:"medication_id"`
	Strength     string  `json:"strength,omitempty"`
	Dose         string  `json:"dose,omitempty"`
	Quantity     float64 `json:"quantity"`
	Sig          string  `json:"sig,omitempty"`
	DAW          bool    `json:"daw"`
	Refills      int     `json:"refills"`
}

// PrescriptionDetails is the subject of a PRESCRIPTION case
type PrescriptionDetails struct {
	PrescriberID string             `json:"prescriber_id"`
	FacilityID   string             `json:"facility_id,omitempty"`
	Items        []PrescriptionItem `json:"items"`
}

// Appointment statuses for vaccine cases
const (
	AppointmentScheduled = "SCHEDULED"
	AppointmentCompleted = "COMPLETED"
	AppointmentCanceled  = "CANCELED"
	AppointmentNoShow    = "NO_SHOW"
)

// VaccineAppointmentDetails is the subject of a VACCINE_APPOINTMENT case
type VaccineAppointmentDetails struct {
	VaccineType       string            `json:"vaccine_type"`
	VaccineProductID  string            `json:"vaccine_product_id,omitempty"`
	AppointmentAt     time.Time         `json:"appointment_at"`
	AppointmentStatus string            `json:"appointment_status"`
	Questions         map[string]string `json:"questions,omitempty"`
}

// Note is one attributed entry in a case's notes log
type Note struct {
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkflowState is the workflow position attached to a case.
// It is only mutated through Case methods so that stage always follows status.
type WorkflowState struct {
	CurrentStage          workflow.Stage  `json:"current_stage"`
	Status                workflow.Status `json:"workflow_status"`
	EnteredWorkflowAt     time.Time       `json:"entered_workflow_at"`
	CurrentStageEnteredAt time.Time       `json:"current_stage_entered_at"`
	AssignedToUserID      string          `json:"assigned_to_user_id,omitempty"`
	AssignedByUserID      string          `json:"assigned_by_user_id,omitempty"`
	Notes                 []Note          `json:"notes"`
	Priority              bool            `json:"priority"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty"`
}

// Case is a unit of work moving through the pharmacy pipeline.
// Exactly one of Prescription and VaccineAppointment is set, matching Kind.
type Case struct {
	ID                 string                     `json:"id"`
	Kind               CaseKind                   `json:"kind"`
	Patient            ContactInfo                `json:"patient"`
	Insurance          *InsuranceInfo             `json:"insurance,omitempty"`
	Prescription       *PrescriptionDetails       `json:"prescription,omitempty"`
	VaccineAppointment *VaccineAppointmentDetails `json:"vaccine_appointment,omitempty"`
	Workflow           WorkflowState              `json:"workflow"`
	Version            int64                      `json:"version"`
	CreatedAt          time.Time                  `json:"created_at"`
	UpdatedAt          time.Time                  `json:"updated_at"`
}

// NewCase creates a case at the start of the pipeline
func NewCase(id string, kind CaseKind, patient ContactInfo, now time.Time) *Case {
	return &Case{
		ID:      id,
		Kind:    kind,
		Patient: patient,
		Workflow: WorkflowState{
			CurrentStage:          workflow.StageDataEntry,
			Status:                workflow.StatusDataEntryPending,
			EnteredWorkflowAt:     now,
			CurrentStageEnteredAt: now,
			Notes:                 []Note{},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the tagged union and stage/status consistency
func (c *Case) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: case id is required", workflow.ErrValidation)
	}
	switch c.Kind {
	case CaseKindPrescription:
		if c.Prescription == nil || c.VaccineAppointment != nil {
			return fmt.Errorf("%w: prescription case must carry only prescription details", workflow.ErrValidation)
		}
	case CaseKindVaccineAppointment:
		if c.VaccineAppointment == nil || c.Prescription != nil {
			return fmt.Errorf("%w: vaccine appointment case must carry only appointment details", workflow.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown case kind %q", workflow.ErrValidation, c.Kind)
	}
	if !c.Workflow.Status.IsValid() {
		return fmt.Errorf("%w: %s", workflow.ErrInvalidStatus, c.Workflow.Status)
	}
	if c.Workflow.Status.Stage() != c.Workflow.CurrentStage {
		return fmt.Errorf("%w: status %s does not belong to stage %s",
			workflow.ErrValidation, c.Workflow.Status, c.Workflow.CurrentStage)
	}
	if (c.Workflow.CurrentStage == workflow.StageCompleted) != (c.Workflow.CompletedAt != nil) {
		return fmt.Errorf("%w: completed_at must be set exactly when the case is completed", workflow.ErrValidation)
	}
	return nil
}

// IsTerminal returns true once the case is COMPLETED or CANCELLED
func (c *Case) IsTerminal() bool {
	return c.Workflow.CurrentStage.IsTerminal()
}

// Contact returns the patient contact regardless of case kind
func (c *Case) Contact() ContactInfo {
	return c.Patient
}

// Insurer returns the insurance attached to the case, if any
func (c *Case) Insurer() *InsuranceInfo {
	return c.Insurance
}

// ApplyStatus moves the case to next, forcing the stage to match.
// The stage-entered timestamp is reset only on a stage change and never moves backwards.
func (c *Case) ApplyStatus(next workflow.Status, now time.Time) {
	w := &c.Workflow
	nextStage := next.Stage()

	if nextStage != w.CurrentStage {
		w.CurrentStage = nextStage
		if now.After(w.CurrentStageEnteredAt) {
			w.CurrentStageEnteredAt = now
		}
	}
	w.Status = next

	if nextStage == workflow.StageCompleted {
		if w.CompletedAt == nil {
			completed := now
			w.CompletedAt = &completed
		}
	} else {
		w.CompletedAt = nil
	}
	c.UpdatedAt = now
}

// AppendNote adds an attributed note at the end of the log
func (c *Case) AppendNote(authorID, text string, now time.Time) {
	c.Workflow.Notes = append(c.Workflow.Notes, Note{
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: now,
	})
	c.UpdatedAt = now
}

// Assign records who the case is assigned to and by whom
func (c *Case) Assign(toUserID, byUserID string, now time.Time) {
	c.Workflow.AssignedToUserID = toUserID
	c.Workflow.AssignedByUserID = byUserID
	c.UpdatedAt = now
}

// SetPriority sets the priority flag
func (c *Case) SetPriority(priority bool, now time.Time) {
	if c.Workflow.Priority == priority {
		return
	}
	c.Workflow.Priority = priority
	c.UpdatedAt = now
}

// Clone returns a deep copy of the case
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c

	if c.Insurance != nil {
		ins := *c.Insurance
		out.Insurance = &ins
	}
	if c.Prescription != nil {
		p := *c.Prescription
		p.Items = append([]PrescriptionItem(nil), c.Prescription.Items...)
		out.Prescription = &p
	}
	if c.VaccineAppointment != nil {
		v := *c.VaccineAppointment
		if c.VaccineAppointment.Questions != nil {
			v.Questions = make(map[string]string, len(c.VaccineAppointment.Questions))
			for k, val := range c.VaccineAppointment.Questions {
				v.Questions[k] = val
			}
		}
		out.VaccineAppointment = &v
	}
	out.Workflow.Notes = append([]Note{}, c.Workflow.Notes...)
	if c.Workflow.CompletedAt != nil {
		done := *c.Workflow.CompletedAt
		out.Workflow.CompletedAt = &done
	}
	return &out
}
