package http

import (
	"strings"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// CreateCaseRequest is the body of POST /api/cases
type CreateCaseRequest struct {
	Kind               entity.CaseKind                   `json:"kind" binding:"required"`
	Patient            entity.ContactInfo                `json:"patient"`
	Insurance          *entity.InsuranceInfo             `json:"insurance,omitempty"`
	Prescription       *entity.PrescriptionDetails       `json:"prescription,omitempty"`
	VaccineAppointment *entity.VaccineAppointmentDetails `json:"vaccine_appointment,omitempty"`
	Priority           bool                              `json:"priority"`
	Note               string                            `json:"note,omitempty"`
	CreatedBy          string                            `json:"created_by"`
}

// ActorRequest identifies who performs an action without further input
type ActorRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

// ReasonRequest carries a free-text reason (reject, cancel)
type ReasonRequest struct {
	Reason  string `json:"reason"`
	ActorID string `json:"actor_id" binding:"required"`
}

// DecisionRequest fires a within-stage decision such as START or APPROVE
type DecisionRequest struct {
	Trigger string `json:"trigger" binding:"required"`
	ActorID string `json:"actor_id" binding:"required"`
}

// AssignRequest sets the assignee; an empty assigned_to clears it
type AssignRequest struct {
	AssignedTo string `json:"assigned_to"`
	AssignedBy string `json:"assigned_by" binding:"required"`
}

// NotesRequest appends a note
type NotesRequest struct {
	Note    string `json:"note" binding:"required"`
	ActorID string `json:"actor_id" binding:"required"`
}

// PriorityRequest sets or clears the priority flag
type PriorityRequest struct {
	Priority *bool  `json:"priority" binding:"required"`
	ActorID  string `json:"actor_id" binding:"required"`
}

// MarkFailedRequest records a delivery failure
type MarkFailedRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ListCasesQuery holds query parameters for case listings and exports.
// status may be repeated or comma separated.
type ListCasesQuery struct {
	Status     []string `form:"status"`
	Stage      string   `form:"stage"`
	Kind       string   `form:"kind"`
	AssignedTo string   `form:"assigned_to"`
	Priority   bool     `form:"priority"`
	Limit      int      `form:"limit"`
	Offset     int      `form:"offset"`
}

// Filter converts the query into a repository filter
func (q ListCasesQuery) Filter() port.CaseFilter {
	f := port.CaseFilter{
		Stage:            domainwf.Stage(strings.ToUpper(strings.TrimSpace(q.Stage))),
		Kind:             entity.CaseKind(strings.ToUpper(strings.TrimSpace(q.Kind))),
		AssignedToUserID: strings.TrimSpace(q.AssignedTo),
		PriorityOnly:     q.Priority,
		Limit:            q.Limit,
		Offset:           q.Offset,
	}
	for _, raw := range q.Status {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Statuses = append(f.Statuses, domainwf.Status(strings.ToUpper(s)))
			}
		}
	}
	return f
}
