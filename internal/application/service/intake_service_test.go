package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/event"
	domainwf "github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/persistence/memory"
)

func TestIntakeService_CreateCase(t *testing.T) {
	ctx := context.Background()

	t.Run("prescription", func(t *testing.T) {
		store := memory.NewStore()
		publisher := &capturePublisher{}
		svc := NewIntakeService(store.Cases(), store.History(), store, publisher, nopLogger{})

		c, err := svc.CreateCase(ctx, CaseDraft{
			Kind:         entity.CaseKindPrescription,
			Patient:      entity.ContactInfo{FirstName: "Ada", LastName: "Lovelace", Phone: "+14155550100"},
			Prescription: &entity.PrescriptionDetails{PrescriberID: "dr-9"},
			Priority:     true,
			Note:         "walk-in",
			CreatedBy:    "tech-1",
		})
		require.NoError(t, err)

		assert.NotEmpty(t, c.ID)
		assert.Equal(t, domainwf.StageDataEntry, c.Workflow.CurrentStage)
		assert.Equal(t, domainwf.StatusDataEntryPending, c.Workflow.Status)
		assert.Equal(t, c.Workflow.EnteredWorkflowAt, c.Workflow.CurrentStageEnteredAt)
		assert.Equal(t, int64(1), c.Version)
		assert.True(t, c.Workflow.Priority)
		require.Len(t, c.Workflow.Notes, 1)
		assert.Equal(t, "tech-1", c.Workflow.Notes[0].AuthorID)

		stored, err := store.Cases().GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c, stored)

		history, err := store.History().ListByCase(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, entity.ActionCreate, history[0].Action)

		evt := publisher.last()
		require.NotNil(t, evt)
		assert.Equal(t, event.TypeCaseCreated, evt.Type)
		assert.Equal(t, c.ID, evt.CaseID)
	})

	t.Run("vaccine appointment defaults to scheduled", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewIntakeService(store.Cases(), store.History(), store, nil, nopLogger{})

		c, err := svc.CreateCase(ctx, CaseDraft{
			Kind:    entity.CaseKindVaccineAppointment,
			Patient: entity.ContactInfo{LastName: "Turing"},
			VaccineAppointment: &entity.VaccineAppointmentDetails{
				VaccineType:   "COVID-19",
				AppointmentAt: time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, entity.AppointmentScheduled, c.VaccineAppointment.AppointmentStatus)
	})

	tests := []struct {
		name  string
		draft CaseDraft
	}{
		{"missing name", CaseDraft{Kind: entity.CaseKindPrescription, Prescription: &entity.PrescriptionDetails{}}},
		{"unknown kind", CaseDraft{Kind: "REFILL", Patient: entity.ContactInfo{FirstName: "x"}}},
		{"prescription without details", CaseDraft{Kind: entity.CaseKindPrescription, Patient: entity.ContactInfo{FirstName: "x"}}},
		{"both details", CaseDraft{
			Kind:               entity.CaseKindPrescription,
			Patient:            entity.ContactInfo{FirstName: "x"},
			Prescription:       &entity.PrescriptionDetails{},
			VaccineAppointment: &entity.VaccineAppointmentDetails{},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			svc := NewIntakeService(store.Cases(), store.History(), store, nil, nopLogger{})

			_, err := svc.CreateCase(ctx, tt.draft)
			assert.ErrorIs(t, err, domainwf.ErrValidation)
			assert.Zero(t, store.Cases().(*memory.CaseRepository).Len())
		})
	}
}
