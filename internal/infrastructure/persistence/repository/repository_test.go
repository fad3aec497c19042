package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/pharmacy-workflow/pkg/database"
)

type testRepos struct {
	tx            *sqlite.DB
	cases         port.CaseRepository
	notifications port.NotificationRepository
	history       port.HistoryRepository
}

func setupRepos(t *testing.T) testRepos {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "workflow.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrations, err := database.Migrations(database.DriverSQLite)
	require.NoError(t, err)
	_, err = database.NewMigrator(db, logger).RunMigrations(migrations)
	require.NoError(t, err)

	return testRepos{
		tx:            sqlite.NewDB(db.DB, logger),
		cases:         NewCaseRepository(db.DB, logger),
		notifications: NewNotificationRepository(db.DB, logger),
		history:       NewHistoryRepository(db.DB, logger),
	}
}

var base = time.Date(2024, 7, 1, 8, 30, 0, 0, time.UTC)

func prescriptionCase(id string, status workflow.Status, enteredAfter time.Duration) *entity.Case {
	c := entity.NewCase(id, entity.CaseKindPrescription, entity.ContactInfo{FirstName: "Pat", LastName: id, Phone: "+14155550100"}, base)
	c.Prescription = &entity.PrescriptionDetails{
		PrescriberID: "dr-1",
		Items:        []entity.PrescriptionItem{{MedicationID: "amoxicillin-500", Quantity: 21, Refills: 1}},
	}
	c.ApplyStatus(status, base.Add(enteredAfter))
	return c
}

func TestCaseRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)

	c := prescriptionCase("rx-1", workflow.StatusDataEntryPending, 0)
	c.Insurance = &entity.InsuranceInfo{Provider: "Acme Health", MemberID: "A-100"}
	c.AppendNote("tech-1", "patient prefers text", base.Add(time.Minute))
	require.NoError(t, repos.cases.Create(ctx, c))

	got, err := repos.cases.GetByID(ctx, "rx-1")
	require.NoError(t, err)

	assert.Equal(t, c.Kind, got.Kind)
	assert.Equal(t, c.Patient, got.Patient)
	assert.Equal(t, c.Insurance, got.Insurance)
	assert.Equal(t, c.Prescription, got.Prescription)
	assert.Nil(t, got.VaccineAppointment)
	assert.Equal(t, workflow.StageDataEntry, got.Workflow.CurrentStage)
	assert.Equal(t, workflow.StatusDataEntryPending, got.Workflow.Status)
	assert.True(t, c.Workflow.EnteredWorkflowAt.Equal(got.Workflow.EnteredWorkflowAt))
	assert.True(t, c.Workflow.CurrentStageEnteredAt.Equal(got.Workflow.CurrentStageEnteredAt))
	require.Len(t, got.Workflow.Notes, 1)
	assert.Equal(t, "patient prefers text", got.Workflow.Notes[0].Text)
	assert.Nil(t, got.Workflow.CompletedAt)
	assert.Equal(t, int64(1), got.Version)

	_, err = repos.cases.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestCaseRepository_SaveChecksVersion(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)

	require.NoError(t, repos.cases.Create(ctx, prescriptionCase("rx-1", workflow.StatusNotificationsSent, 0)))

	first, err := repos.cases.GetByID(ctx, "rx-1")
	require.NoError(t, err)
	stale, err := repos.cases.GetByID(ctx, "rx-1")
	require.NoError(t, err)

	first.ApplyStatus(workflow.StatusCompleted, base.Add(time.Hour))
	require.NoError(t, repos.cases.Save(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	stale.Workflow.Priority = true
	err = repos.cases.Save(ctx, stale, 1)
	assert.ErrorIs(t, err, workflow.ErrConcurrentModification)

	stored, err := repos.cases.GetByID(ctx, "rx-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, stored.Workflow.Status)
	assert.False(t, stored.Workflow.Priority)
	require.NotNil(t, stored.Workflow.CompletedAt)
	assert.True(t, base.Add(time.Hour).Equal(*stored.Workflow.CompletedAt))

	ghost := prescriptionCase("ghost", workflow.StatusDataEntryPending, 0)
	assert.ErrorIs(t, repos.cases.Save(ctx, ghost, 1), workflow.ErrNotFound)
}

func TestCaseRepository_List(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)

	seed := []struct {
		id       string
		status   workflow.Status
		entered  time.Duration
		priority bool
		assignee string
	}{
		{"a", workflow.StatusProductPending, 3 * time.Hour, false, ""},
		{"b", workflow.StatusProductPending, 90 * time.Minute, false, "tech-1"},
		{"c", workflow.StatusProductPending, 5 * time.Hour, true, ""},
		{"d", workflow.StatusProductInProgress, 2*time.Hour + 500*time.Millisecond, false, "tech-1"},
		{"e", workflow.StatusDataReviewPending, time.Hour, true, ""},
	}
	for _, s := range seed {
		c := prescriptionCase(s.id, s.status, s.entered)
		c.Workflow.Priority = s.priority
		c.Workflow.AssignedToUserID = s.assignee
		require.NoError(t, repos.cases.Create(ctx, c))
	}

	tests := []struct {
		name   string
		filter port.CaseFilter
		want   []string
	}{
		{"everything", port.CaseFilter{}, []string{"e", "c", "b", "d", "a"}},
		{"by status", port.CaseFilter{Statuses: []workflow.Status{workflow.StatusProductPending}}, []string{"c", "b", "a"}},
		{"by stage", port.CaseFilter{Stage: workflow.StageProduct}, []string{"c", "b", "d", "a"}},
		{"by assignee", port.CaseFilter{AssignedToUserID: "tech-1"}, []string{"b", "d"}},
		{"priority only", port.CaseFilter{PriorityOnly: true}, []string{"e", "c"}},
		{"by kind", port.CaseFilter{Kind: entity.CaseKindVaccineAppointment}, []string{}},
		{"limit", port.CaseFilter{Limit: 2}, []string{"e", "c"}},
		{"offset only", port.CaseFilter{Offset: 3}, []string{"d", "a"}},
		{"page", port.CaseFilter{Stage: workflow.StageProduct, Limit: 2, Offset: 1}, []string{"b", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repos.cases.List(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, c := range got {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestTransaction_RollbackAndJoin(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)
	boom := errors.New("boom")

	err := repos.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, repos.cases.Create(txCtx, prescriptionCase("rx-1", workflow.StatusDataEntryPending, 0)))

		// a nested call joins the outer transaction and sees its writes
		return repos.tx.WithTransaction(txCtx, func(inner context.Context) error {
			_, err := repos.cases.GetByID(inner, "rx-1")
			require.NoError(t, err)
			require.NoError(t, repos.history.Create(inner, &entity.HistoryEntry{
				ID: "h-1", CaseID: "rx-1", NewStatus: workflow.StatusDataEntryPending, Action: entity.ActionCreate, CreatedAt: base,
			}))
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	_, err = repos.cases.GetByID(ctx, "rx-1")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	history, err := repos.history.ListByCase(ctx, "rx-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)
	require.NoError(t, repos.cases.Create(ctx, prescriptionCase("rx-1", workflow.StatusNotificationsPending, 0)))

	newNotification := func(id string, at time.Time) *entity.Notification {
		return &entity.Notification{
			ID:             id,
			CaseID:         "rx-1",
			CaseKind:       entity.CaseKindPrescription,
			RecipientPhone: "+14155550100",
			Message:        "ready",
			Status:         entity.NotificationStatusPending,
			CreatedAt:      at,
			UpdatedAt:      at,
		}
	}

	require.NoError(t, repos.notifications.Create(ctx, newNotification("n-2", base.Add(time.Minute))))
	require.NoError(t, repos.notifications.Create(ctx, newNotification("n-1", base)))
	require.NoError(t, repos.notifications.Create(ctx, newNotification("n-3", base.Add(time.Minute))))

	orphan := newNotification("n-x", base)
	orphan.CaseID = "missing"
	assert.ErrorIs(t, repos.notifications.Create(ctx, orphan), workflow.ErrNotFound)

	pending, err := repos.notifications.ListByStatus(ctx, entity.NotificationStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "n-1", pending[0].ID)
	assert.Equal(t, "n-2", pending[1].ID)
	assert.Equal(t, "n-3", pending[2].ID)

	limited, err := repos.notifications.ListByStatus(ctx, entity.NotificationStatusPending, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := repos.notifications.GetByID(ctx, "n-1")
	require.NoError(t, err)
	sentAt := base.Add(2 * time.Minute)
	n.Status = entity.NotificationStatusSent
	n.SentAt = &sentAt
	n.UpdatedAt = sentAt
	require.NoError(t, repos.notifications.Update(ctx, n, entity.NotificationStatusPending))

	again := *n
	again.Status = entity.NotificationStatusFailed
	assert.ErrorIs(t, repos.notifications.Update(ctx, &again, entity.NotificationStatusPending), workflow.ErrConcurrentModification)

	missing := *n
	missing.ID = "nope"
	assert.ErrorIs(t, repos.notifications.Update(ctx, &missing, entity.NotificationStatusPending), workflow.ErrNotFound)

	stored, err := repos.notifications.GetByID(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationStatusSent, stored.Status)
	require.NotNil(t, stored.SentAt)
	assert.True(t, sentAt.Equal(*stored.SentAt))

	byCase, err := repos.notifications.ListByCase(ctx, "rx-1")
	require.NoError(t, err)
	assert.Len(t, byCase, 3)

	_, err = repos.notifications.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)
	require.NoError(t, repos.cases.Create(ctx, prescriptionCase("rx-1", workflow.StatusDataEntryCompleted, 0)))

	entries := []*entity.HistoryEntry{
		{ID: "h-1", CaseID: "rx-1", ActorID: "tech-1", NewStatus: workflow.StatusDataEntryPending, Action: entity.ActionCreate, CreatedAt: base},
		{ID: "h-2", CaseID: "rx-1", ActorID: "tech-1", PreviousStatus: workflow.StatusDataEntryCompleted, NewStatus: workflow.StatusDataReviewPending, Action: entity.ActionAdvance, CreatedAt: base.Add(time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, repos.history.Create(ctx, e))
	}

	got, err := repos.history.ListByCase(ctx, "rx-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "h-1", got[0].ID)
	assert.Equal(t, workflow.Status(""), got[0].PreviousStatus)
	assert.Equal(t, workflow.StatusDataReviewPending, got[1].NewStatus)
	assert.Equal(t, entity.ActionAdvance, got[1].Action)
	assert.True(t, entries[1].CreatedAt.Equal(got[1].CreatedAt))
}
