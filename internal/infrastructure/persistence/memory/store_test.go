package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newCase(id string, enteredAt time.Time) *entity.Case {
	c := entity.NewCase(id, entity.CaseKindPrescription, entity.ContactInfo{FirstName: "Pat"}, enteredAt)
	c.Prescription = &entity.PrescriptionDetails{PrescriberID: "dr-1"}
	return c
}

func TestCaseRepository_SaveChecksVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Cases()

	c := newCase("c1", t0)
	require.NoError(t, repo.Create(ctx, c))

	loaded, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	loaded.ApplyStatus(workflow.StatusDataEntryInProgress, t0)
	require.NoError(t, repo.Save(ctx, loaded, 1))
	assert.Equal(t, int64(2), loaded.Version)

	stale := newCase("c1", t0)
	err = repo.Save(ctx, stale, 1)
	assert.ErrorIs(t, err, workflow.ErrConcurrentModification)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	assert.ErrorIs(t, repo.Save(ctx, newCase("missing", t0), 1), workflow.ErrNotFound)
}

func TestCaseRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Cases()
	require.NoError(t, repo.Create(ctx, newCase("c1", t0)))

	loaded, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	loaded.AppendNote("u", "scribble", t0)

	again, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, again.Workflow.Notes)
}

func TestCaseRepository_ListQueueOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Cases()

	old := newCase("old", t0)
	newer := newCase("newer", t0.Add(time.Hour))
	urgent := newCase("urgent", t0.Add(2*time.Hour))
	urgent.Workflow.Priority = true
	tieB := newCase("tie-b", t0.Add(3*time.Hour))
	tieA := newCase("tie-a", t0.Add(3*time.Hour))
	for _, c := range []*entity.Case{old, newer, urgent, tieB, tieA} {
		require.NoError(t, repo.Create(ctx, c))
	}

	got, err := repo.List(ctx, port.CaseFilter{})
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"urgent", "old", "newer", "tie-a", "tie-b"}, ids)

	page, err := repo.List(ctx, port.CaseFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "old", page[0].ID)

	empty, err := repo.List(ctx, port.CaseFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	priority, err := repo.List(ctx, port.CaseFilter{PriorityOnly: true})
	require.NoError(t, err)
	require.Len(t, priority, 1)
	assert.Equal(t, "urgent", priority[0].ID)
}

func TestCaseRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Cases()

	a := newCase("a", t0)
	a.Workflow.AssignedToUserID = "tech-1"
	b := newCase("b", t0)
	b.ApplyStatus(workflow.StatusDataReviewPending, t0)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	tests := []struct {
		name   string
		filter port.CaseFilter
		want   []string
	}{
		{"by status", port.CaseFilter{Statuses: []workflow.Status{workflow.StatusDataReviewPending}}, []string{"b"}},
		{"by stage", port.CaseFilter{Stage: workflow.StageDataEntry}, []string{"a"}},
		{"by assignee", port.CaseFilter{AssignedToUserID: "tech-1"}, []string{"a"}},
		{"by kind", port.CaseFilter{Kind: entity.CaseKindVaccineAppointment}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, c := range got {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_RollbackUndoesWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	cases := store.Cases()
	notifications := store.Notifications()
	history := store.History()

	require.NoError(t, cases.Create(ctx, newCase("c1", t0)))

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := cases.GetByID(txCtx, "c1")
		require.NoError(t, err)
		loaded.ApplyStatus(workflow.StatusDataEntryInProgress, t0)
		require.NoError(t, cases.Save(txCtx, loaded, 1))
		require.NoError(t, cases.Create(txCtx, newCase("c2", t0)))
		require.NoError(t, notifications.Create(txCtx, &entity.Notification{ID: "n1", CaseID: "c1", Status: entity.NotificationStatusPending}))
		require.NoError(t, history.Create(txCtx, &entity.HistoryEntry{ID: "h1", CaseID: "c1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	c1, err := cases.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c1.Version)
	assert.Equal(t, workflow.StatusDataEntryPending, c1.Workflow.Status)

	_, err = cases.GetByID(ctx, "c2")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	_, err = notifications.GetByID(ctx, "n1")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	entries, err := history.ListByCase(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, cases.(*CaseRepository).Len())
}

func TestStore_NestedTransactionJoinsOuter(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	cases := store.Cases()

	err := store.WithTransaction(ctx, func(outer context.Context) error {
		require.NoError(t, store.WithTransaction(outer, func(inner context.Context) error {
			return cases.Create(inner, newCase("c1", t0))
		}))
		return errors.New("outer fails")
	})
	require.Error(t, err)

	_, err = cases.GetByID(ctx, "c1")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestStore_UncommittedWritesStayInsideTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	cases := store.Cases()
	require.NoError(t, cases.Create(ctx, newCase("c1", t0)))

	err := store.WithTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := cases.GetByID(txCtx, "c1")
		require.NoError(t, err)
		loaded.ApplyStatus(workflow.StatusDataEntryCompleted, t0)
		require.NoError(t, cases.Save(txCtx, loaded, 1))

		inside, err := cases.GetByID(txCtx, "c1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), inside.Version)

		outside, err := cases.GetByID(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), outside.Version)
		assert.Equal(t, workflow.StatusDataEntryPending, outside.Workflow.Status)

		listed, err := cases.List(ctx, port.CaseFilter{Statuses: []workflow.Status{workflow.StatusDataEntryCompleted}})
		require.NoError(t, err)
		assert.Empty(t, listed)
		return nil
	})
	require.NoError(t, err)

	committed, err := cases.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDataEntryCompleted, committed.Workflow.Status)
}

func TestStore_RollbackKeepsConcurrentCommit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	cases := store.Cases()
	require.NoError(t, cases.Create(ctx, newCase("c1", t0)))

	boom := errors.New("history write failed")
	err := store.WithTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := cases.GetByID(txCtx, "c1")
		require.NoError(t, err)
		loaded.ApplyStatus(workflow.StatusDataEntryCompleted, t0)
		require.NoError(t, cases.Save(txCtx, loaded, 1))

		other, err := cases.GetByID(ctx, "c1")
		require.NoError(t, err)
		other.AppendNote("tech-b", "called prescriber", t0)
		require.NoError(t, cases.Save(ctx, other, 1))
		return boom
	})
	require.ErrorIs(t, err, boom)

	final, err := cases.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), final.Version)
	assert.Equal(t, workflow.StatusDataEntryPending, final.Workflow.Status)
	require.Len(t, final.Workflow.Notes, 1)
	assert.Equal(t, "called prescriber", final.Workflow.Notes[0].Text)
}

func TestStore_CommitDetectsConcurrentChange(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	cases := store.Cases()
	history := store.History()
	require.NoError(t, cases.Create(ctx, newCase("c1", t0)))

	err := store.WithTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := cases.GetByID(txCtx, "c1")
		require.NoError(t, err)
		loaded.ApplyStatus(workflow.StatusDataEntryCompleted, t0)
		require.NoError(t, cases.Save(txCtx, loaded, 1))
		require.NoError(t, history.Create(txCtx, &entity.HistoryEntry{ID: "h1", CaseID: "c1"}))

		other, err := cases.GetByID(ctx, "c1")
		require.NoError(t, err)
		other.Workflow.Priority = true
		require.NoError(t, cases.Save(ctx, other, 1))
		return nil
	})
	assert.ErrorIs(t, err, workflow.ErrConcurrentModification)

	final, err := cases.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, final.Workflow.Priority)
	assert.Equal(t, workflow.StatusDataEntryPending, final.Workflow.Status)
	entries, err := history.ListByCase(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Cases().Create(ctx, newCase("c1", t0)))
	repo := store.Notifications()

	err := repo.Create(ctx, &entity.Notification{ID: "orphan", CaseID: "nope"})
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	first := &entity.Notification{ID: "n1", CaseID: "c1", Status: entity.NotificationStatusPending, CreatedAt: t0}
	second := &entity.Notification{ID: "n2", CaseID: "c1", Status: entity.NotificationStatusPending, CreatedAt: t0}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	pending, err := repo.ListByStatus(ctx, entity.NotificationStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "n1", pending[0].ID)

	limited, err := repo.ListByStatus(ctx, entity.NotificationStatusPending, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	sent := t0.Add(time.Minute)
	first.Status = entity.NotificationStatusSent
	first.SentAt = &sent
	require.NoError(t, repo.Update(ctx, first, entity.NotificationStatusPending))
	assert.ErrorIs(t, repo.Update(ctx, first, entity.NotificationStatusPending), workflow.ErrConcurrentModification)

	byCase, err := repo.ListByCase(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, byCase, 2)
	assert.Equal(t, entity.NotificationStatusSent, byCase[0].Status)
	require.NotNil(t, byCase[0].SentAt)
	assert.Equal(t, sent, *byCase[0].SentAt)
}
