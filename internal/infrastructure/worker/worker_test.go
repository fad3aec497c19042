package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/event"
	domainwf "github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

type fakeOutbox struct {
	mu       sync.Mutex
	pending  []*entity.Notification
	sent     []string
	failed   map[string]string
	listErr  error
	conflict map[string]bool
}

func newFakeOutbox(ids ...string) *fakeOutbox {
	o := &fakeOutbox{failed: map[string]string{}, conflict: map[string]bool{}}
	for _, id := range ids {
		o.add(id, "+14155550100")
	}
	return o
}

func (o *fakeOutbox) add(id, phone string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, &entity.Notification{
		ID:             id,
		CaseID:         "case-" + id,
		RecipientPhone: phone,
		Status:         entity.NotificationStatusPending,
	})
}

func (o *fakeOutbox) ListPending(context.Context) ([]*entity.Notification, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.listErr != nil {
		return nil, o.listErr
	}
	return append([]*entity.Notification(nil), o.pending...), nil
}

func (o *fakeOutbox) remove(id string) error {
	if o.conflict[id] {
		return fmt.Errorf("mark %s: %w", id, domainwf.ErrConcurrentModification)
	}
	for i, n := range o.pending {
		if n.ID == id {
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			return nil
		}
	}
	return domainwf.ErrNotFound
}

func (o *fakeOutbox) MarkSent(_ context.Context, id string) (*entity.Notification, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.remove(id); err != nil {
		return nil, err
	}
	o.sent = append(o.sent, id)
	return &entity.Notification{ID: id, Status: entity.NotificationStatusSent}, nil
}

func (o *fakeOutbox) MarkFailed(_ context.Context, id, reason string) (*entity.Notification, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.remove(id); err != nil {
		return nil, err
	}
	o.failed[id] = reason
	return &entity.Notification{ID: id, Status: entity.NotificationStatusFailed}, nil
}

func (o *fakeOutbox) sentIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.sent...)
}

type fakeSender struct{}

func (fakeSender) Name() string { return "fake" }

func (fakeSender) Send(_ context.Context, n *entity.Notification) error {
	if n.RecipientPhone == "" {
		return errors.New("no recipient")
	}
	return nil
}

func newTestWorker(outbox Outbox, cfg NotificationWorkerConfig) *NotificationWorker {
	return NewNotificationWorker(cfg, outbox, fakeSender{}, zap.NewNop())
}

func TestNotificationWorker_ProcessPending(t *testing.T) {
	outbox := newFakeOutbox("n-1", "n-2")
	outbox.add("n-3", "")
	w := newTestWorker(outbox, DefaultNotificationWorkerConfig())

	require.NoError(t, w.ProcessPending(context.Background()))

	assert.Equal(t, []string{"n-1", "n-2"}, outbox.sentIDs())
	assert.Equal(t, "no recipient", outbox.failed["n-3"])

	stats := w.Stats()
	assert.Equal(t, 2, stats.SentCount)
	assert.Equal(t, 1, stats.FailedCount)
	assert.Empty(t, stats.LastError)
}

func TestNotificationWorker_BatchSize(t *testing.T) {
	outbox := newFakeOutbox("n-1", "n-2", "n-3")
	w := newTestWorker(outbox, NotificationWorkerConfig{BatchSize: 2})

	require.NoError(t, w.ProcessPending(context.Background()))
	assert.Equal(t, []string{"n-1", "n-2"}, outbox.sentIDs())

	require.NoError(t, w.ProcessPending(context.Background()))
	assert.Equal(t, []string{"n-1", "n-2", "n-3"}, outbox.sentIDs())
}

func TestNotificationWorker_ResolvedElsewhere(t *testing.T) {
	outbox := newFakeOutbox("n-1")
	outbox.conflict["n-1"] = true
	w := newTestWorker(outbox, DefaultNotificationWorkerConfig())

	require.NoError(t, w.ProcessPending(context.Background()))

	stats := w.Stats()
	assert.Equal(t, 0, stats.SentCount)
	assert.Equal(t, 1, stats.SkippedCount)
	assert.Empty(t, stats.LastError)
}

func TestNotificationWorker_ListError(t *testing.T) {
	outbox := newFakeOutbox()
	outbox.listErr = domainwf.ErrStorageFailure
	w := newTestWorker(outbox, DefaultNotificationWorkerConfig())

	err := w.ProcessPending(context.Background())
	assert.ErrorIs(t, err, domainwf.ErrStorageFailure)
}

func TestNotificationWorker_WakeOnEnqueue(t *testing.T) {
	outbox := newFakeOutbox()
	w := newTestWorker(outbox, NotificationWorkerConfig{PollInterval: time.Hour})

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	assert.True(t, w.Stats().IsRunning)

	outbox.add("n-1", "+14155550100")
	require.NoError(t, w.HandleEnqueued(context.Background(),
		event.NewEvent(event.TypeNotificationEnqueued, "case-n-1", nil)))

	require.Eventually(t, func() bool {
		return len(outbox.sentIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.False(t, w.Stats().IsRunning)
}

func TestNotificationWorker_IgnoresOtherEvents(t *testing.T) {
	w := newTestWorker(newFakeOutbox(), DefaultNotificationWorkerConfig())

	require.NoError(t, w.HandleEnqueued(context.Background(),
		event.NewEvent(event.TypeCaseCreated, "case-1", nil)))
	assert.Len(t, w.wake, 0)
}

type stubWorker struct {
	name     string
	startErr error
	started  bool
	stopped  bool
}

func (s *stubWorker) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *stubWorker) Stop() error {
	s.stopped = true
	return nil
}

func (s *stubWorker) Name() string { return s.name }

func TestWorkerManager(t *testing.T) {
	m := NewWorkerManager(zap.NewNop())
	ok := &stubWorker{name: "ok"}
	broken := &stubWorker{name: "broken", startErr: errors.New("boom")}
	m.Register(ok)
	m.Register(broken)
	assert.Equal(t, 2, m.GetWorkerCount())

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start 1 workers")
	assert.True(t, ok.started)
	assert.True(t, m.IsRunning())

	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.True(t, ok.stopped)
	assert.False(t, m.IsRunning())
	require.NoError(t, m.StopAll())
}
