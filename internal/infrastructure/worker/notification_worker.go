package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
	"github.com/garyjia/pharmacy-workflow/internal/domain/event"
	domainwf "github.com/garyjia/pharmacy-workflow/internal/domain/workflow"
)

// Outbox is the slice of the notification bridge the worker drains
type Outbox interface {
	ListPending(ctx context.Context) ([]*entity.Notification, error)
	MarkSent(ctx context.Context, notificationID string) (*entity.Notification, error)
	MarkFailed(ctx context.Context, notificationID, reason string) (*entity.Notification, error)
}

// NotificationWorkerConfig holds configuration for notification worker
type NotificationWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	SendTimeout  time.Duration
}

// DefaultNotificationWorkerConfig returns default configuration
func DefaultNotificationWorkerConfig() NotificationWorkerConfig {
	return NotificationWorkerConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    20,
		SendTimeout:  10 * time.Second,
	}
}

// NotificationWorkerStats is a snapshot of worker counters
type NotificationWorkerStats struct {
	IsRunning     bool      `json:"is_running"`
	SentCount     int       `json:"sent_count"`
	FailedCount   int       `json:"failed_count"`
	SkippedCount  int       `json:"skipped_count"`
	LastProcessed time.Time `json:"last_processed"`
	LastError     string    `json:"last_error,omitempty"`
}

// NotificationWorker delivers PENDING notifications through a MessageSender and
// records each outcome on the outbox
type NotificationWorker struct {
	config NotificationWorkerConfig
	outbox Outbox
	sender port.MessageSender
	logger *zap.Logger
	wake   chan struct{}

	mu            sync.RWMutex
	cancel        context.CancelFunc
	done          chan struct{}
	isRunning     bool
	lastProcessed time.Time
	sentCount     int
	failedCount   int
	skippedCount  int
	lastError     error
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	config NotificationWorkerConfig,
	outbox Outbox,
	sender port.MessageSender,
	logger *zap.Logger,
) *NotificationWorker {
	defaults := DefaultNotificationWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaults.SendTimeout
	}
	return &NotificationWorker{
		config: config,
		outbox: outbox,
		sender: sender,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Start begins the worker polling loop
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("notification worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("NotificationWorker started",
		zap.String("sender", w.sender.Name()),
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(runCtx, w.done)

	return nil
}

// Stop cancels the loop and waits for the in-flight batch to finish
func (w *NotificationWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("NotificationWorker stopped",
		zap.Int("sent_count", stats.SentCount),
		zap.Int("failed_count", stats.FailedCount))

	return nil
}

// Name returns the worker name for identification
func (w *NotificationWorker) Name() string {
	return "NotificationWorker"
}

// HandleEnqueued is subscribed to notification.enqueued and wakes the loop
// without waiting for the next tick
func (w *NotificationWorker) HandleEnqueued(_ context.Context, evt *event.Event) error {
	if evt.Type != event.TypeNotificationEnqueued {
		return nil
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Stats returns a snapshot of the worker counters
func (w *NotificationWorker) Stats() NotificationWorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := NotificationWorkerStats{
		IsRunning:     w.isRunning,
		SentCount:     w.sentCount,
		FailedCount:   w.failedCount,
		SkippedCount:  w.skippedCount,
		LastProcessed: w.lastProcessed,
	}
	if w.lastError != nil {
		stats.LastError = w.lastError.Error()
	}
	return stats
}

func (w *NotificationWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Poll loop context cancelled")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		case <-w.wake:
			w.runOnce(ctx)
		}
	}
}

func (w *NotificationWorker) runOnce(ctx context.Context) {
	err := w.ProcessPending(ctx)

	w.mu.Lock()
	w.lastProcessed = time.Now()
	if err != nil {
		w.lastError = err
	}
	w.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		w.logger.Error("Failed to process pending notifications", zap.Error(err))
	}
}

// ProcessPending sends up to BatchSize pending notifications, oldest first
func (w *NotificationWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.outbox.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending notifications: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	if len(pending) > w.config.BatchSize {
		pending = pending[:w.config.BatchSize]
	}

	w.logger.Debug("Processing pending notifications", zap.Int("count", len(pending)))

	for _, n := range pending {
		if ctx.Err() != nil {
			return nil
		}
		w.deliver(ctx, n)
	}
	return nil
}

func (w *NotificationWorker) deliver(ctx context.Context, n *entity.Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
	sendErr := w.sender.Send(sendCtx, n)
	cancel()

	var err error
	if sendErr != nil {
		w.logger.Warn("Notification send failed",
			zap.String("notification_id", n.ID),
			zap.String("case_id", n.CaseID),
			zap.Error(sendErr))
		_, err = w.outbox.MarkFailed(ctx, n.ID, sendErr.Error())
	} else {
		_, err = w.outbox.MarkSent(ctx, n.ID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case errors.Is(err, domainwf.ErrConcurrentModification), errors.Is(err, domainwf.ErrInvalidTransition):
		// resolved elsewhere between listing and marking
		w.skippedCount++
		w.logger.Info("Notification already resolved",
			zap.String("notification_id", n.ID))
	case err != nil:
		w.lastError = err
		w.logger.Error("Failed to record notification outcome",
			zap.String("notification_id", n.ID),
			zap.Error(err))
	case sendErr != nil:
		w.failedCount++
	default:
		w.sentCount++
		w.logger.Info("Notification sent",
			zap.String("notification_id", n.ID),
			zap.String("case_id", n.CaseID),
			zap.String("sender", w.sender.Name()))
	}
}
