package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/dispatcher"
	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/application/service"
	"github.com/garyjia/pharmacy-workflow/internal/application/workflow"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database *DatabaseBundle

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle
	engine     workflow.Engine

	// Workers
	workers            *worker.WorkerManager
	notificationWorker *worker.NotificationWorker

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Case         port.CaseRepository
	Notification port.NotificationRepository
	History      port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Notification      service.NotificationBridge
	Query             service.CaseQueryService
	Intake            service.IntakeService
	ExportContentType string
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Event dispatcher
// 3. Application services
// 4. Workflow engine and event subscriptions
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization", zap.String("driver", c.config.Database.Driver))

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"dispatcher", c.initDispatcher},
		{"services", c.initServices},
		{"workflow engine", c.initWorkflow},
		{"workers", c.initWorkers},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			c.teardown()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Component initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized so far, newest first
func (c *Container) teardown() error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil && !errors.Is(err, dispatcher.ErrClosed) {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.workers, c.notificationWorker = nil, nil
	c.dispatcher, c.database = nil, nil
	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, message string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: message}
		if !healthy {
			status.Overall = false
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.database == nil {
		set("database", false, "not initialized")
	} else if err := c.database.Ping(ctx); err != nil {
		set("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		set("database", true, c.config.Database.Driver)
	}

	if c.dispatcher == nil || c.engine == nil {
		set("workflow", false, "not initialized")
	} else {
		set("workflow", true, "")
	}

	if c.notificationWorker != nil {
		stats := c.notificationWorker.Stats()
		set("notification_worker", stats.IsRunning,
			fmt.Sprintf("sent %d, failed %d", stats.SentCount, stats.FailedCount))
	}

	return status
}

// HealthCheck reports each component as nil when healthy
func (c *Container) HealthCheck(ctx context.Context) map[string]error {
	out := make(map[string]error)
	for name, comp := range c.Health(ctx).Components {
		if comp.Healthy {
			out[name] = nil
			continue
		}
		out[name] = errors.New(comp.Message)
	}
	return out
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger.Named("database"))
	if err != nil {
		return err
	}
	c.database = bundle
	return nil
}

func (c *Container) initDispatcher() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:        c.database.Repos,
		TxManager:    c.database.TxManager,
		Dispatcher:   c.dispatcher,
		Notification: &c.config.Notification,
		Workflow:     &c.config.Workflow,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initWorkflow() error {
	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.database.Repos,
		TxManager:  c.database.TxManager,
		Dispatcher: c.dispatcher,
		Queue:      c.services.Notification,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

func (c *Container) initWorkers() error {
	manager, notificationWorker, err := ProvideWorkers(&WorkerDeps{
		Outbox:     c.services.Notification,
		Dispatcher: c.dispatcher,
		Dispatch:   &c.config.Notification.Dispatch,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = manager
	c.notificationWorker = notificationWorker

	return c.workers.StartAll(c.ctx)
}

// Getters for accessing container components

// TxManager returns the transaction manager.
func (c *Container) TxManager() port.TransactionManager {
	return c.database.TxManager
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.database.Repos
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.Engine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
