package container

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/dispatcher"
	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/application/service"
	"github.com/garyjia/pharmacy-workflow/internal/application/workflow"
	"github.com/garyjia/pharmacy-workflow/internal/domain/event"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/contact"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/persistence/memory"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/persistence/postgres"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/report"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/sender"
	"github.com/garyjia/pharmacy-workflow/internal/infrastructure/worker"
	"github.com/garyjia/pharmacy-workflow/pkg/database"
)

// DatabaseBundle holds the open store for the configured driver.
// Exactly one of SQLite, Pool and Memory is set.
type DatabaseBundle struct {
	SQLite    *database.DB
	Pool      *pgxpool.Pool
	Memory    *memory.Store
	TxManager port.TransactionManager
	Repos     *RepositoryBundle
}

// Ping checks the connection of the open store
func (b *DatabaseBundle) Ping(ctx context.Context) error {
	switch {
	case b.SQLite != nil:
		return b.SQLite.PingContext(ctx)
	case b.Pool != nil:
		return b.Pool.Ping(ctx)
	}
	return nil
}

// Close releases the open store
func (b *DatabaseBundle) Close() error {
	switch {
	case b.SQLite != nil:
		return b.SQLite.Close()
	case b.Pool != nil:
		b.Pool.Close()
	}
	return nil
}

// ProvideDatabase opens the configured store, applies migrations when enabled
// and builds its repositories.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	switch cfg.Driver {
	case database.DriverSQLite:
		db, err := database.New(database.Config{
			Path:            cfg.Path,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := migrateSQLite(db, logger); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &DatabaseBundle{
			SQLite:    db,
			TxManager: sqlite.NewDB(db.DB, logger),
			Repos: &RepositoryBundle{
				Case:         repository.NewCaseRepository(db.DB, logger),
				Notification: repository.NewNotificationRepository(db.DB, logger),
				History:      repository.NewHistoryRepository(db.DB, logger),
			},
		}, nil

	case database.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
			URL:      cfg.URL,
			MaxConns: int32(cfg.MaxOpenConns),
			MinConns: int32(cfg.MaxIdleConns),
		}, logger)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := migratePostgres(ctx, pool, logger); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &DatabaseBundle{
			Pool:      pool,
			TxManager: postgres.NewTxManager(pool, logger),
			Repos: &RepositoryBundle{
				Case:         postgres.NewCaseRepository(pool, logger),
				Notification: postgres.NewNotificationRepository(pool, logger),
				History:      postgres.NewHistoryRepository(pool, logger),
			},
		}, nil

	case database.DriverMemory:
		store := memory.NewStore()
		logger.Warn("Using in-memory store; data is lost on exit")
		return &DatabaseBundle{
			Memory:    store,
			TxManager: store,
			Repos: &RepositoryBundle{
				Case:         store.Cases(),
				Notification: store.Notifications(),
				History:      store.History(),
			},
		}, nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// RunMigrations opens the configured database, applies pending migrations and closes it.
// It returns the number of migrations applied.
func RunMigrations(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (int, error) {
	switch cfg.Driver {
	case database.DriverSQLite:
		db, err := database.New(database.Config{Path: cfg.Path, MaxOpenConns: 1}, logger)
		if err != nil {
			return 0, err
		}
		defer db.Close()

		fsys, err := database.Migrations(database.DriverSQLite)
		if err != nil {
			return 0, err
		}
		return database.NewMigrator(db, logger).RunMigrations(fsys)

	case database.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{URL: cfg.URL}, logger)
		if err != nil {
			return 0, err
		}
		defer pool.Close()

		fsys, err := database.Migrations(database.DriverPostgres)
		if err != nil {
			return 0, err
		}
		return database.NewPostgresMigrator(pool, logger).RunMigrations(ctx, fsys)
	}

	return 0, fmt.Errorf("driver %q has no migrations", cfg.Driver)
}

func migrateSQLite(db *database.DB, logger *zap.Logger) error {
	fsys, err := database.Migrations(database.DriverSQLite)
	if err != nil {
		return err
	}
	if _, err := database.NewMigrator(db, logger).RunMigrations(fsys); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	fsys, err := database.Migrations(database.DriverPostgres)
	if err != nil {
		return err
	}
	if _, err := database.NewPostgresMigrator(pool, logger).RunMigrations(ctx, fsys); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(newLoggerAdapter(logger.Named("dispatcher"))),
	), nil
}

// ServiceDeps holds dependencies required for creating application services.
type ServiceDeps struct {
	Repos        *RepositoryBundle
	TxManager    port.TransactionManager
	Dispatcher   dispatcher.Dispatcher
	Notification *NotificationConfig
	Workflow     *WorkflowConfig
	Logger       *zap.Logger
}

// ProvideServices creates the notification bridge, query surface and intake service.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	serviceLogger := newLoggerAdapter(deps.Logger.Named("service"))
	contacts := contact.NewResolver(deps.Repos.Case, deps.Notification.DefaultRegion, deps.Logger.Named("contact"))
	exporter := report.NewXLSXExporter(deps.Logger.Named("report"))

	templates := service.DefaultMessageTemplates()
	if deps.Notification.PrescriptionTemplate != "" {
		templates.Prescription = deps.Notification.PrescriptionTemplate
	}
	if deps.Notification.VaccineTemplate != "" {
		templates.VaccineAppointment = deps.Notification.VaccineTemplate
	}

	return &ServiceBundle{
		Notification: service.NewNotificationBridge(
			deps.Repos.Notification,
			deps.Repos.Case,
			contacts,
			deps.TxManager,
			deps.Dispatcher,
			templates,
			serviceLogger,
		),
		Query: service.NewCaseQueryService(deps.Repos.Case, exporter, serviceLogger, deps.Workflow.MaxPageSize),
		Intake: service.NewIntakeService(
			deps.Repos.Case,
			deps.Repos.History,
			deps.TxManager,
			deps.Dispatcher,
			serviceLogger,
		),
		ExportContentType: exporter.ContentType(),
	}, nil
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Queue      workflow.NotificationQueue
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine and registers its event handlers.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Queue == nil {
		return nil, fmt.Errorf("notification queue is required")
	}

	engine := workflow.NewEngine(
		deps.Repos.Case,
		deps.Repos.History,
		deps.TxManager,
		deps.Queue,
		newLoggerAdapter(deps.Logger.Named("workflow")),
		workflow.WithPublisher(deps.Dispatcher),
	)
	workflow.Subscribe(deps.Dispatcher, engine)

	audit := auditLogHandler(deps.Logger.Named("audit"))
	deps.Dispatcher.Subscribe(event.TypeCaseCreated, "audit-log", audit)
	deps.Dispatcher.Subscribe(event.TypeCaseStatusChanged, "audit-log", audit)

	return engine, nil
}

// auditLogHandler writes case lifecycle events to the log
func auditLogHandler(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		logger.Info("Case event",
			zap.String("event_type", evt.Type.String()),
			zap.String("case_id", evt.CaseID),
			zap.String("previous_status", evt.GetPayloadString(event.KeyPreviousStatus)),
			zap.String("new_status", evt.GetPayloadString(event.KeyNewStatus)),
			zap.String("actor_id", evt.GetPayloadString(event.KeyActorID)),
			zap.String("correlation_id", evt.CorrelationID))
		return nil
	}
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Outbox     worker.Outbox
	Dispatcher dispatcher.Dispatcher
	Dispatch   *DispatchConfig
	Logger     *zap.Logger
}

// ProvideWorkers creates the worker manager and registers enabled workers.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, *worker.NotificationWorker, error) {
	if deps == nil || deps.Outbox == nil {
		return nil, nil, fmt.Errorf("notification outbox is required")
	}

	manager := worker.NewWorkerManager(deps.Logger.Named("workers"))
	if !deps.Dispatch.Enabled {
		deps.Logger.Info("Notification dispatch disabled")
		return manager, nil, nil
	}

	notificationWorker := worker.NewNotificationWorker(
		worker.NotificationWorkerConfig{
			PollInterval: deps.Dispatch.PollInterval,
			BatchSize:    deps.Dispatch.BatchSize,
			SendTimeout:  deps.Dispatch.SendTimeout,
		},
		deps.Outbox,
		sender.NewLogSender(deps.Logger.Named("sender")),
		deps.Logger.Named("notification-worker"),
	)
	manager.Register(notificationWorker)
	deps.Dispatcher.Subscribe(event.TypeNotificationEnqueued, "notification-worker", notificationWorker.HandleEnqueued)

	return manager, notificationWorker, nil
}
