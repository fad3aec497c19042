package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/config"
	"github.com/garyjia/pharmacy-workflow/internal/container"
	httpserver "github.com/garyjia/pharmacy-workflow/internal/interfaces/http"
	"github.com/garyjia/pharmacy-workflow/pkg/utils"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "pharmacy-workflow",
		Short:        "Pharmacy prescription and vaccine case workflow service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewLogger(cfg.ToLoggerConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and notification workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting pharmacy workflow service",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("port", cfg.Server.Port))

	app, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	services := app.Services()
	handlerCfg := httpserver.DefaultHandlerConfig()
	handlerCfg.MaxNoteLength = cfg.Workflow.MaxNoteLength
	handlerCfg.ExportContentType = services.ExportContentType

	httpLogger := container.NewLoggerAdapter(logger.Named("http"))
	handlers := httpserver.NewHandlers(
		app.WorkflowEngine(),
		services.Notification,
		services.Query,
		services.Intake,
		app,
		handlerCfg,
		httpLogger,
	)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, httpLogger)

	// Blocks until a shutdown signal arrives
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("Service stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply bundled schema migrations to the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			dbCfg := cfg.ToContainerConfig().Database
			applied, err := container.RunMigrations(cmd.Context(), &dbCfg, logger)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations (%s)\n", applied, cfg.Database.Driver)
			return nil
		},
	}
}
