package config

import (
	"github.com/garyjia/pharmacy-workflow/internal/container"
	"github.com/garyjia/pharmacy-workflow/pkg/utils"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			URL:             c.Database.URL,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			AutoMigrate:     c.Database.AutoMigrate,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Notification: container.NotificationConfig{
			DefaultRegion:        c.Notification.DefaultRegion,
			PrescriptionTemplate: c.Notification.Templates.Prescription,
			VaccineTemplate:      c.Notification.Templates.VaccineAppointment,
			Dispatch: container.DispatchConfig{
				Enabled:      c.Notification.Dispatch.Enabled,
				PollInterval: c.Notification.Dispatch.PollInterval,
				BatchSize:    c.Notification.Dispatch.BatchSize,
				SendTimeout:  c.Notification.Dispatch.SendTimeout,
			},
		},
		Workflow: container.WorkflowConfig{
			MaxNoteLength: c.Workflow.MaxNoteLength,
			MaxPageSize:   c.Workflow.MaxPageSize,
		},
	}
}

// ToLoggerConfig converts the logger section for utils.NewLogger
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
		Service:    "pharmacy-workflow",
	}
}
