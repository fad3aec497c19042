// Package container provides dependency injection and lifecycle management
// for the pharmacy workflow service.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/pharmacy-workflow/pkg/database"
)

// Config holds all configuration for the Container.
type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Notification NotificationConfig
	Workflow     WorkflowConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is one of sqlite, postgres or memory
	Driver string

	// Path to SQLite database file
	Path string

	// URL is the PostgreSQL connection string
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// AutoMigrate applies bundled migrations on start
	AutoMigrate bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NotificationConfig holds patient notification settings.
type NotificationConfig struct {
	// DefaultRegion is the ISO 3166 region used to parse national phone numbers
	DefaultRegion string

	// Message templates; empty falls back to the built-in text
	PrescriptionTemplate string
	VaccineTemplate      string

	Dispatch DispatchConfig
}

// DispatchConfig holds notification worker settings.
type DispatchConfig struct {
	Enabled      bool
	PollInterval time.Duration
	BatchSize    int
	SendTimeout  time.Duration
}

// WorkflowConfig holds request limits.
type WorkflowConfig struct {
	MaxNoteLength int
	MaxPageSize   int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          database.DriverSQLite,
			Path:            "data/pharmacy.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Notification: NotificationConfig{
			DefaultRegion: "US",
			Dispatch: DispatchConfig{
				Enabled:      true,
				PollInterval: 5 * time.Second,
				BatchSize:    20,
				SendTimeout:  10 * time.Second,
			},
		},
		Workflow: WorkflowConfig{
			MaxNoteLength: 2000,
			MaxPageSize:   500,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case database.DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case database.DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	case database.DriverMemory:
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if len(c.Notification.DefaultRegion) != 2 {
		return fmt.Errorf("notification.default_region must be a two-letter region code")
	}
	if c.Notification.Dispatch.Enabled && c.Notification.Dispatch.PollInterval <= 0 {
		return fmt.Errorf("notification.dispatch.poll_interval must be positive")
	}

	if c.Workflow.MaxNoteLength <= 0 {
		return fmt.Errorf("workflow.max_note_length must be positive")
	}
	if c.Workflow.MaxPageSize < 0 {
		return fmt.Errorf("workflow.max_page_size must not be negative")
	}

	return nil
}
