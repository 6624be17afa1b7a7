// Package config loads taskforge configuration.
//
// Values come from, in increasing order of precedence: built-in defaults,
// taskforge.yaml (or taskforge.yml), TASKFORGE_* environment variables and
// explicitly set command-line flags. A .env file next to the config file is
// loaded into the environment first.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/taskforge/pkg/adapter"
)

// StoreConfig holds catalog backend configuration.
type StoreConfig struct {
	Type string `koanf:"type"` // sqlite, postgres

	// SQLite
	Path string `koanf:"path"`

	// Postgres
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	SSLMode  string `koanf:"sslmode"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`
}

// AllocatorConfig configures task code allocation.
type AllocatorConfig struct {
	// Procedure is the server-side function called on commit (postgres only).
	Procedure string `koanf:"procedure"`
}

// SessionsConfig configures the session registry.
type SessionsConfig struct {
	MaxActive int `koanf:"max_active"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// Config holds all taskforge configuration options.
type Config struct {
	Store        StoreConfig     `koanf:"store"`
	Allocator    AllocatorConfig `koanf:"allocator"`
	Sessions     SessionsConfig  `koanf:"sessions"`
	Log          LogConfig       `koanf:"log"`
	Verbose      bool            `koanf:"verbose"`
	OutputFormat string          `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Validate checks if the configuration is valid.
// It uses the backend registry to determine which store types are available.
func (c *Config) Validate() error {
	if c.Store.Type == "" {
		return fmt.Errorf("store type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(c.Store.Type)) {
		return &adapter.UnknownBackendError{
			Type:      c.Store.Type,
			Available: adapter.ListBackends(),
		}
	}
	if c.Sessions.MaxActive < 0 {
		return fmt.Errorf("sessions.max_active must not be negative, got %d", c.Sessions.MaxActive)
	}
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json":
	default:
		return fmt.Errorf("unknown output format %q (want auto, text, markdown or json)", c.OutputFormat)
	}
	return nil
}

// BackendConfig converts the store section into an adapter.Config.
func (c *Config) BackendConfig(logger *slog.Logger) adapter.Config {
	options := make(map[string]string, len(c.Store.Options)+1)
	for k, v := range c.Store.Options {
		options[k] = v
	}
	if c.Store.SSLMode != "" {
		options["sslmode"] = c.Store.SSLMode
	}

	return adapter.Config{
		Type:      strings.ToLower(c.Store.Type),
		Path:      c.Store.Path,
		Host:      c.Store.Host,
		Port:      c.Store.Port,
		Database:  c.Store.Database,
		Username:  c.Store.User,
		Password:  c.Store.Password,
		Options:   options,
		Procedure: c.Allocator.Procedure,
		Logger:    logger,
	}
}
