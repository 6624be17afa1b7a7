package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/taskforge/internal/cli/output"
	"github.com/leapstack-labs/taskforge/internal/config"
	"github.com/leapstack-labs/taskforge/internal/engine"
	"github.com/leapstack-labs/taskforge/internal/starlark"
	"github.com/leapstack-labs/taskforge/pkg/adapter"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Backend  adapter.Backend
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext opens the configured backend and creates an engine and
// renderer. Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	backend, err := openBackend(cmd.Context(), cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(engine.Config{
		Store:       backend,
		Allocator:   backend,
		Conditions:  starlark.NewEvaluator(starlark.WithLogger(cmdCtx.Logger)),
		MaxSessions: cmdCtx.Cfg.Sessions.MaxActive,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}

	cmdCtx.Backend = backend
	cmdCtx.Engine = eng

	cleanup := func() {
		eng.Close()
		_ = backend.Close()
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without a backend.
// Useful for commands that don't need database access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the loaded configuration, or defaults when the root
// command did not load one (e.g. in tests that run a subcommand directly).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Store:        config.StoreConfig{Type: config.DefaultStoreType, Path: config.DefaultStorePath},
		Allocator:    config.AllocatorConfig{Procedure: config.DefaultProcedure},
		Sessions:     config.SessionsConfig{MaxActive: config.DefaultMaxSessions},
		Log:          config.LogConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat},
		OutputFormat: config.DefaultOutput,
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (adapter.Backend, error) {
	bc := cfg.BackendConfig(logger)

	// Ensure the directory of a local database exists
	if bc.Type == "sqlite" && bc.Path != "" && bc.Path != ":memory:" {
		if dir := filepath.Dir(bc.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
	}

	backend, err := adapter.Open(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", bc.Type, err)
	}
	logger.Debug("store opened", "type", bc.Type)
	return backend, nil
}
