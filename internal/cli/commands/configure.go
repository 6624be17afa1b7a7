package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ConfigureOptions holds options for the configure command.
type ConfigureOptions struct {
	Set    []string
	Commit bool
}

// NewConfigureCommand creates the configure command.
func NewConfigureCommand() *cobra.Command {
	opts := &ConfigureOptions{}

	cmd := &cobra.Command{
		Use:   "configure CODE",
		Short: "Configure a task in one shot",
		Long: `Start a session for a template, apply choices in order and show the result.

Each --set names a parameter slug and an option name or label. Choices that a
later choice invalidates are cleared, exactly as in an interactive session.
With --commit a complete configuration is stored as a task and its code is
printed.`,
		Example: `  # Preview a configuration
  taskforge configure MW --set material=brick --set thickness=15cm

  # Create the task
  taskforge configure MW --set material=brick --set thickness=15cm \
    --set mortar=lime --commit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "Choice as slug=option (repeatable, applied in order)")
	cmd.Flags().BoolVar(&opts.Commit, "commit", false, "Commit the configuration and allocate a task code")

	return cmd
}

func runConfigure(cmd *cobra.Command, code string, opts *ConfigureOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	s, err := cmdCtx.Engine.StartSessionByCode(ctx, code)
	if err != nil {
		return err
	}

	for _, assignment := range opts.Set {
		slug, option, err := parseAssignment(assignment)
		if err != nil {
			return err
		}
		if err := applyChoice(s, slug, option); err != nil {
			return fmt.Errorf("failed to set %s: %w", slug, err)
		}
	}

	if opts.Commit {
		taskCode, err := s.Commit(ctx)
		if err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
		cmdCtx.Logger.Info("task created", "template", code, "code", taskCode)
	}

	return renderSnapshot(cmdCtx.Renderer, s.Snapshot())
}
