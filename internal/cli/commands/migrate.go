package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending store migrations",
		Long: `Create or upgrade the catalog and task tables of the configured store.

The SQLite store migrates itself when opened; for PostgreSQL this also
installs the code generation procedure.`,
		Example: `  # Migrate the local SQLite store
  taskforge migrate

  # Migrate a PostgreSQL store
  taskforge migrate --store postgres`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Backend.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate store: %w", err)
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("%s store is up to date", cmdCtx.Cfg.Store.Type))
			return nil
		},
	}
}
