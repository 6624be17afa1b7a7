package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/taskforge/internal/cli/output"
	"github.com/leapstack-labs/taskforge/pkg/core"
	"github.com/spf13/cobra"
)

// TasksOptions holds options for the tasks command.
type TasksOptions struct {
	Template string
	Limit    int
}

// NewTasksCommand creates the tasks command.
func NewTasksCommand() *cobra.Command {
	opts := &TasksOptions{}

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List committed tasks",
		Long:  `List tasks created by committed sessions, newest first.`,
		Example: `  # Show the 20 most recent tasks
  taskforge tasks

  # Show tasks of one template
  taskforge tasks --template MW --limit 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tasks, err := cmdCtx.Backend.ListTasks(cmd.Context(), opts.Template, opts.Limit)
			if err != nil {
				return err
			}
			return renderTasks(cmdCtx.Renderer, tasks)
		},
	}

	cmd.Flags().StringVar(&opts.Template, "template", "", "Only list tasks of this template code")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum number of tasks (0 for all)")

	return cmd
}

func renderTasks(r *output.Renderer, tasks []core.Task) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(tasks)
	}

	r.Header(1, fmt.Sprintf("Tasks (%d)", len(tasks)))
	rows := make([][]string, len(tasks))
	for i, t := range tasks {
		rows[i] = []string{t.Code, t.CreatedAt.Local().Format(time.DateTime), formatSelection(t.Selection)}
	}
	r.Table([]string{"Code", "Created", "Selection"}, rows)
	return nil
}

func formatSelection(sel map[string]core.OptionID) string {
	slugs := make([]string, 0, len(sel))
	for slug := range sel {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	parts := make([]string, len(slugs))
	for i, slug := range slugs {
		parts[i] = fmt.Sprintf("%s=%d", slug, sel[slug])
	}
	return strings.Join(parts, " ")
}
