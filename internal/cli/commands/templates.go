package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/taskforge/internal/cli/output"
	"github.com/leapstack-labs/taskforge/pkg/core"
	"github.com/spf13/cobra"
)

// templateJSON is the JSON form of a template listing entry.
type templateJSON struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	NameExpression string `json:"name_expression"`
	Parameters     int    `json:"parameters"`
}

// NewTemplatesCommand creates the templates command.
func NewTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List task templates",
		Long: `List every task template of the catalog with its name expression.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List templates
  taskforge templates

  # List templates as JSON
  taskforge templates -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			templates, err := cmdCtx.Engine.Templates(cmd.Context())
			if err != nil {
				return err
			}
			return renderTemplates(cmdCtx.Renderer, templates)
		},
	}
}

func renderTemplates(r *output.Renderer, templates []*core.Template) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]templateJSON, len(templates))
		for i, t := range templates {
			out[i] = templateJSON{
				Code:           t.Code,
				Name:           t.Name,
				NameExpression: t.NameExpression,
				Parameters:     len(t.Parameters),
			}
		}
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Templates (%d total)", len(templates)))
	rows := make([][]string, len(templates))
	for i, t := range templates {
		rows[i] = []string{t.Code, t.Name, strconv.Itoa(len(t.Parameters)), t.NameExpression}
	}
	r.Table([]string{"Code", "Name", "Parameters", "Name expression"}, rows)
	return nil
}
