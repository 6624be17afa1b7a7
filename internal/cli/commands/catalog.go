package commands

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/taskforge/internal/cli/output"
	"github.com/leapstack-labs/taskforge/internal/depgraph"
	"github.com/leapstack-labs/taskforge/internal/engine"
	"github.com/leapstack-labs/taskforge/internal/loader"
	"github.com/leapstack-labs/taskforge/internal/starlark"
	"github.com/leapstack-labs/taskforge/pkg/adapter"
	"github.com/leapstack-labs/taskforge/pkg/core"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// checkConcurrency bounds the templates inspected at once.
const checkConcurrency = 4

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Author and inspect the parameter catalog",
		Long: `Import catalog documents into the store, show the catalog of a template,
and check catalogs for authoring mistakes.`,
	}

	cmd.AddCommand(newCatalogImportCommand())
	cmd.AddCommand(newCatalogShowCommand())
	cmd.AddCommand(newCatalogCheckCommand())

	return cmd
}

func newCatalogImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Import catalog documents",
		Long: `Validate YAML catalog documents and upsert them into the store.

Every file is imported in its own transaction; a file with errors leaves the
catalog untouched.`,
		Example: `  taskforge catalog import catalog/walls.yaml`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			r := cmdCtx.Renderer
			results := make(map[string]*loader.Result, len(args))
			for _, path := range args {
				doc, err := loadDocument(path)
				if err != nil {
					return err
				}

				var res *loader.Result
				err = cmdCtx.Backend.Update(cmd.Context(), func(w adapter.CatalogWriter) error {
					var err error
					res, err = doc.Import(cmd.Context(), w)
					return err
				})
				if err != nil {
					return fmt.Errorf("failed to import %s: %w", path, err)
				}
				cmdCtx.Logger.Info("catalog imported", "file", path, "templates", res.Templates)
				results[path] = res

				if r.EffectiveMode() != output.ModeJSON {
					r.Success(fmt.Sprintf("%s: %d parameters, %d options, %d templates, %d dependencies",
						path, res.Parameters, res.Options, res.Templates, res.Dependencies))
				}
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(results)
			}
			return nil
		},
	}
}

// loadDocument parses a catalog file and runs every static check on it.
func loadDocument(path string) (*loader.Document, error) {
	doc, err := loader.ParseFile(path)
	if err != nil {
		return nil, err
	}

	errs := doc.Validate()
	errs = append(errs, doc.ValidateConditions(starlark.NewEvaluator().Check)...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog document: %w", errors.Join(errs...))
	}
	return doc, nil
}

func newCatalogShowCommand() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "show CODE",
		Short: "Show the catalog of a template",
		Example: `  # Show the parameters, options and dependencies of MW
  taskforge catalog show MW

  # Export it as a catalog document
  taskforge catalog show MW --yaml > mw.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			t, err := cmdCtx.Backend.GetTemplateByCode(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get template %s: %w", args[0], err)
			}
			catalog, err := cmdCtx.Backend.LoadCatalog(ctx, t.ID)
			if err != nil {
				return fmt.Errorf("failed to load catalog for template %s: %w", args[0], err)
			}

			if asYAML {
				data, err := loader.FromCatalog(catalog).Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return renderCatalog(cmdCtx.Renderer, catalog)
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the catalog as a YAML document")

	return cmd
}

func renderCatalog(r *output.Renderer, c *core.Catalog) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(loader.FromCatalog(c))
	}

	params := make(map[core.ParameterID]core.Parameter, len(c.Parameters))
	for _, p := range c.Parameters {
		params[p.ID] = p
	}
	options := make(map[core.OptionID]core.Option, len(c.Options))
	byParam := make(map[core.ParameterID][]string)
	for _, o := range c.Options {
		options[o.ID] = o
		byParam[o.ParameterID] = append(byParam[o.ParameterID], o.Name)
	}

	// An inconsistent catalog still gets its raw tables.
	g, graphErr := depgraph.BuildFromCatalog(c)

	r.Header(1, fmt.Sprintf("%s: %s", c.Template.Code, c.Template.Name))
	r.KeyValue("Name expression", c.Template.NameExpression)
	if graphErr == nil {
		r.KeyValue("Graph", fmt.Sprintf("%d parameters, %d links", g.Len(), g.EdgeCount()))
	}
	r.Println("")

	r.Header(2, "Parameters")
	rows := make([][]string, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		binding := "-"
		if tp, ok := c.Template.Binding(p.ID); ok {
			binding = "bound"
			if tp.Required {
				binding = "required"
			}
			if tp.Condition != "" {
				binding += " if " + tp.Condition
			}
		}
		dependsOn, affects := "-", "-"
		if graphErr == nil {
			dependsOn = slugList(g, g.Upstream(p.ID))
			affects = slugList(g, g.Downstream(p.ID))
		}
		rows = append(rows, []string{
			p.Slug, p.Label, p.ExpressionTemplate, binding, strings.Join(byParam[p.ID], " | "), dependsOn, affects,
		})
	}
	r.Table([]string{"Slug", "Label", "Expression", "Binding", "Options", "Depends on", "Affects"}, rows)
	r.Println("")

	allowed := make(map[core.DependencyID][]string)
	for _, do := range c.DependencyOptions {
		allowed[do.DependencyID] = append(allowed[do.DependencyID], options[do.OptionID].Name)
	}

	r.Header(2, "Dependencies")
	rows = make([][]string, 0, len(c.Dependencies))
	for _, d := range c.Dependencies {
		allow := "any"
		if names, ok := allowed[d.ID]; ok {
			allow = strings.Join(names, " | ")
		}
		rows = append(rows, []string{
			fmt.Sprintf("%s=%s", params[d.ParentParameterID].Slug, options[d.ParentOptionID].Name),
			params[d.ChildParameterID].Slug,
			allow,
		})
	}
	r.Table([]string{"When", "Shows", "Allowing"}, rows)

	if graphErr != nil {
		r.Println("")
		r.Warning(graphErr.Error())
		return nil
	}
	r.Println("")
	renderGating(r, g)
	return nil
}

// renderGating prints which choices reveal which parameters, starting at the
// roots. A parameter reached twice is expanded only the first time.
func renderGating(r *output.Renderer, g *depgraph.Graph) {
	r.Header(2, "Gating")

	expanded := make(map[core.ParameterID]bool)
	var walk func(id core.ParameterID, depth int, allowing string)
	walk = func(id core.ParameterID, depth int, allowing string) {
		node, _ := g.Node(id)
		indent := strings.Repeat("  ", depth)
		line := indent + "- " + node.Parameter.Slug + allowing
		if expanded[id] {
			r.Println(line + " (see above)")
			return
		}
		expanded[id] = true
		r.Println(line)

		for _, o := range node.Options {
			edges := g.EdgesFrom(id, o.ID)
			if len(edges) == 0 {
				continue
			}
			r.Printf("%s  = %s\n", indent, o.Name)
			for _, e := range edges {
				walk(e.Child, depth+2, edgeAllowing(g, e))
			}
		}
	}
	for _, id := range g.Roots() {
		walk(id, 0, "")
	}

	for _, n := range g.Nodes() {
		if n.Kind != depgraph.Dependent {
			continue
		}
		if !slices.ContainsFunc(n.Incoming, func(e *depgraph.Edge) bool { return !e.Dangling }) {
			r.Warning(n.Parameter.Slug + " is never shown: every dependency gating it is dangling")
		}
	}
}

func edgeAllowing(g *depgraph.Graph, e *depgraph.Edge) string {
	if e.Unrestricted {
		return ""
	}
	names := make([]string, 0, len(e.Allowed))
	for _, id := range e.Allowed {
		if o, ok := g.Option(id); ok {
			names = append(names, o.Name)
		}
	}
	return " (" + strings.Join(names, " | ") + ")"
}

func slugList(g *depgraph.Graph, ids []core.ParameterID) string {
	if len(ids) == 0 {
		return "-"
	}
	slugs := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.Node(id); ok {
			slugs = append(slugs, n.Parameter.Slug)
		}
	}
	return strings.Join(slugs, ", ")
}

// checkJSON is the JSON form of a catalog check.
type checkJSON struct {
	Template     string   `json:"template"`
	OK           bool     `json:"ok"`
	Parameters   int      `json:"parameters,omitempty"`
	Links        int      `json:"links,omitempty"`
	Error        string   `json:"error,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	Placeholders []string `json:"placeholders,omitempty"`
	Unused       []string `json:"unused,omitempty"`
}

func newCatalogCheckCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "check [CODE...]",
		Short: "Check catalogs for authoring mistakes",
		Long: `Build the dependency graph of each template and lint its name expression.

Without arguments every template of the store is checked. With --file the
templates of a catalog document are checked without touching the store.`,
		Example: `  # Check every stored template
  taskforge catalog check

  # Check a document before importing it
  taskforge catalog check --file catalog/walls.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				return checkDocument(cmd, file, args)
			}
			return checkStore(cmd, args)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Check a catalog document instead of the store")

	return cmd
}

func checkDocument(cmd *cobra.Command, path string, codes []string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	doc, err := loadDocument(path)
	if err != nil {
		return err
	}
	catalogs, err := doc.Catalogs()
	if err != nil {
		return err
	}

	var checks []checkJSON
	for _, c := range catalogs {
		if len(codes) > 0 && !slices.Contains(codes, c.Template.Code) {
			continue
		}
		report, err := engine.Check(c)
		checks = append(checks, toCheckJSON(c.Template.Code, report, err))
	}
	return renderChecks(cmdCtx.Renderer, checks)
}

func checkStore(cmd *cobra.Command, codes []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(codes) == 0 {
		templates, err := cmdCtx.Engine.Templates(cmd.Context())
		if err != nil {
			return err
		}
		for _, t := range templates {
			codes = append(codes, t.Code)
		}
	}

	checks := make([]checkJSON, len(codes))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(checkConcurrency)
	for i, code := range codes {
		g.Go(func() error {
			report, err := cmdCtx.Engine.Inspect(ctx, code)
			if err != nil && errors.Is(err, core.ErrNotFound) {
				return err
			}
			checks[i] = toCheckJSON(code, report, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return renderChecks(cmdCtx.Renderer, checks)
}

func toCheckJSON(code string, report *engine.Report, err error) checkJSON {
	if err != nil {
		return checkJSON{Template: code, Error: err.Error()}
	}
	c := checkJSON{
		Template:   code,
		OK:         report.OK(),
		Parameters: report.Graph.Len(),
		Links:      report.Graph.EdgeCount(),
		Unused:     report.Unused,
	}
	for _, w := range report.Warnings {
		c.Warnings = append(c.Warnings, w.Error())
	}
	for _, p := range report.Placeholders {
		c.Placeholders = append(c.Placeholders, p.Error())
	}
	return c
}

func renderChecks(r *output.Renderer, checks []checkJSON) error {
	failed := 0
	for _, c := range checks {
		if !c.OK {
			failed++
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(checks); err != nil {
			return err
		}
	} else {
		r.Header(1, fmt.Sprintf("Catalog check (%d templates)", len(checks)))
		for _, c := range checks {
			switch {
			case c.Error != "":
				r.StatusLine(c.Template, "error", c.Error)
			case !c.OK:
				r.StatusLine(c.Template, "warning", fmt.Sprintf("%d problems", len(c.Warnings)+len(c.Placeholders)))
			default:
				r.StatusLine(c.Template, "success", fmt.Sprintf("%d parameters, %d links", c.Parameters, c.Links))
			}
			for _, msg := range slices.Concat(c.Warnings, c.Placeholders) {
				r.Muted("    " + msg)
			}
			if len(c.Unused) > 0 {
				r.Muted("    unused in name expression: " + strings.Join(c.Unused, ", "))
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed the check", failed, len(checks))
	}
	return nil
}
