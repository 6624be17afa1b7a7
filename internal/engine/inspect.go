package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/leapstack-labs/taskforge/internal/depgraph"
	"github.com/leapstack-labs/taskforge/internal/template"
	"github.com/leapstack-labs/taskforge/pkg/core"
)

// Report is the authoring check of one template.
type Report struct {
	Template core.Template
	Graph    *depgraph.Graph
	// Warnings are the recoverable unknown references of the catalog.
	Warnings []error
	// Placeholders name no parameter of the catalog.
	Placeholders []*template.PlaceholderError
	// Unused are bound parameters the name expression never mentions.
	Unused []string
}

// OK reports whether the check found nothing to fix.
func (r *Report) OK() bool {
	return len(r.Warnings) == 0 && len(r.Placeholders) == 0
}

// Inspect loads and checks the catalog of a template. An inconsistent
// catalog is returned as an error matching core.ErrCatalogInconsistency.
func (e *Engine) Inspect(ctx context.Context, code string) (*Report, error) {
	t, err := e.store.GetTemplateByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get template %s: %w", code, err)
	}
	catalog, err := e.store.LoadCatalog(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog for template %s: %w", code, err)
	}
	return Check(catalog)
}

// Check builds the graph of catalog and lints its name expression.
func Check(catalog *core.Catalog) (*Report, error) {
	g, err := depgraph.BuildFromCatalog(catalog)
	if err != nil {
		return nil, err
	}

	tmpl := catalog.Template
	expander := template.NewExpander(catalog.Parameters)
	report := &Report{
		Template:     tmpl,
		Graph:        g,
		Warnings:     g.Warnings(),
		Placeholders: expander.Validate(tmpl.NameExpression, tmpl.Code),
	}

	used := template.Parse(tmpl.NameExpression, tmpl.Code).Placeholders()
	for _, b := range tmpl.Parameters {
		node, ok := g.Node(b.ParameterID)
		if !ok {
			report.Warnings = append(report.Warnings, &core.UnknownReferenceError{
				Kind: core.RefParameter, ID: int64(b.ParameterID), Context: "template binding",
			})
			continue
		}
		if !slices.Contains(used, node.Parameter.Slug) {
			report.Unused = append(report.Unused, node.Parameter.Slug)
		}
	}
	return report, nil
}
