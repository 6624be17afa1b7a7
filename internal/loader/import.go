package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/leapstack-labs/taskforge/pkg/adapter"
	"github.com/leapstack-labs/taskforge/pkg/core"
)

// Result counts the rows written by Import.
type Result struct {
	Parameters   int `json:"parameters"`
	Options      int `json:"options"`
	Templates    int `json:"templates"`
	Dependencies int `json:"dependencies"`
}

// Import validates the document and upserts it through w. Names are resolved
// to the ids the backend assigns. Run it inside adapter.Backend.Update so a
// failure leaves the catalog untouched.
func (d *Document) Import(ctx context.Context, w adapter.CatalogWriter) (*Result, error) {
	if errs := d.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog document: %w", errors.Join(errs...))
	}

	res := &Result{}
	params := make(map[string]core.ParameterID, len(d.Parameters))
	options := make(map[string]map[string]core.OptionID, len(d.Parameters))

	for i, pd := range d.Parameters {
		p := core.Parameter{
			Slug:               pd.Slug,
			Label:              labelOr(pd.Label, pd.Slug),
			ExpressionTemplate: pd.Expression,
			Position:           i,
		}
		if err := w.SaveParameter(ctx, &p); err != nil {
			return nil, err
		}
		params[p.Slug] = p.ID
		res.Parameters++

		options[p.Slug] = make(map[string]core.OptionID, len(pd.Options))
		for j, od := range pd.Options {
			o := core.Option{ParameterID: p.ID, Name: od.Name, Label: labelOr(od.Label, od.Name), Position: j}
			if err := w.SaveOption(ctx, &o); err != nil {
				return nil, err
			}
			options[p.Slug][o.Name] = o.ID
			res.Options++
		}
	}

	for _, td := range d.Templates {
		t := core.Template{Code: td.Code, Name: td.Name, NameExpression: td.NameExpression}
		for i, b := range td.Parameters {
			t.Parameters = append(t.Parameters, core.TemplateParameter{
				ParameterID: params[b.Parameter],
				Position:    i,
				Required:    b.Required,
				Condition:   b.Condition,
			})
		}
		if err := w.SaveTemplate(ctx, &t); err != nil {
			return nil, err
		}
		res.Templates++
	}

	for _, dd := range d.Dependencies {
		dep := core.Dependency{
			ParentParameterID: params[dd.Parent],
			ParentOptionID:    options[dd.Parent][dd.When],
			ChildParameterID:  params[dd.Child],
		}
		allowed := make([]core.OptionID, 0, len(dd.Allow))
		for _, name := range dd.Allow {
			allowed = append(allowed, options[dd.Child][name])
		}
		if err := w.SaveDependency(ctx, &dep, allowed); err != nil {
			return nil, err
		}
		res.Dependencies++
	}

	return res, nil
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

// Catalogs builds one in-memory catalog per template without a backend.
// Ids are assigned in document order starting at 1. Each catalog holds the
// bound parameters plus every parameter transitively gating them, as a
// backend's LoadCatalog would.
func (d *Document) Catalogs() ([]*core.Catalog, error) {
	if errs := d.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog document: %w", errors.Join(errs...))
	}

	var (
		params  []core.Parameter
		opts    []core.Option
		deps    []core.Dependency
		depOpts []core.DependencyOption
		optID   core.OptionID
	)
	bySlug := make(map[string]core.ParameterID)
	byName := make(map[string]map[string]core.OptionID)

	for i, pd := range d.Parameters {
		id := core.ParameterID(i + 1)
		params = append(params, core.Parameter{
			ID: id, Slug: pd.Slug, Label: labelOr(pd.Label, pd.Slug), ExpressionTemplate: pd.Expression, Position: i,
		})
		bySlug[pd.Slug] = id
		byName[pd.Slug] = make(map[string]core.OptionID)
		for j, od := range pd.Options {
			optID++
			opts = append(opts, core.Option{
				ID: optID, ParameterID: id, Name: od.Name, Label: labelOr(od.Label, od.Name), Position: j,
			})
			byName[pd.Slug][od.Name] = optID
		}
	}

	parents := make(map[core.ParameterID][]core.ParameterID)
	for i, dd := range d.Dependencies {
		dep := core.Dependency{
			ID:                core.DependencyID(i + 1),
			ParentParameterID: bySlug[dd.Parent],
			ParentOptionID:    byName[dd.Parent][dd.When],
			ChildParameterID:  bySlug[dd.Child],
		}
		deps = append(deps, dep)
		parents[dep.ChildParameterID] = append(parents[dep.ChildParameterID], dep.ParentParameterID)
		for _, name := range dd.Allow {
			depOpts = append(depOpts, core.DependencyOption{DependencyID: dep.ID, OptionID: byName[dd.Child][name]})
		}
	}

	catalogs := make([]*core.Catalog, 0, len(d.Templates))
	for i, td := range d.Templates {
		t := core.Template{ID: core.TemplateID(i + 1), Code: td.Code, Name: td.Name, NameExpression: td.NameExpression}

		closure := make(map[core.ParameterID]bool)
		var walk func(id core.ParameterID)
		walk = func(id core.ParameterID) {
			if closure[id] {
				return
			}
			closure[id] = true
			for _, p := range parents[id] {
				walk(p)
			}
		}
		for j, b := range td.Parameters {
			id := bySlug[b.Parameter]
			t.Parameters = append(t.Parameters, core.TemplateParameter{
				ParameterID: id, Position: j, Required: b.Required, Condition: b.Condition,
			})
			walk(id)
		}

		c := &core.Catalog{Template: t}
		for _, p := range params {
			if closure[p.ID] {
				c.Parameters = append(c.Parameters, p)
			}
		}
		for _, o := range opts {
			if closure[o.ParameterID] {
				c.Options = append(c.Options, o)
			}
		}
		for _, dep := range deps {
			if closure[dep.ChildParameterID] {
				c.Dependencies = append(c.Dependencies, dep)
			}
		}
		for _, do := range depOpts {
			if slices.ContainsFunc(c.Dependencies, func(dep core.Dependency) bool { return dep.ID == do.DependencyID }) {
				c.DependencyOptions = append(c.DependencyOptions, do)
			}
		}
		catalogs = append(catalogs, c)
	}
	return catalogs, nil
}

// FromCatalog converts a loaded catalog back into a document.
func FromCatalog(c *core.Catalog) *Document {
	doc := &Document{Source: c.Template.Code}

	params := slices.Clone(c.Parameters)
	slices.SortStableFunc(params, func(a, b core.Parameter) int { return a.Position - b.Position })

	slugs := make(map[core.ParameterID]string, len(params))
	names := make(map[core.OptionID]string, len(c.Options))
	for _, p := range params {
		slugs[p.ID] = p.Slug
	}

	for _, p := range params {
		pd := ParameterDoc{Slug: p.Slug, Label: p.Label, Expression: p.ExpressionTemplate}
		if pd.Label == p.Slug {
			pd.Label = ""
		}
		var own []core.Option
		for _, o := range c.Options {
			if o.ParameterID == p.ID {
				own = append(own, o)
			}
		}
		slices.SortStableFunc(own, func(a, b core.Option) int { return a.Position - b.Position })
		for _, o := range own {
			names[o.ID] = o.Name
			pd.Options = append(pd.Options, OptionDoc{Name: o.Name, Label: o.Label})
		}
		doc.Parameters = append(doc.Parameters, pd)
	}

	td := TemplateDoc{Code: c.Template.Code, Name: c.Template.Name, NameExpression: c.Template.NameExpression}
	for _, b := range c.Template.Parameters {
		td.Parameters = append(td.Parameters, BindingDoc{
			Parameter: slugs[b.ParameterID], Required: b.Required, Condition: b.Condition,
		})
	}
	doc.Templates = []TemplateDoc{td}

	for _, dep := range c.Dependencies {
		dd := DependencyDoc{
			Parent: slugs[dep.ParentParameterID],
			When:   names[dep.ParentOptionID],
			Child:  slugs[dep.ChildParameterID],
		}
		for _, do := range c.DependencyOptions {
			if do.DependencyID == dep.ID {
				dd.Allow = append(dd.Allow, names[do.OptionID])
			}
		}
		doc.Dependencies = append(doc.Dependencies, dd)
	}
	return doc
}
