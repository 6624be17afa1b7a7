package depgraph

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/leapstack-labs/taskforge/internal/dag"
	"github.com/leapstack-labs/taskforge/internal/template"
	"github.com/leapstack-labs/taskforge/pkg/core"
)

// BuildFromCatalog builds the graph of a loaded catalog snapshot.
func BuildFromCatalog(c *core.Catalog) (*Graph, error) {
	if c == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	return Build(c.Parameters, c.Options, c.Dependencies, c.DependencyOptions)
}

// Build constructs the dependency graph. It is a pure function of its inputs
// and never mutates them. Contradictory authoring yields a
// *core.CatalogInconsistencyError; references to ids missing from the inputs
// are recorded as warnings and the affected edge never activates.
func Build(
	params []core.Parameter,
	options []core.Option,
	deps []core.Dependency,
	depOpts []core.DependencyOption,
) (*Graph, error) {
	g := &Graph{
		nodes:    make(map[core.ParameterID]*Node, len(params)),
		bySlug:   make(map[string]core.ParameterID, len(params)),
		options:  make(map[core.OptionID]core.Option, len(options)),
		adjacent: make(map[EdgeKey][]*Edge),
		edges:    dag.NewGraph[core.ParameterID](),
	}

	if err := g.addParameters(params); err != nil {
		return nil, err
	}
	if err := g.addOptions(options); err != nil {
		return nil, err
	}

	byID, err := g.addDependencies(deps)
	if err != nil {
		return nil, err
	}
	if err := g.authorizeOptions(byID, depOpts); err != nil {
		return nil, err
	}

	order, err := g.edges.TopologicalSort()
	if err != nil {
		return nil, &core.CatalogInconsistencyError{Reason: err.Error()}
	}
	g.order = order

	return g, nil
}

func (g *Graph) addParameters(params []core.Parameter) error {
	for _, p := range params {
		if p.Slug == "" {
			return &core.CatalogInconsistencyError{ParameterID: p.ID, Reason: "empty slug"}
		}
		if !template.ValidSlug(p.Slug) {
			return &core.CatalogInconsistencyError{
				ParameterID: p.ID,
				Reason:      fmt.Sprintf("slug %q cannot be referenced as a {slug} placeholder", p.Slug),
			}
		}
		if _, dup := g.nodes[p.ID]; dup {
			return &core.CatalogInconsistencyError{ParameterID: p.ID, Reason: "duplicate parameter id"}
		}
		if other, dup := g.bySlug[p.Slug]; dup {
			return &core.CatalogInconsistencyError{
				ParameterID: p.ID,
				Reason:      fmt.Sprintf("slug %q already used by parameter %d", p.Slug, other),
			}
		}
		g.nodes[p.ID] = &Node{Parameter: p, Kind: Root}
		g.bySlug[p.Slug] = p.ID
		g.edges.AddNode(p.ID)
	}
	return nil
}

func (g *Graph) addOptions(options []core.Option) error {
	for _, o := range options {
		if _, dup := g.options[o.ID]; dup {
			return &core.CatalogInconsistencyError{Reason: fmt.Sprintf("duplicate option id %d", o.ID)}
		}
		node, ok := g.nodes[o.ParameterID]
		if !ok {
			return &core.CatalogInconsistencyError{
				ParameterID: o.ParameterID,
				Reason:      fmt.Sprintf("option %d belongs to a parameter missing from the catalog", o.ID),
			}
		}
		g.options[o.ID] = o
		node.Options = append(node.Options, o)
	}
	for _, node := range g.nodes {
		slices.SortFunc(node.Options, func(a, b core.Option) int {
			return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
		})
	}
	return nil
}

type childEdge struct {
	parent EdgeKey
	child  core.ParameterID
}

func (g *Graph) addDependencies(deps []core.Dependency) (map[core.DependencyID]*Edge, error) {
	byID := make(map[core.DependencyID]*Edge, len(deps))
	seen := make(map[childEdge]core.DependencyID, len(deps))

	for _, d := range deps {
		if _, dup := byID[d.ID]; dup {
			return nil, &core.CatalogInconsistencyError{DependencyID: d.ID, Reason: "duplicate dependency id"}
		}

		child, ok := g.nodes[d.ChildParameterID]
		if !ok {
			g.warn(core.RefParameter, int64(d.ChildParameterID), fmt.Sprintf("dependency %d child", d.ID))
			continue
		}
		if d.ParentParameterID == d.ChildParameterID {
			return nil, &core.CatalogInconsistencyError{DependencyID: d.ID, Reason: "parameter depends on itself"}
		}

		key := EdgeKey{ParameterID: d.ParentParameterID, OptionID: d.ParentOptionID}
		if prev, dup := seen[childEdge{parent: key, child: d.ChildParameterID}]; dup {
			return nil, &core.CatalogInconsistencyError{
				DependencyID: d.ID,
				Reason: fmt.Sprintf("parameter %d already gated by parameter %d option %d (dependency %d)",
					d.ChildParameterID, d.ParentParameterID, d.ParentOptionID, prev),
			}
		}
		seen[childEdge{parent: key, child: d.ChildParameterID}] = d.ID

		edge := &Edge{DependencyID: d.ID, Parent: key, Child: d.ChildParameterID}

		_, parentKnown := g.nodes[d.ParentParameterID]
		opt, optKnown := g.options[d.ParentOptionID]
		switch {
		case !parentKnown:
			edge.Dangling = true
			g.warn(core.RefParameter, int64(d.ParentParameterID), fmt.Sprintf("dependency %d parent", d.ID))
		case !optKnown:
			edge.Dangling = true
			g.warn(core.RefOption, int64(d.ParentOptionID), fmt.Sprintf("dependency %d parent option", d.ID))
		case opt.ParameterID != d.ParentParameterID:
			return nil, &core.CatalogInconsistencyError{
				DependencyID: d.ID,
				Reason: fmt.Sprintf("parent option %d belongs to parameter %d, not %d",
					d.ParentOptionID, opt.ParameterID, d.ParentParameterID),
			}
		}

		byID[d.ID] = edge
		child.Kind = Dependent
		child.Incoming = append(child.Incoming, edge)

		if edge.Dangling {
			continue
		}
		g.adjacent[key] = append(g.adjacent[key], edge)
		if err := g.edges.AddEdge(d.ParentParameterID, d.ChildParameterID); err != nil {
			return nil, &core.CatalogInconsistencyError{DependencyID: d.ID, Reason: err.Error()}
		}
	}
	return byID, nil
}

func (g *Graph) authorizeOptions(byID map[core.DependencyID]*Edge, depOpts []core.DependencyOption) error {
	configured := make(map[core.DependencyID]bool, len(byID))
	seen := make(map[core.DependencyOption]bool, len(depOpts))

	for _, do := range depOpts {
		edge, ok := byID[do.DependencyID]
		if !ok {
			g.warn(core.RefDependency, int64(do.DependencyID), fmt.Sprintf("allowed option %d", do.OptionID))
			continue
		}
		// A row naming an unknown option still marks the dependency as restricted.
		configured[do.DependencyID] = true

		opt, ok := g.options[do.OptionID]
		if !ok {
			g.warn(core.RefOption, int64(do.OptionID), fmt.Sprintf("dependency %d allowed option", do.DependencyID))
			continue
		}
		if opt.ParameterID != edge.Child {
			return &core.CatalogInconsistencyError{
				DependencyID: do.DependencyID,
				Reason: fmt.Sprintf("allowed option %d belongs to parameter %d, not child parameter %d",
					do.OptionID, opt.ParameterID, edge.Child),
			}
		}
		if seen[do] {
			continue
		}
		seen[do] = true
		edge.Allowed = append(edge.Allowed, do.OptionID)
	}

	for id, edge := range byID {
		if !configured[id] {
			edge.Unrestricted = true
			continue
		}
		slices.SortFunc(edge.Allowed, func(a, b core.OptionID) int {
			oa, ob := g.options[a], g.options[b]
			return cmp.Or(cmp.Compare(oa.Position, ob.Position), cmp.Compare(a, b))
		})
	}
	return nil
}

func (g *Graph) warn(kind core.ReferenceKind, id int64, context string) {
	g.warnings = append(g.warnings, &core.UnknownReferenceError{Kind: kind, ID: id, Context: context})
}
