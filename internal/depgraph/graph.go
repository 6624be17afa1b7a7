// Package depgraph builds the parameter dependency graph a configuration
// session resolves visibility against.
//
// The catalog stores dependencies as flat rows. Build turns them into an
// immutable adjacency structure keyed by (parent parameter, parent option),
// classifies every parameter as root or dependent, and rejects contradictory
// authoring with a core.CatalogInconsistencyError.
package depgraph

import (
	"slices"

	"github.com/leapstack-labs/taskforge/internal/dag"
	"github.com/leapstack-labs/taskforge/pkg/core"
)

// Kind classifies a parameter.
type Kind int

// Parameter kinds.
const (
	// Root parameters are never a dependency child and are always visible.
	Root Kind = iota
	// Dependent parameters are gated by at least one incoming dependency.
	Dependent
)

func (k Kind) String() string {
	switch k {
	case Root:
		return "root"
	case Dependent:
		return "dependent"
	default:
		return "unknown"
	}
}

// EdgeKey identifies the parent side of a dependency.
type EdgeKey struct {
	ParameterID core.ParameterID
	OptionID    core.OptionID
}

// Edge is one incoming dependency of a dependent parameter.
type Edge struct {
	DependencyID core.DependencyID
	Parent       EdgeKey
	Child        core.ParameterID
	// Allowed holds the authorized child options, in child option order.
	// Empty together with Unrestricted means every child option is allowed.
	Allowed      []core.OptionID
	Unrestricted bool
	// Dangling is set when the parent parameter or option is absent from the
	// catalog; such an edge never matches a selection.
	Dangling bool
}

// Node is a parameter together with its options and incoming edges.
type Node struct {
	Parameter core.Parameter
	Kind      Kind
	Options   []core.Option // sorted by position, then id
	Incoming  []*Edge       // in catalog order
}

// OptionIDs returns the node's option ids in display order.
func (n *Node) OptionIDs() []core.OptionID {
	ids := make([]core.OptionID, len(n.Options))
	for i, o := range n.Options {
		ids[i] = o.ID
	}
	return ids
}

// Graph is the immutable dependency graph of one catalog snapshot.
type Graph struct {
	nodes    map[core.ParameterID]*Node
	bySlug   map[string]core.ParameterID
	options  map[core.OptionID]core.Option
	adjacent map[EdgeKey][]*Edge
	order    []core.ParameterID // topological, parents first
	edges    *dag.Graph[core.ParameterID]
	warnings []error
}

// Node returns the node of a parameter.
func (g *Graph) Node(id core.ParameterID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeBySlug returns the node of the parameter with the given slug.
func (g *Graph) NodeBySlug(slug string) (*Node, bool) {
	id, ok := g.bySlug[slug]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

// Option returns an option by id.
func (g *Graph) Option(id core.OptionID) (core.Option, bool) {
	o, ok := g.options[id]
	return o, ok
}

// Order returns parameter ids in topological order (parents before children).
func (g *Graph) Order() []core.ParameterID {
	return slices.Clone(g.order)
}

// Nodes returns all nodes in topological order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.order))
	for i, id := range g.order {
		out[i] = g.nodes[id]
	}
	return out
}

// Len returns the number of parameters.
func (g *Graph) Len() int {
	return g.edges.NodeCount()
}

// EdgeCount returns the number of distinct parent to child parameter links.
// Dependencies sharing both endpoints count once.
func (g *Graph) EdgeCount() int {
	return g.edges.EdgeCount()
}

// Roots returns the ids of root parameters in topological order.
func (g *Graph) Roots() []core.ParameterID {
	var roots []core.ParameterID
	for _, id := range g.order {
		if g.nodes[id].Kind == Root {
			roots = append(roots, id)
		}
	}
	return roots
}

// EdgesFrom returns the dependencies activated by choosing option on parameter.
func (g *Graph) EdgesFrom(parameter core.ParameterID, option core.OptionID) []*Edge {
	return g.adjacent[EdgeKey{ParameterID: parameter, OptionID: option}]
}

// Parents returns the parameters directly gating id, in ascending order.
func (g *Graph) Parents(id core.ParameterID) []core.ParameterID {
	return slices.Sorted(slices.Values(g.edges.Parents(id)))
}

// Downstream returns every parameter transitively gated by the given one.
func (g *Graph) Downstream(id core.ParameterID) []core.ParameterID {
	return g.edges.Descendants(id)
}

// Upstream returns every parameter that transitively gates the given one.
func (g *Graph) Upstream(id core.ParameterID) []core.ParameterID {
	return g.edges.Ancestors(id)
}

// Warnings returns the recoverable core.UnknownReferenceError values found
// while building.
func (g *Graph) Warnings() []error {
	return slices.Clone(g.warnings)
}
