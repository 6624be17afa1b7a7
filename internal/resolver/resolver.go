// Package resolver computes parameter visibility and allowed options for a
// partial selection.
//
// Resolve is a pure function: it never mutates the selection and returns the
// same result for the same (graph, selection) pair. Choices that are no
// longer allowed are flagged as stale; clearing them is the caller's job.
package resolver

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/taskforge/internal/depgraph"
	"github.com/leapstack-labs/taskforge/pkg/core"
)

// Status is the visibility of a parameter.
type Status int

// Visibility statuses.
const (
	Hidden Status = iota
	Visible
)

func (s Status) String() string {
	if s == Visible {
		return "visible"
	}
	return "hidden"
}

// ParameterState is the resolved view of one parameter.
type ParameterState struct {
	ParameterID core.ParameterID
	Slug        string
	Status      Status
	// Allowed is empty when Hidden; otherwise the allowed options in display order.
	Allowed []core.OptionID
	// Selected is the current choice, zero if none.
	Selected core.OptionID
	// Stale is set when Selected is no longer allowed.
	Stale bool
	// Matched lists the dependencies that made a dependent parameter visible,
	// ordered by id.
	Matched []core.DependencyID
}

// Visible reports whether the parameter is visible.
func (s ParameterState) Visible() bool {
	return s.Status == Visible
}

// Allows reports whether id is currently selectable.
func (s ParameterState) Allows(id core.OptionID) bool {
	return s.Status == Visible && slices.Contains(s.Allowed, id)
}

// Resolution is the result of resolving a selection against a graph.
type Resolution struct {
	states  map[core.ParameterID]ParameterState
	order   []core.ParameterID
	unknown []error
}

// State returns the resolved state of a parameter.
func (r *Resolution) State(id core.ParameterID) (ParameterState, bool) {
	s, ok := r.states[id]
	return s, ok
}

// States returns every parameter state in topological order.
func (r *Resolution) States() []ParameterState {
	out := make([]ParameterState, len(r.order))
	for i, id := range r.order {
		out[i] = r.states[id]
	}
	return out
}

// Stale returns the parameters whose current choice must be cleared, in
// topological order.
func (r *Resolution) Stale() []core.ParameterID {
	var stale []core.ParameterID
	for _, id := range r.order {
		if r.states[id].Stale {
			stale = append(stale, id)
		}
	}
	return stale
}

// Unknown returns the core.UnknownReferenceError values found in the selection.
func (r *Resolution) Unknown() []error {
	return slices.Clone(r.unknown)
}

// Resolve evaluates every parameter of g against sel.
//
// A root parameter is always visible with all of its options. A dependent
// parameter is visible when at least one incoming dependency matches the
// selection, and its allowed set is the union of the matching dependencies'
// authorized options. A dependency without configured options authorizes
// every option of its child.
func Resolve(g *depgraph.Graph, sel core.Selection) *Resolution {
	r := &Resolution{
		states: make(map[core.ParameterID]ParameterState, g.Len()),
		order:  g.Order(),
	}

	// Only edges keyed by a current choice can activate a dependent.
	active := make(map[core.ParameterID][]*depgraph.Edge)
	for _, id := range sel.ParameterIDs() {
		if _, ok := g.Node(id); !ok {
			r.unknown = append(r.unknown, &core.UnknownReferenceError{
				Kind: core.RefParameter, ID: int64(id), Context: "selection",
			})
			continue
		}
		for _, edge := range g.EdgesFrom(id, sel[id]) {
			active[edge.Child] = append(active[edge.Child], edge)
		}
	}

	for _, id := range r.order {
		node, _ := g.Node(id)
		state := ParameterState{
			ParameterID: id,
			Slug:        node.Parameter.Slug,
			Selected:    sel[id],
		}

		if state.Selected != 0 {
			if o, ok := g.Option(state.Selected); !ok || o.ParameterID != id {
				// Unknown choice: hide the parameter so the caller drops it.
				r.unknown = append(r.unknown, &core.UnknownReferenceError{
					Kind:    core.RefOption,
					ID:      int64(state.Selected),
					Context: fmt.Sprintf("selection of %s", node.Parameter.Slug),
				})
				state.Stale = true
				r.states[id] = state
				continue
			}
		}

		switch node.Kind {
		case depgraph.Root:
			state.Status = Visible
			state.Allowed = node.OptionIDs()
		case depgraph.Dependent:
			resolveDependent(node, active[id], &state)
		}

		if state.Selected != 0 && !state.Allows(state.Selected) {
			state.Stale = true
		}
		r.states[id] = state
	}

	return r
}

func resolveDependent(node *depgraph.Node, matched []*depgraph.Edge, state *ParameterState) {
	if len(matched) == 0 {
		state.Status = Hidden
		return
	}

	allowed := make(map[core.OptionID]bool)
	unrestricted := false
	for _, edge := range matched {
		state.Matched = append(state.Matched, edge.DependencyID)
		if edge.Unrestricted {
			unrestricted = true
			continue
		}
		for _, id := range edge.Allowed {
			allowed[id] = true
		}
	}
	slices.Sort(state.Matched)

	state.Status = Visible
	for _, o := range node.Options {
		if unrestricted || allowed[o.ID] {
			state.Allowed = append(state.Allowed, o.ID)
		}
	}
}
