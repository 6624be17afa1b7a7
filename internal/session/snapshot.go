package session

import (
	"github.com/leapstack-labs/taskforge/pkg/core"
)

// ParameterView is the caller-facing state of one parameter.
type ParameterView struct {
	ID       core.ParameterID `json:"id"`
	Slug     string           `json:"slug"`
	Label    string           `json:"label"`
	Bound    bool             `json:"bound"`
	Required bool             `json:"required"`
	Active   bool             `json:"active"`
	Visible  bool             `json:"visible"`
	Allowed  []core.Option    `json:"allowed,omitempty"`
	Selected *core.Option     `json:"selected,omitempty"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID         string                   `json:"id,omitempty"`
	TemplateID core.TemplateID          `json:"template_id"`
	Template   string                   `json:"template"`
	State      State                    `json:"state"`
	Preview    string                   `json:"preview"`
	Missing    []string                 `json:"missing,omitempty"`
	Selection  map[string]core.OptionID `json:"selection"`
	Parameters []ParameterView          `json:"parameters"`
	Code       string                   `json:"code,omitempty"`
}

// Snapshot returns the current view of the session. Parameters are listed in
// dependency order.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:         s.id,
		TemplateID: s.template.ID,
		Template:   s.template.Code,
		State:      s.state,
		Preview:    s.Preview(),
		Missing:    s.Missing(),
		Selection:  s.resolvedSelection(),
		Code:       s.code,
	}

	for _, ps := range s.resolution.States() {
		node, _ := s.graph.Node(ps.ParameterID)
		binding, bound := s.bindings[ps.ParameterID]

		view := ParameterView{
			ID:       ps.ParameterID,
			Slug:     ps.Slug,
			Label:    node.Parameter.Label,
			Bound:    bound,
			Required: bound && binding.Required,
			Active:   !s.inactive[ps.ParameterID],
			Visible:  ps.Visible(),
		}
		if view.Active {
			for _, id := range ps.Allowed {
				o, _ := s.graph.Option(id)
				view.Allowed = append(view.Allowed, o)
			}
		}
		if ps.Selected != 0 {
			o, _ := s.graph.Option(ps.Selected)
			view.Selected = &o
		}
		snap.Parameters = append(snap.Parameters, view)
	}
	return snap
}
