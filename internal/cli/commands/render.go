package commands

import (
	"strings"

	"github.com/leapstack-labs/taskforge/internal/cli/output"
	"github.com/leapstack-labs/taskforge/internal/session"
)

// renderSnapshot writes a session snapshot in the renderer's mode.
func renderSnapshot(r *output.Renderer, snap session.Snapshot) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(snap)
	}

	styles := r.Styles()
	r.Header(1, "Session "+snap.Template)
	r.KeyValue("State", snap.State.String())
	r.KeyValue("Preview", styles.Highlight.Render(orDash(snap.Preview)))
	if len(snap.Missing) > 0 {
		r.KeyValue("Missing", strings.Join(snap.Missing, ", "))
	}
	if snap.Code != "" {
		r.KeyValue("Code", styles.Code.Render(snap.Code))
	}
	r.Println("")

	rows := make([][]string, 0, len(snap.Parameters))
	for _, p := range snap.Parameters {
		rows = append(rows, []string{p.Slug, parameterStatus(p), selectedLabel(p), allowedNames(p)})
	}
	r.Table([]string{"Parameter", "Status", "Selected", "Options"}, rows)
	return nil
}

func parameterStatus(p session.ParameterView) string {
	var parts []string
	switch {
	case !p.Active:
		parts = append(parts, "inactive")
	case !p.Visible:
		parts = append(parts, "hidden")
	default:
		parts = append(parts, "visible")
	}
	if p.Required {
		parts = append(parts, "required")
	}
	if !p.Bound {
		parts = append(parts, "unbound")
	}
	return strings.Join(parts, ", ")
}

func selectedLabel(p session.ParameterView) string {
	if p.Selected == nil {
		return "-"
	}
	if p.Selected.Label == p.Selected.Name {
		return p.Selected.Name
	}
	return p.Selected.Name + " (" + p.Selected.Label + ")"
}

func allowedNames(p session.ParameterView) string {
	if len(p.Allowed) == 0 {
		return "-"
	}
	names := make([]string, len(p.Allowed))
	for i, o := range p.Allowed {
		names[i] = o.Name
	}
	return strings.Join(names, " | ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
