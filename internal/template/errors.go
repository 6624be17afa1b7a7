package template

import "fmt"

// PlaceholderError reports a placeholder that names no known parameter.
// Expansion leaves such placeholders verbatim; the error is only surfaced by
// Validate for authoring checks.
type PlaceholderError struct {
	Pos  Position
	Name string
}

func (e *PlaceholderError) Error() string {
	if e.Pos.Source != "" {
		return fmt.Sprintf("%s:%d:%d: placeholder {%s} does not match any parameter", e.Pos.Source, e.Pos.Line, e.Pos.Column, e.Name)
	}
	return fmt.Sprintf("%d:%d: placeholder {%s} does not match any parameter", e.Pos.Line, e.Pos.Column, e.Name)
}

// Position returns where the placeholder appears.
func (e *PlaceholderError) Position() Position { return e.Pos }
