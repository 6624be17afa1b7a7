package loader

import "fmt"

// ParseError is returned when a document is not valid YAML or has unknown
// fields.
type ParseError struct {
	Source  string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

// ValidationError describes one problem in a parsed document. Path locates
// the offending entry, e.g. "templates[0].parameters[2]".
type ValidationError struct {
	Source  string
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Path, e.Message)
}
