package template

import (
	"strings"

	"github.com/leapstack-labs/taskforge/pkg/core"
)

// ResolveValue returns the substitution value of a chosen option: its label,
// wrapped by the parameter's expression template when there is one. Every
// {value} token is replaced; the result is not scanned again.
func ResolveValue(expression, label string) string {
	if expression == "" {
		return label
	}
	return strings.ReplaceAll(expression, core.ValueToken, label)
}

// Normalize collapses whitespace runs to one space, trims the ends and
// strips one trailing period left behind by unset trailing clauses.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}

// Expander substitutes parameter values into parsed name expressions.
// It is immutable and safe for concurrent use.
type Expander struct {
	expressions map[string]string // slug -> expression template
}

// NewExpander creates an expander for the given parameters.
func NewExpander(params []core.Parameter) *Expander {
	e := &Expander{expressions: make(map[string]string, len(params))}
	for _, p := range params {
		e.expressions[p.Slug] = p.ExpressionTemplate
	}
	return e
}

// Knows reports whether slug names a parameter.
func (e *Expander) Knows(slug string) bool {
	_, ok := e.expressions[slug]
	return ok
}

// Substitute replaces every placeholder of t. labels maps a slug to the label
// of its confirmed option. A known slug without a label expands to nothing;
// an unknown slug is left verbatim. The result is not normalized.
func (e *Expander) Substitute(t *Template, labels map[string]string) string {
	var b strings.Builder
	for _, n := range t.Nodes {
		switch n := n.(type) {
		case *TextNode:
			b.WriteString(n.Text)
		case *PlaceholderNode:
			expression, known := e.expressions[n.Name]
			if !known {
				b.WriteString(n.Raw)
				continue
			}
			if label, chosen := labels[n.Name]; chosen {
				b.WriteString(ResolveValue(expression, label))
			}
		}
	}
	return b.String()
}

// Expand parses expr, substitutes labels and normalizes the result.
func (e *Expander) Expand(expr string, labels map[string]string) string {
	return e.Render(Parse(expr, ""), labels)
}

// Render substitutes labels into an already parsed template and normalizes
// the result.
func (e *Expander) Render(t *Template, labels map[string]string) string {
	return Normalize(e.Substitute(t, labels))
}

// Validate returns one error per placeholder occurrence in expr that names no
// known parameter.
func (e *Expander) Validate(expr, source string) []*PlaceholderError {
	var errs []*PlaceholderError
	for _, n := range Parse(expr, source).Nodes {
		if p, ok := n.(*PlaceholderNode); ok && !e.Knows(p.Name) {
			errs = append(errs, &PlaceholderError{Pos: p.Pos(), Name: p.Name})
		}
	}
	return errs
}
