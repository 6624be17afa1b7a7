// Package template expands task name expressions.
//
// A name expression is literal text with {slug} placeholders, one per
// parameter. Expansion runs in three independently testable steps: value
// resolution (ResolveValue), substitution (Expander.Substitute) and
// normalization (Normalize).
package template

// Position tracks source location for error reporting.
type Position struct {
	Source string
	Line   int
	Column int
}

// Node is the interface for all expression AST nodes.
type Node interface {
	Pos() Position
	node() // marker method to restrict implementation
}

// nodeBase provides common Position handling for all nodes.
type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode represents literal text (passed through unchanged).
type TextNode struct {
	nodeBase
	Text string
}

// PlaceholderNode represents a {slug} placeholder.
type PlaceholderNode struct {
	nodeBase
	Name string // slug without braces
	Raw  string // "{slug}", emitted verbatim when the slug is unknown
}

// Template is a parsed name expression.
type Template struct {
	Nodes  []Node
	Source string
}

// Parse parses a name expression. Parsing never fails.
func Parse(input, source string) *Template {
	tmpl := &Template{Source: source}
	for _, tok := range NewLexer(input, source).Tokenize() {
		switch tok.Type {
		case TokenText:
			tmpl.Nodes = append(tmpl.Nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})
		case TokenPlaceholder:
			tmpl.Nodes = append(tmpl.Nodes, &PlaceholderNode{nodeBase: nodeBase{pos: tok.Pos}, Name: tok.Value, Raw: tok.Raw})
		case TokenEOF:
		}
	}
	return tmpl
}

// Placeholders returns the distinct placeholder names in order of first use.
func (t *Template) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, n := range t.Nodes {
		if p, ok := n.(*PlaceholderNode); ok && !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	return names
}
