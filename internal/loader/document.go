// Package loader reads catalog documents written in YAML.
//
// A document declares parameters with their options, templates binding
// those parameters, and dependencies between them. Everything is referenced
// by slug, option name or template code; ids are assigned on import.
//
//	parameters:
//	  - slug: material
//	    label: Material
//	    options: [brick, block]
//	  - slug: mortar
//	    expression: "with {value} mortar"
//	    options:
//	      - {name: cement, label: cement}
//	templates:
//	  - code: MW
//	    name: Masonry wall
//	    name_expression: "{material} wall {mortar}"
//	    parameters:
//	      - {parameter: material, required: true}
//	      - mortar
//	dependencies:
//	  - {parent: material, when: brick, child: mortar, allow: [cement]}
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is a parsed catalog document.
type Document struct {
	Source       string          `yaml:"-" json:"-"`
	Parameters   []ParameterDoc  `yaml:"parameters" json:"parameters"`
	Templates    []TemplateDoc   `yaml:"templates" json:"templates"`
	Dependencies []DependencyDoc `yaml:"dependencies" json:"dependencies"`
}

// ParameterDoc declares a parameter.
type ParameterDoc struct {
	Slug       string      `yaml:"slug" json:"slug"`
	Label      string      `yaml:"label,omitempty" json:"label,omitempty"`
	Expression string      `yaml:"expression,omitempty" json:"expression,omitempty"`
	Options    []OptionDoc `yaml:"options" json:"options"`
}

// OptionDoc declares an option. A bare string sets both name and label.
type OptionDoc struct {
	Name  string `yaml:"name" json:"name"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// UnmarshalYAML accepts either a scalar or a mapping.
func (o *OptionDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		o.Name = node.Value
		o.Label = node.Value
		return nil
	}
	type plain OptionDoc
	if err := decodeStrict(node, (*plain)(o)); err != nil {
		return err
	}
	if o.Label == "" {
		o.Label = o.Name
	}
	return nil
}

// MarshalYAML writes a bare string when name and label match.
func (o OptionDoc) MarshalYAML() (any, error) {
	if o.Label == "" || o.Label == o.Name {
		return o.Name, nil
	}
	type plain OptionDoc
	return plain(o), nil
}

// TemplateDoc declares a template and its bindings.
type TemplateDoc struct {
	Code           string       `yaml:"code" json:"code"`
	Name           string       `yaml:"name" json:"name"`
	NameExpression string       `yaml:"name_expression" json:"name_expression"`
	Parameters     []BindingDoc `yaml:"parameters" json:"parameters"`
}

// BindingDoc binds a parameter to a template. A bare string names an
// optional parameter without condition.
type BindingDoc struct {
	Parameter string `yaml:"parameter" json:"parameter"`
	Required  bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// UnmarshalYAML accepts either a scalar or a mapping.
func (b *BindingDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		b.Parameter = node.Value
		return nil
	}
	type plain BindingDoc
	return decodeStrict(node, (*plain)(b))
}

// MarshalYAML writes a bare string for an optional unconditional binding.
func (b BindingDoc) MarshalYAML() (any, error) {
	if !b.Required && b.Condition == "" {
		return b.Parameter, nil
	}
	type plain BindingDoc
	return plain(b), nil
}

// DependencyDoc gates Child on Parent being set to When. An empty Allow
// list leaves every option of Child selectable.
type DependencyDoc struct {
	Parent string   `yaml:"parent" json:"parent"`
	When   string   `yaml:"when" json:"when"`
	Child  string   `yaml:"child" json:"child"`
	Allow  []string `yaml:"allow,omitempty" json:"allow,omitempty"`
}

// decodeStrict decodes node into v, rejecting unknown fields.
func decodeStrict(node *yaml.Node, v any) error {
	out, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(out))
	dec.KnownFields(true)
	return dec.Decode(v)
}

// Parse parses a catalog document. Unknown fields are rejected.
func Parse(data []byte, source string) (*Document, error) {
	doc := &Document{Source: source}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil {
		if errors.Is(err, io.EOF) {
			return doc, nil
		}
		return nil, &ParseError{Source: source, Message: err.Error()}
	}
	doc.Source = source
	return doc, nil
}

// ParseFile reads and parses a catalog document from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided by design
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Marshal renders the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode catalog document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode catalog document: %w", err)
	}
	return buf.Bytes(), nil
}
