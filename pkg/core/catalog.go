package core

// ParameterID identifies a Parameter. Zero means "none".
type ParameterID int64

// OptionID identifies an Option. Zero means "none".
type OptionID int64

// TemplateID identifies a Template.
type TemplateID int64

// DependencyID identifies a Dependency.
type DependencyID int64

// ValueToken is the token an expression template wraps an option label with.
const ValueToken = "{value}"

// Parameter is a configurable axis of a task (e.g. "mortar type").
type Parameter struct {
	ID    ParameterID
	Slug  string // stable machine key, used as {slug} in name expressions
	Label string
	// ExpressionTemplate wraps the chosen option label when substituted,
	// e.g. "with {value} mortar". Empty means the label is used as-is.
	ExpressionTemplate string
	Position           int
}

// HasExpression reports whether the parameter wraps its value.
func (p Parameter) HasExpression() bool {
	return p.ExpressionTemplate != ""
}

// Option is one selectable value of a Parameter.
// ParameterID never changes after creation.
type Option struct {
	ID          OptionID
	ParameterID ParameterID
	Name        string // machine name
	Label       string
	Position    int
}

// Template defines a buildable task family.
type Template struct {
	ID             TemplateID
	Code           string
	Name           string
	NameExpression string
	Parameters     []TemplateParameter // ordered by Position
}

// Binding returns the template binding for a parameter, if any.
func (t *Template) Binding(id ParameterID) (TemplateParameter, bool) {
	for _, tp := range t.Parameters {
		if tp.ParameterID == id {
			return tp, true
		}
	}
	return TemplateParameter{}, false
}

// TemplateParameter binds a Parameter to a Template.
type TemplateParameter struct {
	ParameterID ParameterID
	Position    int
	Required    bool
	// Condition is opaque to the engine and evaluated by a ConditionEvaluator.
	Condition string
}

// Dependency is a directed edge: when ParentParameterID is set to
// ParentOptionID, ChildParameterID becomes relevant.
type Dependency struct {
	ID                DependencyID
	ParentParameterID ParameterID
	ParentOptionID    OptionID
	ChildParameterID  ParameterID
}

// DependencyOption allows one child option under a Dependency.
type DependencyOption struct {
	DependencyID DependencyID
	OptionID     OptionID
}

// Catalog is the read-only snapshot a session works against.
type Catalog struct {
	Template          Template
	Parameters        []Parameter
	Options           []Option
	Dependencies      []Dependency
	DependencyOptions []DependencyOption
}
