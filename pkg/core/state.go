package core

import (
	"context"
	"time"
)

// CatalogStore is the read-only view of the persisted catalog.
type CatalogStore interface {
	// LoadCatalog returns the template with its bindings, every parameter it
	// binds plus the parents gating them, their options, and the dependencies
	// targeting those parameters.
	LoadCatalog(ctx context.Context, templateID TemplateID) (*Catalog, error)
	GetTemplateByCode(ctx context.Context, code string) (*Template, error)
	ListTemplates(ctx context.Context) ([]*Template, error)
}

// Allocator generates (and persists server-side) the final task code.
// It is invoked once per commit and never retried by the engine.
type Allocator interface {
	AllocateTaskCode(ctx context.Context, templateID TemplateID, selection map[string]OptionID) (string, error)
}

// ConditionEvaluator evaluates a TemplateParameter condition against the
// current choices, given as parameter slug -> option name.
type ConditionEvaluator interface {
	EvaluateCondition(expr string, choices map[string]string) (bool, error)
}

// Task is a task persisted by an allocator.
type Task struct {
	ID         string
	Code       string
	TemplateID TemplateID
	Selection  map[string]OptionID
	CreatedAt  time.Time
}
