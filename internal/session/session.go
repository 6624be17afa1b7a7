// Package session implements the task configuration session: the mutable
// object a caller drives one parameter at a time until the task can be
// committed to the code allocator.
//
// A Session owns its Selection. Every mutation re-resolves the dependency
// graph and clears stale choices until a fixed point is reached, so the
// selection exposed by a Session is always consistent with the graph.
// Sessions are not safe for concurrent use.
package session

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/leapstack-labs/taskforge/internal/depgraph"
	"github.com/leapstack-labs/taskforge/internal/resolver"
	"github.com/leapstack-labs/taskforge/internal/template"
	"github.com/leapstack-labs/taskforge/pkg/core"
)

// Config holds the collaborators of a session.
type Config struct {
	// ID identifies the session, e.g. in a registry. Optional.
	ID string
	// Catalog is the snapshot the session runs against. Required.
	Catalog *core.Catalog
	// Graph is the prebuilt graph of Catalog. Built from Catalog when nil.
	Graph *depgraph.Graph
	// Allocator receives the selection on Commit. Optional until Commit.
	Allocator core.Allocator
	// Conditions evaluates binding conditions. Conditions are ignored when nil.
	Conditions core.ConditionEvaluator
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Session is one configuration of one template.
type Session struct {
	id         string
	template   core.Template
	graph      *depgraph.Graph
	expander   *template.Expander
	name       *template.Template
	bindings   map[core.ParameterID]core.TemplateParameter
	allocator  core.Allocator
	conditions core.ConditionEvaluator
	logger     *slog.Logger

	selection  core.Selection
	resolution *resolver.Resolution
	inactive   map[core.ParameterID]bool
	state      State
	code       string
}

// New starts a session in the Empty state (or Complete, for a template
// without required parameters).
func New(cfg Config) (*Session, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("session requires a catalog")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	g := cfg.Graph
	if g == nil {
		var err error
		g, err = depgraph.BuildFromCatalog(cfg.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to build dependency graph: %w", err)
		}
		for _, w := range g.Warnings() {
			logger.Warn("catalog reference skipped", "template", cfg.Catalog.Template.Code, "error", w)
		}
	}

	tmpl := cfg.Catalog.Template
	s := &Session{
		id:         cfg.ID,
		template:   tmpl,
		graph:      g,
		expander:   template.NewExpander(cfg.Catalog.Parameters),
		name:       template.Parse(tmpl.NameExpression, tmpl.Code),
		bindings:   make(map[core.ParameterID]core.TemplateParameter, len(tmpl.Parameters)),
		allocator:  cfg.Allocator,
		conditions: cfg.Conditions,
		logger:     logger.With("template", tmpl.Code),
		selection:  core.Selection{},
	}

	for _, b := range tmpl.Parameters {
		if _, ok := g.Node(b.ParameterID); !ok {
			s.logger.Warn("binding skipped", "error", &core.UnknownReferenceError{
				Kind: core.RefParameter, ID: int64(b.ParameterID), Context: "template binding",
			})
			continue
		}
		s.bindings[b.ParameterID] = b
	}

	s.settle()
	s.state = s.computeState()
	s.logger.Debug("session started", "session", s.id, "state", s.state.String())
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Template returns the template being configured.
func (s *Session) Template() core.Template { return s.template }

// Graph returns the dependency graph of the session's catalog snapshot.
func (s *Session) Graph() *depgraph.Graph { return s.graph }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Code returns the allocated task code once Committed.
func (s *Session) Code() string { return s.code }

// Selection returns a copy of the current selection.
func (s *Session) Selection() core.Selection { return s.selection.Clone() }

// SelectOption chooses optionID for the parameter with the given slug.
//
// The parameter must be visible and active and the option must be in its
// allowed set; otherwise a *core.InvalidSelectionError is returned and the
// selection is left untouched. Choices invalidated by the change are cleared.
func (s *Session) SelectOption(slug string, optionID core.OptionID) error {
	if s.state.Closed() {
		return fmt.Errorf("cannot select %s: %w", slug, core.ErrSessionClosed)
	}

	node, ok := s.graph.NodeBySlug(slug)
	if !ok {
		return &core.InvalidSelectionError{Slug: slug, OptionID: optionID, Reason: "unknown parameter"}
	}
	id := node.Parameter.ID
	if s.inactive[id] {
		return &core.InvalidSelectionError{Slug: slug, OptionID: optionID, Reason: "parameter is inactive"}
	}
	ps, _ := s.resolution.State(id)
	if !ps.Visible() {
		return &core.InvalidSelectionError{Slug: slug, OptionID: optionID, Reason: "parameter is hidden"}
	}
	if !ps.Allows(optionID) {
		return &core.InvalidSelectionError{Slug: slug, OptionID: optionID, Reason: "option is not allowed"}
	}

	s.selection[id] = optionID
	cleared := s.settle()
	s.state = s.computeState()

	s.logger.Debug("option selected",
		"session", s.id, "parameter", slug, "option", optionID,
		"cleared", len(cleared), "state", s.state.String())
	return nil
}

// ClearOption removes the choice for slug, cascading to the choices it gated.
// Clearing a parameter without a choice is a no-op.
func (s *Session) ClearOption(slug string) error {
	if s.state.Closed() {
		return fmt.Errorf("cannot clear %s: %w", slug, core.ErrSessionClosed)
	}

	node, ok := s.graph.NodeBySlug(slug)
	if !ok {
		return &core.InvalidSelectionError{Slug: slug, Reason: "unknown parameter"}
	}
	if !s.selection.Has(node.Parameter.ID) {
		return nil
	}

	delete(s.selection, node.Parameter.ID)
	cleared := s.settle()
	s.state = s.computeState()

	s.logger.Debug("option cleared",
		"session", s.id, "parameter", slug, "cleared", len(cleared), "state", s.state.String())
	return nil
}

// Preview expands the template name expression over the confirmed choices.
func (s *Session) Preview() string {
	return s.expander.Render(s.name, s.labels())
}

// Missing returns the slugs of active required parameters without a choice,
// in binding order.
func (s *Session) Missing() []string {
	var missing []string
	for _, b := range s.orderedBindings() {
		if !b.Required || s.inactive[b.ParameterID] || s.selection.Has(b.ParameterID) {
			continue
		}
		node, _ := s.graph.Node(b.ParameterID)
		missing = append(missing, node.Parameter.Slug)
	}
	return missing
}

// LookupOption resolves an option of slug by machine name or label.
func (s *Session) LookupOption(slug, name string) (core.OptionID, bool) {
	node, ok := s.graph.NodeBySlug(slug)
	if !ok {
		return 0, false
	}
	for _, o := range node.Options {
		if o.Name == name {
			return o.ID, true
		}
	}
	for _, o := range node.Options {
		if o.Label == name {
			return o.ID, true
		}
	}
	return 0, false
}

// Commit hands the resolved selection to the allocator.
//
// Commit is only valid in the Complete state. The allocator is invoked once;
// on failure the session stays Complete with its selection untouched and the
// caller may retry.
func (s *Session) Commit(ctx context.Context) (string, error) {
	switch {
	case s.state.Closed():
		return "", fmt.Errorf("cannot commit: %w", core.ErrSessionClosed)
	case s.state != Complete:
		return "", fmt.Errorf("cannot commit a %s session: %w", s.state, core.ErrInvalidTransition)
	case s.allocator == nil:
		return "", &core.AllocationError{TemplateID: s.template.ID, Cause: fmt.Errorf("no allocator configured")}
	}

	resolved := s.resolvedSelection()
	code, err := s.allocator.AllocateTaskCode(ctx, s.template.ID, resolved)
	if err != nil {
		s.logger.Warn("allocation failed", "session", s.id, "error", err)
		return "", &core.AllocationError{TemplateID: s.template.ID, Cause: err}
	}

	s.code = code
	s.state = Committed
	s.logger.Info("task committed", "session", s.id, "code", code)
	return code, nil
}

// Abandon discards the session. It has no external effect.
func (s *Session) Abandon() error {
	if s.state.Closed() {
		return fmt.Errorf("cannot abandon a %s session: %w", s.state, core.ErrSessionClosed)
	}
	s.state = Abandoned
	s.logger.Debug("session abandoned", "session", s.id)
	return nil
}

// settle re-resolves the selection and clears stale or inactive choices until
// nothing changes. On an acyclic graph each pass clears at least one choice
// or stops, so N+1 passes always suffice.
func (s *Session) settle() []core.ParameterID {
	var cleared []core.ParameterID
	limit := s.graph.Len() + 1

	for range limit {
		s.inactive = s.evaluateConditions()
		s.resolution = resolver.Resolve(s.graph, s.selection)

		drop := s.resolution.Stale()
		for id := range s.inactive {
			if s.selection.Has(id) && !slices.Contains(drop, id) {
				drop = append(drop, id)
			}
		}
		if len(drop) == 0 {
			return cleared
		}
		for _, id := range drop {
			delete(s.selection, id)
		}
		cleared = append(cleared, drop...)
	}

	// unreachable for a graph that passed the acyclicity check
	s.logger.Error("selection did not settle", "session", s.id, "passes", limit)
	return cleared
}

// evaluateConditions returns the bindings whose condition is currently false.
func (s *Session) evaluateConditions() map[core.ParameterID]bool {
	if s.conditions == nil {
		return nil
	}

	var choices map[string]string
	inactive := make(map[core.ParameterID]bool)
	for _, b := range s.orderedBindings() {
		if b.Condition == "" {
			continue
		}
		if choices == nil {
			choices = s.choiceNames()
		}
		ok, err := s.conditions.EvaluateCondition(b.Condition, choices)
		if err != nil {
			s.logger.Warn("condition evaluation failed, treating parameter as active",
				"session", s.id, "parameter", b.ParameterID, "condition", b.Condition, "error", err)
			continue
		}
		if !ok {
			inactive[b.ParameterID] = true
		}
	}
	return inactive
}

func (s *Session) computeState() State {
	for _, b := range s.bindings {
		if b.Required && !s.inactive[b.ParameterID] && !s.selection.Has(b.ParameterID) {
			if len(s.selection) == 0 {
				return Empty
			}
			return Partial
		}
	}
	return Complete
}

func (s *Session) orderedBindings() []core.TemplateParameter {
	bindings := slices.Collect(maps.Values(s.bindings))
	slices.SortFunc(bindings, func(a, b core.TemplateParameter) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ParameterID, b.ParameterID))
	})
	return bindings
}

// labels maps slug to the label of the chosen option.
func (s *Session) labels() map[string]string {
	labels := make(map[string]string, len(s.selection))
	for id, opt := range s.selection {
		node, _ := s.graph.Node(id)
		o, _ := s.graph.Option(opt)
		labels[node.Parameter.Slug] = o.Label
	}
	return labels
}

// choiceNames maps slug to the machine name of the chosen option.
func (s *Session) choiceNames() map[string]string {
	names := make(map[string]string, len(s.selection))
	for id, opt := range s.selection {
		node, ok := s.graph.Node(id)
		if !ok {
			continue
		}
		if o, ok := s.graph.Option(opt); ok {
			names[node.Parameter.Slug] = o.Name
		}
	}
	return names
}

func (s *Session) resolvedSelection() map[string]core.OptionID {
	resolved := make(map[string]core.OptionID, len(s.selection))
	for id, opt := range s.selection {
		node, _ := s.graph.Node(id)
		resolved[node.Parameter.Slug] = opt
	}
	return resolved
}
