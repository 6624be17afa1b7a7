// Package engine is the caller-facing surface of the task configuration
// engine. It loads catalog snapshots, starts sessions and keeps them in a
// bounded registry addressed by session id.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/leapstack-labs/taskforge/internal/depgraph"
	"github.com/leapstack-labs/taskforge/internal/session"
	"github.com/leapstack-labs/taskforge/pkg/core"
)

// DefaultMaxSessions bounds the registry when Config.MaxSessions is zero.
const DefaultMaxSessions = 256

// Engine starts and tracks configuration sessions.
type Engine struct {
	store      core.CatalogStore
	allocator  core.Allocator
	conditions core.ConditionEvaluator
	sessions   *lru.Cache[string, *session.Session]

	// Structured logger
	logger *slog.Logger
}

// Config holds engine configuration.
type Config struct {
	// Store provides catalog snapshots. Required.
	Store core.CatalogStore
	// Allocator receives committed selections (optional, commit fails without it)
	Allocator core.Allocator
	// Conditions evaluates template binding conditions (optional)
	Conditions core.ConditionEvaluator
	// MaxSessions bounds the number of live sessions. The least recently used
	// session is abandoned when the bound is reached.
	MaxSessions int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine requires a catalog store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	size := cfg.MaxSessions
	if size <= 0 {
		size = DefaultMaxSessions
	}

	e := &Engine{
		store:      cfg.Store,
		allocator:  cfg.Allocator,
		conditions: cfg.Conditions,
		logger:     logger,
	}

	cache, err := lru.NewWithEvict(size, e.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create session registry: %w", err)
	}
	e.sessions = cache

	logger.Debug("engine initialized", "max_sessions", size)
	return e, nil
}

// StartSession loads a fresh catalog snapshot for the template and starts a
// session on it.
func (e *Engine) StartSession(ctx context.Context, templateID core.TemplateID) (*session.Session, error) {
	catalog, err := e.store.LoadCatalog(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog for template %d: %w", templateID, err)
	}

	g, err := e.buildGraph(catalog)
	if err != nil {
		return nil, err
	}

	s, err := session.New(session.Config{
		ID:         uuid.NewString(),
		Catalog:    catalog,
		Graph:      g,
		Allocator:  e.allocator,
		Conditions: e.conditions,
		Logger:     e.logger,
	})
	if err != nil {
		return nil, err
	}

	e.sessions.Add(s.ID(), s)
	e.logger.Info("session started", "session", s.ID(), "template", catalog.Template.Code)
	return s, nil
}

// StartSessionByCode starts a session for the template with the given code.
func (e *Engine) StartSessionByCode(ctx context.Context, code string) (*session.Session, error) {
	t, err := e.store.GetTemplateByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get template %s: %w", code, err)
	}
	return e.StartSession(ctx, t.ID)
}

// Session returns a live session by id.
func (e *Engine) Session(id string) (*session.Session, error) {
	s, ok := e.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, core.ErrNotFound)
	}
	return s, nil
}

// Abandon abandons a session and drops it from the registry.
func (e *Engine) Abandon(id string) error {
	if _, ok := e.sessions.Peek(id); !ok {
		return fmt.Errorf("session %s: %w", id, core.ErrNotFound)
	}
	e.sessions.Remove(id)
	return nil
}

// Sessions returns the number of sessions in the registry.
func (e *Engine) Sessions() int {
	return e.sessions.Len()
}

// Templates lists the templates of the catalog store.
func (e *Engine) Templates(ctx context.Context) ([]*core.Template, error) {
	templates, err := e.store.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// Close abandons every live session.
func (e *Engine) Close() {
	e.sessions.Purge()
}

func (e *Engine) buildGraph(catalog *core.Catalog) (*depgraph.Graph, error) {
	g, err := depgraph.BuildFromCatalog(catalog)
	if err != nil {
		e.logger.Error("catalog is inconsistent", "template", catalog.Template.Code, "error", err)
		return nil, fmt.Errorf("failed to build dependency graph for %s: %w", catalog.Template.Code, err)
	}
	for _, w := range g.Warnings() {
		e.logger.Warn("catalog reference skipped", "template", catalog.Template.Code, "error", w)
	}
	return g, nil
}

// onEvict abandons sessions leaving the registry, whether evicted or removed.
func (e *Engine) onEvict(id string, s *session.Session) {
	if s.State().Closed() {
		return
	}
	if err := s.Abandon(); err != nil {
		e.logger.Warn("failed to abandon session", "session", id, "error", err)
		return
	}
	e.logger.Debug("session evicted", "session", id)
}
