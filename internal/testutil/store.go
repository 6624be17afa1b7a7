package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/leapstack-labs/taskforge/pkg/core"
)

// MemoryStore is an in-memory core.CatalogStore and core.Allocator.
type MemoryStore struct {
	mu       sync.Mutex
	catalogs map[core.TemplateID]*core.Catalog
	counters map[core.TemplateID]int
	// Tasks records allocated tasks in order.
	Tasks []core.Task
	// AllocErr, when set, is returned by AllocateTaskCode.
	AllocErr error
	// Loads counts LoadCatalog calls.
	Loads int
}

// NewMemoryStore creates a store holding the given catalogs.
func NewMemoryStore(catalogs ...*core.Catalog) *MemoryStore {
	s := &MemoryStore{
		catalogs: make(map[core.TemplateID]*core.Catalog),
		counters: make(map[core.TemplateID]int),
	}
	for _, c := range catalogs {
		s.catalogs[c.Template.ID] = c
	}
	return s
}

// LoadCatalog implements core.CatalogStore.
func (s *MemoryStore) LoadCatalog(_ context.Context, id core.TemplateID) (*core.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Loads++
	c, ok := s.catalogs[id]
	if !ok {
		return nil, fmt.Errorf("template %d: %w", id, core.ErrNotFound)
	}
	return c, nil
}

// GetTemplateByCode implements core.CatalogStore.
func (s *MemoryStore) GetTemplateByCode(_ context.Context, code string) (*core.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.catalogs {
		if c.Template.Code == code {
			t := c.Template
			return &t, nil
		}
	}
	return nil, fmt.Errorf("template %s: %w", code, core.ErrNotFound)
}

// ListTemplates implements core.CatalogStore.
func (s *MemoryStore) ListTemplates(_ context.Context) ([]*core.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	templates := make([]*core.Template, 0, len(s.catalogs))
	for _, c := range s.catalogs {
		t := c.Template
		templates = append(templates, &t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Code < templates[j].Code })
	return templates, nil
}

// AllocateTaskCode implements core.Allocator with "<CODE>-<NNNN>" codes.
func (s *MemoryStore) AllocateTaskCode(_ context.Context, id core.TemplateID, sel map[string]core.OptionID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AllocErr != nil {
		return "", s.AllocErr
	}
	c, ok := s.catalogs[id]
	if !ok {
		return "", fmt.Errorf("template %d: %w", id, core.ErrNotFound)
	}
	s.counters[id]++
	code := fmt.Sprintf("%s-%04d", c.Template.Code, s.counters[id])
	s.Tasks = append(s.Tasks, core.Task{ID: fmt.Sprint(len(s.Tasks) + 1), Code: code, TemplateID: id, Selection: sel})
	return code, nil
}
