package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/leapstack-labs/taskforge/internal/session"
	"github.com/leapstack-labs/taskforge/internal/testutil"
	"github.com/leapstack-labs/taskforge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, store *testutil.MemoryStore, maxSessions int) *Engine {
	t.Helper()
	e, err := New(Config{
		Store:       store,
		Allocator:   store,
		MaxSessions: maxSessions,
		Logger:      testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestStartSession(t *testing.T) {
	store := testutil.NewMemoryStore(testutil.WallCatalog(), testutil.SimpleCatalog())
	e := newTestEngine(t, store, 0)
	ctx := context.Background()

	s, err := e.StartSession(ctx, testutil.WallTemplate)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, session.Empty, s.State())

	got, err := e.Session(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	other, err := e.StartSessionByCode(ctx, "SW")
	require.NoError(t, err)
	assert.NotEqual(t, s.ID(), other.ID())
	assert.Equal(t, 2, e.Sessions())
	assert.Equal(t, 2, store.Loads, "each session loads its own snapshot")
}

func TestStartSession_Errors(t *testing.T) {
	bad := testutil.WallCatalog()
	bad.Template.ID = 7
	bad.Template.Code = "BAD"
	bad.DependencyOptions = append(bad.DependencyOptions, core.DependencyOption{
		DependencyID: testutil.DepBrickThickness, OptionID: testutil.Cement,
	})

	e := newTestEngine(t, testutil.NewMemoryStore(testutil.WallCatalog(), bad), 0)
	ctx := context.Background()

	_, err := e.StartSession(ctx, 99)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = e.StartSessionByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = e.StartSessionByCode(ctx, "BAD")
	assert.ErrorIs(t, err, core.ErrCatalogInconsistency)
	assert.Zero(t, e.Sessions())
}

func TestStartSession_RejectsUnreferenceableSlug(t *testing.T) {
	c := testutil.WallCatalog()
	c.Parameters[0].Slug = "tamaño"
	c.Template.NameExpression = "muro {tamaño}"

	e := newTestEngine(t, testutil.NewMemoryStore(c), 0)

	_, err := e.StartSession(context.Background(), testutil.WallTemplate)
	assert.ErrorIs(t, err, core.ErrCatalogInconsistency)
	assert.ErrorContains(t, err, "tamaño")
	assert.Zero(t, e.Sessions())
}

func TestSessionLifecycle_Commit(t *testing.T) {
	store := testutil.NewMemoryStore(testutil.WallCatalog())
	e := newTestEngine(t, store, 0)

	s, err := e.StartSessionByCode(context.Background(), testutil.WallTemplateCode)
	require.NoError(t, err)
	require.NoError(t, s.SelectOption("material", testutil.Brick))
	require.NoError(t, s.SelectOption("thickness", testutil.Medium))
	require.NoError(t, s.SelectOption("mortar", testutil.Cement))
	assert.Equal(t, "brick wall 15cm thick with cement mortar", s.Preview())

	code, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MW-0001", code)
	require.Len(t, store.Tasks, 1)
	assert.Equal(t, "MW-0001", store.Tasks[0].Code)
}

func TestAbandon(t *testing.T) {
	e := newTestEngine(t, testutil.NewMemoryStore(testutil.WallCatalog()), 0)

	s, err := e.StartSession(context.Background(), testutil.WallTemplate)
	require.NoError(t, err)

	require.NoError(t, e.Abandon(s.ID()))
	assert.Equal(t, session.Abandoned, s.State())

	_, err = e.Session(s.ID())
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, e.Abandon(s.ID()), core.ErrNotFound)
}

func TestRegistry_EvictionAbandonsSession(t *testing.T) {
	e := newTestEngine(t, testutil.NewMemoryStore(testutil.WallCatalog()), 2)
	ctx := context.Background()

	first, err := e.StartSession(ctx, testutil.WallTemplate)
	require.NoError(t, err)
	second, err := e.StartSession(ctx, testutil.WallTemplate)
	require.NoError(t, err)

	// touch first so second is the least recently used
	_, err = e.Session(first.ID())
	require.NoError(t, err)

	third, err := e.StartSession(ctx, testutil.WallTemplate)
	require.NoError(t, err)

	assert.Equal(t, 2, e.Sessions())
	assert.Equal(t, session.Abandoned, second.State())
	assert.Equal(t, session.Empty, first.State())
	assert.Equal(t, session.Empty, third.State())

	_, err = e.Session(second.ID())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTemplates(t *testing.T) {
	e := newTestEngine(t, testutil.NewMemoryStore(testutil.WallCatalog(), testutil.SimpleCatalog()), 0)

	templates, err := e.Templates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "MW", templates[0].Code)
	assert.Equal(t, "SW", templates[1].Code)
}

func TestInspect(t *testing.T) {
	c := testutil.WallCatalog()
	c.Template.NameExpression = "{material} wall {height} {mortar}"
	e := newTestEngine(t, testutil.NewMemoryStore(c), 0)

	report, err := e.Inspect(context.Background(), testutil.WallTemplateCode)
	require.NoError(t, err)
	assert.False(t, report.OK())
	require.Len(t, report.Placeholders, 1)
	assert.Equal(t, "height", report.Placeholders[0].Name)
	assert.Equal(t, []string{"thickness", "finish"}, report.Unused)
	assert.Equal(t, 4, report.Graph.Len())
}

func TestCheck(t *testing.T) {
	report, err := Check(testutil.WallCatalog())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Empty(t, report.Unused)

	c := testutil.WallCatalog()
	c.Template.Parameters = append(c.Template.Parameters, core.TemplateParameter{ParameterID: 50, Position: 9})
	report, err = Check(c)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.ErrorIs(t, report.Warnings[0], core.ErrUnknownReference)
}

func TestConcurrentSessions(t *testing.T) {
	store := testutil.NewMemoryStore(testutil.WallCatalog())
	e := newTestEngine(t, store, 64)

	errs := make(chan error, 16)
	for i := range 16 {
		go func() {
			s, err := e.StartSession(context.Background(), testutil.WallTemplate)
			if err != nil {
				errs <- err
				return
			}
			opt := []core.OptionID{testutil.Brick, testutil.Block, testutil.Stone}[i%3]
			if err := s.SelectOption("material", opt); err != nil {
				errs <- fmt.Errorf("session %d: %w", i, err)
				return
			}
			errs <- nil
		}()
	}
	for range 16 {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, 16, e.Sessions())
}

func TestCommit_AllocationFailure(t *testing.T) {
	store := testutil.NewMemoryStore(testutil.SimpleCatalog())
	store.AllocErr = errors.New("sequence exhausted")
	e := newTestEngine(t, store, 0)

	s, err := e.StartSessionByCode(context.Background(), "SW")
	require.NoError(t, err)
	require.NoError(t, s.SelectOption("a", 1))
	require.NoError(t, s.SelectOption("b", 2))

	_, err = s.Commit(context.Background())
	assert.ErrorIs(t, err, core.ErrAllocation)
	assert.Equal(t, session.Complete, s.State())
	assert.Empty(t, store.Tasks)
}
