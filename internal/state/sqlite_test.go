package state

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/taskforge/internal/depgraph"
	"github.com/leapstack-labs/taskforge/internal/session"
	"github.com/leapstack-labs/taskforge/internal/testutil"
	"github.com/leapstack-labs/taskforge/pkg/adapter"
	"github.com/leapstack-labs/taskforge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(context.Background(), ":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err, "failed to open store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type seeded struct {
	params  map[string]core.ParameterID
	options map[string]core.OptionID // "slug/name"
	tmpl    core.TemplateID
}

// seedWall writes a copy of testutil.WallCatalog through the catalog writer,
// plus an unrelated "color" parameter, and binds only thickness and mortar
// to a second template "TM".
func seedWall(t *testing.T, store *SQLiteStore) seeded {
	t.Helper()
	wall := testutil.WallCatalog()
	s := seeded{params: map[string]core.ParameterID{}, options: map[string]core.OptionID{}}

	err := store.Update(context.Background(), func(w adapter.CatalogWriter) error {
		ctx := context.Background()
		paramIDs := map[core.ParameterID]core.ParameterID{}
		optIDs := map[core.OptionID]core.OptionID{}

		params := append(wall.Parameters, core.Parameter{ID: 99, Slug: "color", Label: "Color", Position: 9})
		for _, p := range params {
			old := p.ID
			if err := w.SaveParameter(ctx, &p); err != nil {
				return err
			}
			paramIDs[old] = p.ID
			s.params[p.Slug] = p.ID
		}
		for _, o := range wall.Options {
			old := o.ID
			slug := ""
			for _, p := range wall.Parameters {
				if p.ID == o.ParameterID {
					slug = p.Slug
				}
			}
			o.ParameterID = paramIDs[o.ParameterID]
			if err := w.SaveOption(ctx, &o); err != nil {
				return err
			}
			optIDs[old] = o.ID
			s.options[slug+"/"+o.Name] = o.ID
		}
		for _, d := range wall.Dependencies {
			var allowed []core.OptionID
			for _, do := range wall.DependencyOptions {
				if do.DependencyID == d.ID {
					allowed = append(allowed, optIDs[do.OptionID])
				}
			}
			nd := core.Dependency{
				ParentParameterID: paramIDs[d.ParentParameterID],
				ParentOptionID:    optIDs[d.ParentOptionID],
				ChildParameterID:  paramIDs[d.ChildParameterID],
			}
			if err := w.SaveDependency(ctx, &nd, allowed); err != nil {
				return err
			}
		}

		tmpl := wall.Template
		tmpl.Parameters = nil
		for _, b := range wall.Template.Parameters {
			b.ParameterID = paramIDs[b.ParameterID]
			tmpl.Parameters = append(tmpl.Parameters, b)
		}
		if err := w.SaveTemplate(ctx, &tmpl); err != nil {
			return err
		}
		s.tmpl = tmpl.ID

		return w.SaveTemplate(ctx, &core.Template{
			Code: "TM", Name: "Thickness and mortar", NameExpression: "{thickness} {mortar}",
			Parameters: []core.TemplateParameter{
				{ParameterID: paramIDs[testutil.Thickness], Position: 1, Required: true},
				{ParameterID: paramIDs[testutil.Mortar], Position: 2},
			},
		})
	})
	require.NoError(t, err)
	return s
}

func TestSQLiteStore_OpenMigrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	tables := []string{"parameters", "options", "templates", "template_parameters", "dependencies", "dependency_options", "task_sequences", "tasks"}
	for _, table := range tables {
		rows, err := store.DB.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if assert.NoError(t, err, "table %s does not exist", table) {
			_ = rows.Close()
		}
	}

	// migrating twice is a no-op
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSQLiteStore_ConcurrentMigrate(t *testing.T) {
	dir := t.TempDir()
	stores := make([]*SQLiteStore, 8)

	var g errgroup.Group
	for i := range stores {
		g.Go(func() error {
			store, err := Open(context.Background(), filepath.Join(dir, fmt.Sprintf("store-%d.db", i)), nil)
			stores[i] = store
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, store := range stores {
		version, err := store.MigrationVersion(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(2), version)
		require.NoError(t, store.Close())
	}
}

func TestSQLiteStore_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskforge.db")
	store, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())
	require.NoError(t, store.Close())

	// reopen sees the migrated schema
	store, err = Open(context.Background(), path, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	templates, err := store.ListTemplates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestSQLiteStore_LoadCatalog(t *testing.T) {
	store := setupTestStore(t)
	s := seedWall(t, store)
	ctx := context.Background()

	c, err := store.LoadCatalog(ctx, s.tmpl)
	require.NoError(t, err)

	assert.Equal(t, "MW", c.Template.Code)
	assert.Equal(t, testutil.WallNameExpression, c.Template.NameExpression)
	require.Len(t, c.Template.Parameters, 4)
	assert.True(t, c.Template.Parameters[0].Required)
	assert.False(t, c.Template.Parameters[3].Required)

	slugs := make([]string, len(c.Parameters))
	for i, p := range c.Parameters {
		slugs[i] = p.Slug
	}
	assert.Equal(t, []string{"material", "thickness", "mortar", "finish"}, slugs, "unrelated parameters are not loaded")
	assert.Equal(t, "with {value} mortar", c.Parameters[2].ExpressionTemplate)
	assert.Empty(t, c.Parameters[0].ExpressionTemplate)
	assert.Len(t, c.Options, 11)
	assert.Len(t, c.Dependencies, 6)
	assert.Len(t, c.DependencyOptions, 8)

	g, err := depgraph.BuildFromCatalog(c)
	require.NoError(t, err)
	assert.Empty(t, g.Warnings())
}

func TestSQLiteStore_LoadCatalog_IncludesGatingParents(t *testing.T) {
	store := setupTestStore(t)
	seedWall(t, store)
	ctx := context.Background()

	tm, err := store.GetTemplateByCode(ctx, "TM")
	require.NoError(t, err)
	require.Len(t, tm.Parameters, 2)

	c, err := store.LoadCatalog(ctx, tm.ID)
	require.NoError(t, err)

	var slugs []string
	for _, p := range c.Parameters {
		slugs = append(slugs, p.Slug)
	}
	// material gates thickness and mortar, so it is part of the snapshot
	assert.ElementsMatch(t, []string{"material", "thickness", "mortar"}, slugs)

	g, err := depgraph.BuildFromCatalog(c)
	require.NoError(t, err)
	assert.Empty(t, g.Warnings())
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.LoadCatalog(ctx, 42)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = store.GetTemplateByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = store.AllocateTaskCode(ctx, 42, nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLiteStore_SaveIsUpsert(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var first, second core.Parameter
	require.NoError(t, store.Update(ctx, func(w adapter.CatalogWriter) error {
		first = core.Parameter{Slug: "material", Label: "Material"}
		return w.SaveParameter(ctx, &first)
	}))
	require.NoError(t, store.Update(ctx, func(w adapter.CatalogWriter) error {
		second = core.Parameter{Slug: "material", Label: "Wall material", ExpressionTemplate: "{value} wall"}
		return w.SaveParameter(ctx, &second)
	}))
	assert.Equal(t, first.ID, second.ID)

	var label, expr string
	require.NoError(t, store.DB.QueryRow(`SELECT label, expression_template FROM parameters WHERE id = ?`, first.ID).Scan(&label, &expr))
	assert.Equal(t, "Wall material", label)
	assert.Equal(t, "{value} wall", expr)
}

func TestSQLiteStore_UpdateRollsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(w adapter.CatalogWriter) error {
		if err := w.SaveParameter(ctx, &core.Parameter{Slug: "material", Label: "Material"}); err != nil {
			return err
		}
		// unknown parameter violates the foreign key
		return w.SaveOption(ctx, &core.Option{ParameterID: 999, Name: "x", Label: "x"})
	})
	require.Error(t, err)

	var n int
	require.NoError(t, store.DB.QueryRow(`SELECT COUNT(*) FROM parameters`).Scan(&n))
	assert.Zero(t, n)
}

func TestSQLiteStore_AllocateTaskCode(t *testing.T) {
	store := setupTestStore(t)
	s := seedWall(t, store)
	ctx := context.Background()

	sel := map[string]core.OptionID{
		"material":  s.options["material/brick"],
		"thickness": s.options["thickness/15cm"],
		"mortar":    s.options["mortar/cement"],
	}

	code, err := store.AllocateTaskCode(ctx, s.tmpl, sel)
	require.NoError(t, err)
	assert.Equal(t, "MW-0001", code)

	code, err = store.AllocateTaskCode(ctx, s.tmpl, sel)
	require.NoError(t, err)
	assert.Equal(t, "MW-0002", code)

	tm, err := store.GetTemplateByCode(ctx, "TM")
	require.NoError(t, err)
	code, err = store.AllocateTaskCode(ctx, tm.ID, map[string]core.OptionID{})
	require.NoError(t, err)
	assert.Equal(t, "TM-0001", code, "sequences are per template")

	tasks, err := store.ListTasks(ctx, "MW", 0)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "MW-0002", tasks[0].Code)
	assert.Equal(t, sel, tasks[0].Selection)
	assert.NotEmpty(t, tasks[0].ID)
	assert.False(t, tasks[0].CreatedAt.IsZero())

	all, err := store.ListTasks(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := store.ListTasks(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_SessionEndToEnd(t *testing.T) {
	store := setupTestStore(t)
	s := seedWall(t, store)
	ctx := context.Background()

	c, err := store.LoadCatalog(ctx, s.tmpl)
	require.NoError(t, err)

	sess, err := session.New(session.Config{Catalog: c, Allocator: store, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	require.NoError(t, sess.SelectOption("material", s.options["material/block"]))
	require.NoError(t, sess.SelectOption("thickness", s.options["thickness/20cm"]))
	require.NoError(t, sess.SelectOption("mortar", s.options["mortar/adhesive"]))
	assert.Equal(t, "concrete block wall 20cm thick with adhesive mortar", sess.Preview())

	code, err := sess.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MW-0001", code)
}
