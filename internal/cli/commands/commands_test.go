package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/leapstack-labs/taskforge/internal/cli/output"
	"github.com/leapstack-labs/taskforge/internal/engine"
	"github.com/leapstack-labs/taskforge/internal/session"
	"github.com/leapstack-labs/taskforge/internal/testutil"
	"github.com/leapstack-labs/taskforge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replFixture struct {
	repl  *sessionREPL
	store *testutil.MemoryStore
	out   *bytes.Buffer
	errW  *bytes.Buffer
}

func newREPL(t *testing.T) *replFixture {
	t.Helper()
	store := testutil.NewMemoryStore(testutil.WallCatalog())
	eng, err := engine.New(engine.Config{Store: store, Allocator: store, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	s, err := eng.StartSessionByCode(context.Background(), testutil.WallTemplateCode)
	require.NoError(t, err)

	out, errW := new(bytes.Buffer), new(bytes.Buffer)
	return &replFixture{
		repl: &sessionREPL{
			engine:  eng,
			session: s,
			r:       output.NewRenderer(out, errW, output.ModeMarkdown),
			errW:    errW,
		},
		store: store,
		out:   out,
		errW:  errW,
	}
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in      string
		slug    string
		option  string
		wantErr bool
	}{
		{in: "material=brick", slug: "material", option: "brick"},
		{in: " thickness = 15cm ", slug: "thickness", option: "15cm"},
		{in: "material", wantErr: true},
		{in: "=brick", wantErr: true},
		{in: "material=", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			slug, option, err := parseAssignment(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.slug, slug)
			assert.Equal(t, tt.option, option)
		})
	}
}

func TestSessionREPL_SetAndCommit(t *testing.T) {
	f := newREPL(t)
	ctx := context.Background()

	for _, line := range []string{"set material=brick", "set thickness 15cm", "set mortar=lime"} {
		assert.False(t, f.repl.handle(ctx, line), line)
	}
	assert.Empty(t, f.errW.String())
	assert.Contains(t, f.out.String(), "brick wall 15cm thick with lime mortar")
	assert.Equal(t, session.Complete, f.repl.session.State())

	assert.True(t, f.repl.handle(ctx, "commit"))
	assert.Contains(t, f.out.String(), "created task MW-0001")
	require.Len(t, f.store.Tasks, 1)
	assert.Equal(t, map[string]core.OptionID{
		"material":  testutil.Brick,
		"thickness": testutil.Medium,
		"mortar":    testutil.Lime,
	}, f.store.Tasks[0].Selection)
}

func TestSessionREPL_Errors(t *testing.T) {
	f := newREPL(t)
	ctx := context.Background()

	tests := []struct {
		line string
		want string
	}{
		{line: "set", want: "usage: set"},
		{line: "set material=marble", want: `no option "marble"`},
		{line: "set mortar=cement", want: "mortar"},
		{line: "clear", want: "usage: clear"},
		{line: "options", want: "usage: options"},
		{line: "options colour", want: `unknown parameter "colour"`},
		{line: "commit", want: "Error:"},
		{line: "dance", want: "unknown command: dance"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			f.errW.Reset()
			assert.False(t, f.repl.handle(ctx, tt.line))
			assert.Contains(t, f.errW.String(), tt.want)
		})
	}
	assert.Empty(t, f.store.Tasks)
}

func TestSessionREPL_OptionsFollowDependencies(t *testing.T) {
	f := newREPL(t)
	ctx := context.Background()

	f.repl.handle(ctx, "options thickness")
	assert.Contains(t, f.out.String(), "thickness is not available (depends on material)")

	f.out.Reset()
	f.repl.handle(ctx, "options mortar")
	assert.Contains(t, f.out.String(), "mortar is not available (depends on material, thickness)")

	f.out.Reset()
	f.repl.handle(ctx, "set material=brick")
	f.repl.handle(ctx, "set thickness=12cm")
	f.out.Reset()
	f.repl.handle(ctx, "options thickness")
	assert.Contains(t, f.out.String(), "* 12cm (12cm)")
	assert.Contains(t, f.out.String(), "15cm (15cm)")
	assert.NotContains(t, f.out.String(), "20cm")
	assert.Empty(t, f.errW.String())
}

func TestRenderCatalog_Gating(t *testing.T) {
	out, errW := new(bytes.Buffer), new(bytes.Buffer)
	r := output.NewRenderer(out, errW, output.ModeMarkdown)

	require.NoError(t, renderCatalog(r, testutil.WallCatalog()))
	got := out.String()

	assert.Contains(t, got, "4 parameters, 3 links")
	assert.Contains(t, got, "## Gating")

	// material=brick reveals thickness, which in turn gates mortar
	gating := got[strings.Index(got, "## Gating"):]
	assert.Contains(t, gating, "- material\n  = brick\n    - thickness (12cm | 15cm)\n")
	assert.Contains(t, gating, "      = 12cm\n        - mortar (cement)\n")
	assert.Contains(t, gating, "    - thickness (15cm | 20cm) (see above)\n")
	assert.Contains(t, gating, "  = stone\n    - thickness (see above)\n")
	assert.Contains(t, gating, "- finish\n")
	assert.Empty(t, errW.String())
}

func TestRenderCatalog_DanglingDependent(t *testing.T) {
	c := testutil.WallCatalog()
	c.Dependencies = append(c.Dependencies, core.Dependency{
		ID: 300, ParentParameterID: 77, ParentOptionID: 770, ChildParameterID: testutil.Finish,
	})
	out, errW := new(bytes.Buffer), new(bytes.Buffer)

	require.NoError(t, renderCatalog(output.NewRenderer(out, errW, output.ModeMarkdown), c))
	assert.Contains(t, errW.String(), "finish is never shown")
}

func TestSessionREPL_ClearMissingShow(t *testing.T) {
	f := newREPL(t)
	ctx := context.Background()

	f.repl.handle(ctx, "set material=stone")
	f.out.Reset()
	f.repl.handle(ctx, "missing")
	assert.Equal(t, "thickness, mortar\n", f.out.String())

	f.repl.handle(ctx, "clear material")
	assert.Equal(t, session.Empty, f.repl.session.State())

	f.out.Reset()
	f.repl.handle(ctx, "show")
	out := f.out.String()
	assert.Contains(t, out, "# Session MW")
	assert.Contains(t, out, "| material")
	assert.Contains(t, out, "required")

	f.out.Reset()
	f.repl.handle(ctx, "help")
	assert.Contains(t, f.out.String(), "set <param>=<option>")
	assert.Empty(t, f.errW.String())
}

func TestSessionREPL_AbandonAndQuit(t *testing.T) {
	f := newREPL(t)
	ctx := context.Background()

	assert.False(t, f.repl.handle(ctx, "   "))
	assert.True(t, f.repl.handle(ctx, "quit"))
	assert.True(t, f.repl.handle(ctx, "EXIT"))

	assert.True(t, f.repl.handle(ctx, "abandon"))
	assert.Equal(t, session.Abandoned, f.repl.session.State())
	assert.Equal(t, 0, f.repl.engine.Sessions())
}

func TestSessionREPL_Prompt(t *testing.T) {
	f := newREPL(t)
	assert.Equal(t, "MW [empty]> ", f.repl.prompt())

	f.repl.handle(context.Background(), "set material=brick")
	assert.Equal(t, "MW [partial]> ", f.repl.prompt())
}

func TestRenderSnapshot_JSON(t *testing.T) {
	f := newREPL(t)
	f.repl.handle(context.Background(), "set material=block")

	var buf bytes.Buffer
	r := output.NewRenderer(&buf, &buf, output.ModeJSON)
	require.NoError(t, renderSnapshot(r, f.repl.session.Snapshot()))

	out := buf.String()
	assert.Contains(t, out, `"state": "partial"`)
	assert.Contains(t, out, `"template": "MW"`)
	assert.Contains(t, out, `"material": 12`)
}

func TestParameterStatus(t *testing.T) {
	tests := []struct {
		view session.ParameterView
		want string
	}{
		{session.ParameterView{Active: true, Visible: true, Bound: true, Required: true}, "visible, required"},
		{session.ParameterView{Active: true, Bound: true}, "hidden"},
		{session.ParameterView{Bound: true, Required: true}, "inactive, required"},
		{session.ParameterView{Active: true, Visible: true}, "visible, unbound"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parameterStatus(tt.view))
	}
}

func TestFormatSelection(t *testing.T) {
	got := formatSelection(map[string]core.OptionID{"mortar": 32, "material": 11})
	assert.Equal(t, "material=11 mortar=32", got)
	assert.Empty(t, strings.TrimSpace(formatSelection(nil)))
}
