package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/taskforge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// workspace switches into an empty directory and returns the store path.
func workspace(t *testing.T) (db, catalog string) {
	t.Helper()
	catalog, err := filepath.Abs(filepath.Join("..", "loader", "testdata", "wall.yaml"))
	require.NoError(t, err)

	dir := t.TempDir()
	t.Chdir(dir)
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	return filepath.Join(dir, "data", "taskforge.db"), catalog
}

func TestVersionCommand(t *testing.T) {
	workspace(t)
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "taskforge v"+Version)
}

func TestHelpCommand(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"templates", "catalog", "configure", "session", "tasks", "migrate"} {
		assert.Contains(t, out, name)
	}
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, err := run(t, "completion", shell)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := run(t, "unknown-command")
	assert.Error(t, err)
}

func TestInvalidStoreFlag(t *testing.T) {
	workspace(t)
	_, err := run(t, "templates", "--store", "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestEndToEnd(t *testing.T) {
	db, catalog := workspace(t)

	_, err := run(t, "catalog", "import", catalog, "--db", db)
	require.NoError(t, err)

	// Importing again is an upsert
	_, err = run(t, "catalog", "import", catalog, "--db", db)
	require.NoError(t, err)

	out, err := run(t, "templates", "--db", db, "-o", "json")
	require.NoError(t, err)
	var templates []struct {
		Code       string `json:"code"`
		Parameters int    `json:"parameters"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &templates))
	require.Len(t, templates, 2)
	assert.Equal(t, "MO", templates[0].Code)
	assert.Equal(t, "MW", templates[1].Code)
	assert.Equal(t, 4, templates[1].Parameters)

	_, err = run(t, "catalog", "check", "--db", db)
	require.NoError(t, err)

	out, err = run(t, "catalog", "show", "MW", "--yaml", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "code: MW")
	assert.Contains(t, out, "slug: thickness")

	out, err = run(t, "catalog", "show", "MW", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Gating")
	assert.Contains(t, out, " links")

	out, err = run(t, "configure", "MW", "--db", db, "-o", "json",
		"--set", "material=brick", "--set", "thickness=15cm", "--set", "mortar=lime", "--commit")
	require.NoError(t, err)
	var snap struct {
		State   string `json:"state"`
		Preview string `json:"preview"`
		Code    string `json:"code"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "committed", snap.State)
	assert.Equal(t, "brick wall 15cm thick with lime mortar", snap.Preview)
	assert.Equal(t, "MW-0001", snap.Code)

	out, err = run(t, "tasks", "--db", db, "--template", "MW", "-o", "json")
	require.NoError(t, err)
	var tasks []struct{ Code string }
	require.NoError(t, json.Unmarshal([]byte(out), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "MW-0001", tasks[0].Code)
}

func TestConfigure_Errors(t *testing.T) {
	db, catalog := workspace(t)
	_, err := run(t, "catalog", "import", catalog, "--db", db)
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown template", args: []string{"configure", "XX"}, want: "not found"},
		{name: "bad assignment", args: []string{"configure", "MW", "--set", "material"}, want: "expected slug=option"},
		{name: "hidden parameter", args: []string{"configure", "MW", "--set", "mortar=lime"}, want: "hidden"},
		{name: "incomplete commit", args: []string{"configure", "MW", "--set", "material=brick", "--commit"}, want: "failed to commit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append(tt.args, "--db", db)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCatalogCheck_File(t *testing.T) {
	_, catalog := workspace(t)

	out, err := run(t, "catalog", "check", "--file", catalog, "-o", "json")
	require.NoError(t, err)

	var checks []struct {
		Template   string `json:"template"`
		OK         bool   `json:"ok"`
		Parameters int    `json:"parameters"`
		Links      int    `json:"links"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &checks))
	require.Len(t, checks, 2)
	for _, c := range checks {
		assert.True(t, c.OK, c.Template)
		assert.Positive(t, c.Parameters, c.Template)
	}
}
