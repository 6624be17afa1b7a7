package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/taskforge/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("sqlite"))
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	backend, err := adapter.Open(context.Background(), adapter.Config{Type: "sqlite", Path: path})
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	templates, err := backend.ListTemplates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, templates)
	assert.FileExists(t, path)
}
