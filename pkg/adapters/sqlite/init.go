// Package sqlite registers the local SQLite catalog backend.
//
// Import this package with a blank identifier to register the backend:
//
//	import _ "github.com/leapstack-labs/taskforge/pkg/adapters/sqlite"
package sqlite

import (
	"context"

	"github.com/leapstack-labs/taskforge/internal/state"
	"github.com/leapstack-labs/taskforge/pkg/adapter"
)

// DefaultPath is the database file used when no path is configured.
const DefaultPath = "taskforge.db"

func init() {
	adapter.Register("sqlite", Open)
}

// Open opens and migrates the SQLite backend described by cfg.
func Open(ctx context.Context, cfg adapter.Config) (adapter.Backend, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	return state.Open(ctx, path, cfg.Logger)
}
