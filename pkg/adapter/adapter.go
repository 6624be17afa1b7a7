// Package adapter defines the catalog backend contract and the registry of
// backend implementations.
//
// A backend persists the catalog (parameters, options, templates,
// dependencies) and allocates task codes. Concrete backends live in
// pkg/adapters/ subdirectories and register themselves from init():
//
//	import _ "github.com/leapstack-labs/taskforge/pkg/adapters/postgres"
package adapter

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/taskforge/pkg/core"
)

// Backend is a catalog store that also allocates task codes.
type Backend interface {
	core.CatalogStore
	core.Allocator

	// Update runs fn inside a transaction. Writes are committed when fn
	// returns nil and rolled back otherwise.
	Update(ctx context.Context, fn func(w CatalogWriter) error) error

	// ListTasks returns allocated tasks, newest first. An empty code lists
	// every template; limit <= 0 means no limit.
	ListTasks(ctx context.Context, templateCode string, limit int) ([]core.Task, error)

	// Migrate brings the backend schema up to date.
	Migrate(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// CatalogWriter writes catalog rows. Each Save upserts by natural key and
// sets the row id on its argument.
type CatalogWriter interface {
	// SaveParameter upserts by slug.
	SaveParameter(ctx context.Context, p *core.Parameter) error
	// SaveOption upserts by (parameter, name).
	SaveOption(ctx context.Context, o *core.Option) error
	// SaveTemplate upserts by code and replaces the template's bindings.
	SaveTemplate(ctx context.Context, t *core.Template) error
	// SaveDependency upserts by (parent parameter, parent option, child) and
	// replaces its allowed options. No allowed options means unrestricted.
	SaveDependency(ctx context.Context, d *core.Dependency, allowed []core.OptionID) error
}

// Config configures a backend.
type Config struct {
	// Type selects the backend: "sqlite" or "postgres".
	Type string
	// Path is the database file of file-based backends (":memory:" allowed).
	Path string

	Host     string
	Port     int
	Database string
	Username string
	Password string
	// Options holds driver options such as sslmode.
	Options map[string]string

	// Procedure names the server-side task code function, if the backend
	// delegates allocation.
	Procedure string

	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}
