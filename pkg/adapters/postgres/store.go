package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"

	// pgx database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/leapstack-labs/taskforge/pkg/adapter"
	"github.com/leapstack-labs/taskforge/pkg/core"
)

// DefaultProcedure is the server-side function allocating task codes.
const DefaultProcedure = "generate_task_code"

//go:embed migrations/*.sql
var migrations embed.FS

var procedureName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Store implements adapter.Backend for PostgreSQL.
type Store struct {
	adapter.BaseSQLBackend
	procedure string
}

var _ adapter.Backend = (*Store)(nil)

// New creates a new PostgreSQL store instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		BaseSQLBackend: adapter.BaseSQLBackend{Placeholder: adapter.Dollar, Logger: logger},
		procedure:      DefaultProcedure,
	}
}

// NewWithDB wraps an open connection.
func NewWithDB(db *sql.DB, procedure string, logger *slog.Logger) (*Store, error) {
	s := New(logger)
	if err := s.setProcedure(procedure); err != nil {
		return nil, err
	}
	s.DB = db
	return s, nil
}

// Connect establishes a connection to PostgreSQL.
func (s *Store) Connect(ctx context.Context, cfg adapter.Config) error {
	if err := s.setProcedure(cfg.Procedure); err != nil {
		return err
	}

	s.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", buildPostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	s.DB = db
	return nil
}

func (s *Store) setProcedure(name string) error {
	if name == "" {
		name = DefaultProcedure
	}
	if !procedureName.MatchString(name) {
		return fmt.Errorf("invalid allocation procedure name %q", name)
	}
	s.procedure = name
	return nil
}

// Procedure returns the name of the allocation function.
func (s *Store) Procedure() string {
	return s.procedure
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// AllocateTaskCode implements core.Allocator by calling the allocation
// function once with the template id and the selection as JSON. The function
// persists the task; no retry is attempted.
func (s *Store) AllocateTaskCode(ctx context.Context, id core.TemplateID, sel map[string]core.OptionID) (string, error) {
	if s.DB == nil {
		return "", fmt.Errorf("database connection not established")
	}

	selection, err := adapter.EncodeSelection(sel)
	if err != nil {
		return "", err
	}

	//nolint:gosec // procedure name is validated against procedureName
	query := fmt.Sprintf(`SELECT %s($1, $2::jsonb)`, s.procedure)

	var code sql.NullString
	if err := s.DB.QueryRowContext(ctx, query, int64(id), string(selection)).Scan(&code); err != nil {
		return "", fmt.Errorf("failed to call %s: %w", s.procedure, err)
	}
	if !code.Valid || code.String == "" {
		return "", errors.New(s.procedure + " returned no code")
	}

	s.Logger.Debug("task code allocated", "template_id", id, "code", code.String)
	return code.String, nil
}

// Migrate creates the catalog tables and the default allocation function.
func (s *Store) Migrate(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, s.DB, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
