// Package state is the local catalog store: the catalog, task sequences and
// allocated tasks in a SQLite database whose schema is managed by embedded
// goose migrations.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/taskforge/pkg/adapter"
	"github.com/leapstack-labs/taskforge/pkg/core"

	// sqlite driver
	_ "modernc.org/sqlite"
)

// SQLiteStore implements adapter.Backend on SQLite. Task codes are allocated
// locally as <TEMPLATE-CODE>-<NNNN> from a per-template sequence.
type SQLiteStore struct {
	adapter.BaseSQLBackend
	path string
}

var _ adapter.Backend = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store instance.
// If logger is nil, a discard logger is used.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{
		BaseSQLBackend: adapter.BaseSQLBackend{Placeholder: adapter.Question, Logger: logger},
	}
}

// Open opens and migrates the store at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	if path == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.DB = db
	s.path = path
	s.Logger.Debug("opened state database", "path", path)
	return nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// AllocateTaskCode implements core.Allocator. The sequence bump and the task
// row are written in one transaction.
func (s *SQLiteStore) AllocateTaskCode(ctx context.Context, id core.TemplateID, sel map[string]core.OptionID) (string, error) {
	var code string
	err := s.InTx(ctx, func(tx *sql.Tx) error {
		var templateCode string
		err := tx.QueryRowContext(ctx, `SELECT code FROM templates WHERE id = ?`, id).Scan(&templateCode)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("template %d: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get template: %w", err)
		}

		var seq int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO task_sequences (template_id, seq) VALUES (?, 1)
			 ON CONFLICT (template_id) DO UPDATE SET seq = seq + 1
			 RETURNING seq`, id).Scan(&seq)
		if err != nil {
			return fmt.Errorf("failed to advance task sequence: %w", err)
		}

		code = fmt.Sprintf("%s-%04d", templateCode, seq)
		return s.InsertTask(ctx, tx, core.Task{
			ID:         uuid.NewString(),
			Code:       code,
			TemplateID: id,
			Selection:  sel,
			CreatedAt:  time.Now().UTC(),
		})
	})
	if err != nil {
		return "", err
	}

	s.Logger.Debug("task code allocated", "template_id", id, "code", code)
	return code, nil
}
