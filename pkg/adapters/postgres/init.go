// Package postgres provides the PostgreSQL catalog backend.
//
// The catalog is read with plain queries; task codes are allocated by a
// server-side function (generate_task_code by default) that also persists
// the task. Import this package with a blank identifier to register the
// backend:
//
//	import _ "github.com/leapstack-labs/taskforge/pkg/adapters/postgres"
package postgres

import (
	"context"

	"github.com/leapstack-labs/taskforge/pkg/adapter"
)

func init() {
	adapter.Register("postgres", func(ctx context.Context, cfg adapter.Config) (adapter.Backend, error) {
		s := New(cfg.Logger)
		if err := s.Connect(ctx, cfg); err != nil {
			return nil, err
		}
		return s, nil
	})
}
