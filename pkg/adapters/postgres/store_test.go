package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/taskforge/pkg/adapter"
	"github.com/leapstack-labs/taskforge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T, procedure string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewWithDB(db, procedure, nil)
	require.NoError(t, err)
	return s, mock
}

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      adapter.Config
		expected string
	}{
		{
			name:     "defaults",
			cfg:      adapter.Config{Database: "catalog"},
			expected: "host=localhost port=5432 dbname=catalog sslmode=disable",
		},
		{
			name: "full config",
			cfg: adapter.Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "catalog",
				Username: "forge",
				Password: "secret",
			},
			expected: fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s user=%s password=%s",
				"db.example.com", 5433, "catalog", "disable", "forge", "secret"),
		},
		{
			name: "sslmode from options",
			cfg: adapter.Config{
				Database: "catalog",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=localhost port=5432 dbname=catalog sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.cfg))
		})
	}
}

func TestNew(t *testing.T) {
	s := New(nil)
	require.NotNil(t, s)
	assert.Equal(t, DefaultProcedure, s.Procedure())
	assert.Equal(t, adapter.Dollar, s.Placeholder)
	assert.False(t, s.IsConnected())
}

func TestNewWithDB_Procedure(t *testing.T) {
	tests := []struct {
		name      string
		procedure string
		want      string
		wantErr   bool
	}{
		{name: "default", procedure: "", want: DefaultProcedure},
		{name: "plain", procedure: "next_code", want: "next_code"},
		{name: "schema qualified", procedure: "billing.next_code", want: "billing.next_code"},
		{name: "injection", procedure: "x(); DROP TABLE tasks; --", wantErr: true},
		{name: "leading digit", procedure: "1code", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewWithDB(nil, tt.procedure, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Procedure())
		})
	}
}

func TestStore_NotConnected(t *testing.T) {
	s := New(nil)
	ctx := context.Background()

	_, err := s.AllocateTaskCode(ctx, 1, nil)
	assert.Error(t, err)
	assert.Error(t, s.Migrate(ctx))
	assert.NoError(t, s.Close())
}

func TestStore_AllocateTaskCode(t *testing.T) {
	s, mock := newMockStore(t, "")

	mock.ExpectQuery(`SELECT generate_task_code\(\$1, \$2::jsonb\)`).
		WithArgs(int64(1), `{"material":11}`).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("MW-0007"))

	code, err := s.AllocateTaskCode(context.Background(), 1, map[string]core.OptionID{"material": 11})
	require.NoError(t, err)
	assert.Equal(t, "MW-0007", code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AllocateTaskCode_CustomProcedure(t *testing.T) {
	s, mock := newMockStore(t, "billing.next_code")

	mock.ExpectQuery(`SELECT billing\.next_code\(\$1, \$2::jsonb\)`).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("SW-0001"))

	code, err := s.AllocateTaskCode(context.Background(), 2, map[string]core.OptionID{})
	require.NoError(t, err)
	assert.Equal(t, "SW-0001", code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AllocateTaskCode_Failure(t *testing.T) {
	s, mock := newMockStore(t, "")

	mock.ExpectQuery(`SELECT generate_task_code`).WillReturnError(errors.New("template 9 not found"))

	_, err := s.AllocateTaskCode(context.Background(), 9, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template 9 not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AllocateTaskCode_NullResult(t *testing.T) {
	s, mock := newMockStore(t, "")

	mock.ExpectQuery(`SELECT generate_task_code`).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow(nil))

	_, err := s.AllocateTaskCode(context.Background(), 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned no code")
}

func TestStore_LoadCatalogUsesDollarPlaceholders(t *testing.T) {
	s, mock := newMockStore(t, "")

	mock.ExpectQuery(`FROM templates WHERE code = \$1`).
		WithArgs("MW").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "name_expression"}))

	_, err := s.GetTemplateByCode(context.Background(), "MW")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("postgres"))
}
