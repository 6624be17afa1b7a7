package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownBackendError_Error(t *testing.T) {
	err := &UnknownBackendError{
		Type:      "fake_db",
		Available: []string{"postgres", "sqlite"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "fake_db", "error should mention the unknown type")
	assert.Contains(t, msg, "taskforge.yaml", "error should mention config file")
	assert.Contains(t, msg, "sqlite")
}

func TestRegister(t *testing.T) {
	Register("test_backend_internal", func(context.Context, Config) (Backend, error) { return nil, nil })

	assert.True(t, IsRegistered("test_backend_internal"))
	assert.Contains(t, ListBackends(), "test_backend_internal")

	factory, ok := Get("test_backend_internal")
	assert.True(t, ok)
	assert.NotNil(t, factory)
}

func TestOpen(t *testing.T) {
	boom := errors.New("boom")
	Register("test_backend_failing", func(context.Context, Config) (Backend, error) { return nil, boom })

	tests := []struct {
		name    string
		typ     string
		wantErr string
		is      error
	}{
		{name: "empty type", typ: "", wantErr: "backend type not specified"},
		{name: "unknown type", typ: "nosuchdb", wantErr: `unknown store type "nosuchdb"`},
		{name: "factory error", typ: "test_backend_failing", is: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), Config{Type: tt.typ})
			require.Error(t, err)
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestListBackends_Sorted(t *testing.T) {
	Register("zz_test_backend", func(context.Context, Config) (Backend, error) { return nil, nil })
	Register("aa_test_backend", func(context.Context, Config) (Backend, error) { return nil, nil })

	names := ListBackends()
	assert.IsIncreasing(t, names)
}
