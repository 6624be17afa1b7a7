package starlark

import (
	"errors"
	"sync"
	"testing"

	"github.com/leapstack-labs/taskforge/internal/testutil"
	"github.com/leapstack-labs/taskforge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.ConditionEvaluator = (*Evaluator)(nil)

func TestEvaluator_EvaluateCondition(t *testing.T) {
	choices := map[string]string{"material": "brick", "thickness": "15cm"}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "empty is true", expr: "", want: true},
		{name: "has choice", expr: `selected("material")`, want: true},
		{name: "no choice", expr: `selected("finish")`, want: false},
		{name: "matching option", expr: `selected("material", "brick")`, want: true},
		{name: "other option", expr: `selected("material", "stone")`, want: false},
		{name: "keyword argument", expr: `selected(slug="thickness", option="15cm")`, want: true},
		{name: "boolean logic", expr: `selected("material", "brick") and not selected("finish")`, want: true},
		{name: "selection dict", expr: `selection.get("thickness") in ("12cm", "15cm")`, want: true},
		{name: "selection membership", expr: `"mortar" in selection`, want: false},
		{name: "truthiness", expr: `len(selection)`, want: true},
	}

	e := NewEvaluator(WithLogger(testutil.NewTestLogger(t)))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.EvaluateCondition(tt.expr, choices)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_Errors(t *testing.T) {
	e := NewEvaluator()

	tests := []struct {
		name string
		expr string
	}{
		{name: "syntax error", expr: `selected("material"`},
		{name: "undefined name", expr: `material == "brick"`},
		{name: "bad arguments", expr: `selected(1)`},
		{name: "statement", expr: `x = 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.EvaluateCondition(tt.expr, nil)
			require.Error(t, err)

			var evalErr *EvalError
			require.True(t, errors.As(err, &evalErr))
			assert.Equal(t, tt.expr, evalErr.Expr)
			assert.Contains(t, err.Error(), "error evaluating condition")
		})
	}
}

func TestEvaluator_SelectionIsFrozen(t *testing.T) {
	e := NewEvaluator()
	_, err := e.EvaluateCondition(`selection.pop("material")`, map[string]string{"material": "brick"})
	assert.Error(t, err)
}

func TestEvaluator_Check(t *testing.T) {
	e := NewEvaluator()
	assert.NoError(t, e.Check(""))
	assert.NoError(t, e.Check(`selected("a") or selected("b", "x")`))
	assert.Error(t, e.Check(`selected(`))
}

func TestEvaluator_Concurrent(t *testing.T) {
	e := NewEvaluator(WithPoolSize(4))
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			option := "brick"
			if i%2 == 1 {
				option = "stone"
			}
			got, err := e.EvaluateCondition(`selected("material", "brick")`, map[string]string{"material": option})
			assert.NoError(t, err)
			assert.Equal(t, i%2 == 0, got)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, e.pool.Size(), 4)
}
