// Package starlark evaluates template binding conditions.
//
// A condition is a single Starlark expression evaluated against the current
// choices of a session. The following globals are predeclared:
//
//	selection             dict of parameter slug -> chosen option name
//	selected(slug)        True if the parameter has a choice
//	selected(slug, name)  True if the parameter's choice is the named option
//
// Example:
//
//	selected("material", "brick") and not selected("finish")
package starlark

import (
	"fmt"
	"log/slog"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Evaluator implements core.ConditionEvaluator. It is safe for concurrent use.
type Evaluator struct {
	pool    *ThreadPool
	options *syntax.FileOptions
	logger  *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPoolSize sets the number of pooled interpreter threads.
func WithPoolSize(n int) Option {
	return func(e *Evaluator) {
		e.pool = NewThreadPool(n)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEvaluator creates a condition evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		pool:    NewThreadPool(0),
		options: &syntax.FileOptions{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateCondition evaluates expr against choices (slug -> option name) and
// returns its truth value. An empty expression is true.
func (e *Evaluator) EvaluateCondition(expr string, choices map[string]string) (bool, error) {
	if expr == "" {
		return true, nil
	}

	thread := e.pool.Get("condition")
	defer e.pool.Put(thread)

	result, err := starlark.EvalOptions(e.options, thread, "condition", expr, Predeclared(choices))
	if err != nil {
		return false, &EvalError{Expr: expr, Message: err.Error()}
	}

	e.logger.Debug("condition evaluated", "condition", expr, "result", result.String())
	return bool(result.Truth()), nil
}

// Check parses expr without evaluating it.
func (e *Evaluator) Check(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := e.options.ParseExpr("condition", expr, 0); err != nil {
		return &EvalError{Expr: expr, Message: err.Error()}
	}
	return nil
}

// Predeclared returns the globals visible to a condition.
func Predeclared(choices map[string]string) starlark.StringDict {
	selection := starlark.NewDict(len(choices))
	for slug, name := range choices {
		_ = selection.SetKey(starlark.String(slug), starlark.String(name))
	}
	selection.Freeze()

	return starlark.StringDict{
		"selection": selection,
		"selected":  starlark.NewBuiltin("selected", selectedBuiltin(choices)),
	}
}

func selectedBuiltin(choices map[string]string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var slug, option string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "slug", &slug, "option?", &option); err != nil {
			return nil, err
		}
		chosen, ok := choices[slug]
		if !ok {
			return starlark.False, nil
		}
		if option == "" {
			return starlark.True, nil
		}
		return starlark.Bool(chosen == option), nil
	}
}

// EvalError represents an error during condition evaluation.
type EvalError struct {
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("error evaluating condition %q: %s", e.Expr, e.Message)
}
