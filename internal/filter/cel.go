// Package filter evaluates CEL predicates over parse records and
// checklist items, for the query surfaces (CLI and MCP).
package filter

import (
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rendis/deliverable/pkg/schema"
)

// Engine compiles and caches CEL filter programs.
// Thread-safe: compiled programs are reused across goroutines.
type Engine struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewEngine creates a CEL engine with a sandboxed environment exposing
// two top-level variables:
//   - record: map(string, dyn), a stored parse record (id, mode, layout, created_at)
//   - item:   map(string, dyn), a checklist item (text, priority, deadline, completed, section)
func NewEngine() (*Engine, error) {
	mapType := cel.MapType(cel.StringType, cel.DynType)

	env, err := cel.NewEnv(
		cel.Variable("record", mapType),
		cel.Variable("item", mapType),
	)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeFilter, "create CEL environment").WithCause(err)
	}

	return &Engine{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Match evaluates a filter expression against the given data. A filter
// that does not evaluate to a boolean is a validation error.
func (e *Engine) Match(expression string, data map[string]any) (bool, error) {
	if expression == "" {
		return true, nil
	}

	prg, err := e.getOrCompile(expression)
	if err != nil {
		return false, err
	}

	activation := map[string]any{
		"record": map[string]any{},
		"item":   map[string]any{},
	}
	for k, v := range data {
		activation[k] = v
	}

	out, _, err := prg.Eval(activation)
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeFilter,
			"filter evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeFilter,
			"filter %q did not evaluate to a boolean", expression)
	}
	return matched, nil
}

// MatchItem evaluates a filter against one checklist item.
func (e *Engine) MatchItem(expression string, item schema.ChecklistItem) (bool, error) {
	return e.Match(expression, map[string]any{
		"item": map[string]any{
			"id":        item.ID,
			"text":      item.Text,
			"priority":  string(item.Priority),
			"deadline":  item.Deadline,
			"completed": item.Completed,
			"section":   item.Section,
		},
	})
}

// getOrCompile returns a cached compiled program or compiles and caches a new one.
func (e *Engine) getOrCompile(expression string) (cel.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeFilter,
			"filter compile error in %q: %s", expression, issues.Err().Error()).
			WithCause(issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeFilter,
			"filter program error in %q: %s", expression, err.Error()).
			WithCause(err)
	}

	e.cache[expression] = prg
	return prg, nil
}
