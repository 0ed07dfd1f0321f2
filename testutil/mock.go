// Package testutil provides test helpers for kernelsy (MockFunction, ScriptedCompleter).
package testutil

import (
	"context"

	"github.com/skosovsky/kernelsy"
)

// MockFunction is a configurable Function implementation for tests.
type MockFunction struct {
	NameVal   string
	DescVal   string
	ParamsVal map[string]any
	InvokeFn  func(ctx context.Context, args []byte) ([]byte, error)
}

// Name returns the function name.
func (m *MockFunction) Name() string {
	if m.NameVal != "" {
		return m.NameVal
	}
	return "mock"
}

// Description returns the function description.
func (m *MockFunction) Description() string {
	return m.DescVal
}

// Parameters returns the parameters schema (or empty map).
func (m *MockFunction) Parameters() map[string]any {
	if m.ParamsVal != nil {
		return m.ParamsVal
	}
	return map[string]any{}
}

// Invoke runs InvokeFn if set, otherwise returns JSON null.
func (m *MockFunction) Invoke(ctx context.Context, args []byte) ([]byte, error) {
	if m.InvokeFn != nil {
		return m.InvokeFn(ctx, args)
	}
	return []byte("null"), nil
}

// Ensure MockFunction implements Function.
var _ kernelsy.Function = (*MockFunction)(nil)
