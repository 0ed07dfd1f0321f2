package kernelsy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

// function is the internal implementation of Function built by NewFunction or NewDynamicFunction.
type function struct {
	name        string
	description string
	schema      map[string]any
	invoke      func(context.Context, []byte) ([]byte, error)
	opts        functionOptions
}

// NewFunction builds a Function from a typed Go function. Schema and validation are delegated
// to Extractor[T]. Invoke runs ParseAndValidate, fn, then marshals the result.
// Returns an error if schema generation fails (e.g. unsupported type).
func NewFunction[T any, R any](
	name, description string,
	fn func(ctx context.Context, args T) (R, error),
	opts ...FunctionOption,
) (Function, error) {
	if fn == nil {
		return nil, errors.New("function handler must not be nil")
	}
	var o functionOptions
	for _, opt := range opts {
		opt(&o)
	}
	ext, err := NewExtractor[T](o.strict)
	if err != nil {
		return nil, err
	}
	invoke := func(ctx context.Context, argsJSON []byte) ([]byte, error) {
		args, err := ext.ParseAndValidate(argsJSON)
		if err != nil {
			return nil, err
		}
		res, err := fn(ctx, args)
		if err != nil {
			return nil, wrapHandlerError(err)
		}
		b, err := json.Marshal(res)
		if err != nil {
			return nil, &SystemError{Err: err}
		}
		return b, nil
	}
	return &function{
		name:        name,
		description: description,
		schema:      ext.Schema(),
		invoke:      invoke,
		opts:        o,
	}, nil
}

// NewDynamicFunction creates a Function from a raw JSON Schema map and a handler that receives
// validated JSON. Layer 1 (schema) validation only. schemaMap and fn must be non-nil.
// The provided schemaMap is not mutated; a deep copy is made before any modifications (e.g. WithStrict).
func NewDynamicFunction(
	name, description string,
	schemaMap map[string]any,
	fn func(ctx context.Context, argsJSON []byte) ([]byte, error),
	opts ...FunctionOption,
) (Function, error) {
	var o functionOptions
	for _, opt := range opts {
		opt(&o)
	}
	if schemaMap == nil {
		return nil, errors.New("dynamic schema map must not be nil")
	}
	if fn == nil {
		return nil, errors.New("dynamic function handler must not be nil")
	}
	schemaCopy, err := cloneSchema(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("failed to deep copy schema map: %w", err)
	}
	if o.strict {
		applyStrictMode(schemaCopy)
	}
	stripSchemaIDs(schemaCopy)
	compiled, err := compileRawSchema(schemaCopy)
	if err != nil {
		return nil, fmt.Errorf("failed to compile dynamic schema: %w", err)
	}
	invoke := func(ctx context.Context, argsJSON []byte) ([]byte, error) {
		v, err := decodeArgs(argsJSON)
		if err != nil {
			return nil, err
		}
		if err := validateAgainstSchema(compiled, v); err != nil {
			return nil, err
		}
		res, err := fn(ctx, normalizeArgs(argsJSON))
		if err != nil {
			return nil, wrapHandlerError(err)
		}
		return res, nil
	}
	return &function{
		name:        name,
		description: description,
		schema:      schemaCopy,
		invoke:      invoke,
		opts:        o,
	}, nil
}

func (f *function) Name() string        { return f.name }
func (f *function) Description() string { return f.description }

// Parameters returns a shallow copy of the JSON Schema (top-level keys only).
// Nested maps (e.g. under "properties") are shared; callers must not mutate them.
func (f *function) Parameters() map[string]any { return maps.Clone(f.schema) }

func (f *function) Invoke(ctx context.Context, argsJSON []byte) ([]byte, error) {
	return f.invoke(ctx, argsJSON)
}

func (f *function) Timeout() time.Duration { return f.opts.timeout }
func (f *function) Tags() []string         { return append([]string(nil), f.opts.tags...) }
func (f *function) Version() string        { return f.opts.version }

// wrapHandlerError passes through ClientError and context errors; wraps other errors as SystemError.
func wrapHandlerError(err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || IsSystemError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return &SystemError{Err: err}
}

var (
	_ Function         = (*function)(nil)
	_ FunctionMetadata = (*function)(nil)
)
