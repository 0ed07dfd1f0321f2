package kernelsy

import (
	"context"
	"log/slog"
	"time"
)

// functionOptions hold optional function settings (timeout, strict, tags, etc.).
type functionOptions struct {
	strict  bool
	timeout time.Duration
	tags    []string
	version string
}

// FunctionOption configures a function (e.g. WithStrict, WithTimeout).
type FunctionOption func(*functionOptions)

// WithStrict sets strict mode for schema: additionalProperties: false for all objects,
// and all properties become required. Use for OpenAI Structured Outputs compatibility.
func WithStrict() FunctionOption {
	return func(o *functionOptions) {
		o.strict = true
	}
}

// WithTimeout sets a per-function timeout; it overrides the registry default.
func WithTimeout(d time.Duration) FunctionOption {
	return func(o *functionOptions) {
		o.timeout = d
	}
}

// WithTags sets function tags (metadata for discovery and filtering).
func WithTags(tags ...string) FunctionOption {
	return func(o *functionOptions) {
		o.tags = tags
	}
}

// WithVersion sets the function version.
func WithVersion(version string) FunctionOption {
	return func(o *functionOptions) {
		o.version = version
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	timeout       time.Duration
	recoverPanics bool
	onBefore      func(context.Context, FunctionCall)
	onAfter       func(context.Context, FunctionCall, FunctionResult)
}

// WithDefaultTimeout sets the default execution timeout for functions.
// Zero disables the timeout.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		o.timeout = d
	}
}

// WithRecoverPanics enables panic recovery in Invoke (returns SystemError).
func WithRecoverPanics(enable bool) RegistryOption {
	return func(o *registryOptions) {
		o.recoverPanics = enable
	}
}

// WithOnBeforeInvoke sets a hook called before each function invocation.
func WithOnBeforeInvoke(fn func(context.Context, FunctionCall)) RegistryOption {
	return func(o *registryOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterInvoke sets a hook called after each function invocation, success or not.
func WithOnAfterInvoke(fn func(context.Context, FunctionCall, FunctionResult)) RegistryOption {
	return func(o *registryOptions) {
		o.onAfter = fn
	}
}

// KernelOption configures a Kernel.
type KernelOption func(*kernelOptions)

type kernelOptions struct {
	registry *Registry
	settings ExecutionSettings
	logger   *slog.Logger
	counter  TokenCounter
}

// WithRegistry makes the kernel use an existing registry instead of a fresh one.
func WithRegistry(r *Registry) KernelOption {
	return func(o *kernelOptions) {
		o.registry = r
	}
}

// WithSettings sets the default execution settings used by Chat, InvokePrompt and prompt functions.
func WithSettings(s ExecutionSettings) KernelOption {
	return func(o *kernelOptions) {
		o.settings = s
	}
}

// WithLogger sets the kernel logger. Nil falls back to slog.Default().
func WithLogger(l *slog.Logger) KernelOption {
	return func(o *kernelOptions) {
		o.logger = l
	}
}

// WithTokenCounter sets the counter used to report transcript size.
func WithTokenCounter(c TokenCounter) KernelOption {
	return func(o *kernelOptions) {
		o.counter = c
	}
}
