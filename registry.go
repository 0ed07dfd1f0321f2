package kernelsy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NameSeparator joins group and function names in the qualified name shown to models.
const NameSeparator = "-"

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// QualifiedName returns "group-name", the tool name a model uses to call a function.
func QualifiedName(group, name string) string {
	return group + NameSeparator + name
}

// ParseFunctionName splits a qualified tool name into group and function name.
func ParseFunctionName(qualified string) (group, name string, err error) {
	group, name, ok := strings.Cut(qualified, NameSeparator)
	if !ok || group == "" || name == "" {
		return "", "", fmt.Errorf("%w: %q is not a qualified function name", ErrInvalidName, qualified)
	}
	return group, name, nil
}

func validateIdent(kind, v string) error {
	if !identPattern.MatchString(v) {
		return fmt.Errorf("%w: %s %q must match %s", ErrInvalidName, kind, v, identPattern)
	}
	return nil
}

// MaxQualifiedNameLen is the longest "Group-name" OpenAI-compatible APIs accept as a tool name.
const MaxQualifiedNameLen = 64

func validateQualified(group, name string) error {
	if qn := QualifiedName(group, name); len(qn) > MaxQualifiedNameLen {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, qn, MaxQualifiedNameLen)
	}
	return nil
}

type functionKey struct {
	group string
	name  string
}

// RegisteredFunction pairs a function with its group.
type RegisteredFunction struct {
	Group    string
	Function Function
}

// QualifiedName returns the model-facing name of the entry.
func (rf RegisteredFunction) QualifiedName() string {
	return QualifiedName(rf.Group, rf.Function.Name())
}

// Registry holds functions keyed by (group, name) and invokes them with timeout and optional panic recovery.
type Registry struct {
	functions   map[functionKey]Function // wrapped with middlewares, used by Invoke
	rawFuncs    map[functionKey]Function // unwrapped, used by Use() to re-apply middlewares from scratch
	groups      map[string]string        // group -> description
	opts        registryOptions
	done        chan struct{}
	running     sync.WaitGroup
	mu          sync.Mutex
	middlewares []Middleware
}

// NewRegistry creates a Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{
		timeout:       30 * time.Second,
		recoverPanics: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		functions: make(map[functionKey]Function),
		rawFuncs:  make(map[functionKey]Function),
		groups:    make(map[string]string),
		opts:      o,
		done:      make(chan struct{}),
	}
}

// Register adds fn under group. Stored middlewares (see Use) are applied before registration.
// A second function with the same (group, name) is rejected with ErrFunctionExists and the
// first registration is kept. Safe for concurrent use with Invoke and other Register calls.
func (r *Registry) Register(group string, fn Function) error {
	if fn == nil {
		return errors.New("function must not be nil")
	}
	if err := validateIdent("group", group); err != nil {
		return err
	}
	if err := validateIdent("function", fn.Name()); err != nil {
		return err
	}
	if err := validateQualified(group, fn.Name()); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := functionKey{group: group, name: fn.Name()}
	if _, exists := r.rawFuncs[key]; exists {
		return fmt.Errorf("%w: %s", ErrFunctionExists, QualifiedName(group, fn.Name()))
	}
	r.store(key, fn)
	if _, ok := r.groups[group]; !ok {
		r.groups[group] = ""
	}
	return nil
}

// store applies middlewares and records fn; caller holds r.mu.
func (r *Registry) store(key functionKey, fn Function) {
	r.rawFuncs[key] = fn
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		fn = r.middlewares[i](fn)
	}
	r.functions[key] = fn
}

// Lookup returns the function registered under (group, name) after middlewares are applied.
func (r *Registry) Lookup(group, name string) (Function, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, ok := r.functions[functionKey{group: group, name: name}]
	if !ok {
		return nil, notFound(group, name)
	}
	return fn, nil
}

// Functions returns every registered function sorted by qualified name for deterministic order.
func (r *Registry) Functions() []RegisteredFunction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RegisteredFunction, 0, len(r.functions))
	for key, fn := range r.functions {
		out = append(out, RegisteredFunction{Group: key.group, Function: fn})
	}
	slices.SortFunc(out, func(a, b RegisteredFunction) int {
		return strings.Compare(a.QualifiedName(), b.QualifiedName())
	})
	return out
}

// Groups returns registered group names, sorted.
func (r *Registry) Groups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.groups))
	for g := range r.groups {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.functions)
}

// Invoke runs one function call. Unknown functions yield ErrFunctionNotFound; everything else
// is whatever the function returned, with timeouts reported as ErrTimeout.
// The after-invoke hook (WithOnAfterInvoke) is always called with the final result.
func (r *Registry) Invoke(ctx context.Context, call FunctionCall) (result FunctionResult) {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	result = FunctionResult{CallID: call.ID, Group: call.Group, Name: call.Name}

	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		result.Error = ErrShutdown
		return result
	default:
	}
	fn, ok := r.functions[functionKey{group: call.Group, name: call.Name}]
	if !ok {
		r.mu.Unlock()
		result.Error = notFound(call.Group, call.Name)
		return result
	}
	if err := ctx.Err(); err != nil {
		r.mu.Unlock()
		result.Error = err
		return result
	}
	r.running.Add(1)
	r.mu.Unlock()
	defer r.running.Done()

	timeout := r.opts.timeout
	if fm, ok := fn.(FunctionMetadata); ok && fm.Timeout() > 0 {
		timeout = fm.Timeout()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	// Recover defer is registered after onAfter so it runs first on panic and sets result.Error before the hook runs.
	defer func() {
		result.Duration = time.Since(start)
		if r.opts.onAfter != nil {
			r.opts.onAfter(ctx, call, result)
		}
	}()
	if r.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				result.Value = nil
				result.Error = &SystemError{Err: &panicError{p: p}}
			}
		}()
	}

	if r.opts.onBefore != nil {
		r.opts.onBefore(ctx, call)
	}

	result.Value, result.Error = fn.Invoke(ctx, call.Args)
	if result.Error != nil && errors.Is(result.Error, context.DeadlineExceeded) && ctx.Err() != nil {
		result.Error = fmt.Errorf("%w: %s after %s", ErrTimeout, call.QualifiedName(), timeout)
	}
	return result
}

// Shutdown closes the registry for new calls and waits for in-flight invocations or ctx to cancel.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		return nil
	default:
		close(r.done)
	}
	r.mu.Unlock()
	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// panicError wraps a recovered panic value for SystemError; used by Registry and WithRecovery middleware.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
