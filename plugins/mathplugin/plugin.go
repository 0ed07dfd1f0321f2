// Package mathplugin provides the native "Math" function group: add, subtract, multiply,
// divide and evaluate.
package mathplugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/Knetic/govaluate"

	"github.com/skosovsky/kernelsy"
)

// Group is the name the plugin registers under.
const Group = "Math"

// Operands are the arguments of the binary operations.
type Operands struct {
	Number1 float64 `json:"number1" jsonschema:"description=The first number"`
	Number2 float64 `json:"number2" jsonschema:"description=The second number"`
}

// Expression is the argument of evaluate.
type Expression struct {
	Expression string         `json:"expression" jsonschema:"description=Arithmetic expression to evaluate. For example '2 * (3 + 4)'"`
	Params     map[string]any `json:"params,omitempty" jsonschema:"description=Values for variables used in the expression"`
}

// Option configures the plugin.
type Option func(*options)

type options struct {
	trace io.Writer
}

// WithTrace writes one line per call ("[Math] Adding 50 + 20") to w.
func WithTrace(w io.Writer) Option {
	return func(o *options) {
		o.trace = w
	}
}

// Math holds the plugin's trace writer.
type Math struct {
	trace io.Writer
}

// New creates the plugin state. Without WithTrace nothing is written.
func New(opts ...Option) *Math {
	o := options{trace: io.Discard}
	for _, opt := range opts {
		opt(&o)
	}
	if o.trace == nil {
		o.trace = io.Discard
	}
	return &Math{trace: o.trace}
}

// Plugin builds the Math group.
func (m *Math) Plugin() (kernelsy.Plugin, error) {
	add, err := kernelsy.NewFunction("add", "Adds two numbers and returns the sum", m.Add)
	if err != nil {
		return kernelsy.Plugin{}, err
	}
	sub, err := kernelsy.NewFunction("subtract", "Subtracts number2 from number1 and returns the difference", m.Subtract)
	if err != nil {
		return kernelsy.Plugin{}, err
	}
	mul, err := kernelsy.NewFunction("multiply", "Multiplies two numbers and returns the product", m.Multiply)
	if err != nil {
		return kernelsy.Plugin{}, err
	}
	div, err := kernelsy.NewFunction("divide", "Divides number1 by number2 and returns the quotient", m.Divide)
	if err != nil {
		return kernelsy.Plugin{}, err
	}
	eval, err := kernelsy.NewFunction("evaluate",
		"Evaluates an arithmetic expression with +, -, *, /, ** and parentheses", m.Evaluate)
	if err != nil {
		return kernelsy.Plugin{}, err
	}
	return kernelsy.NewPlugin(Group, "Basic arithmetic", add, sub, mul, div, eval), nil
}

// Register adds the Math group to k.
func Register(k *kernelsy.Kernel, opts ...Option) error {
	p, err := New(opts...).Plugin()
	if err != nil {
		return err
	}
	return k.AddPlugin(p)
}

// Add returns number1 + number2.
func (m *Math) Add(_ context.Context, in Operands) (float64, error) {
	m.tracef("Adding %s + %s", num(in.Number1), num(in.Number2))
	return finite(in.Number1 + in.Number2)
}

// Subtract returns number1 - number2.
func (m *Math) Subtract(_ context.Context, in Operands) (float64, error) {
	m.tracef("Subtracting %s - %s", num(in.Number1), num(in.Number2))
	return finite(in.Number1 - in.Number2)
}

// Multiply returns number1 * number2.
func (m *Math) Multiply(_ context.Context, in Operands) (float64, error) {
	m.tracef("Multiplying %s * %s", num(in.Number1), num(in.Number2))
	return finite(in.Number1 * in.Number2)
}

// Divide returns number1 / number2. Division by zero is reported to the model.
func (m *Math) Divide(_ context.Context, in Operands) (float64, error) {
	m.tracef("Dividing %s / %s", num(in.Number1), num(in.Number2))
	if in.Number2 == 0 {
		return 0, &kernelsy.ClientError{Reason: "division by zero", Err: kernelsy.ErrValidation}
	}
	return finite(in.Number1 / in.Number2)
}

var errNotNumeric = errors.New("expression did not produce a number")

// Evaluate computes an arithmetic expression with govaluate.
func (m *Math) Evaluate(_ context.Context, in Expression) (float64, error) {
	m.tracef("Evaluating %s", in.Expression)
	expr, err := govaluate.NewEvaluableExpression(in.Expression)
	if err != nil {
		return 0, &kernelsy.ClientError{Reason: "bad expression: " + err.Error(), Err: kernelsy.ErrValidation}
	}
	out, err := expr.Evaluate(in.Params)
	if err != nil {
		return 0, &kernelsy.ClientError{Reason: "evaluate: " + err.Error(), Err: kernelsy.ErrValidation}
	}
	f, ok := out.(float64)
	if !ok {
		return 0, &kernelsy.ClientError{Reason: fmt.Sprintf("%v: got %T", errNotNumeric, out), Err: errNotNumeric}
	}
	return finite(f)
}

// finite rejects results JSON cannot carry (overflow to ±Inf, NaN).
func finite(f float64) (float64, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, &kernelsy.ClientError{Reason: "result out of range", Err: kernelsy.ErrValidation}
	}
	return f, nil
}

func (m *Math) tracef(format string, args ...any) {
	fmt.Fprintf(m.trace, "[Math] "+format+"\n", args...)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
