package mathplugin

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/kernelsy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newKernel(t *testing.T, trace *bytes.Buffer) *kernelsy.Kernel {
	t.Helper()
	k := kernelsy.New(nil)
	require.NoError(t, Register(k, WithTrace(trace)))
	return k
}

func TestRegister_Group(t *testing.T) {
	k := newKernel(t, &bytes.Buffer{})
	names := make([]string, 0)
	for _, rf := range k.Registry().Functions() {
		names = append(names, rf.QualifiedName())
	}
	assert.ElementsMatch(t, []string{"Math-add", "Math-subtract", "Math-multiply", "Math-divide", "Math-evaluate"}, names)
}

func TestRegister_Twice(t *testing.T) {
	k := newKernel(t, &bytes.Buffer{})
	err := Register(k)
	require.ErrorIs(t, err, kernelsy.ErrFunctionExists)
	assert.Equal(t, 5, k.Registry().Len())
}

func TestAdd(t *testing.T) {
	var trace bytes.Buffer
	k := newKernel(t, &trace)
	res, err := k.Invoke(context.Background(), Group, "add", Operands{Number1: 50, Number2: 20})
	require.NoError(t, err)
	v, err := res.Float()
	require.NoError(t, err)
	assert.InDelta(t, 70.0, v, 0)
	assert.Equal(t, "70", res.String())
	assert.Equal(t, "[Math] Adding 50 + 20\n", trace.String())
}

func TestBinaryOperations(t *testing.T) {
	k := newKernel(t, &bytes.Buffer{})
	tests := []struct {
		name string
		fn   string
		a, b float64
		want float64
	}{
		{"add fractions", "add", 0.5, 0.25, 0.75},
		{"subtract", "subtract", 100, 35, 65},
		{"subtract negative", "subtract", 1, 2.5, -1.5},
		{"multiply", "multiply", 6, 7, 42},
		{"divide", "divide", 9, 4, 2.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := k.Invoke(context.Background(), Group, tt.fn, Operands{Number1: tt.a, Number2: tt.b})
			require.NoError(t, err)
			v, err := res.Float()
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestDivide_ByZero(t *testing.T) {
	k := newKernel(t, &bytes.Buffer{})
	_, err := k.Invoke(context.Background(), Group, "divide", Operands{Number1: 1, Number2: 0})
	require.Error(t, err)
	assert.True(t, kernelsy.IsClientError(err))
	assert.Contains(t, err.Error(), "division by zero")
}

func TestResultOutOfRange(t *testing.T) {
	k := newKernel(t, &bytes.Buffer{})
	ctx := context.Background()
	tests := []struct {
		name string
		fn   string
		args any
	}{
		{"add overflow", "add", Operands{Number1: math.MaxFloat64, Number2: math.MaxFloat64}},
		{"subtract overflow", "subtract", Operands{Number1: -math.MaxFloat64, Number2: math.MaxFloat64}},
		{"multiply overflow", "multiply", Operands{Number1: math.MaxFloat64, Number2: 2}},
		{"divide overflow", "divide", Operands{Number1: math.MaxFloat64, Number2: 0.5}},
		{"evaluate infinity", "evaluate", Expression{Expression: "1/0"}},
		{"evaluate nan", "evaluate", Expression{Expression: "0/0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.Invoke(ctx, Group, tt.fn, tt.args)
			require.Error(t, err)
			assert.True(t, kernelsy.IsClientError(err))
			assert.False(t, kernelsy.IsSystemError(err))
			assert.ErrorIs(t, err, kernelsy.ErrValidation)
			assert.Contains(t, err.Error(), "result out of range")
		})
	}
}

func TestAdd_InvalidArguments(t *testing.T) {
	k := newKernel(t, &bytes.Buffer{})
	tests := []struct {
		name string
		args string
	}{
		{"string operand", `{"number1":"ten","number2":1}`},
		{"missing operand", `{"number1":1}`},
		{"extra argument", `{"number1":1,"number2":2,"number3":3}`},
		{"not json", `{number1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.Invoke(context.Background(), Group, "add", json.RawMessage(tt.args))
			require.Error(t, err)
			assert.True(t, kernelsy.IsClientError(err))
		})
	}
}

func TestEvaluate(t *testing.T) {
	var trace bytes.Buffer
	k := newKernel(t, &trace)
	res, err := k.Invoke(context.Background(), Group, "evaluate", Expression{Expression: "2 * (3 + 4)"})
	require.NoError(t, err)
	v, err := res.Float()
	require.NoError(t, err)
	assert.Equal(t, 14.0, v)
	assert.Equal(t, "[Math] Evaluating 2 * (3 + 4)\n", trace.String())

	res, err = k.Invoke(context.Background(), Group, "evaluate",
		Expression{Expression: "x - y", Params: map[string]any{"x": 100, "y": 35}})
	require.NoError(t, err)
	v, err = res.Float()
	require.NoError(t, err)
	assert.Equal(t, 65.0, v)
}

func TestEvaluate_Errors(t *testing.T) {
	k := newKernel(t, &bytes.Buffer{})
	for _, expr := range []string{"2 +", "1 > 0", "missing + 1"} {
		t.Run(expr, func(t *testing.T) {
			_, err := k.Invoke(context.Background(), Group, "evaluate", Expression{Expression: expr})
			require.Error(t, err)
			assert.True(t, kernelsy.IsClientError(err))
		})
	}
}

func TestNew_NoTrace(t *testing.T) {
	m := New()
	v, err := m.Add(context.Background(), Operands{Number1: 1, Number2: 2})
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}
