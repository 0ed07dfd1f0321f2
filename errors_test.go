package kernelsy

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientError(t *testing.T) {
	tests := []struct {
		name   string
		err    *ClientError
		expect string
	}{
		{"with reason", &ClientError{Reason: "division by zero"}, "invalid function input: division by zero"},
		{"empty reason", &ClientError{Reason: ""}, "invalid function input: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.err.Error())
		})
	}
}

func TestSystemError(t *testing.T) {
	inner := errors.New("connection refused")
	err := &SystemError{Err: inner}
	assert.Equal(t, "internal system error during function execution", err.Error())
	assert.Same(t, inner, err.Unwrap())
}

func TestErrorsIs_As(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		is       bool
		asClient bool
		asSystem bool
	}{
		{"ClientError with sentinel", &ClientError{Reason: "x", Err: ErrValidation}, ErrValidation, true, true, false},
		{"ClientError without sentinel", &ClientError{Reason: "x"}, ErrValidation, false, true, false},
		{"SystemError direct", &SystemError{Err: ErrTimeout}, ErrTimeout, true, false, true},
		{"wrapped ClientError", wrapErr{err: &ClientError{Reason: "y"}}, nil, false, true, false},
		{"wrapped SystemError", wrapErr{err: &SystemError{Err: ErrTimeout}}, ErrTimeout, true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.target != nil {
				assert.Equal(t, tt.is, errors.Is(tt.err, tt.target), "errors.Is")
			}
			assert.Equal(t, tt.asClient, IsClientError(tt.err), "IsClientError")
			assert.Equal(t, tt.asSystem, IsSystemError(tt.err), "IsSystemError")
		})
	}
}

func TestIsClientError(t *testing.T) {
	require.True(t, IsClientError(&ClientError{Reason: "x"}))
	require.False(t, IsClientError(&SystemError{Err: errors.New("x")}))
	require.False(t, IsClientError(ErrFunctionNotFound))
	require.True(t, IsClientError(wrapErr{err: &ClientError{Reason: "y"}}))
}

func TestIsSystemError(t *testing.T) {
	require.True(t, IsSystemError(&SystemError{Err: errors.New("x")}))
	require.True(t, IsSystemError(wrapErr{err: &SystemError{Err: ErrTimeout}}))
	require.False(t, IsSystemError(&ClientError{Reason: "x"}))
	require.False(t, IsSystemError(ErrFunctionNotFound))
}

func TestWrapJSONParseError(t *testing.T) {
	var v any
	jsonErr := json.Unmarshal([]byte(`{`), &v)
	require.Error(t, jsonErr)
	err := wrapJSONParseError(jsonErr)
	assert.True(t, IsClientError(err))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "json parse error")
}

func TestNotFound(t *testing.T) {
	err := notFound("Math", "sqrt")
	assert.ErrorIs(t, err, ErrFunctionNotFound)
	assert.Equal(t, "function not found: Math-sqrt", err.Error())
}

type wrapErr struct {
	err error
}

func (e wrapErr) Error() string {
	if e.err == nil {
		return ""
	}
	return "wrap: " + e.err.Error()
}
func (e wrapErr) Unwrap() error { return e.err }

func TestDetailedError(t *testing.T) {
	cause := errors.New("401 unauthorized")
	err := DetailedError(fmt.Errorf("render Learn-define: %w", &SystemError{Err: cause}))
	assert.Equal(t, "render Learn-define: internal system error during function execution: 401 unauthorized", err.Error())
	assert.True(t, IsSystemError(err))
	assert.ErrorIs(t, err, cause)

	client := &ClientError{Reason: "bad"}
	assert.Same(t, client, DetailedError(client))
	assert.Same(t, ErrTimeout, DetailedError(ErrTimeout))
	assert.NoError(t, DetailedError(nil))
	plain := &SystemError{}
	assert.Equal(t, plain, DetailedError(plain))
}
