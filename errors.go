package kernelsy

import (
	"errors"
	"fmt"
)

// Sentinel errors for kernelsy. Use errors.Is to check.
var (
	ErrFunctionNotFound = errors.New("function not found")
	ErrFunctionExists   = errors.New("function already registered")
	ErrInvalidName      = errors.New("invalid group or function name")
	ErrTimeout          = errors.New("function execution timeout")
	ErrValidation       = errors.New("validation failed")
	ErrShutdown         = errors.New("registry is shutting down")
	ErrTemplate         = errors.New("invalid prompt template")
	ErrNoCompleter      = errors.New("kernel has no chat completer")
)

// ClientError is an error that should be sent back to the model for self-correction
// (e.g. invalid JSON, schema validation failure, unknown function).
// Do not expose stack traces or internal details to the model.
// Err optionally wraps a sentinel (e.g. ErrValidation) for errors.Is/errors.As.
type ClientError struct {
	Reason string
	Err    error // wrapped sentinel for errors.Is/errors.As
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid function input: %s", e.Reason)
}

// Unwrap supports errors.Is/errors.As on wrapped chains (e.g. errors.Is(err, ErrValidation)).
func (e *ClientError) Unwrap() error { return e.Err }

// SystemError represents an internal failure (panic, I/O error, remote outage).
// The model should not see the underlying error message.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "internal system error during function execution"
}

func (e *SystemError) Unwrap() error { return e.Err }

// DetailedError returns err with the cause of its SystemError appended to the message, for logs and
// direct callers. The chain is kept, so IsSystemError and errors.Is still see both. Text sent to a
// model must not go through it.
func DetailedError(err error) error {
	var se *SystemError
	if !errors.As(err, &se) || se.Err == nil {
		return err
	}
	return fmt.Errorf("%w: %w", err, se.Err)
}

// IsClientError returns true if err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsSystemError returns true if err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// wrapJSONParseError returns a ClientError for JSON unmarshal failures.
// Used by Extractor.ParseAndValidate and NewDynamicFunction so parse errors are consistent.
func wrapJSONParseError(err error) error {
	return &ClientError{Reason: "json parse error: " + err.Error(), Err: ErrValidation}
}

// notFound builds the error returned for a missing (group, name) pair.
func notFound(group, name string) error {
	return fmt.Errorf("%w: %s", ErrFunctionNotFound, QualifiedName(group, name))
}
