package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error taxonomy. Callers match with errors.Is.
var (
	// ErrInvalidValue marks a parameter with an acceptable type but a bad value
	ErrInvalidValue = errors.New("invalid value")
	// ErrInvalidType marks a parameter that could not be interpreted at all
	ErrInvalidType = errors.New("invalid type")
	// ErrInconsistentCadence marks a file whose cadence matches no pipeline of its author
	ErrInconsistentCadence = errors.New("inconsistent cadence")
	// ErrCorruptSnapshot marks a persisted snapshot that cannot be decoded
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
	// ErrNotImplemented marks a requested method that does not exist
	ErrNotImplemented = errors.New("not implemented")
)

// ValidationError describes a rejected input parameter
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

// NewValueError creates a validation error wrapping ErrInvalidValue
func NewValueError(field, value, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason, Err: ErrInvalidValue}
}

// NewTypeError creates a validation error wrapping ErrInvalidType
func NewTypeError(field, value, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason, Err: ErrInvalidType}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s: %s", e.Err, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s=%q: %s", e.Err, e.Field, e.Value, e.Reason)
}

// Unwrap returns the sentinel for errors.Is
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// CadenceError reports a light curve whose declared cadence does not fit its author
type CadenceError struct {
	File    string
	Author  string
	TimeDel float64
}

// Error implements the error interface
func (e *CadenceError) Error() string {
	return fmt.Sprintf("%s: exposure time of %s (TIMEDEL=%g d) is not valid for %s or TESS-SPOC",
		ErrInconsistentCadence, e.File, e.TimeDel, e.Author)
}

// Unwrap returns ErrInconsistentCadence
func (e *CadenceError) Unwrap() error {
	return ErrInconsistentCadence
}
