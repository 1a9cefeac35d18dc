// Package errors provides the error taxonomy for the neural-fingerprinting
// library. All failures in the core are fatal and propagate to the caller;
// there are no retries anywhere. Error types carry structured fields and can
// be marshaled into zerolog events for structured log output.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ConfigurationError reports an invalid configuration: bad counts, a
// mismatched loss/weight key set, a device request that cannot be honored,
// or an unset per-example weight at evaluation time. It is raised before or
// at the start of the offending operation and is never retried.
type ConfigurationError struct {
	Op     string
	Reason string
	Value  interface{}
}

func (e *ConfigurationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("nfp: %s: invalid configuration: %s (got: %v)", e.Op, e.Reason, e.Value)
	}
	return fmt.Sprintf("nfp: %s: invalid configuration: %s", e.Op, e.Reason)
}

// MarshalZerologObject adds the structured configuration failure to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigurationError")
}

// NewConfigurationError creates a ConfigurationError with a stack trace.
func NewConfigurationError(op, reason string, value interface{}) error {
	err := &ConfigurationError{Op: op, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ShapeMismatchError reports a weight or tensor whose shape is incompatible
// with the value it is applied to. Surfaced immediately, always fatal.
type ShapeMismatchError struct {
	Op       string
	Expected []int
	Got      []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("nfp: %s: shape mismatch. Expected %v, got %v", e.Op, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured shape mismatch to a zerolog event.
func (e *ShapeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Ints("expected", e.Expected).
		Ints("got", e.Got).
		Str("type", "ShapeMismatchError")
}

// NewShapeMismatchError creates a ShapeMismatchError with a stack trace.
func NewShapeMismatchError(op string, expected, got []int) error {
	err := &ShapeMismatchError{Op: op, Expected: expected, Got: got}
	return errors.WithStack(err)
}

// StaleReferenceError reports evaluation of a reference regularizer whose
// fixed image has not been set by SetupBatch, or was already cleared by
// CleanupBatch. Callers must bracket batch evaluation with
// SetupBatch/CleanupBatch on every exit path.
type StaleReferenceError struct {
	Term string
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("nfp: %s: reference state is unset. Call SetupBatch() before Evaluate()", e.Term)
}

// MarshalZerologObject adds the structured reference failure to a zerolog event.
func (e *StaleReferenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("term", e.Term).
		Str("type", "StaleReferenceError")
}

// NewStaleReferenceError creates a StaleReferenceError with a stack trace.
func NewStaleReferenceError(term string) error {
	err := &StaleReferenceError{Term: term}
	return errors.WithStack(err)
}

// DimensionError reports input data whose dimensions differ from what an
// operation expects.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("nfp: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured dimension failure to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// NumericalInstabilityError reports NaN or Inf values produced by a numeric
// operation, together with the step at which they appeared.
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Step      int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("nfp: numerical instability detected in %s at step %d. Values: [%s]",
		e.Operation, e.Step, valStr)
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a stack trace.
func NewNumericalInstabilityError(operation string, values []float64, step int) error {
	err := &NumericalInstabilityError{Operation: operation, Values: values, Step: step}
	return errors.WithStack(err)
}

// NotFittedError reports use of a component that requires prior fitting,
// such as transforming with an unfitted normalizer.
type NotFittedError struct {
	Component string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("nfp: %s: not fitted yet. Call Fit() before using %s()", e.Component, e.Method)
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(component, method string) error {
	err := &NotFittedError{Component: component, Method: method}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates err with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	common error values
//
// ===========================================================================

var (
	// ErrEmptyData is returned when an operation receives no data.
	ErrEmptyData = New("empty data")

	// ErrCorruptStream is returned when a serialized fingerprint or
	// checkpoint stream cannot be decoded.
	ErrCorruptStream = New("corrupt stream")
)
