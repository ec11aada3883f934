package optimization

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by every tuning strategy. Use errors.Is to test for
// them; they are usually wrapped in an *Error carrying the operation context.
var (
	// ErrInvalidSearchSpace reports a malformed search space description.
	ErrInvalidSearchSpace = errors.New("invalid search space")
	// ErrNoSuchTrial reports a result for a trial id that is not running.
	ErrNoSuchTrial = errors.New("no such trial")
	// ErrTrialExists reports a second proposal request for a running trial id.
	ErrTrialExists = errors.New("trial already running")
	// ErrUnknownStrategy reports an unsupported strategy name.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	msg := e.Message
	if e.Err != nil {
		if msg != "" {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		} else {
			msg = e.Err.Error()
		}
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, msg)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// NoSuchTrial builds the error returned when a result arrives for a trial
// that was never proposed or has already been resolved.
func NoSuchTrial(component string, trialID int) *Error {
	return WrapErrorf(ErrNoSuchTrial, "trial %d", trialID).
		WithOperation("ReceiveTrialResult").
		WithComponent(component)
}

// TrialExists builds the error returned when a running trial id is proposed again.
func TrialExists(component string, trialID int) *Error {
	return WrapErrorf(ErrTrialExists, "trial %d", trialID).
		WithOperation("GenerateParameters").
		WithComponent(component)
}

// IsOptimizationError checks if an error is of type Error.
// If the error is an optimization error, it returns the error and true.
// Otherwise, it returns nil and false.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
