// Package apperr defines the error taxonomy shared by the redaction service.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to report it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidConfiguration is returned by Start before any resource is opened.
	KindInvalidConfiguration
	// KindAlreadyRunning is returned by Start while another run is in progress.
	KindAlreadyRunning
	// KindResourceUnavailable covers unreadable input and encoders that cannot be opened.
	KindResourceUnavailable
	// KindProcessingFailure covers any other failure while streaming.
	KindProcessingFailure
	// KindCallbackFailure is an observer error; it is logged and never aborts a run.
	KindCallbackFailure
)

// String returns a human-readable name of the kind
func (k Kind) String() string {
	switch k {
	case KindInvalidConfiguration:
		return "invalid_configuration"
	case KindAlreadyRunning:
		return "already_running"
	case KindResourceUnavailable:
		return "resource_unavailable"
	case KindProcessingFailure:
		return "processing_failure"
	case KindCallbackFailure:
		return "callback_failure"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Field is set for configuration errors,
// Op names the operation that failed otherwise.
type Error struct {
	Kind  Kind
	Field string
	Op    string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var prefix string
	switch {
	case e.Field != "":
		prefix = fmt.Sprintf("%s: %s", e.Kind, e.Field)
	case e.Op != "":
		prefix = fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		prefix = e.Kind.String()
	}

	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", prefix, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return prefix
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrAlreadyRunning)
// works regardless of field or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidConfiguration = &Error{Kind: KindInvalidConfiguration}
	ErrAlreadyRunning       = &Error{Kind: KindAlreadyRunning, Msg: "a run is already in progress"}
	ErrResourceUnavailable  = &Error{Kind: KindResourceUnavailable}
	ErrProcessingFailure    = &Error{Kind: KindProcessingFailure}
	ErrCallbackFailure      = &Error{Kind: KindCallbackFailure}
)

// Invalid builds an InvalidConfiguration error naming the offending field.
func Invalid(field, format string, args ...any) error {
	return &Error{Kind: KindInvalidConfiguration, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps err as a ResourceUnavailable failure of op.
func Unavailable(op string, err error) error {
	return &Error{Kind: KindResourceUnavailable, Op: op, Err: err}
}

// Processing wraps err as an unexpected mid-stream failure of op.
func Processing(op string, err error) error {
	return &Error{Kind: KindProcessingFailure, Op: op, Err: err}
}

// Callback wraps an observer failure.
func Callback(op string, err error) error {
	return &Error{Kind: KindCallbackFailure, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FieldOf returns the configuration field named by err, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
