package output

import (
	"context"
	"errors"
	"fmt"

	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// Error is a structured error with code, message, and optional hint.
type Error struct {
	Code      string
	Message   string
	Hint      string
	Fields    []mockapi.FieldError
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// Error constructors for common cases.

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

func ErrNotFound(resource, identifier string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

func ErrServer(cause error) *Error {
	return &Error{
		Code:      CodeServer,
		Message:   "Server error",
		Hint:      "Try again, or lower --failure-rate",
		Retryable: true,
		Cause:     cause,
	}
}

func ErrTimeout(cause error) *Error {
	return &Error{
		Code:      CodeTimeout,
		Message:   "Request timed out",
		Hint:      "Raise --timeout or lower --latency",
		Retryable: true,
		Cause:     cause,
	}
}

func ErrCancelled(cause error) *Error {
	return &Error{
		Code:    CodeCancelled,
		Message: "Request cancelled",
		Cause:   cause,
	}
}

// FromDomain maps store and request errors onto structured errors.
// Errors that are already *Error pass through unchanged.
func FromDomain(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var verr *mockapi.ValidationError
	switch {
	case errors.As(err, &verr):
		return &Error{
			Code:    CodeValidation,
			Message: fmt.Sprintf("Invalid %s", verr.Entity),
			Hint:    verr.Error(),
			Fields:  verr.Fields,
			Cause:   err,
		}
	case errors.Is(err, mockapi.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: capitalize(err.Error()), Cause: err}
	case errors.Is(err, mockapi.ErrServer):
		return ErrServer(err)
	case errors.Is(err, request.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout(err)
	case errors.Is(err, context.Canceled), errors.Is(err, request.ErrClosed):
		return ErrCancelled(err)
	}
	return AsError(err)
}

// AsError attempts to convert an error to an *Error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Code:    CodeInternal,
		Message: err.Error(),
		Cause:   err,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
