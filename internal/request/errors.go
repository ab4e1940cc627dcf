package request

import "errors"

var (
	// ErrTimeout is the error of a Failed state produced by WithTimeout.
	ErrTimeout = errors.New("request timed out")

	// ErrUnknown replaces a nil error passed to Fail.
	ErrUnknown = errors.New("request failed")

	// ErrClosed is the cancellation cause of handles issued by a closed
	// container.
	ErrClosed = errors.New("request container closed")

	// errSuperseded and errReset are cancellation causes; they never reach a
	// Failed state.
	errSuperseded = errors.New("request superseded")
	errReset      = errors.New("request reset")
)
