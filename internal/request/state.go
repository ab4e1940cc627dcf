// Package request provides a typed asynchronous request state container.
//
// A Container owns one logical operation ("fetch users", "load post 3") and
// moves through Idle, Loading, Succeeded and Failed. Every Start issues a new
// Token; results carrying an older token are dropped, so callers observe
// results in request order rather than arrival order.
package request

import "fmt"

// Status is the discriminant of a State.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is the value held by a Container. It is one of Idle, Loading,
// Succeeded or Failed; no other implementations exist.
type State[T any] interface {
	Status() Status
	sealed(T)
}

// Idle is the state before the first Start and after Reset.
type Idle[T any] struct{}

// Loading means a request is in flight. Previous carries the last value that
// succeeded, so a consumer may keep showing it while revalidating.
type Loading[T any] struct {
	Previous    T
	HasPrevious bool
}

// Succeeded holds the result of the most recent request.
type Succeeded[T any] struct {
	Data T
}

// Failed holds the error of the most recent request. Previous is the last
// good value when the container retains data on failure.
type Failed[T any] struct {
	Err         error
	Previous    T
	HasPrevious bool
}

func (Idle[T]) Status() Status      { return StatusIdle }
func (Loading[T]) Status() Status   { return StatusLoading }
func (Succeeded[T]) Status() Status { return StatusSucceeded }
func (Failed[T]) Status() Status    { return StatusFailed }

func (Idle[T]) sealed(T) {}
func (Loading[T]) sealed(T) {}
func (Succeeded[T]) sealed(T) {}
func (Failed[T]) sealed(T) {}

// DataOf returns the data of a Succeeded state.
func DataOf[T any](s State[T]) (T, bool) {
	if ok, is := s.(Succeeded[T]); is {
		return ok.Data, true
	}
	var zero T
	return zero, false
}

// ErrOf returns the error of a Failed state, nil otherwise.
func ErrOf[T any](s State[T]) error {
	if f, is := s.(Failed[T]); is {
		return f.Err
	}
	return nil
}

// PreviousOf returns the last good value carried by a Loading or Failed state.
// For Succeeded it returns the current data.
func PreviousOf[T any](s State[T]) (T, bool) {
	switch v := s.(type) {
	case Succeeded[T]:
		return v.Data, true
	case Loading[T]:
		return v.Previous, v.HasPrevious
	case Failed[T]:
		return v.Previous, v.HasPrevious
	}
	var zero T
	return zero, false
}

// Cases is the consumer contract: one handler per status. Match panics on a
// nil handler so a consumer cannot silently skip a branch.
type Cases[T, R any] struct {
	Idle      func() R
	Loading   func(previous T, hasPrevious bool) R
	Succeeded func(data T) R
	Failed    func(err error, previous T, hasPrevious bool) R
}

// Match dispatches s to the handler for its status.
func Match[T, R any](s State[T], c Cases[T, R]) R {
	if c.Idle == nil || c.Loading == nil || c.Succeeded == nil || c.Failed == nil {
		panic("request.Match: every case must be handled")
	}
	switch v := s.(type) {
	case Loading[T]:
		return c.Loading(v.Previous, v.HasPrevious)
	case Succeeded[T]:
		return c.Succeeded(v.Data)
	case Failed[T]:
		return c.Failed(v.Err, v.Previous, v.HasPrevious)
	default:
		return c.Idle()
	}
}
