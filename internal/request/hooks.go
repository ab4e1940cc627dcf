package request

import (
	"context"
	"time"
)

// DropReason says why a request ended without a transition.
type DropReason int

const (
	// DropSuperseded: a newer Start replaced the in-flight request.
	DropSuperseded DropReason = iota
	// DropReset: Reset cancelled the in-flight request.
	DropReset
	// DropClosed: the owning context ended.
	DropClosed
	// DropStale: a result arrived for a token that is no longer current,
	// already settled, or belongs to a closed container.
	DropStale
	// DropCancelled: the operation returned after its handle was cancelled.
	DropCancelled
)

func (r DropReason) String() string {
	switch r {
	case DropSuperseded:
		return "superseded"
	case DropReset:
		return "reset"
	case DropClosed:
		return "closed"
	case DropStale:
		return "stale"
	case DropCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// EndsRequest reports whether the drop ended a request that was still in
// flight. Stale and cancelled drops describe a request that had already
// ended.
func (r DropReason) EndsRequest() bool {
	return r == DropSuperseded || r == DropReset || r == DropClosed
}

// Info identifies one request of one container.
type Info struct {
	ID    string // container id, stable for the container's lifetime
	Label string
	Token Token
}

// Hooks observe container activity. Drops are reported only here, never to
// subscribers. Implementations must be safe for concurrent use.
type Hooks interface {
	// OnStart is called during Start, with the container locked. The
	// returned context becomes the parent of the request's cancellation
	// handle. It must return promptly and must not call back into the
	// container.
	OnStart(ctx context.Context, info Info) context.Context

	// OnSettle is called when Succeed or Fail applied a transition.
	// OnSettle and OnDrop run after the lock is released, in transition
	// order, and may read the container.
	OnSettle(ctx context.Context, info Info, status Status, err error, duration time.Duration)

	// OnDrop is called when a request ends without a transition.
	OnDrop(ctx context.Context, info Info, reason DropReason, duration time.Duration)
}

// NopHooks implements Hooks and does nothing.
type NopHooks struct{}

func (NopHooks) OnStart(ctx context.Context, _ Info) context.Context { return ctx }

func (NopHooks) OnSettle(context.Context, Info, Status, error, time.Duration) {}

func (NopHooks) OnDrop(context.Context, Info, DropReason, time.Duration) {}

// MultiHooks fans each call out to every hook in order.
type MultiHooks []Hooks

func (m MultiHooks) OnStart(ctx context.Context, info Info) context.Context {
	for _, h := range m {
		ctx = h.OnStart(ctx, info)
	}
	return ctx
}

func (m MultiHooks) OnSettle(ctx context.Context, info Info, status Status, err error, d time.Duration) {
	for _, h := range m {
		h.OnSettle(ctx, info, status, err, d)
	}
}

func (m MultiHooks) OnDrop(ctx context.Context, info Info, reason DropReason, d time.Duration) {
	for _, h := range m {
		h.OnDrop(ctx, info, reason, d)
	}
}
