package request

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Token is the version of one request. Tokens increase with every Start;
// zero is never issued to a live request.
type Token uint64

// Op is an operation source: it produces a T or an error and should return
// promptly once ctx is cancelled.
type Op[T any] func(ctx context.Context) (T, error)

type inflight struct {
	token   Token
	ctx     context.Context
	cancel  context.CancelCauseFunc
	started time.Time
}

type subscriber[T any] struct {
	id uint64
	fn func(State[T])
}

// delivery is one queued notification: a state for subscribers or a hook
// call.
type delivery[T any] struct {
	state State[T]
	hook  func()
}

// Container owns the state of one logical asynchronous operation.
//
// Transitions are applied only through Start, Succeed, Fail, Reset and Close.
// Succeed and Fail carry the token returned by Start and are ignored unless
// that token is the current, unsettled request. Once the owning context ends
// the container is frozen: later results and calls change nothing.
type Container[T any] struct {
	mu    sync.Mutex
	id    string
	opts  options
	owner context.Context
	stop  func() bool

	state   State[T]
	last    T
	hasLast bool
	version Token
	current *inflight
	closed  bool

	subs     []subscriber[T]
	subSeq   uint64
	queue    []delivery[T]
	draining bool
}

// New creates an Idle container owned by owner. When owner is done the
// container closes itself.
func New[T any](owner context.Context, opts ...Option) *Container[T] { //nolint:revive // owner first mirrors context.WithCancel
	if owner == nil {
		owner = context.Background()
	}
	o := options{hooks: NopHooks{}}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Container[T]{
		id:    uuid.NewString(),
		opts:  o,
		owner: owner,
		state: Idle[T]{},
	}
	if owner.Err() != nil {
		c.closed = true
		return c
	}
	stop := context.AfterFunc(owner, c.Close)
	c.mu.Lock()
	c.stop = stop
	c.mu.Unlock()
	return c
}

// ID returns the container's identifier.
func (c *Container[T]) ID() string { return c.id }

// Label returns the label set with WithLabel.
func (c *Container[T]) Label() string { return c.opts.label }

// Policy returns the failure policy.
func (c *Container[T]) Policy() FailurePolicy { return c.opts.policy }

// Get returns the current state. Never blocks on in-flight work.
func (c *Container[T]) Get() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Version returns the most recently issued token.
func (c *Container[T]) Version() Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Closed reports whether the owning context has ended.
func (c *Container[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedLocked()
}

// InFlight reports whether a request is waiting for its result.
func (c *Container[T]) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Start begins a new request. Any request still in flight is cancelled and
// its eventual result will be dropped. The returned context is cancelled when
// the request is superseded, reset, settled or the container closes.
//
// On a closed container Start returns token 0 and a cancelled context.
func (c *Container[T]) Start() (Token, context.Context) {
	c.mu.Lock()
	if c.closedLocked() {
		c.mu.Unlock()
		return 0, closedContext()
	}
	if prev := c.current; prev != nil {
		prev.cancel(errSuperseded)
		c.dropLocked(prev, DropSuperseded)
	}
	c.version++
	tok := c.version
	parent := c.opts.hooks.OnStart(c.owner, c.info(tok))
	ctx, cancel := context.WithCancelCause(parent)
	c.current = &inflight{token: tok, ctx: ctx, cancel: cancel, started: time.Now()}
	c.setLocked(Loading[T]{Previous: c.last, HasPrevious: c.hasLast})
	c.mu.Unlock()

	c.flush()
	return tok, ctx
}

// Succeed applies a successful result for tok. It reports whether the
// result was applied; stale results are dropped silently.
func (c *Container[T]) Succeed(tok Token, v T) bool {
	c.mu.Lock()
	cur, ok := c.acceptLocked(tok)
	if !ok {
		c.mu.Unlock()
		c.flush()
		return false
	}
	c.last, c.hasLast = v, true
	c.setLocked(Succeeded[T]{Data: v})
	c.settleLocked(cur, StatusSucceeded, nil)
	cur.cancel(nil)
	c.mu.Unlock()

	c.flush()
	return true
}

// Fail applies a failed result for tok, with the same staleness guard as
// Succeed. Under RetainData the last good value is kept as Previous.
func (c *Container[T]) Fail(tok Token, err error) bool {
	if err == nil {
		err = ErrUnknown
	}
	c.mu.Lock()
	cur, ok := c.acceptLocked(tok)
	if !ok {
		c.mu.Unlock()
		c.flush()
		return false
	}
	if c.opts.policy == ClearData {
		var zero T
		c.last, c.hasLast = zero, false
	}
	c.setLocked(Failed[T]{Err: err, Previous: c.last, HasPrevious: c.hasLast})
	c.settleLocked(cur, StatusFailed, err)
	cur.cancel(nil)
	c.mu.Unlock()

	c.flush()
	return true
}

// Reset cancels any in-flight request and returns to Idle, discarding data
// and error. The cancelled request's token stays stale; Version is not
// advanced because no new request was issued. Reset on an Idle container
// does nothing.
func (c *Container[T]) Reset() {
	c.mu.Lock()
	if c.closedLocked() {
		c.mu.Unlock()
		return
	}
	if cur := c.current; cur != nil {
		cur.cancel(errReset)
		c.dropLocked(cur, DropReset)
		c.current = nil
	}
	var zero T
	c.last, c.hasLast = zero, false
	if c.state.Status() != StatusIdle {
		c.setLocked(Idle[T]{})
	}
	c.mu.Unlock()

	c.flush()
}

// Close tears the container down: the in-flight request is cancelled and the
// state is frozen as it is. Close is idempotent.
func (c *Container[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.stop != nil {
		c.stop()
	}
	if cur := c.current; cur != nil {
		cur.cancel(ErrClosed)
		c.dropLocked(cur, DropClosed)
		c.current = nil
	}
	c.subs = nil
	pending := c.queue[:0]
	for _, d := range c.queue {
		if d.hook != nil {
			pending = append(pending, d)
		}
	}
	c.queue = pending
	c.mu.Unlock()

	c.flush()
}

// Subscribe registers fn to receive every applied state, in transition
// order. fn runs outside the container's lock and may call back into it.
func (c *Container[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	c.subSeq++
	id := c.subSeq
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// acceptLocked claims the in-flight request for tok, or reports a drop.
func (c *Container[T]) acceptLocked(tok Token) (*inflight, bool) {
	if c.closedLocked() || c.current == nil || c.current.token != tok {
		c.lateLocked(tok, DropStale)
		return nil, false
	}
	cur := c.current
	c.current = nil
	return cur, true
}

// closedLocked treats an ended owner as closed even before the AfterFunc
// registered in New has run.
func (c *Container[T]) closedLocked() bool {
	return c.closed || c.owner.Err() != nil
}

func (c *Container[T]) dropLate(tok Token, reason DropReason) {
	c.mu.Lock()
	c.lateLocked(tok, reason)
	c.mu.Unlock()

	c.flush()
}

func (c *Container[T]) lateLocked(tok Token, reason DropReason) {
	info, hooks := c.info(tok), c.opts.hooks
	c.queue = append(c.queue, delivery[T]{hook: func() {
		hooks.OnDrop(context.Background(), info, reason, 0)
	}})
}

func (c *Container[T]) dropLocked(r *inflight, reason DropReason) {
	ctx, info, d, hooks := r.ctx, c.info(r.token), time.Since(r.started), c.opts.hooks
	c.queue = append(c.queue, delivery[T]{hook: func() {
		hooks.OnDrop(ctx, info, reason, d)
	}})
}

func (c *Container[T]) settleLocked(r *inflight, status Status, err error) {
	ctx, info, d, hooks := r.ctx, c.info(r.token), time.Since(r.started), c.opts.hooks
	c.queue = append(c.queue, delivery[T]{hook: func() {
		hooks.OnSettle(ctx, info, status, err, d)
	}})
}

func (c *Container[T]) setLocked(s State[T]) {
	c.state = s
	if len(c.subs) > 0 {
		c.queue = append(c.queue, delivery[T]{state: s})
	}
}

// flush delivers queued states and hook calls. Only one goroutine drains at
// a time, which keeps delivery in transition order and lets subscribers and
// hooks re-enter.
func (c *Container[T]) flush() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.queue) > 0 {
		batch := c.queue
		c.queue = nil
		subs := append([]subscriber[T](nil), c.subs...)
		c.mu.Unlock()
		for _, d := range batch {
			if d.hook != nil {
				d.hook()
				continue
			}
			for _, sub := range subs {
				sub.fn(d.state)
			}
		}
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}

func (c *Container[T]) info(tok Token) Info {
	return Info{ID: c.id, Label: c.opts.label, Token: tok}
}

func closedContext() context.Context {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(ErrClosed)
	return ctx
}
