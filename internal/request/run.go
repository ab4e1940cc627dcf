package request

import (
	"context"
	"errors"
)

// Run starts a request and executes op on its own goroutine. The result is
// routed back through Succeed or Fail with the request's token, so a result
// that arrives after a newer Start, a Reset or Close is dropped. An error
// returned after cancellation is never recorded as a failure.
//
// Run returns the token, or 0 if the container is closed.
func (c *Container[T]) Run(op Op[T]) Token {
	tok, handle := c.Start()
	if tok == 0 {
		return 0
	}
	go c.execute(tok, handle, op)
	return tok
}

// RunSync is Run on the calling goroutine. It returns the state once op
// has returned, which may belong to a newer request if one was started
// concurrently.
func (c *Container[T]) RunSync(op Op[T]) State[T] {
	tok, handle := c.Start()
	if tok != 0 {
		c.execute(tok, handle, op)
	}
	return c.Get()
}

func (c *Container[T]) execute(tok Token, handle context.Context, op Op[T]) {
	ctx := handle
	if d := c.opts.timeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(handle, d)
		defer cancel()
		timed := ctx
		stop := context.AfterFunc(timed, func() {
			if handle.Err() == nil && errors.Is(timed.Err(), context.DeadlineExceeded) {
				c.Fail(tok, ErrTimeout)
			}
		})
		defer stop()
	}

	v, err := op(ctx)

	if handle.Err() != nil {
		// Superseded, reset, closed, or already failed by the timeout.
		c.dropLate(tok, DropCancelled)
		return
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ErrTimeout
		}
		c.Fail(tok, err)
		return
	}
	c.Succeed(tok, v)
}
