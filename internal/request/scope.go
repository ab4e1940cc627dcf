package request

import (
	"context"
	"sync"
)

// Closer is anything whose lifetime a Scope bounds.
type Closer interface {
	Close()
}

// Scope is an owning context: the unit (a screen, a command, a component
// instance) whose end cancels every request it started.
//
// The host signals the two lifecycle events it knows about: creating the
// scope is "context start", Teardown is "context end".
type Scope struct {
	mu      sync.Mutex
	name    string
	ctx     context.Context
	cancel  context.CancelFunc
	members []Closer
	done    bool
}

// NewScope creates a scope with a cancellable context derived from parent.
func NewScope(name string, parent context.Context) *Scope { //nolint:revive // context-as-argument: name is the primary differentiator
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scope{name: name, ctx: ctx, cancel: cancel}
}

// Name returns the scope's identifier.
func (s *Scope) Name() string { return s.name }

// Context returns the scope's context. Cancelled on Teardown.
// Containers created with this context close themselves when it ends.
func (s *Scope) Context() context.Context { return s.ctx }

// Track adds c to the scope. Tracking on a torn-down scope closes c at once.
func (s *Scope) Track(c Closer) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		c.Close()
		return
	}
	s.members = append(s.members, c)
	s.mu.Unlock()
}

// Teardown cancels the scope's context and closes every tracked member.
// Teardown is idempotent.
func (s *Scope) Teardown() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	members := s.members
	s.members = nil
	s.mu.Unlock()

	for _, m := range members {
		m.Close()
	}
	s.cancel()
}

// Done reports whether Teardown has run.
func (s *Scope) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// NewIn creates a container owned by s and tracked by it.
func NewIn[T any](s *Scope, opts ...Option) *Container[T] {
	c := New[T](s.Context(), opts...)
	s.Track(c)
	return c
}
