package query

import (
	"context"
	"sync"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// Mutation describes an optimistic change.
type Mutation[T any] interface {
	// ApplyLocally returns current with the change applied.
	ApplyLocally(current T) T

	// ApplyRemotely performs the change against the source of truth.
	ApplyRemotely(ctx context.Context) error

	// IsReflectedIn reports whether remote already contains the change,
	// so it can be pruned from the pending list on refetch.
	IsReflectedIn(remote T) bool
}

type pendingMutation[T any] struct {
	id       uint64
	mutation Mutation[T]
}

// Optimistic is a Query whose mutations show immediately and are rolled
// back if the remote apply fails. Fetches rebuild the data from the remote
// result with still-pending mutations re-applied on top.
type Optimistic[T any] struct {
	*Query[T]

	mu         sync.Mutex
	pending    []pendingMutation[T]
	lastRemote T
	hasRemote  bool
	seq        uint64
	generation uint64
}

// NewOptimistic creates an optimistic query. Options are those of New.
func NewOptimistic[T any](owner context.Context, key string, config Config, fetchFn FetchFunc[T], opts ...Option) *Optimistic[T] { //nolint:revive // owner first mirrors request.New
	o := &Optimistic[T]{}
	o.Query = New(owner, key, config, o.reconciling(fetchFn), opts...)
	return o
}

// Apply runs m: the local change is written at once (superseding any fetch
// in flight, whose result would not contain it), then m is applied remotely.
// On remote failure the change is rolled back and the error returned. On
// success the query refetches to reconcile with the server.
func (o *Optimistic[T]) Apply(ctx context.Context, m Mutation[T]) error {
	current, hasData := request.PreviousOf(o.State())

	o.mu.Lock()
	if !o.hasRemote && hasData {
		o.lastRemote, o.hasRemote = current, true
	}
	gen := o.generation
	o.seq++
	id := o.seq
	o.pending = append(o.pending, pendingMutation[T]{id: id, mutation: m})
	o.mu.Unlock()

	if hasData {
		o.Set(m.ApplyLocally(current))
	}

	if err := m.ApplyRemotely(ctx); err != nil {
		o.rollback(gen, id)
		return err
	}
	o.FetchSync()
	return nil
}

// Pending returns the number of mutations not yet seen in remote data.
func (o *Optimistic[T]) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Reset drops data and every pending mutation.
func (o *Optimistic[T]) Reset() {
	o.mu.Lock()
	o.clearLocked()
	o.mu.Unlock()
	o.Query.Reset()
}

// Close drops pending mutations and closes the query.
func (o *Optimistic[T]) Close() {
	o.mu.Lock()
	o.clearLocked()
	o.mu.Unlock()
	o.Query.Close()
}

func (o *Optimistic[T]) clearLocked() {
	var zero T
	o.pending = nil
	o.lastRemote, o.hasRemote = zero, false
	o.generation++
}

// reconciling wraps fetchFn so that every remote result has the pending
// mutations it does not yet reflect re-applied on top.
func (o *Optimistic[T]) reconciling(fetchFn FetchFunc[T]) FetchFunc[T] {
	return func(ctx context.Context) (T, error) {
		remote, err := fetchFn(ctx)
		if err != nil {
			return remote, err
		}

		o.mu.Lock()
		defer o.mu.Unlock()
		o.lastRemote, o.hasRemote = remote, true

		remaining := o.pending[:0]
		for _, pm := range o.pending {
			if !pm.mutation.IsReflectedIn(remote) {
				remaining = append(remaining, pm)
			}
		}
		o.pending = remaining

		data := remote
		for _, pm := range o.pending {
			data = pm.mutation.ApplyLocally(data)
		}
		return data, nil
	}
}

// rollback removes a failed mutation and rebuilds from the last remote data.
func (o *Optimistic[T]) rollback(gen, id uint64) {
	o.mu.Lock()
	if o.generation != gen {
		o.mu.Unlock()
		return
	}
	remaining := o.pending[:0]
	for _, pm := range o.pending {
		if pm.id != id {
			remaining = append(remaining, pm)
		}
	}
	o.pending = remaining

	if !o.hasRemote {
		o.mu.Unlock()
		return
	}
	data := o.lastRemote
	for _, pm := range o.pending {
		data = pm.mutation.ApplyLocally(data)
	}
	o.mu.Unlock()

	o.Set(data)
}
