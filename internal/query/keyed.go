package query

import (
	"fmt"
	"slices"
	"sync"
)

// Keyed manages per-key queries sharing one factory: a product detail per
// product id, a posts page per page number.
type Keyed[K comparable, T any] struct {
	mu      sync.RWMutex
	key     string
	queries map[K]*Query[T]
	factory func(key K) *Query[T]
	closed  bool
}

// NewKeyed creates a Keyed whose queries are built by factory on first use.
// key names the family for Client registration.
func NewKeyed[K comparable, T any](key string, factory func(key K) *Query[T]) *Keyed[K, T] {
	return &Keyed[K, T]{
		key:     key,
		queries: make(map[K]*Query[T]),
		factory: factory,
	}
}

// SubKey builds the conventional key for one member of a family.
func SubKey[K comparable](family string, key K) string {
	return fmt.Sprintf("%s/%v", family, key)
}

// Key returns the family key.
func (kq *Keyed[K, T]) Key() string { return kq.key }

// Get returns the query for key, creating it if needed.
func (kq *Keyed[K, T]) Get(key K) *Query[T] {
	kq.mu.RLock()
	if q, ok := kq.queries[key]; ok {
		kq.mu.RUnlock()
		return q
	}
	kq.mu.RUnlock()

	kq.mu.Lock()
	defer kq.mu.Unlock()
	if q, ok := kq.queries[key]; ok {
		return q
	}
	q := kq.factory(key)
	if kq.closed {
		q.Close()
	}
	kq.queries[key] = q
	return q
}

// Has reports whether a query exists for key.
func (kq *Keyed[K, T]) Has(key K) bool {
	kq.mu.RLock()
	defer kq.mu.RUnlock()
	_, ok := kq.queries[key]
	return ok
}

// Len returns the number of member queries.
func (kq *Keyed[K, T]) Len() int {
	kq.mu.RLock()
	defer kq.mu.RUnlock()
	return len(kq.queries)
}

// Invalidate marks every member stale.
func (kq *Keyed[K, T]) Invalidate() {
	for _, q := range kq.members() {
		q.Invalidate()
	}
}

// Refetch refetches every active stale member.
func (kq *Keyed[K, T]) Refetch() {
	for _, q := range kq.members() {
		if q.Active() {
			q.Refetch()
		}
	}
}

// Active reports whether any member is active.
func (kq *Keyed[K, T]) Active() bool {
	return slices.ContainsFunc(kq.members(), (*Query[T]).Active)
}

// Close closes every member. Members created afterwards start closed.
func (kq *Keyed[K, T]) Close() {
	kq.mu.Lock()
	kq.closed = true
	kq.mu.Unlock()
	for _, q := range kq.members() {
		q.Close()
	}
}

func (kq *Keyed[K, T]) members() []*Query[T] {
	kq.mu.RLock()
	defer kq.mu.RUnlock()
	out := make([]*Query[T], 0, len(kq.queries))
	for _, q := range kq.queries {
		out = append(out, q)
	}
	return out
}
