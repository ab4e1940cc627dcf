package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// Client owns a set of queries with a shared lifecycle. Teardown cancels
// every in-flight fetch and freezes every query.
//
// Keys are slash-separated paths ("products", "products/detail/3").
// Invalidate matches whole segments, so "products" covers
// "products/detail/3" but not "productsx".
type Client struct {
	mu      sync.RWMutex
	scope   *request.Scope
	config  Config
	metrics *Metrics
	opts    []Option
	queries map[string]Querier
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDefaultConfig sets the Config used by Define and friends.
func WithDefaultConfig(c Config) ClientOption {
	return func(cl *Client) { cl.config = c }
}

// WithQueryOptions appends options applied to every query the client builds.
func WithQueryOptions(opts ...Option) ClientOption {
	return func(cl *Client) { cl.opts = append(cl.opts, opts...) }
}

// NewClient creates a client whose queries are owned by a scope derived
// from parent.
func NewClient(name string, parent context.Context, opts ...ClientOption) *Client { //nolint:revive // context-as-argument: name is the primary differentiator
	c := &Client{
		scope:   request.NewScope(name, parent),
		metrics: NewMetrics(),
		queries: make(map[string]Querier),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the client's identifier.
func (c *Client) Name() string { return c.scope.Name() }

// Context returns the client's context. Cancelled on Teardown.
func (c *Client) Context() context.Context { return c.scope.Context() }

// Scope returns the owning scope, for containers created outside a query.
func (c *Client) Scope() *request.Scope { return c.scope }

// Metrics returns the client's fetch telemetry.
func (c *Client) Metrics() *Metrics { return c.metrics }

// Config returns the default query config.
func (c *Client) Config() Config { return c.config }

// Register adds q to the client. A query registered after Teardown is
// closed immediately.
func (c *Client) Register(q Querier) {
	c.mu.Lock()
	c.queries[q.Key()] = q
	c.mu.Unlock()
	c.scope.Track(q)
}

// Lookup returns a registered query by key, or nil.
func (c *Client) Lookup(key string) Querier {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queries[key]
}

// Keys returns the registered keys in sorted order.
func (c *Client) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.queries))
	for k := range c.queries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Invalidate marks every query under prefix stale and refetches the active
// ones. An empty prefix matches everything. It returns the matched keys.
func (c *Client) Invalidate(prefix string) []string {
	var matched []Querier
	c.mu.RLock()
	for key, q := range c.queries {
		if MatchKey(prefix, key) {
			matched = append(matched, q)
		}
	}
	c.mu.RUnlock()

	keys := make([]string, 0, len(matched))
	for _, q := range matched {
		q.Invalidate()
		if q.Active() {
			q.Refetch()
		}
		keys = append(keys, q.Key())
	}
	sort.Strings(keys)
	return keys
}

// Teardown cancels the client's context and closes every query.
func (c *Client) Teardown() {
	c.scope.Teardown()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = make(map[string]Querier)
}

// MatchKey reports whether key falls under prefix on segment boundaries.
func MatchKey(prefix, key string) bool {
	if prefix == "" || prefix == key {
		return true
	}
	return strings.HasPrefix(key, strings.TrimSuffix(prefix, "/")+"/")
}

func (c *Client) queryOptions() []Option {
	return append([]Option{WithMetrics(c.metrics)}, c.opts...)
}

// Use retrieves or creates a query of type Q under key. Each key maps to
// exactly one concrete type; asking for a different one panics.
func Use[Q Querier](c *Client, key string, create func() Q) Q {
	c.mu.RLock()
	if q, ok := c.queries[key]; ok {
		c.mu.RUnlock()
		return assertQuerier[Q](c, key, q)
	}
	c.mu.RUnlock()

	c.mu.Lock()
	if q, ok := c.queries[key]; ok {
		c.mu.Unlock()
		return assertQuerier[Q](c, key, q)
	}
	q := create()
	c.queries[key] = q
	c.mu.Unlock()

	c.scope.Track(q)
	return q
}

func assertQuerier[Q Querier](c *Client, key string, q Querier) Q {
	typed, ok := q.(Q)
	if !ok {
		panic(fmt.Sprintf("query client %q: %q has type %T, want %T", c.Name(), key, q, *new(Q)))
	}
	return typed
}

// Define returns the query registered under key, creating it with the
// client's defaults.
func Define[T any](c *Client, key string, fetchFn FetchFunc[T], opts ...Option) *Query[T] {
	return Use(c, key, func() *Query[T] {
		return New(c.Context(), key, c.config, fetchFn, append(c.queryOptions(), opts...)...)
	})
}

// DefineOptimistic is Define for an optimistic query.
func DefineOptimistic[T any](c *Client, key string, fetchFn FetchFunc[T], opts ...Option) *Optimistic[T] {
	return Use(c, key, func() *Optimistic[T] {
		return NewOptimistic(c.Context(), key, c.config, fetchFn, append(c.queryOptions(), opts...)...)
	})
}

// DefineKeyed is Define for a family of per-key queries. Member keys are
// SubKey(key, k).
func DefineKeyed[K comparable, T any](c *Client, key string, fetchFn func(ctx context.Context, k K) (T, error), opts ...Option) *Keyed[K, T] {
	return Use(c, key, func() *Keyed[K, T] {
		return NewKeyed(key, func(k K) *Query[T] {
			return New(c.Context(), SubKey(key, k), c.config, func(ctx context.Context) (T, error) {
				return fetchFn(ctx, k)
			}, append(c.queryOptions(), opts...)...)
		})
	})
}

// DefineInfinite is Define for an accumulating paged query.
func DefineInfinite[P any](c *Client, key string, first int, fetchFn PageFunc[P], next NextCursor[P], opts ...Option) *Infinite[P] {
	return Use(c, key, func() *Infinite[P] {
		return NewInfinite(c.Context(), key, first, fetchFn, next, append(c.queryOptions(), opts...)...)
	})
}
