// Package query layers caching on top of request containers: freshness
// TTLs, invalidation, direct writes, optimistic mutations, keyed detail
// queries and adaptive polling.
//
// A Query does not push or schedule anything on its own. Consumers drive
// refreshes (a poll tick calls FetchIfStale, a mutation calls Invalidate)
// and read typed state through Snapshot or a subscription.
package query

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// FetchFunc retrieves data for a query.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Config configures a query's timing behavior.
type Config struct {
	FreshTTL time.Duration // how long data is fresh (0 = until invalidated)
	PollBase time.Duration // base polling interval when focused (0 = no auto-poll)
	PollBg   time.Duration // polling interval when blurred
	PollMax  time.Duration // cap after consecutive unchanged polls
}

// Querier is the non-generic face of a query, used by Client to manage
// queries of different types uniformly.
type Querier interface {
	Key() string
	Invalidate()
	Refetch()
	Active() bool
	Close()
}

type settings struct {
	metrics *Metrics
	request []request.Option
	now     func() time.Time
}

// Option configures a Query.
type Option func(*settings)

// WithMetrics records fetch events into m.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithRequestOptions passes options through to the underlying container.
func WithRequestOptions(opts ...request.Option) Option {
	return func(s *settings) { s.request = append(s.request, opts...) }
}

// WithClock overrides time.Now for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// Query is a typed, refreshable data source backed by one request container.
// Every Fetch starts a new request; a result from an older fetch never
// overwrites a newer one.
type Query[T any] struct {
	key     string
	config  Config
	fetchFn FetchFunc[T]
	owner   context.Context
	req     *request.Container[T]
	metrics *Metrics
	now     func() time.Time

	mu          sync.RWMutex
	fetchedAt   time.Time
	stale       bool
	version     uint64
	last        T
	hasLast     bool
	placeholder func() (T, bool)
	pushMode    bool
	focused     bool
	missCount   int
}

// New creates a query owned by owner. When owner ends the query is closed
// and its state frozen.
func New[T any](owner context.Context, key string, config Config, fetchFn FetchFunc[T], opts ...Option) *Query[T] { //nolint:revive // owner first mirrors request.New
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	if owner == nil {
		owner = context.Background()
	}
	reqOpts := append([]request.Option{request.WithLabel(key)}, s.request...)
	q := &Query[T]{
		key:     key,
		config:  config,
		fetchFn: fetchFn,
		owner:   owner,
		req:     request.New[T](owner, reqOpts...),
		metrics: s.metrics,
		now:     s.now,
		focused: true,
	}
	q.req.Subscribe(q.observe)
	if q.metrics != nil {
		q.metrics.Register(key, q.status)
	}
	return q
}

// Key returns the query's identifier.
func (q *Query[T]) Key() string { return q.key }

// Container exposes the underlying request container.
func (q *Query[T]) Container() *request.Container[T] { return q.req }

// State returns the current request state.
func (q *Query[T]) State() request.State[T] { return q.req.Get() }

// Subscribe registers fn for every state transition. Cache bookkeeping is
// updated before fn runs, so Snapshot inside fn is consistent.
func (q *Query[T]) Subscribe(fn func(request.State[T])) func() {
	return q.req.Subscribe(fn)
}

// Version increments on every change of the data the query holds.
func (q *Query[T]) Version() uint64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.version
}

// Snapshot returns the current state with freshness recomputed against
// FreshTTL. Never blocks on in-flight work.
func (q *Query[T]) Snapshot() Snapshot[T] {
	state := q.req.Get()

	q.mu.RLock()
	snap := Snapshot[T]{
		Key:       q.key,
		State:     state,
		FetchedAt: q.fetchedAt,
		Version:   q.version,
	}
	stale := q.stale || q.expiredLocked()
	placeholder := q.placeholder
	q.mu.RUnlock()

	switch state.(type) {
	case request.Loading[T]:
		snap.Freshness = FreshnessLoading
	case request.Failed[T]:
		snap.Freshness = FreshnessError
	case request.Succeeded[T]:
		snap.Freshness = FreshnessFresh
		if stale {
			snap.Freshness = FreshnessStale
		}
	default:
		snap.Freshness = FreshnessEmpty
	}

	if placeholder != nil {
		if _, has := request.PreviousOf(state); !has {
			snap.placeholder, snap.hasPlaceholder = placeholder()
		}
	}
	return snap
}

// SetPlaceholder installs a source of data to show before the first fetch
// completes, typically a lookup into a list query's cache.
func (q *Query[T]) SetPlaceholder(fn func() (T, bool)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.placeholder = fn
}

// Fetch starts a fetch on its own goroutine, superseding any fetch in
// flight. It returns the request token, or 0 if the query is closed.
func (q *Query[T]) Fetch() request.Token {
	return q.req.Run(q.op())
}

// FetchSync fetches on the calling goroutine and returns the resulting state.
func (q *Query[T]) FetchSync() request.State[T] {
	return q.req.RunSync(q.op())
}

// FetchIfStale starts a fetch unless the data is fresh or a fetch is
// already in flight. It reports whether a fetch was started.
func (q *Query[T]) FetchIfStale() (request.Token, bool) {
	if q.isFreshOrFetching() {
		return 0, false
	}
	tok := q.Fetch()
	return tok, tok != 0
}

// Refetch is FetchIfStale without the result, for Querier.
func (q *Query[T]) Refetch() { q.FetchIfStale() }

// Refresh fetches and waits for the outcome. It returns the failure of the
// request, ctx's error if ctx ends first, or request.ErrClosed when the
// query is closed or reset before the fetch settles.
func (q *Query[T]) Refresh(ctx context.Context) error {
	settled := make(chan request.State[T], 1)
	unsubscribe := q.req.Subscribe(func(s request.State[T]) {
		if s.Status() == request.StatusLoading {
			return
		}
		select {
		case settled <- s:
		default:
		}
	})
	defer unsubscribe()

	if tok := q.Fetch(); tok == 0 {
		return request.ErrClosed
	}
	select {
	case s := <-settled:
		if s.Status() == request.StatusIdle {
			return request.ErrClosed
		}
		return request.ErrOf(s)
	case <-q.owner.Done():
		return request.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invalidate marks the data stale. The next FetchIfStale refetches.
func (q *Query[T]) Invalidate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stale = true
}

// Set writes v as the query's data, superseding any fetch in flight.
func (q *Query[T]) Set(v T) {
	tok, _ := q.req.Start()
	if tok != 0 {
		q.req.Succeed(tok, v)
	}
}

// Update applies fn to the current data, if any, and writes the result.
func (q *Query[T]) Update(fn func(T) T) bool {
	cur, ok := request.PreviousOf(q.req.Get())
	if !ok {
		return false
	}
	q.Set(fn(cur))
	return true
}

// Reset cancels any fetch and drops the data.
func (q *Query[T]) Reset() { q.req.Reset() }

// Close stops the query for good.
func (q *Query[T]) Close() {
	q.req.Close()
	if q.metrics != nil {
		q.metrics.Unregister(q.key)
	}
}

// SetPushMode extends poll intervals while changes are pushed some other way.
func (q *Query[T]) SetPushMode(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushMode = enabled
}

// SetFocused marks whether the consumer of this query is in the foreground.
func (q *Query[T]) SetFocused(focused bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.focused = focused
	if focused {
		q.missCount = 0
	}
}

// Active reports whether the query is focused and still open.
func (q *Query[T]) Active() bool {
	if q.req.Closed() {
		return false
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.focused
}

// PollInterval returns the recommended polling interval, accounting for
// focus, push mode and consecutive unchanged results.
func (q *Query[T]) PollInterval() time.Duration {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.pollIntervalLocked()
}

func (q *Query[T]) pollIntervalLocked() time.Duration {
	if q.config.PollBase == 0 {
		return 0
	}
	base := q.config.PollBase
	if !q.focused && q.config.PollBg > 0 {
		base = q.config.PollBg
	}
	if q.pushMode {
		base *= 10
	}
	interval := base
	for range q.missCount {
		interval *= 2
		if q.config.PollMax > 0 && interval >= q.config.PollMax {
			return q.config.PollMax
		}
	}
	return interval
}

func (q *Query[T]) op() request.Op[T] {
	return func(ctx context.Context) (T, error) {
		start := time.Now()
		q.metrics.Record(Event{Timestamp: start, Key: q.key, Type: FetchStart})
		v, err := q.fetchFn(ctx)
		ev := Event{Timestamp: time.Now(), Key: q.key, Type: FetchComplete, Duration: time.Since(start)}
		if err != nil {
			ev.Type = FetchError
		}
		q.metrics.Record(ev)
		return v, err
	}
}

// observe keeps cache bookkeeping in step with the container. It is the
// first subscriber, so it runs before any consumer sees the state.
func (q *Query[T]) observe(s request.State[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch v := s.(type) {
	case request.Loading[T]:
		// Start carries no new data.
	case request.Succeeded[T]:
		if q.hasLast && reflect.DeepEqual(q.last, v.Data) {
			q.missCount++
		} else {
			q.missCount = 0
		}
		q.last, q.hasLast = v.Data, true
		q.fetchedAt = q.now()
		q.stale = false
		q.version++
	case request.Failed[T]:
		q.missCount++
	default:
		q.fetchedAt = time.Time{}
		q.stale = false
		q.missCount = 0
		q.version++
		var zero T
		q.last, q.hasLast = zero, false
	}
}

func (q *Query[T]) isFreshOrFetching() bool {
	if q.req.InFlight() {
		return true
	}
	if q.req.Get().Status() != request.StatusSucceeded {
		return false
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	return !q.stale && !q.expiredLocked()
}

func (q *Query[T]) expiredLocked() bool {
	if q.config.FreshTTL == 0 || q.fetchedAt.IsZero() {
		return false
	}
	return q.now().Sub(q.fetchedAt) >= q.config.FreshTTL
}

func (q *Query[T]) status() Status {
	snap := q.Snapshot()
	q.mu.RLock()
	defer q.mu.RUnlock()
	return Status{
		Key:          q.key,
		Freshness:    snap.Freshness,
		FetchedAt:    q.fetchedAt,
		PollInterval: q.pollIntervalLocked(),
		MissCount:    q.missCount,
	}
}
