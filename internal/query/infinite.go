package query

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// PageFunc fetches the page at cursor.
type PageFunc[P any] func(ctx context.Context, cursor int) (P, error)

// NextCursor returns the cursor of the page after page, or false when page
// is the last one.
type NextCursor[P any] func(page P) (int, bool)

// Infinite accumulates the pages of a cursor-paged source, for "load more"
// lists. Its container holds every loaded page in order.
//
// Each FetchNext is a request of its own: a FetchNext started while another
// is in flight supersedes it, and Reset drops every loaded page.
type Infinite[P any] struct {
	key     string
	first   int
	fetchFn PageFunc[P]
	next    NextCursor[P]
	req     *request.Container[[]P]
	metrics *Metrics

	mu    sync.Mutex
	stale bool
}

// NewInfinite creates an accumulating query owned by owner. Loading starts
// at cursor first.
func NewInfinite[P any](owner context.Context, key string, first int, fetchFn PageFunc[P], next NextCursor[P], opts ...Option) *Infinite[P] { //nolint:revive // owner first mirrors request.New
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	if owner == nil {
		owner = context.Background()
	}
	reqOpts := append([]request.Option{request.WithLabel(key)}, s.request...)
	q := &Infinite[P]{
		key:     key,
		first:   first,
		fetchFn: fetchFn,
		next:    next,
		req:     request.New[[]P](owner, reqOpts...),
		metrics: s.metrics,
	}
	q.req.Subscribe(q.observe)
	return q
}

// Key returns the query's identifier.
func (q *Infinite[P]) Key() string { return q.key }

// Container exposes the underlying request container.
func (q *Infinite[P]) Container() *request.Container[[]P] { return q.req }

// State returns the current request state.
func (q *Infinite[P]) State() request.State[[]P] { return q.req.Get() }

// Subscribe registers fn for every state transition.
func (q *Infinite[P]) Subscribe(fn func(request.State[[]P])) func() {
	return q.req.Subscribe(fn)
}

// Pages returns the loaded pages, including those kept while a fetch is in
// flight or after it failed.
func (q *Infinite[P]) Pages() []P {
	pages, _ := request.PreviousOf(q.req.Get())
	return slices.Clone(pages)
}

// HasNext reports whether a page follows the loaded ones. It is true before
// the first page has loaded.
func (q *Infinite[P]) HasNext() bool {
	_, ok := q.cursorAfter(q.Pages())
	return ok
}

// FetchNext loads the page after the loaded ones on its own goroutine and
// appends it. It returns the request token, or 0 when there is no next page
// or the query is closed.
func (q *Infinite[P]) FetchNext() request.Token {
	pages := q.Pages()
	cursor, ok := q.cursorAfter(pages)
	if !ok {
		return 0
	}
	return q.req.Run(q.appendOp(pages, cursor))
}

// FetchNextSync is FetchNext on the calling goroutine. It returns the
// resulting state.
func (q *Infinite[P]) FetchNextSync() request.State[[]P] {
	pages := q.Pages()
	cursor, ok := q.cursorAfter(pages)
	if !ok {
		return q.req.Get()
	}
	return q.req.RunSync(q.appendOp(pages, cursor))
}

// Fetch reloads every loaded page from the first cursor, at least one page,
// replacing them in a single transition.
func (q *Infinite[P]) Fetch() request.Token {
	return q.req.Run(q.reloadOp(max(len(q.Pages()), 1)))
}

// Invalidate marks the pages stale. The next Refetch reloads them.
func (q *Infinite[P]) Invalidate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stale = true
}

// Refetch reloads the pages when they are stale and nothing is in flight.
func (q *Infinite[P]) Refetch() {
	q.mu.Lock()
	stale := q.stale
	q.mu.Unlock()
	if stale && !q.req.InFlight() {
		q.Fetch()
	}
}

// Reset cancels any fetch and drops every loaded page.
func (q *Infinite[P]) Reset() { q.req.Reset() }

// Active reports whether the query is still open.
func (q *Infinite[P]) Active() bool { return !q.req.Closed() }

// Close stops the query for good.
func (q *Infinite[P]) Close() { q.req.Close() }

func (q *Infinite[P]) cursorAfter(pages []P) (int, bool) {
	if len(pages) == 0 {
		return q.first, true
	}
	return q.next(pages[len(pages)-1])
}

func (q *Infinite[P]) appendOp(pages []P, cursor int) request.Op[[]P] {
	return func(ctx context.Context) ([]P, error) {
		p, err := q.fetchPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		return append(slices.Clip(pages), p), nil
	}
}

func (q *Infinite[P]) reloadOp(n int) request.Op[[]P] {
	return func(ctx context.Context) ([]P, error) {
		var pages []P
		cursor, ok := q.first, true
		for ok && len(pages) < n {
			p, err := q.fetchPage(ctx, cursor)
			if err != nil {
				return nil, err
			}
			pages = append(pages, p)
			cursor, ok = q.next(p)
		}
		return pages, nil
	}
}

func (q *Infinite[P]) fetchPage(ctx context.Context, cursor int) (P, error) {
	start := time.Now()
	q.metrics.Record(Event{Timestamp: start, Key: q.key, Type: FetchStart})
	p, err := q.fetchFn(ctx, cursor)
	ev := Event{Timestamp: time.Now(), Key: q.key, Type: FetchComplete, Duration: time.Since(start)}
	if err != nil {
		ev.Type = FetchError
	}
	q.metrics.Record(ev)
	return p, err
}

func (q *Infinite[P]) observe(s request.State[[]P]) {
	switch s.Status() {
	case request.StatusSucceeded, request.StatusIdle:
		q.mu.Lock()
		q.stale = false
		q.mu.Unlock()
	}
}
