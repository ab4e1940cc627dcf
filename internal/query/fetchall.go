package query

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Refresher is a query that can fetch and wait for the outcome.
type Refresher interface {
	Key() string
	Refresh(ctx context.Context) error
}

// Result is the outcome of one refresh in FetchAll.
type Result struct {
	Key string
	Err error
}

// FetchAll refreshes every query concurrently, at most limit at a time
// (limit <= 0 means no limit). One failure does not stop the others.
// Results are returned in argument order.
func FetchAll(ctx context.Context, limit int, queries ...Refresher) []Result {
	results := make([]Result, len(queries))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, q := range queries {
		g.Go(func() error {
			results[i] = Result{Key: q.Key(), Err: q.Refresh(ctx)}
			return nil
		})
	}
	_ = g.Wait() // refresh errors are collected in results
	return results
}

// FirstErr returns the first failure in results, or nil.
func FirstErr(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
