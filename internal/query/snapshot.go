package query

import (
	"time"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// Freshness describes how current a query's data is.
type Freshness int

const (
	FreshnessEmpty   Freshness = iota // never fetched, or reset
	FreshnessFresh                    // succeeded within FreshTTL
	FreshnessStale                    // past FreshTTL or invalidated
	FreshnessLoading                  // fetch in flight (may carry previous data)
	FreshnessError                    // last fetch failed (may carry previous data)
)

func (f Freshness) String() string {
	switch f {
	case FreshnessEmpty:
		return "empty"
	case FreshnessFresh:
		return "fresh"
	case FreshnessStale:
		return "stale"
	case FreshnessLoading:
		return "loading"
	case FreshnessError:
		return "error"
	default:
		return "unknown"
	}
}

// Quality scores freshness for the metrics summary: fresh data satisfies,
// stale or in-flight data is tolerated, nothing to show frustrates.
func (f Freshness) Quality(hasData bool) float64 {
	switch {
	case f == FreshnessFresh:
		return 1.0
	case hasData:
		return 0.5
	default:
		return 0.0
	}
}

// Snapshot is a point-in-time view of a query: the request state plus the
// cache bookkeeping around it.
type Snapshot[T any] struct {
	Key       string
	State     request.State[T]
	Freshness Freshness
	FetchedAt time.Time
	Version   uint64

	placeholder    T
	hasPlaceholder bool
}

// Data returns the value a consumer may show: the current data, the last
// good value while loading or failed, or the placeholder when nothing has
// been fetched yet.
func (s Snapshot[T]) Data() (T, bool) {
	if v, ok := request.PreviousOf(s.State); ok {
		return v, true
	}
	if s.hasPlaceholder {
		return s.placeholder, true
	}
	var zero T
	return zero, false
}

// IsPlaceholder reports whether Data is serving the placeholder.
func (s Snapshot[T]) IsPlaceholder() bool {
	_, has := request.PreviousOf(s.State)
	return !has && s.hasPlaceholder
}

// Fresh reports whether the snapshot holds fresh data.
func (s Snapshot[T]) Fresh() bool { return s.Freshness == FreshnessFresh }

// Usable reports whether there is anything to show.
func (s Snapshot[T]) Usable() bool {
	_, ok := s.Data()
	return ok
}

// Loading reports whether a fetch is in flight.
func (s Snapshot[T]) Loading() bool { return s.Freshness == FreshnessLoading }
