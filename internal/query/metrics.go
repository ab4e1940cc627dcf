package query

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// EventType classifies fetch events.
type EventType int

const (
	FetchStart EventType = iota
	FetchComplete
	FetchError
)

// Event records a single fetch event.
type Event struct {
	Timestamp time.Time
	Key       string
	Type      EventType
	Duration  time.Duration
}

// Stats holds aggregate statistics for a single query key.
type Stats struct {
	FetchCount int
	ErrorCount int
	TotalTime  time.Duration
	LastFetch  time.Time
}

// Summary is a point-in-time view of fetch health across all queries.
type Summary struct {
	ActiveQueries int
	P50Latency    time.Duration
	ErrorRate     float64
	Apdex         float64
}

// Status is a live report from a registered query.
type Status struct {
	Key          string
	Freshness    Freshness
	FetchedAt    time.Time
	PollInterval time.Duration
	MissCount    int
	FetchCount   int
	ErrorCount   int
	AvgLatency   time.Duration
}

const (
	maxEvents = 100
	maxViews  = 20
)

// Metrics collects fetch telemetry. A nil *Metrics discards everything.
type Metrics struct {
	mu        sync.RWMutex
	events    []Event // ring buffer, last maxEvents
	stats     map[string]*Stats
	views     []float64 // quality of the last maxViews renders
	reporters map[string]func() Status
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		stats:     make(map[string]*Stats),
		reporters: make(map[string]func() Status),
	}
}

// Record adds an event and updates the per-key stats.
func (m *Metrics) Record(e Event) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) >= maxEvents {
		m.events = m.events[1:]
	}
	m.events = append(m.events, e)

	if e.Type == FetchStart {
		return
	}
	s, ok := m.stats[e.Key]
	if !ok {
		s = &Stats{}
		m.stats[e.Key] = s
	}
	s.FetchCount++
	s.TotalTime += e.Duration
	s.LastFetch = e.Timestamp
	if e.Type == FetchError {
		s.ErrorCount++
	}
}

// RecordView logs the freshness quality of data shown to a user.
func (m *Metrics) RecordView(f Freshness, hasData bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.views) >= maxViews {
		m.views = m.views[1:]
	}
	m.views = append(m.views, f.Quality(hasData))
}

// Events returns a copy of the recorded events, oldest first.
func (m *Metrics) Events() []Event {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events)
}

// StatsFor returns the aggregate stats for key.
func (m *Metrics) StatsFor(key string) (Stats, bool) {
	if m == nil {
		return Stats{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[key]
	if !ok {
		return Stats{}, false
	}
	return *s, true
}

// Summary returns aggregate metrics over the most recent events.
func (m *Metrics) Summary() Summary {
	if m == nil {
		return Summary{Apdex: 1.0}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := Summary{ActiveQueries: len(m.stats)}

	var latencies []time.Duration
	var failures, total int
	for i := len(m.events) - 1; i >= 0 && len(latencies) < 50; i-- {
		switch e := m.events[i]; e.Type {
		case FetchComplete:
			latencies = append(latencies, e.Duration)
			total++
		case FetchError:
			failures++
			total++
		default:
		}
	}
	if len(latencies) > 0 {
		slices.Sort(latencies)
		summary.P50Latency = latencies[len(latencies)/2]
	}
	if total > 0 {
		summary.ErrorRate = float64(failures) / float64(total)
	}

	summary.Apdex = 1.0
	if len(m.views) > 0 {
		var sum float64
		for _, q := range m.views {
			sum += q
		}
		summary.Apdex = sum / float64(len(m.views))
	}
	return summary
}

// Register adds a live status reporter for key.
func (m *Metrics) Register(key string, reporter func() Status) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters[key] = reporter
}

// Unregister removes key's reporter.
func (m *Metrics) Unregister(key string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reporters, key)
}

// StatusList returns live status from every registered query that has
// fetched at least once, sorted by key. Reporters run without the metrics
// lock held, since they take their query's lock.
func (m *Metrics) StatusList() []Status {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	reporters := make([]func() Status, 0, len(m.reporters))
	for _, r := range m.reporters {
		reporters = append(reporters, r)
	}
	m.mu.RUnlock()

	statuses := make([]Status, 0, len(reporters))
	for _, r := range reporters {
		st := r()
		if st.FetchedAt.IsZero() {
			continue
		}
		if s, ok := m.StatsFor(st.Key); ok {
			st.FetchCount = s.FetchCount
			st.ErrorCount = s.ErrorCount
			if s.FetchCount > 0 {
				st.AvgLatency = s.TotalTime / time.Duration(s.FetchCount)
			}
		}
		statuses = append(statuses, st)
	}
	slices.SortFunc(statuses, func(a, b Status) int { return strings.Compare(a.Key, b.Key) })
	return statuses
}
