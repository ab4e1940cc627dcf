// Package observability provides metrics collection and tracing for request
// containers.
package observability

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// SessionMetrics aggregates metrics for an entire CLI session.
type SessionMetrics struct {
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	Started      int            `json:"started"`
	Succeeded    int            `json:"succeeded"`
	Failed       int            `json:"failed"`
	TimedOut     int            `json:"timed_out,omitempty"`
	Dropped      map[string]int `json:"dropped,omitempty"` // by drop reason
	TotalLatency time.Duration  `json:"total_latency_ns"`  // of settled requests
}

// Settled returns the number of requests that reached a final state.
func (m SessionMetrics) Settled() int { return m.Succeeded + m.Failed }

// FormatParts renders the non-empty counters as short phrases for a
// one-line stats footer, e.g. "3 requests", "1 failed", "2 dropped".
func (m SessionMetrics) FormatParts() []string {
	var parts []string
	if m.Started > 0 {
		parts = append(parts, plural(m.Started, "request", "requests"))
	}
	if m.Succeeded > 0 {
		parts = append(parts, fmt.Sprintf("%d ok", m.Succeeded))
	}
	if m.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", m.Failed))
	}
	if m.TimedOut > 0 {
		parts = append(parts, fmt.Sprintf("%d timed out", m.TimedOut))
	}
	dropped := 0
	for _, n := range m.Dropped {
		dropped += n
	}
	if dropped > 0 {
		parts = append(parts, fmt.Sprintf("%d dropped", dropped))
	}
	if d := m.EndTime.Sub(m.StartTime); d > 0 && len(parts) > 0 {
		parts = append(parts, d.Round(time.Millisecond).String())
	}
	return parts
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

// SessionCollector accumulates request outcomes across a CLI session.
// It is safe for concurrent use and keeps counters rather than events.
type SessionCollector struct {
	mu sync.Mutex

	startTime    time.Time
	started      int
	succeeded    int
	failed       int
	timedOut     int
	dropped      map[string]int
	totalLatency time.Duration
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{
		startTime: time.Now(),
		dropped:   make(map[string]int),
	}
}

// RecordStart counts a started request.
func (c *SessionCollector) RecordStart(request.Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started++
}

// RecordSettle counts a request that succeeded or failed.
func (c *SessionCollector) RecordSettle(_ request.Info, status request.Status, err error, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalLatency += d
	if status == request.StatusSucceeded {
		c.succeeded++
		return
	}
	c.failed++
	if isTimeout(err) {
		c.timedOut++
	}
}

// RecordDrop counts a request that ended without a transition.
func (c *SessionCollector) RecordDrop(_ request.Info, reason request.DropReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped[reason.String()]++
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SessionMetrics{
		StartTime:    c.startTime,
		EndTime:      time.Now(),
		Started:      c.started,
		Succeeded:    c.succeeded,
		Failed:       c.failed,
		TimedOut:     c.timedOut,
		Dropped:      maps.Clone(c.dropped),
		TotalLatency: c.totalLatency,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.started = 0
	c.succeeded = 0
	c.failed = 0
	c.timedOut = 0
	c.dropped = make(map[string]int)
	c.totalLatency = 0
}
