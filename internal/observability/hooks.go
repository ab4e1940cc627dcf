package observability

import (
	"context"
	"sync"
	"time"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// Verify CLIHooks implements request.Hooks at compile time.
var _ request.Hooks = (*CLIHooks)(nil)

// CLIHooks implements request.Hooks for CLI observability.
// It supports configurable verbosity levels:
//   - 0: Silent (collect stats only, no output)
//   - 1: Outcomes (log starts and settles)
//   - 2: Outcomes + drops (also log superseded, stale and cancelled requests)
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
}

// NewCLIHooks creates a new CLIHooks with the given verbosity level.
// If collector is nil, metrics are not collected.
// If writer is nil, no trace output is produced.
func NewCLIHooks(level int, collector *SessionCollector, writer *TraceWriter) *CLIHooks {
	return &CLIHooks{
		level:     level,
		collector: collector,
		writer:    writer,
	}
}

// SetLevel changes the verbosity level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Level returns the current verbosity level.
func (h *CLIHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *CLIHooks) snapshot() (int, *SessionCollector, *TraceWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level, h.collector, h.writer
}

// OnStart is called when a container starts a request.
func (h *CLIHooks) OnStart(ctx context.Context, info request.Info) context.Context {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordStart(info)
	}
	if level >= 1 && writer != nil {
		writer.WriteStart(info)
	}
	return ctx
}

// OnSettle is called when a request succeeded or failed.
func (h *CLIHooks) OnSettle(_ context.Context, info request.Info, status request.Status, err error, d time.Duration) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordSettle(info, status, err, d)
	}
	if level >= 1 && writer != nil {
		writer.WriteSettle(info, status, err, d)
	}
}

// OnDrop is called when a request ended without a transition.
func (h *CLIHooks) OnDrop(_ context.Context, info request.Info, reason request.DropReason, _ time.Duration) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordDrop(info, reason)
	}
	if level >= 2 && writer != nil {
		writer.WriteDrop(info, reason)
	}
}
