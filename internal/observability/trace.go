package observability

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// TraceWriter outputs human-readable trace lines, timestamped relative to
// session start.
type TraceWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
}

// NewTraceWriter creates a new TraceWriter that writes to stderr.
func NewTraceWriter() *TraceWriter {
	return NewTraceWriterTo(os.Stderr)
}

// NewTraceWriterTo creates a new TraceWriter that writes to the given writer.
func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{
		writer:    w,
		startTime: time.Now(),
	}
}

// WriteStart writes a request start trace line.
// Format: [0.234s] Start users#3
func (t *TraceWriter) WriteStart(info request.Info) {
	t.writef("Start %s", requestName(info))
}

// WriteSettle writes a request completion trace line.
// Format: [0.734s] Succeeded users#3 (500ms) or [0.734s] Failed users#3: boom
func (t *TraceWriter) WriteSettle(info request.Info, status request.Status, err error, d time.Duration) {
	if status == request.StatusFailed {
		t.writef("Failed %s: %v", requestName(info), err)
		return
	}
	t.writef("Succeeded %s (%dms)", requestName(info), d.Milliseconds())
}

// WriteDrop writes a dropped-request trace line.
// Format: [0.412s]   Dropped users#2 (superseded)
func (t *TraceWriter) WriteDrop(info request.Info, reason request.DropReason) {
	t.writef("  Dropped %s (%s)", requestName(info), reason)
}

// Reset resets the start time for relative timestamps.
func (t *TraceWriter) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now()
}

func (t *TraceWriter) writef(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := time.Since(t.startTime).Seconds()
	fmt.Fprintf(t.writer, "[%.3fs] %s\n", elapsed, fmt.Sprintf(format, args...))
}

// requestName renders "label#token", falling back to a short container id.
func requestName(info request.Info) string {
	name := info.Label
	if name == "" {
		name = info.ID
		if len(name) > 8 {
			name = name[:8]
		}
	}
	return fmt.Sprintf("%s#%d", name, info.Token)
}

func isTimeout(err error) bool {
	return errors.Is(err, request.ErrTimeout)
}
