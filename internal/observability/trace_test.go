package observability

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

var traceLine = regexp.MustCompile(`^\[\d+\.\d{3}s\] `)

func TestTraceWriter_Lines(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)
	info := request.Info{ID: "0123456789abcdef", Label: "users", Token: 3}

	w.WriteStart(info)
	w.WriteSettle(info, request.StatusSucceeded, nil, 250*time.Millisecond)
	w.WriteSettle(info, request.StatusFailed, errors.New("boom"), 0)
	w.WriteDrop(info, request.DropSuperseded)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 4)
	for _, l := range lines {
		assert.Regexp(t, traceLine, string(l))
	}
	out := buf.String()
	assert.Contains(t, out, "Start users#3")
	assert.Contains(t, out, "Succeeded users#3 (250ms)")
	assert.Contains(t, out, "Failed users#3: boom")
	assert.Contains(t, out, "  Dropped users#3 (superseded)")
}

func TestTraceWriter_UnlabelledUsesShortID(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)
	w.WriteStart(request.Info{ID: "0123456789abcdef", Token: 1})
	assert.Contains(t, buf.String(), "Start 01234567#1")
}

func TestTraceWriter_Reset(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)
	w.Reset()
	w.WriteStart(request.Info{Label: "x", Token: 1})
	assert.Contains(t, buf.String(), "[0.0")
}
