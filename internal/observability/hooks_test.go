package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// drive runs a superseded request and a failed one through a container.
func drive(h request.Hooks) {
	c := request.New[int](context.Background(), request.WithHooks(h), request.WithLabel("todos"))
	tok1, _ := c.Start()
	tok2, _ := c.Start()
	c.Fail(tok2, errors.New("boom"))
	c.Succeed(tok1, 1)
}

func TestCLIHooks_SetLevel(t *testing.T) {
	h := NewCLIHooks(0, nil, nil)

	assert.Equal(t, 0, h.Level())

	h.SetLevel(2)
	assert.Equal(t, 2, h.Level())
}

func TestCLIHooks_Level0_Silent(t *testing.T) {
	var buf bytes.Buffer
	collector := NewSessionCollector()
	drive(NewCLIHooks(0, collector, NewTraceWriterTo(&buf)))

	assert.Equal(t, 0, buf.Len(), "expected no output at level 0")

	s := collector.Summary()
	assert.Equal(t, 2, s.Started)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, map[string]int{"superseded": 1, "stale": 1}, s.Dropped)
}

func TestCLIHooks_Level1_OutcomesOnly(t *testing.T) {
	var buf bytes.Buffer
	drive(NewCLIHooks(1, nil, NewTraceWriterTo(&buf)))

	out := buf.String()
	assert.Contains(t, out, "Start todos#1")
	assert.Contains(t, out, "Start todos#2")
	assert.Contains(t, out, "Failed todos#2: boom")
	assert.NotContains(t, out, "Dropped")
}

func TestCLIHooks_Level2_IncludesDrops(t *testing.T) {
	var buf bytes.Buffer
	drive(NewCLIHooks(2, nil, NewTraceWriterTo(&buf)))

	out := buf.String()
	assert.Contains(t, out, "Dropped todos#1 (superseded)")
	assert.Contains(t, out, "Dropped todos#1 (stale)")
}

func TestCLIHooks_NilWriterAndCollector(t *testing.T) {
	assert.NotPanics(t, func() { drive(NewCLIHooks(2, nil, nil)) })
}
