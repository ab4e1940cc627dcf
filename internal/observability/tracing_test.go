package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

func TestTraceHooks_SpanPerToken(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	h := NewTraceHooks(tp)

	c := request.New[string](context.Background(), request.WithHooks(h), request.WithLabel("users"))
	tok1, _ := c.Start()
	tok2, _ := c.Start()
	c.Succeed(tok2, "B")
	c.Succeed(tok1, "A")

	ended := sr.Ended()
	require.Len(t, ended, 2)

	superseded, succeeded := ended[0], ended[1]
	assert.Equal(t, "users", superseded.Name())
	require.Len(t, superseded.Events(), 1)
	assert.Equal(t, "dropped", superseded.Events()[0].Name)

	assert.Equal(t, codes.Ok, succeeded.Status().Code)
	assert.Contains(t, succeeded.Attributes(), attribute.Int64("reqstate.token", 2))
}

func TestTraceHooks_FailureStatus(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	h := NewTraceHooks(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	c := request.New[int](context.Background(), request.WithHooks(h))
	tok, _ := c.Start()
	c.Fail(tok, request.ErrTimeout)

	require.Len(t, sr.Ended(), 1)
	span := sr.Ended()[0]
	assert.Equal(t, "request", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, request.ErrTimeout.Error(), span.Status().Description)
}

func TestTraceHooks_CloseEndsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	h := NewTraceHooks(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	c := request.New[int](context.Background(), request.WithHooks(h))
	c.Start()
	assert.Empty(t, sr.Ended())
	c.Close()
	assert.Len(t, sr.Ended(), 1)
}

func TestNewTracerProvider_NoEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	tp, shutdown, err := NewTracerProvider(context.Background(), "reqstate")
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, shutdown(context.Background()))
}

