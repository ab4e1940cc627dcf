package observability

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/frontend-bootcamp/reqstate/internal/request"
	"github.com/frontend-bootcamp/reqstate/internal/version"
)

const tracerName = "github.com/frontend-bootcamp/reqstate/internal/request"

var _ request.Hooks = (*TraceHooks)(nil)

// TraceHooks opens one span per request token. The span lives in the
// request's context, so it ends wherever the request ends: on settle, or
// on a drop that ends an in-flight request.
type TraceHooks struct {
	tracer trace.Tracer
}

// NewTraceHooks creates span hooks using tp.
func NewTraceHooks(tp trace.TracerProvider) *TraceHooks {
	return &TraceHooks{tracer: tp.Tracer(tracerName)}
}

func (h *TraceHooks) OnStart(ctx context.Context, info request.Info) context.Context {
	name := info.Label
	if name == "" {
		name = "request"
	}
	ctx, _ = h.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("reqstate.container.id", info.ID),
		attribute.String("reqstate.container.label", info.Label),
		attribute.Int64("reqstate.token", int64(info.Token)), //nolint:gosec // tokens stay far below MaxInt64
	))
	return ctx
}

func (h *TraceHooks) OnSettle(ctx context.Context, _ request.Info, status request.Status, err error, d time.Duration) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("reqstate.status", status.String()),
		attribute.Int64("reqstate.duration_ms", d.Milliseconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (h *TraceHooks) OnDrop(ctx context.Context, _ request.Info, reason request.DropReason, _ time.Duration) {
	if !reason.EndsRequest() {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.AddEvent("dropped", trace.WithAttributes(attribute.String("reqstate.drop_reason", reason.String())))
	span.End()
}

// NewTracerProvider returns an OTLP/HTTP exporting provider when
// OTEL_EXPORTER_OTLP_ENDPOINT is set, and a no-op provider otherwise.
// The returned shutdown flushes pending spans.
func NewTracerProvider(ctx context.Context, service string) (trace.TracerProvider, func(context.Context) error, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", service),
			attribute.String("service.version", version.Version),
		)),
	)
	return tp, tp.Shutdown, nil
}
