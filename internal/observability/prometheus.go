package observability

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

var _ request.Hooks = (*PromHooks)(nil)

// PromHooks records request activity as Prometheus metrics.
type PromHooks struct {
	started  *prometheus.CounterVec
	settled  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight *prometheus.GaugeVec
}

// NewPromHooks creates the request metrics and registers them with reg.
func NewPromHooks(reg prometheus.Registerer) (*PromHooks, error) {
	h := &PromHooks{
		started: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "reqstate_requests_started_total", Help: "Requests started, by container label."},
			[]string{"label"},
		),
		settled: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "reqstate_requests_settled_total", Help: "Requests that reached a final state, by label and status."},
			[]string{"label", "status"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "reqstate_requests_dropped_total", Help: "Requests or results dropped without a transition, by label and reason."},
			[]string{"label", "reason"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "reqstate_request_duration_seconds", Help: "Time from start to settle.", Buckets: prometheus.DefBuckets},
			[]string{"label", "status"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "reqstate_requests_in_flight", Help: "Requests started and not yet ended."},
			[]string{"label"},
		),
	}
	for _, c := range []prometheus.Collector{h.started, h.settled, h.dropped, h.duration, h.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register request metrics: %w", err)
		}
	}
	return h, nil
}

func (h *PromHooks) OnStart(ctx context.Context, info request.Info) context.Context {
	h.started.WithLabelValues(info.Label).Inc()
	h.inflight.WithLabelValues(info.Label).Inc()
	return ctx
}

func (h *PromHooks) OnSettle(_ context.Context, info request.Info, status request.Status, _ error, d time.Duration) {
	h.settled.WithLabelValues(info.Label, status.String()).Inc()
	h.duration.WithLabelValues(info.Label, status.String()).Observe(d.Seconds())
	h.inflight.WithLabelValues(info.Label).Dec()
}

func (h *PromHooks) OnDrop(_ context.Context, info request.Info, reason request.DropReason, _ time.Duration) {
	h.dropped.WithLabelValues(info.Label, reason.String()).Inc()
	if reason.EndsRequest() {
		h.inflight.WithLabelValues(info.Label).Dec()
	}
}

// WriteText writes every metric family gathered from g in the Prometheus
// text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
