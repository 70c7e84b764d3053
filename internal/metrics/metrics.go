// Package metrics exposes Prometheus metrics for the indicator and the
// webhook boundary.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alertbeacon/alertbeacon/internal/alerter"
	"github.com/alertbeacon/alertbeacon/internal/indicator"
	"github.com/alertbeacon/alertbeacon/internal/pattern"
	"github.com/alertbeacon/alertbeacon/internal/types"
)

const namespace = "alertbeacon"

// IndicatorSource reports indicator state.
type IndicatorSource interface {
	State() pattern.State
	Info() indicator.Info
}

// TrackerSource reports alert tracker state.
type TrackerSource interface {
	Summary() alerter.Summary
	Runs() map[types.Severity]uint64
}

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	webhooks *prometheus.CounterVec
}

// New registers all collectors reading from ind and tracker.
func New(ind IndicatorSource, tracker TrackerSource) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Webhook requests by platform and result",
		}, []string{"platform", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.webhooks,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indicator_level",
			Help:      "Current indicator output (1: on, 0: off)",
		}, func() float64 { return boolFloat(ind.State().Level) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indicator_available",
			Help:      "Whether the configured indicator hardware is available (0: degraded)",
		}, func() float64 { return boolFloat(ind.Info().Available) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicator_transitions_total",
			Help:      "Indicator level changes",
		}, func() float64 { return float64(ind.State().Transitions) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicator_hardware_errors_total",
			Help:      "Failed indicator writes",
		}, func() float64 { return float64(ind.State().HardwareErrors) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_groups_active",
			Help:      "Alert groups currently firing",
		}, func() float64 { return float64(tracker.Summary().Active) }),
	)

	for _, sev := range types.Severities {
		sev := sev
		m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "pattern_runs_total",
			Help:        "Blink patterns started by severity",
			ConstLabels: prometheus.Labels{"severity": string(sev)},
		}, func() float64 { return float64(tracker.Runs()[sev]) }))
	}

	return m
}

// ObserveWebhook counts one webhook request.
func (m *Metrics) ObserveWebhook(platform, result string) {
	m.webhooks.WithLabelValues(platform, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
