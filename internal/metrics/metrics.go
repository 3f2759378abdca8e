package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors for fetching and rendering.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	AttemptsTotal   *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	OutcomesTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RendersTotal    *prometheus.CounterVec
}

// New constructs and registers all collectors on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amazonlight_fetch_attempts_total",
			Help: "Total product page requests issued, warm-up excluded.",
		},
		[]string{"source"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amazonlight_fetch_retries_total",
			Help: "Total retry attempts scheduled after a failed attempt.",
		},
		[]string{"source"},
	)
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amazonlight_fetch_outcomes_total",
			Help: "Final fetch outcomes by status and reason.",
		},
		[]string{"source", "status", "reason"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "amazonlight_fetch_request_duration_seconds",
			Help:    "Latency of single catalog requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	renders := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amazonlight_renders_total",
			Help: "Rendered directives by kind (widget or fallback).",
		},
		[]string{"kind"},
	)

	registry.MustRegister(attempts, retries, outcomes, duration, renders)

	return &Metrics{
		Registry:        registry,
		AttemptsTotal:   attempts,
		RetriesTotal:    retries,
		OutcomesTotal:   outcomes,
		RequestDuration: duration,
		RendersTotal:    renders,
	}
}

// RegisterThrottle exposes the current delay bounds of an adaptive throttle
// as gauges. delays is read on every scrape.
func (m *Metrics) RegisterThrottle(delays func() (time.Duration, time.Duration)) {
	if m == nil || delays == nil {
		return
	}

	bound := func(name string, pick func(lo, hi time.Duration) time.Duration) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "amazonlight_throttle_delay_seconds",
				Help:        "Current delay bounds of the adaptive request throttle.",
				ConstLabels: prometheus.Labels{"bound": name},
			},
			func() float64 {
				lo, hi := delays()
				return pick(lo, hi).Seconds()
			},
		)
	}

	m.Registry.MustRegister(
		bound("min", func(lo, _ time.Duration) time.Duration { return lo }),
		bound("max", func(_, hi time.Duration) time.Duration { return hi }),
	)
}

func (m *Metrics) IncAttempt(source string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) IncRetry(source string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) IncOutcome(source, status, reason string) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(source, status, reason).Inc()
}

func (m *Metrics) ObserveDuration(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) IncRender(kind string) {
	if m == nil {
		return
	}
	m.RendersTotal.WithLabelValues(kind).Inc()
}
