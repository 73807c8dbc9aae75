// Package metrics exposes Prometheus instrumentation for the pulse engine.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pulsewatch"

// Result labels of pulsewatch_checks_total.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	checks            *prometheus.CounterVec
	checkDuration     *prometheus.HistogramVec
	skipped           *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	cycleDuration     prometheus.Histogram
	consecutiveErrors *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Completed endpoint checks by result.",
		}, []string{"site", "endpoint", "result"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Wall-clock duration of endpoint checks.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"site", "endpoint"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_skipped_total",
			Help:      "Checks skipped because the endpoint was probed within its interval.",
		}, []string{"site", "endpoint"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Alert notifications by outcome (sent, debounced, failed, invalid).",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full pulse over all sites.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		consecutiveErrors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_errors",
			Help:      "Current error streak per endpoint.",
		}, []string{"site", "endpoint"}),
	}

	reg.MustRegister(
		m.checks,
		m.checkDuration,
		m.skipped,
		m.notifications,
		m.cycleDuration,
		m.consecutiveErrors,
	)
	return m
}

// ObserveCheck records a completed check.
func (m *Metrics) ObserveCheck(site, endpoint string, failed bool, duration time.Duration, consecutiveErrors int) {
	if m == nil {
		return
	}
	result := ResultOK
	if failed {
		result = ResultError
	}
	m.checks.WithLabelValues(site, endpoint, result).Inc()
	m.checkDuration.WithLabelValues(site, endpoint).Observe(duration.Seconds())
	m.consecutiveErrors.WithLabelValues(site, endpoint).Set(float64(consecutiveErrors))
}

// ObserveSkip records a check skipped by the cadence gate.
func (m *Metrics) ObserveSkip(site, endpoint string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(site, endpoint).Inc()
}

// ObserveNotification records a notification outcome.
func (m *Metrics) ObserveNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// ObserveCycle records the duration of a full cycle.
func (m *Metrics) ObserveCycle(duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(duration.Seconds())
}
