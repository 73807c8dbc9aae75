package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveCheck(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCheck("indexer", "health", false, 120*time.Millisecond, 0)
	m.ObserveCheck("indexer", "health", true, 2*time.Second, 1)
	m.ObserveCheck("indexer", "health", true, 2*time.Second, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.checks.WithLabelValues("indexer", "health", ResultOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.checks.WithLabelValues("indexer", "health", ResultError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.consecutiveErrors.WithLabelValues("indexer", "health")))
}

func TestMetrics_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSkip("indexer", "health")
	m.ObserveNotification("sent")
	m.ObserveCycle(3 * time.Second)

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP pulsewatch_checks_skipped_total Checks skipped because the endpoint was probed within its interval.
# TYPE pulsewatch_checks_skipped_total counter
pulsewatch_checks_skipped_total{endpoint="health",site="indexer"} 1
# HELP pulsewatch_notifications_total Alert notifications by outcome (sent, debounced, failed).
# TYPE pulsewatch_notifications_total counter
pulsewatch_notifications_total{outcome="sent"} 1
`), "pulsewatch_checks_skipped_total", "pulsewatch_notifications_total")
	require.NoError(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveCheck("a", "b", true, time.Second, 1)
		m.ObserveSkip("a", "b")
		m.ObserveNotification("sent")
		m.ObserveCycle(time.Second)
	})
}
