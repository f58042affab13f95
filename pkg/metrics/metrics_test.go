package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAnalysis("ok", 0.1)
		m.IncAnalysisCacheHit()
		m.IncElementScan("timer")
		m.SetTrackedURLs(3)
		m.IncClick("success", "id")
		m.IncHostnameBlock("ACCOUNT_LOCKED")
		m.IncAccountBlockEvent("ACCOUNT_LOCKED")
		m.ObserveHTTP("GET", "/api/health", "200", 0.01)
	})
}

func TestCountersRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncHostnameBlock("ACCOUNT_LOCKED")
	m.IncHostnameBlock("ACCOUNT_LOCKED")
	m.SetTrackedURLs(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HostnameBlocks.WithLabelValues("ACCOUNT_LOCKED")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.TrackedURLs))
}
