package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service. A nil *Metrics is
// valid and records nothing, which keeps components usable in tests.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AnalysesTotal      *prometheus.CounterVec
	AnalysisCacheHits  prometheus.Counter
	AnalysisDuration   prometheus.Histogram
	ElementScansTotal  *prometheus.CounterVec
	TrackedURLs        prometheus.Gauge
	ClicksTotal        *prometheus.CounterVec
	HostnameBlocks     *prometheus.CounterVec
	AccountBlockEvents *prometheus.CounterVec
}

// New registers every collector with reg. Passing prometheus.DefaultRegisterer
// exposes them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		AnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "page_analyses_total",
				Help: "Full page analyses by resulting page status.",
			},
			[]string{"status"},
		),
		AnalysisCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "page_analysis_cache_hits_total",
				Help: "Full page analyses answered from the per-URL cache.",
			},
		),
		AnalysisDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "page_analysis_duration_seconds",
				Help:    "Duration of uncached full page analyses.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
		ElementScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "element_scans_total",
				Help: "Element tracker scans by trigger.",
			},
			[]string{"trigger"}, // initial, timer, load, url_change, forced
		),
		TrackedURLs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "element_tracker_urls",
				Help: "Number of URLs currently held in the element cache.",
			},
		),
		ClicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "element_clicks_total",
				Help: "Text-resolved clicks by result and strategy.",
			},
			[]string{"result", "strategy"},
		),
		HostnameBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostname_blocks_total",
				Help: "Hostname blocks written by ban protection.",
			},
			[]string{"type"},
		),
		AccountBlockEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_block_events_total",
				Help: "Account block events recorded.",
			},
			[]string{"type"},
		),
	}
}

func (m *Metrics) ObserveAnalysis(status string, seconds float64) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(status).Inc()
	m.AnalysisDuration.Observe(seconds)
}

func (m *Metrics) IncAnalysisCacheHit() {
	if m == nil {
		return
	}
	m.AnalysisCacheHits.Inc()
}

func (m *Metrics) IncElementScan(trigger string) {
	if m == nil {
		return
	}
	m.ElementScansTotal.WithLabelValues(trigger).Inc()
}

func (m *Metrics) SetTrackedURLs(n int) {
	if m == nil {
		return
	}
	m.TrackedURLs.Set(float64(n))
}

func (m *Metrics) IncClick(result, strategy string) {
	if m == nil {
		return
	}
	m.ClicksTotal.WithLabelValues(result, strategy).Inc()
}

func (m *Metrics) IncHostnameBlock(blockType string) {
	if m == nil {
		return
	}
	m.HostnameBlocks.WithLabelValues(blockType).Inc()
}

func (m *Metrics) IncAccountBlockEvent(blockType string) {
	if m == nil {
		return
	}
	m.AccountBlockEvents.WithLabelValues(blockType).Inc()
}

func (m *Metrics) ObserveHTTP(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}
