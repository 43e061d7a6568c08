package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "award_ledger"

// Metrics holds the ledger's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	classifications *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	persists        *prometheus.CounterVec
	rebuilds        *prometheus.CounterVec
	snapshots       *prometheus.CounterVec
	records         prometheus.Gauge

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classify calls by transition kind (set, replace, toggle_off) or error.",
		}, []string{"kind"}),
		persists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_writes_total",
			Help:      "Backend writes attempted, by backend.",
		}, []string{"backend"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Backend writes that failed and left the mirror stale, by backend.",
		}, []string{"backend"}),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuilds_total",
			Help:      "Snapshot rebuilds by outcome.",
		}, []string{"outcome"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshot exports and imports by direction and encoding.",
		}, []string{"direction", "encoding"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Records held in the in-memory index.",
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "inflight_requests",
			Help:      "HTTP requests currently being served.",
		}),
	}
	reg.MustRegister(
		m.classifications,
		m.persists,
		m.persistFailures,
		m.rebuilds,
		m.snapshots,
		m.records,
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveClassification(kind string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObservePersist(backend string, err error) {
	if m == nil {
		return
	}
	m.persists.WithLabelValues(backend).Inc()
	if err != nil {
		m.persistFailures.WithLabelValues(backend).Inc()
	}
}

func (m *Metrics) ObserveRebuild(outcome string) {
	if m == nil {
		return
	}
	m.rebuilds.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSnapshot(direction string, compressed bool) {
	if m == nil {
		return
	}
	enc := "json"
	if compressed {
		enc = "gzip"
	}
	m.snapshots.WithLabelValues(direction, enc).Inc()
}

func (m *Metrics) SetRecords(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}
