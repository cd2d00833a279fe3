package server

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	tracelens "github.com/tracelens/tracelens-go"
)

// PromMetrics implements tracelens.Metrics on a prometheus registry, so
// the SDK's internal counters show up on /metrics next to the server's
// own request metrics. SDK metric names use dots; they are rewritten to
// underscores and registered lazily on first use.
type PromMetrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// NewPromMetrics builds a metrics sink backed by reg. A nil reg gets a
// fresh registry.
func NewPromMetrics(reg *prometheus.Registry) *PromMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &PromMetrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *PromMetrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records one served HTTP request.
func (m *PromMetrics) ObserveRequest(method, path, status string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// IncrementCounter implements tracelens.Metrics.
func (m *PromMetrics) IncrementCounter(name string, value int64) {
	m.counter(name).Add(float64(value))
}

// RecordDuration implements tracelens.Metrics.
func (m *PromMetrics) RecordDuration(name string, d time.Duration) {
	m.histogram(name).Observe(d.Seconds())
}

// SetGauge implements tracelens.Metrics.
func (m *PromMetrics) SetGauge(name string, value float64) {
	m.gauge(name).Set(value)
}

func (m *PromMetrics) counter(name string) prometheus.Counter {
	key := promName(name) + "_total"
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[key]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: key})
	m.registry.MustRegister(c)
	m.counters[key] = c
	return c
}

func (m *PromMetrics) gauge(name string) prometheus.Gauge {
	key := promName(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gauges[key]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: key})
	m.registry.MustRegister(g)
	m.gauges[key] = g
	return g
}

func (m *PromMetrics) histogram(name string) prometheus.Histogram {
	key := promName(name) + "_seconds"
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.histograms[key]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    key,
		Buckets: prometheus.DefBuckets,
	})
	m.registry.MustRegister(h)
	m.histograms[key] = h
	return h
}

func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

var _ tracelens.Metrics = (*PromMetrics)(nil)
