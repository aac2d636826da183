// Package metrics holds the Prometheus collectors exported on /metrics.
// A nil *Collector is valid and records nothing, which keeps tests and
// optional wiring free of nil checks.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WriteKind string

const (
	WriteFull  WriteKind = "full"
	WriteMerge WriteKind = "merge"
)

type Collector struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	documentWrites *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// NewCollector builds a collector on its own registry so repeated
// construction in tests never hits duplicate registration.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		documentWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_writes_total",
				Help:      "Board document writes by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "board_cache_lookups_total",
				Help:      "Board list cache lookups by result",
			},
			[]string{"result"},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Signed-in users with a loaded board store",
			},
		),
	}

	c.registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.documentWrites,
		c.cacheLookups,
		c.activeSessions,
	)
	return c
}

func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) DocumentWrite(kind WriteKind, ok bool) {
	if c == nil {
		return
	}
	c.documentWrites.WithLabelValues(string(kind), outcome(ok)).Inc()
}

func (c *Collector) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.activeSessions.Inc()
}

func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.activeSessions.Dec()
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
