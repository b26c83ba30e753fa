// Package metrics exposes Prometheus collectors for range fetches, burst
// resolution and the document cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "s1bursts"

// Metrics holds the collectors. It implements fetch.Observer.
type Metrics struct {
	requests       *prometheus.CounterVec
	requestBytes   prometheus.Counter
	requestSeconds prometheus.Histogram
	retries        prometheus.Counter
	bursts         *prometheus.CounterVec
	products       *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpSeconds    *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Ranged requests by outcome.",
		}, []string{"outcome"}),
		requestBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "bytes_total",
			Help:      "Bytes received by ranged requests.",
		}),
		requestSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "request_duration_seconds",
			Help:      "Ranged request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Retried ranged requests.",
		}),
		bursts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "bursts_total",
			Help:      "Bursts processed by outcome.",
		}, []string{"outcome"}),
		products: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "products_total",
			Help:      "Products processed by outcome.",
		}, []string{"outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route"}),
	}
}

// ObserveRequest records one ranged request.
func (m *Metrics) ObserveRequest(outcome string, bytes int64, elapsed time.Duration) {
	m.requests.WithLabelValues(outcome).Inc()
	m.requestBytes.Add(float64(bytes))
	m.requestSeconds.Observe(elapsed.Seconds())
}

// ObserveRetry records a retried request.
func (m *Metrics) ObserveRetry() {
	m.retries.Inc()
}

// ObserveBursts records resolved and failed bursts.
func (m *Metrics) ObserveBursts(resolved, failed int) {
	m.bursts.WithLabelValues("resolved").Add(float64(resolved))
	m.bursts.WithLabelValues("failed").Add(float64(failed))
}

// ObserveProduct records a processed product.
func (m *Metrics) ObserveProduct(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.products.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records an API request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CacheStats is satisfied by cache.MemoryStore.
type CacheStats interface {
	Stats() (hits, misses int64)
	Len() int
}

// RegisterCache exposes the counters of a document cache on reg.
func RegisterCache(reg prometheus.Registerer, c CacheStats) {
	f := promauto.With(reg)
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Document cache hits.",
	}, func() float64 {
		hits, _ := c.Stats()
		return float64(hits)
	})
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Document cache misses.",
	}, func() float64 {
		_, misses := c.Stats()
		return float64(misses)
	})
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Documents in the cache.",
	}, func() float64 {
		return float64(c.Len())
	})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
