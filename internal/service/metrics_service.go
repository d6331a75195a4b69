package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	aiLatency       prometheus.Observer
	reviewTotal     *prometheus.CounterVec
	indexedDocs     prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	aiLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ai_completion_duration_seconds",
		Help:    "Latency of AI completion calls",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	})

	reviewTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_reviews_total",
		Help: "Total document review outcomes",
	}, []string{"outcome"})

	indexedDocs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "search_index_documents",
		Help: "Number of documents in the search index",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, aiLatency, reviewTotal, indexedDocs, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		aiLatency:       aiLatency,
		reviewTotal:     reviewTotal,
		indexedDocs:     indexedDocs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite is kept for symmetry with reads; write latency is
// not currently exported.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {}

// ObserveAICompletion records the latency of a completion call.
func (m *MetricsService) ObserveAICompletion(duration time.Duration) {
	if m == nil {
		return
	}
	m.aiLatency.Observe(duration.Seconds())
}

// RecordReview counts a review outcome ("approved" or "rejected").
func (m *MetricsService) RecordReview(outcome string) {
	if m == nil {
		return
	}
	m.reviewTotal.WithLabelValues(outcome).Inc()
}

// SetIndexedDocuments updates the search index size gauge.
func (m *MetricsService) SetIndexedDocuments(n int) {
	if m == nil {
		return
	}
	m.indexedDocs.Set(float64(n))
}
