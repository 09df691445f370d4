// Package metrics exposes Prometheus counters/gauges for the naming server
// and storage servers over a chi-routed HTTP endpoint. Metrics are entirely
// opt-in: until InitRegistry is called, every recording function is a
// no-op, so callers never need to branch on whether metrics are enabled.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
	current  metricsSet
)

type metricsSet struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeSessions  prometheus.Gauge
	registeredSS    prometheus.Gauge
	failedSS        prometheus.Gauge
	searchCacheHits *prometheus.CounterVec
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// InitRegistry creates the process-wide Prometheus registry and registers
// every metric. It is idempotent; calling it twice returns the existing
// registry.
func InitRegistry(namespace string) *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry != nil {
		return registry
	}

	registry = prometheus.NewRegistry()
	current = metricsSet{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total wire-protocol requests handled, by opcode and response code.",
			},
			[]string{"opcode", "error_code"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request handling latency in seconds, by opcode.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"opcode"},
		),
		activeSessions: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of currently authenticated client sessions.",
		}),
		registeredSS: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_storage_servers",
			Help:      "Number of storage servers currently marked active.",
		}),
		failedSS: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failed_storage_servers",
			Help:      "Number of storage servers currently marked failed.",
		}),
		searchCacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_cache_total",
				Help:      "Search cache lookups, partitioned by hit/miss.",
			},
			[]string{"result"},
		),
	}
	return registry
}

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format, or nil if metrics were never initialized.
func Handler() http.Handler {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		return nil
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Mount attaches the metrics handler to r at path, a no-op if metrics are
// disabled.
func Mount(r chi.Router, path string) {
	h := Handler()
	if h == nil {
		return
	}
	r.Handle(path, h)
}

// ObserveRequest records one completed request.
func ObserveRequest(opcode, errorCode string, duration time.Duration) {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		return
	}
	current.requestsTotal.WithLabelValues(opcode, errorCode).Inc()
	current.requestDuration.WithLabelValues(opcode).Observe(duration.Seconds())
}

// SetActiveSessions sets the active-session gauge.
func SetActiveSessions(n int) {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		return
	}
	current.activeSessions.Set(float64(n))
}

// SetSSCounts sets the registered/failed storage-server gauges.
func SetSSCounts(active, failed int) {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		return
	}
	current.registeredSS.Set(float64(active))
	current.failedSS.Set(float64(failed))
}

// ObserveSearchCache records a search-cache hit or miss.
func ObserveSearchCache(hit bool) {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	current.searchCacheHits.WithLabelValues(result).Inc()
}
