// Package obs hoists the structured logging and metrics plumbing shared by
// rangeio and query, the way the teacher hoists internal/hash: a single
// small package both consumers import rather than duplicating setup.
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// NopLogger returns a zap logger that discards everything, the default for
// components that don't receive a logger option.
func NopLogger() *zap.Logger {
	return zap.NewNop()
}

// Metrics bundles the prometheus collectors the core updates. A process
// embedding the core may pass its own *prometheus.Registry via NewMetrics;
// passing nil registers against the default global registry.
type Metrics struct {
	BytesFetched   *prometheus.CounterVec
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	RetryAttempts  prometheus.Counter
	QueryDuration  prometheus.Histogram
	QueryCondition *prometheus.CounterVec
}

// NewMetrics registers and returns a Metrics bundle. If reg is nil, the
// collectors are registered against prometheus's default registry via
// promauto.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		BytesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flatcitybuf",
			Subsystem: "attrindex",
			Name:      "bytes_fetched_total",
			Help:      "Total bytes fetched by a RangeClient, labeled by transport.",
		}, []string{"transport"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flatcitybuf",
			Subsystem: "attrindex",
			Name:      "rangeio_cache_hit_total",
			Help:      "HTTP range client buffered-window cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flatcitybuf",
			Subsystem: "attrindex",
			Name:      "rangeio_cache_miss_total",
			Help:      "HTTP range client buffered-window cache misses.",
		}),
		RetryAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flatcitybuf",
			Subsystem: "attrindex",
			Name:      "rangeio_retry_total",
			Help:      "RangeClient retry attempts after a transient error.",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flatcitybuf",
			Subsystem: "attrindex",
			Name:      "query_execute_duration_seconds",
			Help:      "Engine.Execute wall time.",
			Buckets:   prometheus.DefBuckets,
		}),
		QueryCondition: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flatcitybuf",
			Subsystem: "attrindex",
			Name:      "query_condition_total",
			Help:      "Conditions executed, labeled by operator.",
		}, []string{"op"}),
	}
}

// A nil *Metrics stands for "no Metrics bundle supplied"; every helper
// below tolerates it, so components call via the helpers in this file
// instead of touching fields directly when m may be nil.
func observeBytes(m *Metrics, transport string, n int) {
	if m == nil {
		return
	}
	m.BytesFetched.WithLabelValues(transport).Add(float64(n))
}

// ObserveBytesFetched records n bytes fetched over the given transport
// ("file" or "http"). Safe to call with a nil Metrics.
func ObserveBytesFetched(m *Metrics, transport string, n int) {
	observeBytes(m, transport, n)
}

// ObserveCacheHit records a buffered-window cache hit. Safe to call with a
// nil Metrics.
func ObserveCacheHit(m *Metrics) {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// ObserveCacheMiss records a buffered-window cache miss. Safe to call with
// a nil Metrics.
func ObserveCacheMiss(m *Metrics) {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// ObserveRetry records a retry attempt. Safe to call with a nil Metrics.
func ObserveRetry(m *Metrics) {
	if m == nil {
		return
	}
	m.RetryAttempts.Inc()
}

// ObserveQueryDuration records one Engine.Execute call's wall time. Safe to
// call with a nil Metrics.
func ObserveQueryDuration(m *Metrics, d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(d.Seconds())
}

// ObserveQueryCondition records one executed condition, labeled by its
// operator. Safe to call with a nil Metrics.
func ObserveQueryCondition(m *Metrics, op string) {
	if m == nil {
		return
	}
	m.QueryCondition.WithLabelValues(op).Inc()
}
