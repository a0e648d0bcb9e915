// Package metrics holds the gateway's Prometheus collectors. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nearai_cloud"

// Metrics holds all Prometheus metrics for the gateway
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Replica metrics
	ReplicaRequestsTotal *prometheus.CounterVec
	ReplicaDuration      *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec

	// Cache metrics
	CacheLookupsTotal *prometheus.CounterVec
	CacheEntries      *prometheus.GaugeVec

	// Signature queue metrics
	SignatureQueueLength prometheus.Gauge
	SignatureDeadLetters prometheus.Gauge
}

var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// New creates and registers all metrics on reg, or the default registerer
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "route"},
		),
		ReplicaRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "replica",
				Name:      "requests_total",
				Help:      "Total number of calls to private model replicas",
			},
			[]string{"operation", "outcome"},
		),
		ReplicaDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "replica",
				Name:      "duration_seconds",
				Help:      "Duration of calls to private model replicas in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"replica"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"replica"},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		CacheEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "entries",
				Help:      "Entries held by each in-process cache, expired or not",
			},
			[]string{"cache"},
		),
		SignatureQueueLength: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "signature_queue",
				Name:      "length",
				Help:      "Signatures waiting to be persisted",
			},
		),
		SignatureDeadLetters: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "signature_queue",
				Name:      "dead_letters",
				Help:      "Signatures that exhausted their retries",
			},
		),
	}
}

func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordReplicaCall records one replica call under its outcome label.
func (m *Metrics) RecordReplicaCall(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ReplicaRequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.ReplicaDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) SetCircuitBreakerState(replica string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(replica).Set(float64(state))
}

func (m *Metrics) RecordCircuitBreakerTrip(replica string) {
	if m == nil {
		return
	}
	m.CircuitBreakerTrips.WithLabelValues(replica).Inc()
}

// RecordCacheLookup counts a hit or miss on the named cache.
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) SetCacheEntries(cache string, entries int) {
	if m == nil {
		return
	}
	m.CacheEntries.WithLabelValues(cache).Set(float64(entries))
}

func (m *Metrics) SetSignatureQueue(length, deadLetters int) {
	if m == nil {
		return
	}
	m.SignatureQueueLength.Set(float64(length))
	m.SignatureDeadLetters.Set(float64(deadLetters))
}
