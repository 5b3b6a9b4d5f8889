// Package metrics defines the Prometheus collectors of the notification
// service and the inbox client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var latencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

// Metrics holds the notification service's collectors
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        prometheus.Gauge

	NotificationsCreated *prometheus.CounterVec
	NotificationsRead    prometheus.Counter
	ReadRequests         *prometheus.CounterVec

	CacheHits    *prometheus.CounterVec
	CacheMisses  *prometheus.CounterVec
	BreakerState *prometheus.GaugeVec

	KafkaMessagesProduced *prometheus.CounterVec
	KafkaMessagesConsumed *prometheus.CounterVec

	AuthFailures *prometheus.CounterVec
	RateLimited  prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers the service metrics on reg. A nil reg
// uses a fresh registry so tests never collide on the global one.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	m := &Metrics{
		HTTPRequestsTotal: counter("http_requests_total", "HTTP requests by route template and status", "method", "route", "status"),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route template",
			Buckets:   latencyBuckets,
		}, []string{"method", "route"}),
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Requests currently being served",
		}),

		NotificationsCreated: counter("notifications_created_total", "Notifications stored by type and source", "type", "source"),
		NotificationsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_marked_read_total",
			Help:      "Message ids newly marked as read",
		}),
		ReadRequests: counter("read_requests_total", "Mark-read requests by outcome", "result"),

		CacheHits:   counter("cache_hits_total", "Cache lookups that found a value", "cache"),
		CacheMisses: counter("cache_misses_total", "Cache lookups that fell through to the store", "cache"),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		}, []string{"breaker"}),

		KafkaMessagesProduced: counter("kafka_messages_produced_total", "Events published by topic", "topic"),
		KafkaMessagesConsumed: counter("kafka_messages_consumed_total", "Broadcast messages consumed by topic and result", "topic", "result"),

		AuthFailures: counter("auth_failures_total", "Requests rejected by authentication or authorization", "reason"),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPInFlight,
		m.NotificationsCreated, m.NotificationsRead, m.ReadRequests,
		m.CacheHits, m.CacheMisses, m.BreakerState,
		m.KafkaMessagesProduced, m.KafkaMessagesConsumed,
		m.AuthFailures, m.RateLimited,
	)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler serves the registry the metrics were registered on
func (m *Metrics) Handler() http.Handler {
	if m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// HTTPMetricsMiddleware labels requests by route template so user ids never
// become label values.
func (m *Metrics) HTTPMetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPInFlight.Inc()
			defer m.HTTPInFlight.Dec()

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routeTemplate(r)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
