package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the Snagtrack API.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics.
	AuthFailuresTotal  *prometheus.CounterVec
	AuthSuccessesTotal *prometheus.CounterVec

	// Plan enforcement metrics.
	PlanRejectionsTotal *prometheus.CounterVec

	// Rate limiting metrics.
	RateLimitRejectionsTotal prometheus.Counter

	// Presence (last-active batching) metrics.
	PresenceFlushesTotal *prometheus.CounterVec
	PresenceUsersTotal   prometheus.Counter

	// Object storage metrics.
	StorageOpsTotal    *prometheus.CounterVec
	StorageOpDuration  *prometheus.HistogramVec

	// Billing webhook metrics.
	WebhookEventsTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snagtrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snagtrack_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		HTTPResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snagtrack_http_response_size_bytes",
			Help:    "HTTP response size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path_pattern"}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snagtrack_auth_failures_total",
			Help: "Total number of authentication failures.",
		}, []string{"reason"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snagtrack_auth_successes_total",
			Help: "Total number of successful authentications.",
		}, []string{"kind"}),

		PlanRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snagtrack_plan_rejections_total",
			Help: "Total number of operations rejected by plan limits.",
		}, []string{"gate", "plan"}),

		RateLimitRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snagtrack_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}),

		PresenceFlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snagtrack_presence_flushes_total",
			Help: "Total number of presence batch flushes.",
		}, []string{"status"}),

		PresenceUsersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snagtrack_presence_users_total",
			Help: "Total number of last-active timestamps written.",
		}),

		StorageOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snagtrack_storage_ops_total",
			Help: "Total number of object storage operations.",
		}, []string{"op", "status"}),

		StorageOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snagtrack_storage_op_duration_seconds",
			Help:    "Object storage operation duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		WebhookEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snagtrack_webhook_events_total",
			Help: "Total number of billing webhook events received.",
		}, []string{"type", "status"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snagtrack_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.PlanRejectionsTotal,
		m.RateLimitRejectionsTotal,
		m.PresenceFlushesTotal,
		m.PresenceUsersTotal,
		m.StorageOpsTotal,
		m.StorageOpDuration,
		m.WebhookEventsTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, pathPattern string, statusCode int, seconds float64, responseBytes int) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, fmt.Sprintf("%d", statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(seconds)
	m.HTTPResponseSize.WithLabelValues(method, pathPattern).Observe(float64(responseBytes))
}

// IncAuthFailure increments the auth failure counter for the given reason.
func (m *Metrics) IncAuthFailure(reason string) {
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// IncAuthSuccess increments the auth success counter for the given kind.
func (m *Metrics) IncAuthSuccess(kind string) {
	m.AuthSuccessesTotal.WithLabelValues(kind).Inc()
}

// IncPlanRejection increments the plan rejection counter for a gate and plan.
func (m *Metrics) IncPlanRejection(gate, plan string) {
	m.PlanRejectionsTotal.WithLabelValues(gate, plan).Inc()
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection() {
	m.RateLimitRejectionsTotal.Inc()
}

// ObservePresenceFlush records a presence batch flush.
func (m *Metrics) ObservePresenceFlush(users int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.PresenceFlushesTotal.WithLabelValues(status).Inc()
	if err == nil {
		m.PresenceUsersTotal.Add(float64(users))
	}
}

// ObserveStorageOp records one object storage operation.
func (m *Metrics) ObserveStorageOp(op string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StorageOpsTotal.WithLabelValues(op, status).Inc()
	m.StorageOpDuration.WithLabelValues(op).Observe(seconds)
}

// IncWebhookEvent records one received billing webhook event.
func (m *Metrics) IncWebhookEvent(eventType, status string) {
	m.WebhookEventsTotal.WithLabelValues(eventType, status).Inc()
}
