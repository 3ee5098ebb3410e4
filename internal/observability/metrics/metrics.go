package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus instruments for the entitlement core.
type Metrics struct {
	webhookEvents     *prometheus.CounterVec
	limitChecks       *prometheus.CounterVec
	schedulerRuns     *prometheus.CounterVec
	schedulerErrors   *prometheus.CounterVec
	schedulerDuration *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

const (
	WebhookResultApplied  = "applied"
	WebhookResultIgnored  = "ignored"
	WebhookResultRejected = "rejected"
	WebhookResultFailed   = "failed"
)

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "myfreelance_webhook_events_total",
			Help: "Billing webhook events by provider, type and outcome.",
		}, []string{"provider", "event_type", "result"}),
		limitChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "myfreelance_limit_checks_total",
			Help: "Limit evaluations by resource kind and decision.",
		}, []string{"resource", "allowed"}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "myfreelance_scheduler_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		schedulerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "myfreelance_scheduler_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
		schedulerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "myfreelance_scheduler_job_duration_seconds",
			Help:    "Scheduler job wall time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "myfreelance_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "myfreelance_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.webhookEvents,
			m.limitChecks,
			m.schedulerRuns,
			m.schedulerErrors,
			m.schedulerDuration,
			m.httpRequests,
			m.httpDuration,
		)
	}

	return m
}

// NewDefault registers against the global prometheus registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

func (m *Metrics) IncWebhookEvent(provider, eventType, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(provider, eventType, result).Inc()
}

func (m *Metrics) IncLimitCheck(resource string, allowed bool) {
	if m == nil {
		return
	}
	m.limitChecks.WithLabelValues(resource, strconv.FormatBool(allowed)).Inc()
}

func (m *Metrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(job).Inc()
}

func (m *Metrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.schedulerErrors.WithLabelValues(job).Inc()
}

func (m *Metrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.schedulerDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
