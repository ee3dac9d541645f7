package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pitchside"

// Collector holds the service metrics on its own registry. A nil *Collector
// is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	WebhookEvents       *prometheus.CounterVec
	CheckoutConfirms    *prometheus.CounterVec
	AccessChecks        *prometheus.CounterVec
	GrantsCreated       *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	JobRuns             *prometheus.CounterVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c := &Collector{registry: reg}

	c.WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "billing_webhook_events_total",
		Help:      "Billing webhook events by type and outcome",
	}, []string{"event_type", "outcome"})

	c.CheckoutConfirms = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_confirmations_total",
		Help:      "Checkout confirmations by result",
	}, []string{"result"})

	c.AccessChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_checks_total",
		Help:      "Access guard decisions",
	}, []string{"decision"})

	c.GrantsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entitlement_grants_created_total",
		Help:      "Entitlement grants written, by source",
	}, []string{"source"})

	c.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status_code"})

	c.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	c.JobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cron_job_runs_total",
		Help:      "Scheduled job runs by job and outcome",
	}, []string{"job", "outcome"})

	reg.MustRegister(
		c.WebhookEvents,
		c.CheckoutConfirms,
		c.AccessChecks,
		c.GrantsCreated,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
		c.JobRuns,
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) WebhookEvent(eventType, outcome string) {
	if c != nil {
		c.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
	}
}

func (c *Collector) CheckoutConfirm(result string) {
	if c != nil {
		c.CheckoutConfirms.WithLabelValues(result).Inc()
	}
}

func (c *Collector) AccessCheck(allowed bool) {
	if c == nil {
		return
	}
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	c.AccessChecks.WithLabelValues(decision).Inc()
}

func (c *Collector) GrantCreated(source string) {
	if c != nil {
		c.GrantsCreated.WithLabelValues(source).Inc()
	}
}

func (c *Collector) JobRun(job, outcome string) {
	if c != nil {
		c.JobRuns.WithLabelValues(job, outcome).Inc()
	}
}

// ObserveRequest records one finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
