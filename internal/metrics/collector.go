// Package metrics exposes Prometheus counters and histograms for snippet
// runs, policy checks and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so several collectors can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runSteps        prometheus.Histogram
	artifactsTotal  prometheus.Counter
	validationTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector registers every metric under namespace, plus the Go
// runtime and process collectors.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Snippet runs by outcome kind (ok, SyntaxError, PolicyViolation, RuntimeError, Timeout, ResourceLimit)",
		}, []string{"kind"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time spent executing accepted snippets",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"backend"}),
		runSteps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_steps",
			Help:      "Interpreter steps charged per in-process run",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		}),
		artifactsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Charts produced by snippets",
		}),
		validationTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Policy checks by result and rule",
		}, []string{"result", "rule"}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordRun counts one gatekeeper run. kind is "ok" on success.
func (c *Collector) RecordRun(backend, kind string, d time.Duration, steps int64, artifacts int) {
	c.runsTotal.WithLabelValues(kind).Inc()
	if d > 0 {
		c.runDuration.WithLabelValues(backend).Observe(d.Seconds())
	}
	if steps > 0 {
		c.runSteps.Observe(float64(steps))
	}
	c.artifactsTotal.Add(float64(artifacts))
}

// RecordValidation counts one policy check. rule is empty when accepted.
func (c *Collector) RecordValidation(accepted bool, rule string) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	c.validationTotal.WithLabelValues(result, rule).Inc()
}

// RecordHTTPRequest counts one request against its route pattern.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
