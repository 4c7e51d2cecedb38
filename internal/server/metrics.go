package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values for run metrics.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	Runs         *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	HTTPRequests *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the collectors and registers them, with the Go and process collectors, on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryoflow_pipeline_runs_total",
				Help: "Total number of pipeline runs and dry-runs",
			},
			[]string{"mode", "trigger", "outcome"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryoflow_pipeline_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryoflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Runs,
		m.RunDuration,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// observeRun records one pipeline invocation.
func (m *Metrics) observeRun(mode, trigger string, start time.Time, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	m.Runs.WithLabelValues(mode, trigger, outcome).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeRequest(method, route string, status int) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
