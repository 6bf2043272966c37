// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors for the API service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        prometheus.Gauge
	RateLimitedTotal    *prometheus.CounterVec

	// Commands
	CommandExecutionsTotal *prometheus.CounterVec
	DownloadsTotal         *prometheus.CounterVec

	// Recorder
	RecorderFailuresTotal *prometheus.CounterVec
	RetryEnqueuedTotal    *prometheus.CounterVec
	EventsPublishFailures prometheus.Counter

	// Jobs
	JobRunsTotal    *prometheus.CounterVec
	JobRunDuration  *prometheus.HistogramVec
	UptimeSeconds   prometheus.GaugeFunc
	ServerStartTime time.Time
}

// New creates collectors on a private registry, including Go and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	m := &Metrics{registry: reg, ServerStartTime: time.Now()}

	m.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termfolio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "termfolio_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"route"},
	)
	m.HTTPInFlight = f.NewGauge(prometheus.GaugeOpts{
		Name: "termfolio_http_requests_in_flight",
		Help: "Number of HTTP requests currently being served",
	})
	m.RateLimitedTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termfolio_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)
	m.CommandExecutionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termfolio_command_executions_total",
			Help: "Command executions by outcome",
		},
		[]string{"outcome"},
	)
	m.DownloadsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termfolio_downloads_total",
			Help: "File downloads by type and result",
		},
		[]string{"file_type", "status"},
	)
	m.RecorderFailuresTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termfolio_recorder_failures_total",
			Help: "Analytics writes that failed on the first attempt",
		},
		[]string{"kind"},
	)
	m.RetryEnqueuedTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termfolio_retry_enqueued_total",
			Help: "Analytics writes handed to the retry queue",
		},
		[]string{"kind"},
	)
	m.EventsPublishFailures = f.NewCounter(prometheus.CounterOpts{
		Name: "termfolio_events_publish_failures_total",
		Help: "Usage events that could not be published",
	})
	m.JobRunsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termfolio_job_runs_total",
			Help: "Scheduled job runs by result",
		},
		[]string{"job", "status"},
	)
	m.JobRunDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "termfolio_job_run_duration_seconds",
			Help:    "Duration of scheduled job runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
	m.UptimeSeconds = f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "termfolio_uptime_seconds",
		Help: "Seconds since the server started",
	}, func() float64 { return time.Since(m.ServerStartTime).Seconds() })
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordCommand(outcome string) {
	if m == nil {
		return
	}
	m.CommandExecutionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordDownload(fileType string, ok bool) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(fileType, statusLabel(ok)).Inc()
}

func (m *Metrics) RecordRecorderFailure(kind string, enqueued bool) {
	if m == nil {
		return
	}
	m.RecorderFailuresTotal.WithLabelValues(kind).Inc()
	if enqueued {
		m.RetryEnqueuedTotal.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RecordPublishFailure() {
	if m == nil {
		return
	}
	m.EventsPublishFailures.Inc()
}

func (m *Metrics) RecordRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) RecordJobRun(job string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.JobRunsTotal.WithLabelValues(job, statusLabel(ok)).Inc()
	m.JobRunDuration.WithLabelValues(job).Observe(d.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// WithHTTPMetrics records count, latency and in-flight requests per route.
func (m *Metrics) WithHTTPMetrics(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPInFlight.Inc()
		defer m.HTTPInFlight.Dec()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := RouteLabel(r.URL.Path)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RouteLabel collapses path parameters so label cardinality stays bounded.
func RouteLabel(path string) string {
	switch {
	case path == "/health" || path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/commands/download/"):
		return "/api/commands/download/:fileType"
	case strings.HasPrefix(path, "/api/commands/") && strings.HasSuffix(path, "/response"):
		return "/api/commands/:name/response"
	case strings.HasPrefix(path, "/api/users/") && strings.HasSuffix(path, "/profile"):
		return "/api/users/:sessionId/profile"
	case strings.HasPrefix(path, "/api/users/"):
		return "/api/users/:sessionId"
	case strings.HasPrefix(path, "/api/admin/commands/") && strings.HasSuffix(path, "/responses"):
		return "/api/admin/commands/:name/responses"
	case strings.HasPrefix(path, "/api/admin/commands/"):
		return "/api/admin/commands/:name"
	case strings.HasPrefix(path, "/api/admin/jobs/"):
		return "/api/admin/jobs/:name/run"
	case strings.HasPrefix(path, "/api/"):
		return path
	default:
		return "other"
	}
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
