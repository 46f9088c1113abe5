// Package metrics exposes Prometheus collectors for the insights service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal                  *prometheus.CounterVec
	pipelineDurationSeconds    prometheus.Histogram
	activePipelines            prometheus.Gauge
	reviewsScrapedTotal        prometheus.Counter
	triggerFailuresTotal       prometheus.Counter
	reaperRequeuedTotal        prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_jobs_total",
				Help: "Total number of jobs reaching each terminal status.",
			},
			[]string{"status"},
		)

		pipelineDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "insights_pipeline_duration_seconds",
				Help:    "Histogram of end-to-end run-job pipeline durations.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		)

		activePipelines = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "insights_active_pipelines",
				Help: "Number of run-job pipelines currently executing.",
			},
		)

		reviewsScrapedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "insights_reviews_scraped_total",
				Help: "Total number of reviews extracted across all jobs.",
			},
		)

		triggerFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "insights_trigger_failures_total",
				Help: "Total fire-and-forget run-job triggers that failed to send.",
			},
		)

		reaperRequeuedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "insights_reaper_retriggered_total",
				Help: "Total stale queued jobs re-triggered by the reaper.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob records a job reaching the given terminal status.
func ObserveJob(status string, duration time.Duration) {
	jobsTotal.WithLabelValues(status).Inc()
	pipelineDurationSeconds.Observe(duration.Seconds())
}

// ObserveReviews adds to the extracted review counter.
func ObserveReviews(count int) {
	if count > 0 {
		reviewsScrapedTotal.Add(float64(count))
	}
}

// ObserveTriggerFailure counts a lost run-job trigger.
func ObserveTriggerFailure() {
	triggerFailuresTotal.Inc()
}

// ObserveReaperRetrigger counts a stale job the reaper re-dispatched.
func ObserveReaperRetrigger() {
	reaperRequeuedTotal.Inc()
}

// IncActivePipelines increments the active pipelines gauge.
func IncActivePipelines() {
	activePipelines.Inc()
}

// DecActivePipelines decrements the active pipelines gauge.
func DecActivePipelines() {
	activePipelines.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
