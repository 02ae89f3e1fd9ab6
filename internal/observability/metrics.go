package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Poll outcomes recorded by the change detector.
const (
	PollUnchanged = "unchanged"
	PollChanged   = "changed"
	PollError     = "error"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	resultsPollTotal      *prometheus.CounterVec
	resultsRefreshTotal   prometheus.Counter
	gradingSavesTotal     *prometheus.CounterVec
	resultsExportRowTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the console engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_api_requests_total",
			Help: "Total number of exam API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exam_api_latency_seconds",
			Help:    "Latency distribution for exam API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_api_errors_total",
			Help: "Total number of error responses returned by exam endpoints.",
		}, []string{"method", "route", "status"})

		resultsPollTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "results_poll_total",
			Help: "Change-count polls issued by the results watcher.",
		}, []string{"outcome"})

		resultsRefreshTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "results_refresh_total",
			Help: "Full summary and results refetches applied to the view.",
		})

		gradingSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_saves_total",
			Help: "Score saves attempted from the editor.",
		}, []string{"outcome"})

		resultsExportRowTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "results_export_rows_total",
			Help: "Rows written to result exports.",
		}, []string{"format"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			resultsPollTotal,
			resultsRefreshTotal,
			gradingSavesTotal,
			resultsExportRowTotal,
		)
	})
}

// APIRequests exposes the counter for exam API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for exam API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for exam API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ResultsPolls exposes the change-detector poll counter.
func ResultsPolls() *prometheus.CounterVec {
	RegisterMetrics()
	return resultsPollTotal
}

// ResultsRefreshes exposes the refetch counter.
func ResultsRefreshes() prometheus.Counter {
	RegisterMetrics()
	return resultsRefreshTotal
}

// GradingSaves exposes the editor save counter.
func GradingSaves() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingSavesTotal
}

// ExportRows exposes the export row counter.
func ExportRows() *prometheus.CounterVec {
	RegisterMetrics()
	return resultsExportRowTotal
}
