package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expense_eagle_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "expense_eagle_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expense_eagle_receipt_submissions_total",
		Help: "Receipt submissions by result",
	}, []string{"result"})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expense_eagle_receipt_transitions_total",
		Help: "Review actions applied to receipts by action and result",
	}, []string{"action", "result"})

	scanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "expense_eagle_scan_duration_seconds",
		Help:    "Duration of receipt extraction attempts",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"result"})

	exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expense_eagle_report_exports_total",
		Help: "Report exports by format",
	}, []string{"format"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveSubmission counts a submission attempt
func ObserveSubmission(result string) {
	submissions.WithLabelValues(result).Inc()
}

// ObserveTransition counts an approve, reject or flag attempt
func ObserveTransition(action, result string) {
	transitions.WithLabelValues(action, result).Inc()
}

// ObserveScan records how long a scanner took
func ObserveScan(result string, duration time.Duration) {
	scanDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveExport counts a report export
func ObserveExport(format string) {
	exports.WithLabelValues(format).Inc()
}

// Result maps an error to a metric label
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
