// Package metrics provides Prometheus instrumentation for ingestd, ported
// from the teacher's internal/metrics/metrics.go: package-level promauto
// vars plus an HTTP middleware that records request counts and latency.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ── HTTP ──────────────────────────────────────────────────────────────────

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingestd_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "path", "status"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "ingestd_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "path"})

// ── Business metrics ──────────────────────────────────────────────────────

var JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingestd_jobs_total",
	Help: "Jobs reaching a terminal or notable status.",
}, []string{"status"})

var QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ingestd_queue_depth",
	Help: "Number of jobs currently queued (not yet dispatched).",
})

var ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ingestd_active_jobs",
	Help: "Number of jobs currently running end-to-end.",
})

var DownloadPermitsAvailable = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ingestd_download_permits_available",
	Help: "Free download permits in the pool.",
})

var TranscodePermitsAvailable = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ingestd_transcode_permits_available",
	Help: "Free transcode permits in the pool.",
})

var JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "ingestd_job_duration_seconds",
	Help:    "End-to-end job processing time, download start to completion.",
	Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
})

var RetentionDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingestd_retention_deleted_total",
	Help: "Jobs removed by the retention loop.",
})

// Handler returns the Prometheus scrape handler for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency for every route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		dur := time.Since(start).Seconds()
		path := sanitizePath(r.URL.Path)
		status := strconv.Itoa(rw.status)
		HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		HTTPDuration.WithLabelValues(r.Method, path).Observe(dur)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// sanitizePath collapses job IDs out of the path so cardinality stays low.
func sanitizePath(path string) string {
	segments := splitNonEmpty(path, '/')
	for i, seg := range segments {
		if i == 0 {
			continue
		}
		if looksLikeID(seg) {
			segments[i] = ":id"
		}
	}
	return "/" + joinSlash(segments)
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func joinSlash(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}

func looksLikeID(seg string) bool {
	if len(seg) < 8 {
		return false
	}
	hasDigit := false
	for _, c := range seg {
		if c >= '0' && c <= '9' {
			hasDigit = true
			break
		}
	}
	return hasDigit
}
