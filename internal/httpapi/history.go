package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/yourflock/ingestd/internal/metrics"
)

// metricPoint is a single periodic snapshot, ported from the original
// project's services/metrics.rs MetricPoint/MetricsRegistry. Prometheus
// (internal/metrics) is the primary metrics pipeline; this bounded
// in-memory ring buffer exists only to serve /metrics/history the way
// the original exposed recent snapshots without a time-series database.
type metricPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	QueueDepth int       `json:"queue_depth"`
	ActiveJobs int       `json:"active_jobs"`
}

type historySampler struct {
	mu      sync.Mutex
	points  []metricPoint
	maxSize int
}

func newHistorySampler() *historySampler {
	return &historySampler{maxSize: 1000}
}

func (h *historySampler) record(p metricPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.points = append(h.points, p)
	if len(h.points) > h.maxSize {
		h.points = append([]metricPoint{}, h.points[100:]...)
	}
}

// recent returns the last limit points (all of them if limit <= 0).
func (h *historySampler) recent(limit int) []metricPoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit >= len(h.points) {
		out := make([]metricPoint, len(h.points))
		copy(out, h.points)
		return out
	}
	out := make([]metricPoint, limit)
	copy(out, h.points[len(h.points)-limit:])
	return out
}

// startSampling records a snapshot every interval until ctx is cancelled,
// and on the same tick pushes the queue/pool business gauges into
// Prometheus, sampled here rather than on every Acquire/Release so the
// hot path never pays for metrics bookkeeping.
func (s *Server) startSampling(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.sampleOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Server) sampleOnce() {
	stats := s.queue.Stats()
	s.history.record(metricPoint{
		Timestamp:  time.Now(),
		QueueDepth: stats.QueuedJobs,
		ActiveJobs: stats.ActiveJobs,
	})

	metrics.QueueDepth.Set(float64(stats.QueuedJobs))
	metrics.ActiveJobs.Set(float64(stats.ActiveJobs))
	if s.permits != nil {
		metrics.DownloadPermitsAvailable.Set(float64(s.permits.Download.Available()))
		metrics.TranscodePermitsAvailable.Set(float64(s.permits.Transcode.Available()))
	}
}
