// Package httpapi implements ingestd's HTTP boundary: job submission,
// status, video delivery, job management, health, and metrics. Routing
// follows the teacher's stdlib 1.22+ method-pattern ServeMux idiom (seen
// in services/vod/cmd/vod/main.go), generalized into a Server type that
// owns the store, queue, and pipeline dependencies the handlers need.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourflock/ingestd/internal/config"
	"github.com/yourflock/ingestd/internal/fsarea"
	"github.com/yourflock/ingestd/internal/metrics"
	"github.com/yourflock/ingestd/internal/pool"
	"github.com/yourflock/ingestd/internal/queue"
	"github.com/yourflock/ingestd/internal/security"
	"github.com/yourflock/ingestd/internal/store"
)

// Server owns the dependencies every handler needs.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	queue     *queue.JobQueue
	area      *fsarea.FileArea
	validator *security.Validator
	permits   *pool.PermitPools
	startedAt time.Time
	history   *historySampler
}

func NewServer(cfg *config.Config, st *store.Store, q *queue.JobQueue, area *fsarea.FileArea, validator *security.Validator, permits *pool.PermitPools) *Server {
	return &Server{cfg: cfg, store: st, queue: q, area: area, validator: validator, permits: permits, startedAt: time.Now(), history: newHistorySampler()}
}

// StartBackground runs the metrics-history sampler until ctx is cancelled.
// Call it in its own goroutine from main.
func (s *Server) StartBackground(ctx context.Context) {
	s.startSampling(ctx, 30*time.Second)
}

// Routes builds the full handler chain: routing, then security headers,
// request tracking, and Prometheus instrumentation wrapped around it.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /process", requireAdmin(s.cfg.Server.AuthPassword, s.cfg.Server.AdminJWTSecret, s.handleStartJob))
	mux.HandleFunc("GET /status/{id}", s.handleJobStatus)
	mux.HandleFunc("GET /video/{id}", s.handleGetVideo)
	mux.HandleFunc("GET /stream/{id}", s.handleStreamVideo)
	mux.HandleFunc("DELETE /jobs/{id}", requireAdmin(s.cfg.Server.AuthPassword, s.cfg.Server.AdminJWTSecret, s.handleCancelJob))
	mux.HandleFunc("GET /jobs", requireAdmin(s.cfg.Server.AuthPassword, s.cfg.Server.AdminJWTSecret, s.handleListJobs))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleHealthDetailed)
	mux.HandleFunc("GET /health/ready", s.handleHealthReady)
	mux.HandleFunc("GET /health/live", s.handleHealthLive)

	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /metrics/prometheus", metrics.Handler())
	mux.HandleFunc("GET /metrics/history", s.handleMetricsHistory)

	var handler http.Handler = mux
	handler = metrics.Middleware(handler)
	handler = requestTracking(slog.Default(), handler)
	handler = securityHeaders(handler)
	return handler
}
