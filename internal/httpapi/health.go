package httpapi

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"
)

type checkResult struct {
	Status          string  `json:"status"`
	Message         *string `json:"message,omitempty"`
	ResponseTimeMs  *int64  `json:"response_time_ms,omitempty"`
}

type healthChecks struct {
	Database     checkResult `json:"database"`
	DiskSpace    checkResult `json:"disk_space"`
	Dependencies checkResult `json:"dependencies"`
}

type healthStatus struct {
	Status        string       `json:"status"`
	TimestampUnix int64        `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Checks        healthChecks `json:"checks"`
}

func strp(s string) *string { return &s }
func i64p(v int64) *int64   { return &v }

// handleHealth reports a minimal liveness-style summary. Ported from the
// original project's monitoring.rs HealthChecker::get_health_status, with
// the detailed per-check breakdown split out to /health/detailed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "ingestd"})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	checks := healthChecks{
		Database:     s.checkDatabase(r.Context()),
		DiskSpace:    s.checkDiskSpace(),
		Dependencies: s.checkDependencies(r.Context()),
	}

	overall := "healthy"
	switch {
	case checks.Database.Status == "critical":
		overall = "critical"
	case checks.Database.Status != "healthy" || checks.DiskSpace.Status != "healthy" || checks.Dependencies.Status != "healthy":
		overall = "degraded"
	}

	writeJSON(w, http.StatusOK, healthStatus{
		Status:        overall,
		TimestampUnix: time.Now().Unix(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Checks:        checks,
	})
}

func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	check := s.checkDatabase(r.Context())
	if check.Status != "healthy" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) checkDatabase(ctx context.Context) checkResult {
	start := time.Now()
	if _, err := s.store.Stats(ctx); err != nil {
		return checkResult{Status: "critical", Message: strp("database connection failed: " + err.Error())}
	}
	elapsed := time.Since(start).Milliseconds()
	return checkResult{Status: "healthy", Message: strp("database connection successful"), ResponseTimeMs: i64p(elapsed)}
}

func (s *Server) checkDiskSpace() checkResult {
	if _, err := os.Stat(s.area.WorkingDir()); err != nil {
		return checkResult{Status: "critical", Message: strp("working directory inaccessible: " + err.Error())}
	}
	return checkResult{Status: "healthy", Message: strp("working directory accessible"), ResponseTimeMs: i64p(0)}
}

func (s *Server) checkDependencies(ctx context.Context) checkResult {
	ytdlpOK := commandRuns(ctx, s.cfg.Download.Command, "--version")
	ffmpegOK := commandRuns(ctx, s.cfg.Processing.FFmpegCommand, "-version")
	if ytdlpOK && ffmpegOK {
		return checkResult{Status: "healthy", Message: strp("all dependencies available"), ResponseTimeMs: i64p(10)}
	}
	return checkResult{Status: "degraded", Message: strp("some dependencies may be missing")}
}

func commandRuns(ctx context.Context, name string, arg string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := exec.LookPath(name); err != nil {
		return false
	}
	return exec.CommandContext(ctx, name, arg).Run() == nil
}

func (s *Server) handleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, s.history.recent(limit))
}
