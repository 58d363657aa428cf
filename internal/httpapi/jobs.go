package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/yourflock/ingestd/internal/apperror"
	"github.com/yourflock/ingestd/internal/job"
)

// handleCancelJob ports the original's cancel_job: terminal jobs are
// rejected with a status-specific message, otherwise the queue is asked
// to cancel (removing a queued job or aborting a running one), the row
// moves to Cancelled with a fixed error message, and files are cleaned up.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.validator.ValidateJobID(id); err != nil {
		writeErr(w, err)
		return
	}

	j, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if j == nil {
		writeErr(w, apperror.Newf(apperror.NotFound, "job not found: %s", id))
		return
	}

	switch j.Status {
	case job.Completed:
		writeErr(w, apperror.New(apperror.BadRequest, "cannot cancel completed job"))
		return
	case job.Cancelled:
		writeErr(w, apperror.New(apperror.BadRequest, "job already cancelled"))
		return
	case job.Failed:
		writeErr(w, apperror.New(apperror.BadRequest, "cannot cancel failed job"))
		return
	}

	cancelled := s.queue.CancelJob(id)
	if !cancelled {
		slog.Default().Warn("job not found in queue or active jobs, may have already completed", "job_id", id)
		writeErr(w, apperror.New(apperror.BadRequest, "job cannot be cancelled (may have already completed)"))
		return
	}

	j.SetStatus(job.Cancelled)
	j.SetErrorMessage("Job cancelled by user")
	if err := s.store.Update(r.Context(), j); err != nil {
		slog.Default().Warn("failed to update cancelled job status", "job_id", id, "error", err)
	}
	if err := s.area.CleanupJob(r.Context(), id); err != nil {
		slog.Default().Warn("failed to cleanup files for cancelled job", "job_id", id, "error", err)
	}

	slog.Default().Info("cancelled job", "job_id", id)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Job cancelled successfully",
		"job_id":  id,
	})
}

type paginationInfo struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalPages  int   `json:"total_pages"`
	TotalJobs   int64 `json:"total_jobs"`
}

type jobListResponse struct {
	Jobs       []jobResponse  `json:"jobs"`
	Pagination paginationInfo `json:"pagination"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 0 {
		page = 0
	}
	pageSize := 20
	if ps, err := strconv.Atoi(q.Get("page_size")); err == nil && ps > 0 {
		pageSize = ps
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var statusFilter *job.Status
	if raw := q.Get("status"); raw != "" {
		st, err := job.ParseStatus(capitalizeStatus(raw))
		if err != nil {
			writeErr(w, apperror.Newf(apperror.BadRequest, "invalid status filter: %s", raw))
			return
		}
		statusFilter = &st
	}

	jobs, total, err := s.store.ListPaginated(r.Context(), page, pageSize, statusFilter)
	if err != nil {
		writeErr(w, err)
		return
	}

	responses := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		responses = append(responses, toJobResponse(j))
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	writeJSON(w, http.StatusOK, jobListResponse{
		Jobs: responses,
		Pagination: paginationInfo{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalPages:  totalPages,
			TotalJobs:   total,
		},
	})
}

// capitalizeStatus maps the lowercase query-param spelling spec.md's
// GET /jobs status filter uses to job.Status's exact casing.
func capitalizeStatus(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
