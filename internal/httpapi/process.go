package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/yourflock/ingestd/internal/apperror"
	"github.com/yourflock/ingestd/internal/job"
)

// formatProcessingTime renders seconds the way the original's
// Duration debug-format did ("{d:?}" -> "1.5s"-ish), simplified to
// whole seconds since that's all the store persists.
func formatProcessingTime(seconds int64) string {
	return fmt.Sprintf("%ds", seconds)
}

// jobResponse is exactly spec.md §6's JobResponse shape, ported from the
// original project's api/routes.rs::JobResponse/From<&Job>.
type jobResponse struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	URL            string  `json:"url"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	ErrorMessage   *string `json:"error_message,omitempty"`
	ProcessingTime *string `json:"processing_time,omitempty"`
}

func toJobResponse(j *job.Job) jobResponse {
	resp := jobResponse{
		ID:        j.ID,
		Status:    string(j.Status),
		URL:       j.URL,
		CreatedAt: j.CreatedAt.Format(rfc3339),
		UpdatedAt: j.UpdatedAt.Format(rfc3339),
	}
	if j.ErrorMessage != nil {
		resp.ErrorMessage = j.ErrorMessage
	}
	if j.ProcessingTimeSeconds != nil {
		s := formatProcessingTime(*j.ProcessingTimeSeconds)
		resp.ProcessingTime = &s
	}
	return resp
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"

type startJobRequest struct {
	URL      string `json:"url"`
	Priority string `json:"priority"`
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperror.New(apperror.BadRequest, "invalid JSON body"))
		return
	}

	if err := s.validator.ValidateInput(req.URL, "url", s.cfg.Security.MaxURLLength); err != nil {
		writeErr(w, err)
		return
	}
	if _, err := s.validator.ValidateURL(req.URL); err != nil {
		writeErr(w, err)
		return
	}

	if existing, err := s.store.FindActiveByURL(r.Context(), req.URL); err != nil {
		writeErr(w, err)
		return
	} else if existing != nil {
		slog.Default().Info("found existing job for URL, returning it", "job_id", existing.ID)
		writeJSON(w, http.StatusOK, toJobResponse(existing))
		return
	}

	j := job.New(uuid.NewString(), req.URL)
	if err := s.store.Create(r.Context(), j); err != nil {
		writeErr(w, err)
		return
	}

	priority := job.ParsePriority(req.Priority)
	if err := s.queue.Enqueue(j.ID, priority); err != nil {
		writeErr(w, apperror.Newf(apperror.Internal, "failed to queue job: %v", err))
		return
	}

	slog.Default().Info("enqueued job", "job_id", j.ID, "url", j.URL)
	writeJSON(w, http.StatusOK, toJobResponse(j))
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, toJobResponse(j))
}
