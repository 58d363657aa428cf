package httpapi

import (
	"fmt"
	"net/http"
	"os"

	"github.com/yourflock/ingestd/internal/apperror"
	"github.com/yourflock/ingestd/internal/job"
)

// handleGetVideo serves the processed file as an attachment download.
// Ported from the original's get_processed_video (actix-files NamedFile
// with ETag/Last-Modified/Range support, which http.ServeContent gives
// for free over a plain os.File).
func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	s.serveVideo(w, r, true)
}

// handleStreamVideo serves the processed file inline for playback.
// Ported from the original's stream_processed_video.
func (s *Server) handleStreamVideo(w http.ResponseWriter, r *http.Request) {
	s.serveVideo(w, r, false)
}

func (s *Server) serveVideo(w http.ResponseWriter, r *http.Request, attachment bool) {
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
	if j.Status != job.Completed {
		writeErr(w, apperror.New(apperror.BadRequest, "job not completed yet"))
		return
	}
	if j.ProcessedPath == nil {
		writeErr(w, apperror.New(apperror.NotFound, "no processed file found"))
		return
	}

	f, err := os.Open(*j.ProcessedPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeErr(w, apperror.New(apperror.NotFound, "processed file not found on disk"))
			return
		}
		writeErr(w, apperror.Newf(apperror.Internal, "failed to open file for streaming: %v", err))
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		writeErr(w, apperror.Newf(apperror.Internal, "failed to get file metadata: %v", err))
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	if attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="video_%s.mp4"`, id))
	}
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}
