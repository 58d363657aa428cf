package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourflock/ingestd/internal/apperror"
	"github.com/yourflock/ingestd/internal/telemetry"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr renders err as the JSON envelope spec.md §7 defines. Any error
// that isn't already an *apperror.Error is wrapped as Internal and
// reported to Sentry, matching the "unexpected failure" boundary.
func writeErr(w http.ResponseWriter, err error) {
	ae, ok := apperror.As(err)
	if !ok {
		ae = apperror.Newf(apperror.Internal, "%v", err)
	}
	if ae.Reportable() {
		telemetry.CaptureError(ae, nil)
	}
	slog.Default().Error("request failed", "kind", ae.Kind, "message", ae.Message)
	writeJSON(w, ae.StatusCode(), map[string]string{
		"error":      "request_failed",
		"error_type": string(ae.Kind),
		"message":    ae.Message,
	})
}
