// Package telemetry wraps Sentry error tracking for ingestd, ported from
// the teacher's pkg/telemetry/sentry.go. Disabled (no-op) whenever DSN is
// empty, so local development and tests never need a live Sentry project.
package telemetry

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

var enabled bool

// InitSentry initializes the Sentry SDK. dsn may be empty — Sentry stays
// disabled and CaptureError becomes a no-op. Call once at process startup.
func InitSentry(dsn, serviceName, release string) error {
	if dsn == "" {
		return nil
	}
	env := os.Getenv("INGESTD_ENV")
	if env == "" {
		env = "development"
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		Release:          release,
		ServerName:       serviceName,
		TracesSampleRate: 0.0,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	enabled = true
	return nil
}

// Flush blocks until pending events are sent or the timeout elapses.
func Flush(timeout time.Duration) {
	if enabled {
		sentry.Flush(timeout)
	}
}

// CaptureError reports err with the given tags. No-op if Sentry is disabled.
// Callers should only report apperror.Kind Internal/Storage failures —
// expected client errors (BadRequest/NotFound) should never reach here.
func CaptureError(err error, tags map[string]string) {
	if !enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}
