// Package retry implements exponential-backoff retry with a hard-coded,
// Kind-aware retryability classifier. Ported byte-for-byte in meaning from
// the original project's services/retry.rs — the keyword tables there are
// a deliberate contract, not an implementation detail, so they are kept
// exact rather than "improved".
package retry

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/yourflock/ingestd/internal/apperror"
)

// Config mirrors RetryConfig: attempt budget and exponential backoff shape.
type Config struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultConfig matches RetryConfig::default().
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2.0}
}

// Do runs operation up to config.MaxAttempts times, sleeping with
// exponential backoff between attempts, logging each failure via the
// logger on ctx. It returns the last error if every attempt fails, or nil
// as soon as one succeeds. It does not consult IsRetryable — callers
// decide whether a failure is worth retrying at all before calling Do (or
// simply don't call it again once IsRetryable returns false).
func Do[T any](ctx context.Context, cfg Config, name string, operation func(context.Context) (T, error)) (T, error) {
	log := loggerFromContext(ctx)
	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info("operation succeeded after retry", "operation", name, "attempt", attempt)
			}
			return result, nil
		}

		lastErr = err

		if attempt < cfg.MaxAttempts {
			delay := backoffDelay(attempt, cfg)
			log.Warn("operation failed, retrying", "operation", name, "attempt", attempt, "error", err, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		} else {
			log.Error("operation failed on final attempt", "operation", name, "attempt", attempt, "error", err)
		}
	}

	return zero, lastErr
}

func backoffDelay(attempt int, cfg Config) time.Duration {
	delaySecs := cfg.BaseDelay.Seconds() * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if delaySecs > cfg.MaxDelay.Seconds() {
		delaySecs = cfg.MaxDelay.Seconds()
	}
	return time.Duration(delaySecs * float64(time.Second))
}

type loggerKey struct{}

// WithLogger attaches a logger that Do will use for retry diagnostics.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func loggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// IsRetryable classifies an error the same way the original's
// is_retryable_error does: Timeout always retries; Download/Processing/
// Internal retry only on specific substrings; Storage/BadRequest/NotFound
// never retry.
func IsRetryable(err error) bool {
	ae, ok := apperror.As(err)
	if !ok {
		return false
	}

	msg := strings.ToLower(ae.Message)

	switch ae.Kind {
	case apperror.Timeout:
		return true

	case apperror.Download:
		return containsAny(msg,
			"timeout", "connection", "network", "temporary", "unavailable",
			"reset", "refused", "502", "503", "504", "429")

	case apperror.Processing:
		return containsAny(msg,
			"resource temporarily unavailable", "device busy",
			"temporary failure", "disk full")

	case apperror.Internal:
		return strings.Contains(msg, "database") &&
			containsAny(msg, "busy", "locked", "connection")

	case apperror.Storage, apperror.BadRequest, apperror.NotFound:
		return false

	default:
		return false
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
