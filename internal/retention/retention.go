// Package retention implements the background job that purges terminal
// jobs (and their files) past the configured retention window. Ported
// from the original project's services/retention.rs RetentionService.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourflock/ingestd/internal/fsarea"
	"github.com/yourflock/ingestd/internal/metrics"
	"github.com/yourflock/ingestd/internal/store"
)

// Loop periodically deletes Completed/Failed/Cancelled jobs older than
// RetentionDays, along with their working-directory files.
type Loop struct {
	store             *store.Store
	area              *fsarea.FileArea
	retentionDays     int
	cleanupInterval   time.Duration
	initialDelay      time.Duration
	log               *slog.Logger
}

func New(st *store.Store, area *fsarea.FileArea, retentionDays, cleanupIntervalHours int) *Loop {
	return &Loop{
		store:           st,
		area:            area,
		retentionDays:   retentionDays,
		cleanupInterval: time.Duration(cleanupIntervalHours) * time.Hour,
		initialDelay:    60 * time.Second,
		log:             slog.Default(),
	}
}

// Run blocks until ctx is cancelled, running CleanupNow on every tick
// after an initial delay (to avoid racing the startup restorer).
func (l *Loop) Run(ctx context.Context) {
	l.log.Info("starting retention cleanup service", "retention_days", l.retentionDays, "interval", l.cleanupInterval)

	select {
	case <-time.After(l.initialDelay):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.CleanupNow(ctx); err != nil {
				l.log.Error("retention cleanup failed", "error", err)
			}
		}
	}
}

// CleanupNow runs a single cleanup cycle immediately.
func (l *Loop) CleanupNow(ctx context.Context) error {
	l.log.Info("starting retention cleanup cycle")

	statsBefore, err := l.store.Stats(ctx)
	if err != nil {
		return err
	}
	l.log.Info("jobs before cleanup", "completed", statsBefore["Completed"], "failed", statsBefore["Failed"], "cancelled", statsBefore["Cancelled"])

	oldJobIDs, err := l.store.DeleteOlderThanDays(ctx, l.retentionDays)
	if err != nil {
		return err
	}
	if len(oldJobIDs) == 0 {
		l.log.Info("no old jobs found for cleanup")
	} else {
		l.log.Info("found old jobs to clean up", "count", len(oldJobIDs))

		successfulFileCleanups := 0
		var fileCleanupErrors []string
		for _, id := range oldJobIDs {
			if err := l.area.CleanupJob(ctx, id); err != nil {
				l.log.Warn("failed to clean up files for job", "job_id", id, "error", err)
				fileCleanupErrors = append(fileCleanupErrors, id)
			} else {
				successfulFileCleanups++
			}
		}
		metrics.RetentionDeleted.Add(float64(len(oldJobIDs)))
		l.log.Info("retention cleanup completed", "removed_records", len(oldJobIDs), "cleaned_file_sets", successfulFileCleanups)
		if len(fileCleanupErrors) > 0 {
			l.log.Warn("file cleanup had errors", "count", len(fileCleanupErrors), "job_ids", fileCleanupErrors)
		}
	}

	// Sweep every non-active working-directory file older than the
	// retention window. This reaches leftovers with no matching job row —
	// e.g. yt-dlp output from a job that crashed before a restore ever
	// happened — which CleanupJob above never sees, since it only handles
	// IDs DeleteOlderThanDays just returned. The sweep does not consult the
	// store, so an old file whose row still exists is removed as well.
	orphanAge := time.Duration(l.retentionDays) * 24 * time.Hour
	if err := l.area.CleanupOldFiles(orphanAge); err != nil {
		l.log.Warn("orphaned file sweep had errors", "error", err)
	}

	statsAfter, err := l.store.Stats(ctx)
	if err != nil {
		return err
	}
	l.log.Info("jobs after cleanup", "completed", statsAfter["Completed"], "failed", statsAfter["Failed"], "cancelled", statsAfter["Cancelled"])

	return nil
}
