// Package runner implements JobRunner: the end-to-end orchestration of a
// single job through fetch, download, transcode, and completion, each
// database write and subprocess stage wrapped in its own retry policy.
// Ported from the original project's api/routes.rs::process_job and its
// download_with_retry/process_with_retry/update_job_with_retry helpers.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourflock/ingestd/internal/apperror"
	"github.com/yourflock/ingestd/internal/fsarea"
	"github.com/yourflock/ingestd/internal/job"
	"github.com/yourflock/ingestd/internal/metrics"
	"github.com/yourflock/ingestd/internal/pipeline"
	"github.com/yourflock/ingestd/internal/retry"
	"github.com/yourflock/ingestd/internal/store"
	"github.com/yourflock/ingestd/internal/telemetry"
)

var (
	getJobRetry    = retry.Config{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2.0}
	downloadRetry  = retry.Config{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second, BackoffMultiplier: 2.0}
	processRetry   = retry.Config{MaxAttempts: 1, BaseDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 1.0}
	updateJobRetry = retry.Config{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second, BackoffMultiplier: 2.0}
)

// Runner wires the store and pipeline stages a job needs to run end to end.
type Runner struct {
	store     *store.Store
	download  *pipeline.DownloadStage
	transcode *pipeline.TranscodeStage
	area      *fsarea.FileArea
}

func New(st *store.Store, download *pipeline.DownloadStage, transcode *pipeline.TranscodeStage, area *fsarea.FileArea) *Runner {
	return &Runner{store: st, download: download, transcode: transcode, area: area}
}

// Run drives jobID through its full lifecycle. It never returns an error —
// all failures are terminal for the job and recorded on the row itself;
// the caller (queue dispatch) only needs to know the goroutine finished.
func (r *Runner) Run(ctx context.Context, jobID string) {
	log := slog.Default().With("job_id", jobID)
	log.Info("starting processing for job")

	j, err := r.getJob(ctx, jobID)
	if err != nil {
		log.Error("failed to get job after retries", "error", err)
		return
	}
	if j == nil {
		log.Error("job not found")
		return
	}

	start := time.Now()
	defer func() { metrics.JobDuration.Observe(time.Since(start).Seconds()) }()

	log.Info("starting download phase")
	j.SetStatus(job.Downloading)
	if err := r.updateJob(ctx, j); err != nil {
		log.Warn("failed to update job status to Downloading", "error", err)
	}

	downloadedPath, err := r.downloadWithRetry(ctx, j)
	if err != nil {
		log.Error("download failed", "error", err)
		r.fail(ctx, j, err)
		return
	}
	log.Info("download completed", "path", downloadedPath)

	log.Info("starting processing phase")
	j.SetStatus(job.Processing)
	if err := r.updateJob(ctx, j); err != nil {
		log.Warn("failed to update job status to Processing", "error", err)
	}

	processedPath, err := r.processWithRetry(ctx, j, downloadedPath)
	if err != nil {
		log.Error("processing failed", "error", err)
		r.fail(ctx, j, err)
		return
	}
	log.Info("processing completed", "path", processedPath)

	j.SetStatus(job.Completed)
	j.SetProcessingTime(time.Since(start))
	metrics.JobsTotal.WithLabelValues(string(job.Completed)).Inc()

	if err := r.updateJob(ctx, j); err != nil {
		log.Error("failed to update job completion status", "error", err)
	} else {
		log.Info("job completed successfully", "elapsed", time.Since(start))
	}

	if j.DownloadedPath != nil {
		if err := r.area.CleanupPath(*j.DownloadedPath); err != nil {
			log.Warn("failed to cleanup downloaded file", "error", err)
		}
	}
}

func (r *Runner) fail(ctx context.Context, j *job.Job, cause error) {
	j.SetError(cause.Error())
	metrics.JobsTotal.WithLabelValues(string(job.Failed)).Inc()
	_ = r.updateJob(ctx, j)
	if err := r.area.CleanupJob(ctx, j.ID); err != nil {
		slog.Default().Warn("failed to cleanup files for job", "job_id", j.ID, "error", err)
	}
	if ae, ok := apperror.As(cause); ok && ae.Reportable() {
		telemetry.CaptureError(cause, map[string]string{"job_id": j.ID})
	}
}

func (r *Runner) getJob(ctx context.Context, jobID string) (*job.Job, error) {
	return retry.Do(ctx, getJobRetry, "database_get_job", func(ctx context.Context) (*job.Job, error) {
		return r.store.Get(ctx, jobID)
	})
}

func (r *Runner) updateJob(ctx context.Context, j *job.Job) error {
	_, err := retry.Do(ctx, updateJobRetry, "database_update", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.store.Update(ctx, j)
	})
	return err
}

func (r *Runner) downloadWithRetry(ctx context.Context, j *job.Job) (string, error) {
	path, err := retry.Do(ctx, downloadRetry, "video_download", func(ctx context.Context) (string, error) {
		return r.download.Run(ctx, j.ID, j.URL)
	})
	if err != nil {
		if retry.IsRetryable(err) {
			return "", apperror.Newf(apperror.Download, "download failed after retries: %v", err)
		}
		return "", err
	}
	j.SetDownloadedPath(path)
	_ = r.updateJob(ctx, j)
	return path, nil
}

func (r *Runner) processWithRetry(ctx context.Context, j *job.Job, inputPath string) (string, error) {
	path, err := retry.Do(ctx, processRetry, "video_processing", func(ctx context.Context) (string, error) {
		return r.transcode.Run(ctx, j.ID, r.area.WorkingDir(), inputPath)
	})
	if err != nil {
		if retry.IsRetryable(err) {
			return "", apperror.Newf(apperror.Processing, "processing failed after retries: %v", err)
		}
		return "", err
	}
	j.SetProcessedPath(path)
	_ = r.updateJob(ctx, j)
	return path, nil
}
