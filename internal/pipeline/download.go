// Package pipeline drives the two external subprocess stages — download via
// yt-dlp and transcode via ffmpeg — the way the teacher's vod package
// shells out to ffprobe: os/exec.CommandContext with an explicit timeout.
// Ported from the original project's services/download.rs and
// services/process.rs, including their exact CLI argument schedules.
package pipeline

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/yourflock/ingestd/internal/apperror"
	"github.com/yourflock/ingestd/internal/config"
	"github.com/yourflock/ingestd/internal/fsarea"
	"github.com/yourflock/ingestd/internal/pool"
	"github.com/yourflock/ingestd/internal/security"
)

// bestFormatSelector is yt-dlp's -f argument: prefer H.264/AAC up to 1080p,
// falling back to the overall best stream.
const bestFormatSelector = "bestvideo[height<=1080][vcodec^=avc1]+bestaudio[acodec^=mp4a]/best[height<=1080]/best"

// DownloadStage runs yt-dlp against a validated URL, bounded by a download
// permit and a configured timeout.
type DownloadStage struct {
	cfg       config.DownloadConfig
	maxBytes  int64
	area      *fsarea.FileArea
	permits   *pool.Semaphore
	validator *security.Validator
}

func NewDownloadStage(cfg config.DownloadConfig, maxBytes int64, area *fsarea.FileArea, permits *pool.Semaphore, validator *security.Validator) *DownloadStage {
	return &DownloadStage{cfg: cfg, maxBytes: maxBytes, area: area, permits: permits, validator: validator}
}

// Run downloads url into the stage's working directory under jobID,
// returning the path to the downloaded file. Cleans up partial files on
// failure or timeout.
func (s *DownloadStage) Run(ctx context.Context, jobID, url string) (string, error) {
	if err := s.permits.Acquire(ctx); err != nil {
		return "", apperror.Newf(apperror.Internal, "failed to acquire download permit: %v", err)
	}
	defer s.permits.Release()

	validatedURL, err := s.validator.ValidateURL(url)
	if err != nil {
		return "", err
	}

	if err := fsarea.DiskPrecheck(s.area.WorkingDir(), s.maxBytes); err != nil {
		return "", err
	}

	if err := s.validator.ValidateJobID(jobID); err != nil {
		return "", err
	}

	outputTemplate, err := s.validator.SafeJobFilePath(s.area.WorkingDir(), jobID, "original.%(ext)s")
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.cfg.Command,
		"-o", outputTemplate,
		"-f", bestFormatSelector,
		"--merge-output-format", "mp4",
		"--max-filesize", fmt.Sprintf("%d", s.maxBytes),
		validatedURL.String(),
	)

	out, runErr := cmd.CombinedOutput()

	if runCtx.Err() != nil {
		if partial, ok := s.area.LocateDownloaded(ctx, jobID); ok {
			_ = s.area.CleanupPath(partial)
		}
		return "", apperror.Newf(apperror.Timeout, "download timed out after %s", s.cfg.Timeout)
	}

	if runErr != nil {
		if _, isExitErr := runErr.(*exec.ExitError); !isExitErr {
			return "", apperror.Newf(apperror.Download, "download command failed: %v", runErr)
		}
		if partial, ok := s.area.LocateDownloaded(ctx, jobID); ok {
			_ = s.area.CleanupPath(partial)
		}
		return "", apperror.New(apperror.Download, string(out))
	}

	downloaded, ok := s.area.LocateDownloaded(ctx, jobID)
	if !ok {
		return "", apperror.New(apperror.Download, "no downloaded file found")
	}

	if size, err := fileSize(downloaded); err == nil && size > s.maxBytes {
		_ = s.area.CleanupPath(downloaded)
		return "", apperror.Newf(apperror.Download, "downloaded file exceeds maximum size limit of %d bytes", s.maxBytes)
	}

	return downloaded, nil
}
