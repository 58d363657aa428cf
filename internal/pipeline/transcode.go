package pipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/yourflock/ingestd/internal/apperror"
	"github.com/yourflock/ingestd/internal/config"
	"github.com/yourflock/ingestd/internal/pool"
)

// TranscodeStage runs ffmpeg against a downloaded file, producing a
// normalized H.264/AAC mp4, bounded by a transcode permit and a configured
// timeout.
type TranscodeStage struct {
	cfg     config.ProcessingConfig
	permits *pool.Semaphore
}

func NewTranscodeStage(cfg config.ProcessingConfig, permits *pool.Semaphore) *TranscodeStage {
	return &TranscodeStage{cfg: cfg, permits: permits}
}

// Run transcodes inputPath into "<workingDir>/<jobID>_processed.mp4".
func (s *TranscodeStage) Run(ctx context.Context, jobID, workingDir, inputPath string) (string, error) {
	if err := s.permits.Acquire(ctx); err != nil {
		return "", apperror.Newf(apperror.Internal, "failed to acquire processing permit: %v", err)
	}
	defer s.permits.Release()

	outputPath := filepath.Join(workingDir, jobID+"_processed.mp4")

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.cfg.FFmpegCommand,
		"-i", inputPath,
		"-c:v", s.cfg.VideoCodec,
		"-preset", s.cfg.Preset,
		"-crf", strconv.Itoa(s.cfg.CRF),
		"-profile:v", "high",
		"-level", "4.0",
		"-pix_fmt", "yuv420p",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:a", s.cfg.AudioCodec,
		"-b:a", s.cfg.AudioBitrate,
		"-ac", "2",
		"-threads", "0",
		"-movflags", "+faststart",
		"-max_muxing_queue_size", "1024",
		outputPath,
	)

	out, runErr := cmd.CombinedOutput()

	if runCtx.Err() != nil {
		removeIfExists(outputPath)
		return "", apperror.Newf(apperror.Timeout, "processing timed out after %s", s.cfg.Timeout)
	}

	if runErr != nil {
		if _, isExitErr := runErr.(*exec.ExitError); !isExitErr {
			return "", apperror.Newf(apperror.Processing, "ffmpeg command failed: %v", runErr)
		}
		removeIfExists(outputPath)
		return "", apperror.New(apperror.Processing, string(out))
	}

	if !pathExists(outputPath) {
		return "", apperror.Newf(apperror.Processing, "output file not created: %s", outputPath)
	}

	return outputPath, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeIfExists(path string) {
	if pathExists(path) {
		_ = os.Remove(path)
	}
}
