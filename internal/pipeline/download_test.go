package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/yourflock/ingestd/internal/config"
	"github.com/yourflock/ingestd/internal/fsarea"
	"github.com/yourflock/ingestd/internal/pool"
	"github.com/yourflock/ingestd/internal/security"
)

// fakeYtDlp writes a shell script standing in for yt-dlp: it ignores its
// arguments and creates "<jobID>_original.mp4" in the working directory,
// simulating a successful download.
func fakeYtDlp(t *testing.T, dir string, jobID string, exitCode int) string {
	t.Helper()
	script := filepath.Join(dir, "fake-yt-dlp.sh")
	body := "#!/bin/sh\n"
	if exitCode == 0 {
		body += "touch \"" + filepath.Join(dir, jobID+"_original.mp4") + "\"\n"
	} else {
		body += "echo 'connection reset by peer' 1>&2\n"
	}
	body += "exit " + strconv.Itoa(exitCode) + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func newTestDownloadStage(t *testing.T, command string, dir string) *DownloadStage {
	cfg := config.DownloadConfig{
		Timeout: 5 * time.Second,
		Command: command,
	}
	area := fsarea.New(dir)
	permits := pool.NewSemaphore(1)
	validator := security.New([]string{"youtube.com"}, 2048, 500*1024*1024)
	return NewDownloadStage(cfg, 500*1024*1024, area, permits, validator)
}

func TestDownloadStage_Success(t *testing.T) {
	dir := t.TempDir()
	script := fakeYtDlp(t, dir, "job1", 0)
	stage := newTestDownloadStage(t, script, dir)

	path, err := stage.Run(context.Background(), "job1", "https://youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "job1_original.mp4" {
		t.Errorf("got %q", path)
	}
}

func TestDownloadStage_RejectsInvalidURL(t *testing.T) {
	dir := t.TempDir()
	script := fakeYtDlp(t, dir, "job1", 0)
	stage := newTestDownloadStage(t, script, dir)

	_, err := stage.Run(context.Background(), "job1", "http://youtube.com/watch?v=abc")
	if err == nil {
		t.Fatal("expected error for non-https URL")
	}
}

func TestDownloadStage_CommandFailureReturnsDownloadError(t *testing.T) {
	dir := t.TempDir()
	script := fakeYtDlp(t, dir, "job1", 1)
	stage := newTestDownloadStage(t, script, dir)

	_, err := stage.Run(context.Background(), "job1", "https://youtube.com/watch?v=abc")
	if err == nil {
		t.Fatal("expected error for failing command")
	}
}
