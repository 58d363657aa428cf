// Package fsarea manages the flat working-directory file layout jobs use
// between pipeline stages: locating yt-dlp's output, an active-file
// registry that defeats cleanup TOCTOU races, and disk-space preflight.
// Ported from the original project's services/cleanup.rs and the
// find_downloaded_file/check_disk_space helpers in services/download.rs.
package fsarea

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/yourflock/ingestd/internal/apperror"
)

var commonExtensions = []string{"mp4", "mkv", "avi", "mov", "webm", "m4v"}

// FileArea owns a single flat working directory and tracks which files in
// it are currently "active" (open by a pipeline stage), so a concurrent
// cleanup pass never deletes a file mid-use.
type FileArea struct {
	workingDir string

	mu     sync.Mutex
	active map[string]struct{}
}

func New(workingDir string) *FileArea {
	return &FileArea{workingDir: workingDir, active: make(map[string]struct{})}
}

func (a *FileArea) WorkingDir() string { return a.workingDir }

// JoinWorking returns path joined under the working directory.
func (a *FileArea) JoinWorking(name string) string {
	return filepath.Join(a.workingDir, name)
}

// MarkActive flags path as in-use so CleanupJob skips it.
func (a *FileArea) MarkActive(path string) {
	a.mu.Lock()
	a.active[path] = struct{}{}
	a.mu.Unlock()
}

// UnmarkActive clears the in-use flag set by MarkActive.
func (a *FileArea) UnmarkActive(path string) {
	a.mu.Lock()
	delete(a.active, path)
	a.mu.Unlock()
}

func (a *FileArea) isActive(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.active[path]
	return ok
}

// LocateDownloaded finds the file yt-dlp produced for jobID. It first
// tries direct path construction against the known naming conventions
// (O(1)), falling back to a directory scan only if that fails.
func (a *FileArea) LocateDownloaded(ctx context.Context, jobID string) (string, bool) {
	prefixes := []string{jobID + "_original", jobID}
	for _, prefix := range prefixes {
		for _, ext := range commonExtensions {
			for _, candidate := range []string{
				filepath.Join(a.workingDir, prefix+"."+ext),
				filepath.Join(a.workingDir, prefix+"_."+ext),
			} {
				if fileExists(candidate) {
					return candidate, true
				}
			}
		}
	}

	prefix := jobID + "_original"
	entries, err := os.ReadDir(a.workingDir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, "_") {
			return filepath.Join(a.workingDir, name), true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CleanupJob removes every file in the working directory prefixed with
// jobID, skipping any file currently marked active.
func (a *FileArea) CleanupJob(ctx context.Context, jobID string) error {
	log := slog.Default()
	entries, err := os.ReadDir(a.workingDir)
	if err != nil {
		return nil
	}

	var cleaned, skipped int
	var errs []string

	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), jobID) {
			continue
		}
		path := filepath.Join(a.workingDir, e.Name())

		if a.isActive(path) {
			skipped++
			log.Warn("skipping cleanup of active file", "path", path)
			continue
		}

		a.MarkActive(path)
		if !fileExists(path) {
			a.UnmarkActive(path)
			continue
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Sprintf("failed to remove %s: %v", path, err))
		} else {
			cleaned++
			log.Info("cleaned up file", "path", path)
		}
		a.UnmarkActive(path)
	}

	if skipped > 0 {
		log.Info("skipped active files during cleanup", "count", skipped, "job_id", jobID)
	}
	if len(errs) > 0 {
		return apperror.New(apperror.Storage, "cleanup completed with errors: "+strings.Join(errs, ", "))
	}
	log.Info("cleaned up files for job", "count", cleaned, "job_id", jobID)
	return nil
}

// CleanupPath removes a single file if it exists. Not found is not an error.
func (a *FileArea) CleanupPath(path string) error {
	if !fileExists(path) {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return apperror.Newf(apperror.Storage, "failed to remove file %s: %v", path, err)
	}
	return nil
}

// CleanupOldFiles removes working-directory files whose mtime is older
// than the given age. It is the retention loop's sweep for orphaned temp
// files left behind by crashed jobs whose row was never restored (so no
// CleanupJob call was ever made for them), and respects the same
// active-file registry CleanupJob does, to avoid racing a pipeline stage
// that still has the file open. It does not consult the store: any
// non-active file past the cutoff is removed, whether or not a row still
// refers to it.
func (a *FileArea) CleanupOldFiles(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	entries, err := os.ReadDir(a.workingDir)
	if err != nil {
		return nil
	}

	var cleaned, skipped int
	var errs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(a.workingDir, e.Name())
		if a.isActive(path) {
			skipped++
			continue
		}

		a.MarkActive(path)
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Sprintf("failed to remove %s: %v", path, err))
		} else {
			cleaned++
		}
		a.UnmarkActive(path)
	}

	if len(errs) > 0 {
		return apperror.New(apperror.Storage, "old file cleanup completed with errors: "+strings.Join(errs, ", "))
	}
	slog.Default().Info("cleaned up old files", "count", cleaned, "skipped_active", skipped)
	return nil
}

// DiskPrecheck requires at least 2x maxFileSizeBytes plus a 1GiB buffer to
// be free on the filesystem backing dir, substituting Rust's fs2 crate
// with golang.org/x/sys/unix.Statfs. Soft-fails (returns nil) if the
// statfs call itself errors, matching the original's "don't block the
// download just because we couldn't check" behavior.
func DiskPrecheck(dir string, maxFileSizeBytes int64) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		slog.Default().Warn("failed to check disk space", "error", err)
		return nil
	}

	available := int64(stat.Bavail) * int64(stat.Bsize)
	required := (maxFileSizeBytes * 2) + (1024 * 1024 * 1024)

	if available < required {
		return apperror.Newf(apperror.Internal, "insufficient disk space: available %d bytes, required %d bytes", available, required)
	}
	return nil
}
