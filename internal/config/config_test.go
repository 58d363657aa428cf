package config

import (
	"os"
	"testing"
	"time"
)

func clearIngestdEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"HOST", "PORT", "CLIENT_TIMEOUT", "KEEP_ALIVE", "MAX_PAYLOAD", "AUTH_PASSWORD",
		"ADMIN_JWT_SECRET", "SENTRY_DSN", "INGESTD_ENV", "LOG_FORMAT", "LOG_LEVEL",
		"DOWNLOAD_TIMEOUT", "DOWNLOAD_COMMAND", "ALLOWED_DOMAINS", "MAX_CONCURRENT_DOWNLOADS",
		"PROCESSING_TIMEOUT", "FFMPEG_COMMAND", "VIDEO_CODEC", "AUDIO_CODEC", "PRESET", "CRF",
		"AUDIO_BITRATE", "MAX_CONCURRENT_TRANSCODES", "STORAGE_PATH", "WORKING_DIR", "DATABASE_URL",
		"MAX_FILE_SIZE_MB", "MAX_URL_LENGTH", "MAX_CONCURRENT_JOBS", "MAX_QUEUE_SIZE",
		"RETENTION_ENABLED", "RETENTION_DAYS", "CLEANUP_INTERVAL_HOURS",
	}
	for _, k := range keys {
		orig, had := os.LookupEnv(k)
		os.Unsetenv(k)
		if had {
			t.Cleanup(func() { os.Setenv(k, orig) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearIngestdEnv(t)
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.AuthPassword != "" {
		t.Errorf("expected empty default auth password, got %q", cfg.Server.AuthPassword)
	}
	if cfg.Download.Command != "yt-dlp" {
		t.Errorf("expected default download command yt-dlp, got %s", cfg.Download.Command)
	}
	if len(cfg.Download.AllowedDomains) != 3 {
		t.Errorf("expected 3 default allowed domains, got %v", cfg.Download.AllowedDomains)
	}
	if cfg.Queue.MaxConcurrentJobs != 2 {
		t.Errorf("expected default max concurrent jobs 2, got %d", cfg.Queue.MaxConcurrentJobs)
	}
	if !cfg.Retention.Enabled {
		t.Error("expected retention enabled by default")
	}
	if cfg.Retention.RetentionDays != 30 {
		t.Errorf("expected default retention days 30, got %d", cfg.Retention.RetentionDays)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearIngestdEnv(t)
	os.Setenv("PORT", "9090")
	os.Setenv("AUTH_PASSWORD", "hunter2")
	os.Setenv("ALLOWED_DOMAINS", " youtube.com , example.com")
	os.Setenv("RETENTION_ENABLED", "false")
	os.Setenv("MAX_FILE_SIZE_MB", "10")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("expected overridden port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.AuthPassword != "hunter2" {
		t.Errorf("expected overridden auth password, got %q", cfg.Server.AuthPassword)
	}
	if len(cfg.Download.AllowedDomains) != 2 || cfg.Download.AllowedDomains[0] != "youtube.com" || cfg.Download.AllowedDomains[1] != "example.com" {
		t.Errorf("expected trimmed domain list, got %v", cfg.Download.AllowedDomains)
	}
	if cfg.Retention.Enabled {
		t.Error("expected retention disabled")
	}
	if cfg.Security.MaxFileSizeBytes != 10*1024*1024 {
		t.Errorf("expected 10MB in bytes, got %d", cfg.Security.MaxFileSizeBytes)
	}
}

func TestLoad_DurationsAreSeconds(t *testing.T) {
	clearIngestdEnv(t)
	os.Setenv("DOWNLOAD_TIMEOUT", "60")

	cfg := Load()
	if cfg.Download.Timeout != 60*time.Second {
		t.Errorf("expected 60s download timeout, got %v", cfg.Download.Timeout)
	}
}
