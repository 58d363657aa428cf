// main.go — ingestd video ingest service.
//
// Routes:
//
//	POST   /process                — enqueue a video for download+transcode
//	GET    /status/{id}            — job status
//	GET    /video/{id}             — download processed file
//	GET    /stream/{id}            — stream processed file (Range-aware)
//	DELETE /jobs/{id}               — cancel a job
//	GET    /jobs                   — paginated job listing
//	GET    /health[/detailed|/ready|/live]
//	GET    /metrics, /metrics/history
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/yourflock/ingestd/internal/config"
	"github.com/yourflock/ingestd/internal/fsarea"
	"github.com/yourflock/ingestd/internal/httpapi"
	"github.com/yourflock/ingestd/internal/logger"
	"github.com/yourflock/ingestd/internal/pipeline"
	"github.com/yourflock/ingestd/internal/pool"
	"github.com/yourflock/ingestd/internal/queue"
	"github.com/yourflock/ingestd/internal/restore"
	"github.com/yourflock/ingestd/internal/retention"
	"github.com/yourflock/ingestd/internal/runner"
	"github.com/yourflock/ingestd/internal/security"
	"github.com/yourflock/ingestd/internal/store"
	"github.com/yourflock/ingestd/internal/telemetry"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Server.LogFormat, cfg.Server.LogLevel)
	slog.SetDefault(log)

	if err := telemetry.InitSentry(cfg.Server.SentryDSN, "ingestd", "dev"); err != nil {
		log.Warn("sentry init failed, continuing without error reporting", "error", err)
	}
	defer telemetry.Flush(2 * time.Second)

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		log.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	log.Info("database connected")

	validator := security.New(cfg.Download.AllowedDomains, cfg.Security.MaxURLLength, cfg.Security.MaxFileSizeBytes)
	area := fsarea.New(cfg.Storage.WorkingDir)
	permits := pool.NewPermitPools(cfg.Download.MaxConcurrentDownloads, cfg.Processing.MaxConcurrentTranscodes)

	download := pipeline.NewDownloadStage(cfg.Download, cfg.Security.MaxFileSizeBytes, area, permits.Download, validator)
	transcode := pipeline.NewTranscodeStage(cfg.Processing, permits.Transcode)
	run := runner.New(st, download, transcode, area)

	q := queue.New(cfg.Queue.MaxConcurrentJobs, cfg.Queue.MaxQueueSize, run.Run)

	mainCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go q.StartWorker(mainCtx)

	if cfg.Retention.Enabled {
		loop := retention.New(st, area, cfg.Retention.RetentionDays, cfg.Retention.CleanupIntervalHours)
		go loop.Run(mainCtx)
	} else {
		log.Info("retention loop disabled")
	}

	restore.Run(mainCtx, st, q)

	server := httpapi.NewServer(cfg, st, q, area, validator, permits)
	go server.StartBackground(mainCtx)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ClientTimeout,
		WriteTimeout: cfg.Server.ClientTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("starting http server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	log.Info("shutting down...")
	cancel()
	q.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("stopped")
}
