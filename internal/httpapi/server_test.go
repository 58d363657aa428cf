package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yourflock/ingestd/internal/config"
	"github.com/yourflock/ingestd/internal/fsarea"
	"github.com/yourflock/ingestd/internal/job"
	"github.com/yourflock/ingestd/internal/metrics"
	"github.com/yourflock/ingestd/internal/pool"
	"github.com/yourflock/ingestd/internal/queue"
	"github.com/yourflock/ingestd/internal/security"
	"github.com/yourflock/ingestd/internal/store"
)

const testAuthPassword = "test-secret"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AuthPassword: testAuthPassword},
		Download: config.DownloadConfig{
			Command:        "yt-dlp",
			AllowedDomains: []string{"youtube.com"},
		},
		Processing: config.ProcessingConfig{FFmpegCommand: "ffmpeg"},
		Security:   config.SecurityConfig{MaxURLLength: 2048, MaxFileSizeBytes: 500 * 1024 * 1024},
	}
}

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.FromDB(db)
	area := fsarea.New(t.TempDir())
	validator := security.New([]string{"youtube.com"}, 2048, 500*1024*1024)
	q := queue.New(2, 100, func(ctx context.Context, jobID string) {})
	permits := pool.NewPermitPools(2, 1)

	return NewServer(testConfig(), st, q, area, validator, permits), mock
}

func adminRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+testAuthPassword)
	return r
}

func TestHandleStartJob_CreatesNewJob(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("https://youtube.com/watch?v=abc").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "url", "status", "created_at", "updated_at",
			"downloaded_path", "processed_path", "error_message", "processing_time_seconds",
		}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO jobs")).WillReturnResult(sqlmock.NewResult(1, 1))

	req := adminRequest(http.MethodPost, "/process", `{"url":"https://youtube.com/watch?v=abc"}`)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(job.Pending) {
		t.Errorf("expected Pending status, got %s", resp.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestHandleStartJob_ReturnsExistingJobForSameURL(t *testing.T) {
	s, mock := newTestServer(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("https://youtube.com/watch?v=abc").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "url", "status", "created_at", "updated_at",
			"downloaded_path", "processed_path", "error_message", "processing_time_seconds",
		}).AddRow("existing-1", "https://youtube.com/watch?v=abc", string(job.Downloading), now, now, nil, nil, nil, nil))

	req := adminRequest(http.MethodPost, "/process", `{"url":"https://youtube.com/watch?v=abc"}`)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp jobResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.ID != "existing-1" {
		t.Errorf("expected existing job to be returned, got %+v", resp)
	}
}

func TestHandleStartJob_RejectsDisallowedDomain(t *testing.T) {
	s, _ := newTestServer(t)
	req := adminRequest(http.MethodPost, "/process", `{"url":"https://evil.example.com/video"}`)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleStartJob_RequiresAuth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(`{"url":"https://youtube.com/x"}`))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleJobStatus_NotFound(t *testing.T) {
	s, mock := newTestServer(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WithArgs("missing-job").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "url", "status", "created_at", "updated_at",
			"downloaded_path", "processed_path", "error_message", "processing_time_seconds",
		}))

	req := httptest.NewRequest(http.MethodGet, "/status/missing-job", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCancelJob_RejectsTerminalJob(t *testing.T) {
	s, mock := newTestServer(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "url", "status", "created_at", "updated_at",
			"downloaded_path", "processed_path", "error_message", "processing_time_seconds",
		}).AddRow("job-1", "https://youtube.com/x", string(job.Completed), now, now, nil, nil, nil, nil))

	req := adminRequest(http.MethodDelete, "/jobs/job-1", "")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleListJobs_RejectsInvalidStatus(t *testing.T) {
	s, _ := newTestServer(t)
	req := adminRequest(http.MethodGet, "/jobs?status=not-a-status", "")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleHealthLive(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleMetricsHistory_EmptyByDefault(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics/history", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var points []metricPoint
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("expected no points before sampling starts, got %d", len(points))
	}
}

func TestSampleOnce_SetsBusinessGauges(t *testing.T) {
	s, mock := newTestServer(t)
	_ = mock

	if err := s.queue.Enqueue("queued-job", job.Normal); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.permits.Download.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	s.sampleOnce()

	if got := testutil.ToFloat64(metrics.QueueDepth); got != 1 {
		t.Errorf("expected QueueDepth gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.DownloadPermitsAvailable); got != 1 {
		t.Errorf("expected DownloadPermitsAvailable gauge 1 (2 capacity - 1 held), got %v", got)
	}

	points := s.history.recent(0)
	if len(points) != 1 || points[0].QueueDepth != 1 {
		t.Errorf("expected history to also record the same snapshot, got %+v", points)
	}
}
