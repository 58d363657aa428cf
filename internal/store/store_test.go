package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/yourflock/ingestd/internal/job"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{db: db}, mock
}

func TestCreate_ExecutesInsert(t *testing.T) {
	s, mock := newMockStore(t)
	j := job.New("job-1", "https://youtube.com/watch?v=abc")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO jobs")).
		WithArgs(j.ID, j.URL, string(j.Status), j.CreatedAt, j.UpdatedAt,
			j.DownloadedPath, j.ProcessedPath, j.ErrorMessage, j.ProcessingTimeSeconds).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.Create(context.Background(), j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGet_ReturnsJob(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "url", "status", "created_at", "updated_at",
		"downloaded_path", "processed_path", "error_message", "processing_time_seconds",
	}).AddRow("job-1", "https://youtube.com/watch?v=abc", "Pending", now, now, nil, nil, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WithArgs("job-1").WillReturnRows(rows)

	got, err := s.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "job-1" || got.Status != job.Pending {
		t.Errorf("got %+v", got)
	}
}

func TestGet_NotFoundReturnsNil(t *testing.T) {
	s, mock := newMockStore(t)
	empty := sqlmock.NewRows([]string{
		"id", "url", "status", "created_at", "updated_at",
		"downloaded_path", "processed_path", "error_message", "processing_time_seconds",
	})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WithArgs("missing").WillReturnRows(empty)

	got, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil job, got %+v", got)
	}
}

func TestUpdateStatus_ConditionalSuccess(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE jobs SET status")).
		WithArgs(string(job.Claimed), "job-1", string(job.Pending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	from := job.Pending
	ok, err := s.UpdateStatus(context.Background(), "job-1", job.Claimed, &from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected conditional update to report success")
	}
}

func TestUpdateStatus_ConditionalNoMatch(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE jobs SET status")).
		WithArgs(string(job.Claimed), "job-1", string(job.Pending)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	from := job.Pending
	ok, err := s.UpdateStatus(context.Background(), "job-1", job.Claimed, &from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no rows affected to report false")
	}
}

func TestTryClaimPending_SucceedsOnce(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE jobs SET status = 'Claimed'")).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.TryClaimPending(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected claim to succeed")
	}
}

func TestTryClaimPending_FailsIfAlreadyClaimed(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE jobs SET status = 'Claimed'")).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.TryClaimPending(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected claim to fail when row is not Pending")
	}
}

func TestListPaginated_ReturnsJobsAndTotalCount(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "url", "status", "created_at", "updated_at",
			"downloaded_path", "processed_path", "error_message", "processing_time_seconds",
		}).AddRow("job-1", "https://youtube.com/watch?v=abc", "Pending", now, now, nil, nil, nil, nil))

	jobs, total, err := s.ListPaginated(context.Background(), 0, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 42 {
		t.Errorf("expected total 42 (distinct from page length), got %d", total)
	}
	if len(jobs) != 1 {
		t.Errorf("expected 1 job on this page, got %d", len(jobs))
	}
}

func TestListPaginated_FiltersByStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM jobs WHERE status")).
		WithArgs(string(job.Completed)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(string(job.Completed), 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "url", "status", "created_at", "updated_at",
			"downloaded_path", "processed_path", "error_message", "processing_time_seconds",
		}))

	status := job.Completed
	_, total, err := s.ListPaginated(context.Background(), 0, 20, &status)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
}

func TestStats_AggregatesCounts(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("Pending", 2).
		AddRow("Completed", 5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*)")).WillReturnRows(rows)

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats["Pending"] != 2 || stats["Completed"] != 5 {
		t.Errorf("got %+v", stats)
	}
}
