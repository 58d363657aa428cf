// Package store persists jobs in Postgres via database/sql and lib/pq,
// the teacher's driver for every services/*/internal store. Ported from
// the original project's services/job_repository.rs — same operation
// set, SQL placeholders swapped from sqlx's "?" to pq's "$N", and the
// claim/unclaim CAS pair kept as the crash-recovery primitive it is.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/yourflock/ingestd/internal/apperror"
	"github.com/yourflock/ingestd/internal/job"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
  id                       TEXT PRIMARY KEY,
  url                      TEXT NOT NULL,
  status                   TEXT NOT NULL,
  created_at               TIMESTAMPTZ NOT NULL,
  updated_at               TIMESTAMPTZ NOT NULL,
  downloaded_path          TEXT,
  processed_path           TEXT,
  error_message            TEXT,
  processing_time_seconds  BIGINT
);
CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs (status);
CREATE INDEX IF NOT EXISTS jobs_url_active_idx ON jobs (url) WHERE status IN ('Pending','Claimed','Downloading','Processing');
`

const jobColumns = `id, url, status, created_at, updated_at, downloaded_path, processed_path, error_message, processing_time_seconds`

// Store is the Postgres-backed JobStore.
type Store struct {
	db *sql.DB
}

// FromDB wraps an already-open *sql.DB (e.g. a sqlmock connection in
// tests) without running the migration or a connectivity check.
func FromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and runs the embedded migration. Callers own
// closing the returned Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperror.Newf(apperror.Storage, "failed to open database: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperror.Newf(apperror.Storage, "failed to connect to database: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, apperror.Newf(apperror.Storage, "failed to run migration: %v", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Create inserts a new job row.
func (s *Store) Create(ctx context.Context, j *job.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, j.ID, j.URL, string(j.Status), j.CreatedAt, j.UpdatedAt,
		j.DownloadedPath, j.ProcessedPath, j.ErrorMessage, j.ProcessingTimeSeconds)
	if err != nil {
		return apperror.Newf(apperror.Internal, "failed to create job: %v", err)
	}
	return nil
}

// Get fetches a job by ID, returning (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Newf(apperror.Internal, "failed to get job: %v", err)
	}
	return j, nil
}

// Update overwrites the mutable fields of an existing job row.
func (s *Store) Update(ctx context.Context, j *job.Job) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, updated_at = $2, downloaded_path = $3, processed_path = $4,
		    error_message = $5, processing_time_seconds = $6
		WHERE id = $7
	`, string(j.Status), j.UpdatedAt, j.DownloadedPath, j.ProcessedPath,
		j.ErrorMessage, j.ProcessingTimeSeconds, j.ID)
	if err != nil {
		return apperror.Newf(apperror.Internal, "failed to update job: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Newf(apperror.Internal, "failed to update job: %v", err)
	}
	if n == 0 {
		return apperror.Newf(apperror.NotFound, "job not found: %s", j.ID)
	}
	return nil
}

// UpdateStatus does a conditional (CAS) or unconditional status update.
// If from is non-nil, the update only applies when the stored status
// equals *from. Returns whether a row was actually changed.
func (s *Store) UpdateStatus(ctx context.Context, id string, to job.Status, from *job.Status) (bool, error) {
	var res sql.Result
	var err error
	if from != nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE jobs SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
			string(to), id, string(*from))
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE jobs SET status = $1, updated_at = now() WHERE id = $2`,
			string(to), id)
	}
	if err != nil {
		return false, apperror.Newf(apperror.Internal, "failed to update job status: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Newf(apperror.Internal, "failed to update job status: %v", err)
	}
	return n > 0, nil
}

// Stats returns a count of jobs per status, used as the database probe in
// the health checks and for the retention loop's before/after logging.
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, apperror.Newf(apperror.Internal, "failed to get job stats: %v", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperror.Newf(apperror.Internal, "failed to get job stats: %v", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ListByStatus returns every job with the given status, newest first.
func (s *Store) ListByStatus(ctx context.Context, status job.Status) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = $1 ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, apperror.Newf(apperror.Internal, "failed to list jobs: %v", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// Delete removes a job row. Deleting a nonexistent job is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id); err != nil {
		return apperror.Newf(apperror.Internal, "failed to delete job: %v", err)
	}
	return nil
}

// DeleteOlderThanDays removes terminal jobs (Completed/Failed/Cancelled)
// whose updated_at is older than the retention window, returning the IDs
// removed so the caller can clean up their on-disk files too.
func (s *Store) DeleteOlderThanDays(ctx context.Context, days int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM jobs
		WHERE status IN ('Completed', 'Failed', 'Cancelled')
		AND updated_at < now() - ($1 || ' days')::interval
		RETURNING id
	`, days)
	if err != nil {
		return nil, apperror.Newf(apperror.Internal, "failed to delete old jobs: %v", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperror.Newf(apperror.Internal, "failed to delete old jobs: %v", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPaginated returns a page of jobs, optionally filtered by status, and
// the total number of jobs matching the filter (for pagination metadata).
func (s *Store) ListPaginated(ctx context.Context, page, pageSize int, status *job.Status) ([]*job.Job, int64, error) {
	offset := page * pageSize

	var total int64
	var err error
	if status != nil {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE status = $1`, string(*status)).Scan(&total)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&total)
	}
	if err != nil {
		return nil, 0, apperror.Newf(apperror.Internal, "failed to count jobs: %v", err)
	}

	var rows *sql.Rows
	if status != nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+jobColumns+` FROM jobs WHERE status = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, string(*status), pageSize, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+jobColumns+` FROM jobs
			ORDER BY created_at DESC LIMIT $1 OFFSET $2
		`, pageSize, offset)
	}
	if err != nil {
		return nil, 0, apperror.Newf(apperror.Internal, "failed to list jobs: %v", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// ListPending returns every Pending job, oldest first, for queue
// restoration on startup.
func (s *Store) ListPending(ctx context.Context) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'Pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, apperror.Newf(apperror.Internal, "failed to get pending jobs: %v", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// TryClaimPending atomically transitions a Pending job to Claimed,
// reporting whether the claim succeeded. This is the CAS primitive the
// startup restorer uses to grab ownership of rows left behind by a crash.
func (s *Store) TryClaimPending(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'Claimed', updated_at = now() WHERE id = $1 AND status = 'Pending'`, id)
	if err != nil {
		return false, apperror.Newf(apperror.Internal, "failed to claim job: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Newf(apperror.Internal, "failed to claim job: %v", err)
	}
	return n > 0, nil
}

// Unclaim reverses TryClaimPending if enqueueing the claimed job failed,
// so it's picked up again on the next restore pass instead of being
// stranded in Claimed forever.
func (s *Store) Unclaim(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'Pending', updated_at = now() WHERE id = $1 AND status = 'Claimed'`, id); err != nil {
		return apperror.Newf(apperror.Internal, "failed to unclaim job: %v", err)
	}
	return nil
}

// FindActiveByURL finds the most recent non-terminal job for url, used to
// deduplicate concurrent submissions of the same video.
func (s *Store) FindActiveByURL(ctx context.Context, url string) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE url = $1 AND status IN ('Pending', 'Claimed', 'Downloading', 'Processing')
		ORDER BY created_at DESC LIMIT 1
	`, url)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Newf(apperror.Internal, "failed to find job by URL: %v", err)
	}
	return j, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*job.Job, error) {
	var j job.Job
	var status string
	if err := row.Scan(&j.ID, &j.URL, &status, &j.CreatedAt, &j.UpdatedAt,
		&j.DownloadedPath, &j.ProcessedPath, &j.ErrorMessage, &j.ProcessingTimeSeconds); err != nil {
		return nil, err
	}
	st, err := job.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("unknown job status %q: %w", status, err)
	}
	j.Status = st
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, apperror.Newf(apperror.Internal, "failed to scan job row: %v", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
