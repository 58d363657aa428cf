// Package job defines the Job entity: the single first-class record the
// rest of ingestd is built around.
package job

import (
	"fmt"
	"regexp"
	"time"
)

// Status is one of the seven states a job can occupy. Terminal statuses
// (Completed, Failed, Cancelled) never transition out.
type Status string

const (
	Pending     Status = "Pending"
	Claimed     Status = "Claimed"
	Downloading Status = "Downloading"
	Processing  Status = "Processing"
	Completed   Status = "Completed"
	Failed      Status = "Failed"
	Cancelled   Status = "Cancelled"
)

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	switch s {
	case Completed, Failed, Cancelled:
		return true
	default:
		return false
	}
}

// ParseStatus validates a status string from a query parameter or row.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case Pending, Claimed, Downloading, Processing, Completed, Failed, Cancelled:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown job status: %s", s)
	}
}

// Priority orders dispatch: higher value dispatches first.
type Priority int

const (
	Low    Priority = 1
	Normal Priority = 2
	High   Priority = 3
)

// ParsePriority maps the HTTP-facing string to a Priority, defaulting to
// Normal for anything unrecognized (mirrors spec.md's POST /process contract).
func ParsePriority(s string) Priority {
	switch s {
	case "high":
		return High
	case "low":
		return Low
	default:
		return Normal
	}
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ValidID reports whether id is safe to use as a filename component and as
// a store primary key.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Job is the durable record tracked by the store and cloned in memory by
// the runner while it drives one job through the pipeline.
type Job struct {
	ID                     string
	URL                    string
	Status                 Status
	CreatedAt              time.Time
	UpdatedAt              time.Time
	DownloadedPath         *string
	ProcessedPath          *string
	ErrorMessage           *string
	ProcessingTimeSeconds  *int64
}

// New creates a Pending job for url under the caller-supplied id. It does
// not generate or validate the id; callers pass a filename-safe one.
func New(id, url string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		URL:       url,
		Status:    Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep-enough copy for the runner to mutate independently
// of whatever the caller holds.
func (j *Job) Clone() *Job {
	cp := *j
	if j.DownloadedPath != nil {
		p := *j.DownloadedPath
		cp.DownloadedPath = &p
	}
	if j.ProcessedPath != nil {
		p := *j.ProcessedPath
		cp.ProcessedPath = &p
	}
	if j.ErrorMessage != nil {
		m := *j.ErrorMessage
		cp.ErrorMessage = &m
	}
	if j.ProcessingTimeSeconds != nil {
		s := *j.ProcessingTimeSeconds
		cp.ProcessingTimeSeconds = &s
	}
	return &cp
}

// SetStatus advances the in-memory status and bumps UpdatedAt.
func (j *Job) SetStatus(s Status) {
	j.Status = s
	j.UpdatedAt = time.Now().UTC()
}

// SetError marks the job Failed with the given message.
func (j *Job) SetError(msg string) {
	j.Status = Failed
	j.ErrorMessage = &msg
	j.UpdatedAt = time.Now().UTC()
}

// SetErrorMessage records msg without touching Status, for callers that
// set the terminal status themselves (cancellation moves to Cancelled,
// not Failed, but still carries a message).
func (j *Job) SetErrorMessage(msg string) {
	j.ErrorMessage = &msg
	j.UpdatedAt = time.Now().UTC()
}

// SetDownloadedPath records where DownloadStage left its output.
func (j *Job) SetDownloadedPath(path string) {
	j.DownloadedPath = &path
	j.UpdatedAt = time.Now().UTC()
}

// SetProcessedPath records where TranscodeStage left its output.
func (j *Job) SetProcessedPath(path string) {
	j.ProcessedPath = &path
	j.UpdatedAt = time.Now().UTC()
}

// SetProcessingTime records the enter-Downloading to enter-Completed duration.
func (j *Job) SetProcessingTime(d time.Duration) {
	secs := int64(d.Seconds())
	j.ProcessingTimeSeconds = &secs
	j.UpdatedAt = time.Now().UTC()
}
