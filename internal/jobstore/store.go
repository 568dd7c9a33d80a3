// Package jobstore implements the in-memory job tracking store.
//
// The store is the single shared mutable resource between HTTP handlers and
// worker goroutines. All access goes through its lock; readers get snapshots,
// never live references.
package jobstore

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Type identifies the kind of pipeline a job runs.
type Type string

const (
	TypeAnalysis Type = "analysis"
	TypeAutoML   Type = "automl"
)

// ErrNotFound is returned when a job id is unknown to the store.
var ErrNotFound = errors.New("job not found")

// Record is a single job's mutable status record.
//
// Filepath and the artifact paths are internal filesystem locations and are
// stripped before records leave the API surface (see Sanitized).
type Record struct {
	ID        string    `json:"job_id"`
	Type      Type      `json:"type"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Filename  string    `json:"filename,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Filepath  string    `json:"-"`
	Error     string    `json:"error,omitempty"`

	// Stage outputs, appended as each stage completes.
	SummaryFile  string `json:"summary_file,omitempty"`
	ImageFile    string `json:"image_file,omitempty"`
	NotebookFile string `json:"notebook_file,omitempty"`
	InsightsFile string `json:"insights_file,omitempty"`
	OutputFile   string `json:"output_file,omitempty"`
	ModelFile    string `json:"model_file,omitempty"`
	PDFFile      string `json:"pdf_file,omitempty"`
	Metric       string `json:"metric,omitempty"`

	// Enrichment outcome: "llm" when the hosted model produced the insights,
	// "fallback" when the placeholder payload was substituted.
	InsightsSource string `json:"insights_source,omitempty"`
	InsightsReason string `json:"insights_reason,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Update describes a partial mutation of a job record. Nil fields are left
// untouched.
type Update struct {
	Status   *Status
	Progress *int
	Error    *string

	SummaryFile    *string
	ImageFile      *string
	NotebookFile   *string
	InsightsFile   *string
	OutputFile     *string
	ModelFile      *string
	PDFFile        *string
	InsightsSource *string
	InsightsReason *string
}

// Store is a mutex-guarded map of job id to record.
type Store struct {
	mu     sync.Mutex
	jobs   map[string]*Record
	logger *slog.Logger
}

// New creates an empty store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		jobs:   make(map[string]*Record),
		logger: logger.With("component", "jobstore"),
	}
}

// Create inserts a new record. The record starts queued with zero progress
// regardless of the fields passed in.
func (s *Store) Create(rec Record) {
	rec.Status = StatusQueued
	rec.Progress = 0
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[rec.ID] = &rec
	s.logger.Info("job created", "job_id", rec.ID, "type", rec.Type, "filename", rec.Filename)
}

// Apply atomically merges an update into an existing record. Unknown ids are
// a logged no-op, as are status transitions out of a terminal state. Progress
// is clamped to 0-100 and never decreases.
func (s *Store) Apply(jobID string, u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		s.logger.Warn("update for unknown job dropped", "job_id", jobID)
		return
	}

	if u.Status != nil {
		if rec.Status.Terminal() {
			s.logger.Warn("status update for terminal job dropped",
				"job_id", jobID, "current", rec.Status, "requested", *u.Status)
		} else {
			rec.Status = *u.Status
			if rec.Status.Terminal() {
				now := time.Now().UTC()
				rec.CompletedAt = &now
			}
		}
	}
	if u.Progress != nil {
		p := clamp(*u.Progress)
		if p > rec.Progress {
			rec.Progress = p
		}
	}
	if u.Error != nil {
		rec.Error = *u.Error
	}
	setIf(&rec.SummaryFile, u.SummaryFile)
	setIf(&rec.ImageFile, u.ImageFile)
	setIf(&rec.NotebookFile, u.NotebookFile)
	setIf(&rec.InsightsFile, u.InsightsFile)
	setIf(&rec.OutputFile, u.OutputFile)
	setIf(&rec.ModelFile, u.ModelFile)
	setIf(&rec.PDFFile, u.PDFFile)
	setIf(&rec.InsightsSource, u.InsightsSource)
	setIf(&rec.InsightsReason, u.InsightsReason)
}

// Get returns a snapshot of the record, or ErrNotFound.
func (s *Store) Get(jobID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return snapshot(rec), nil
}

// List returns snapshots of all records.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, snapshot(rec))
	}
	return out
}

// Delete removes a record, returning its final snapshot so the caller can
// clean up artifacts. Returns ErrNotFound for unknown ids.
func (s *Store) Delete(jobID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		return Record{}, ErrNotFound
	}
	delete(s.jobs, jobID)
	return snapshot(rec), nil
}

// Counts returns the number of active (queued or processing) and total jobs.
func (s *Store) Counts() (active, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.jobs {
		if !rec.Status.Terminal() {
			active++
		}
	}
	return active, len(s.jobs)
}

// Expired returns snapshots of terminal records whose completion time is
// older than ttl. Used by the retention janitor.
func (s *Store) Expired(ttl time.Duration, now time.Time) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, rec := range s.jobs {
		if !rec.Status.Terminal() || rec.CompletedAt == nil {
			continue
		}
		if now.Sub(*rec.CompletedAt) > ttl {
			out = append(out, snapshot(rec))
		}
	}
	return out
}

func snapshot(rec *Record) Record {
	cp := *rec
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}

func setIf(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Convenience helpers for worker code.

// MarkProcessing transitions the job to processing with the given progress.
func (s *Store) MarkProcessing(jobID string, progress int) {
	st := StatusProcessing
	s.Apply(jobID, Update{Status: &st, Progress: &progress})
}

// SetProgress advances the job's progress marker.
func (s *Store) SetProgress(jobID string, progress int) {
	s.Apply(jobID, Update{Progress: &progress})
}

// MarkFailed transitions the job to failed carrying the error message.
func (s *Store) MarkFailed(jobID string, errMsg string) {
	st := StatusFailed
	s.Apply(jobID, Update{Status: &st, Error: &errMsg})
}
