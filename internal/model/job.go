package model

import "time"

// JobStatus represents the lifecycle state of an estimation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// DefaultLearnings seeds a fresh job's context summary.
const DefaultLearnings = "None yet. Proceed with standard search."

// Job is the durable record of one estimation run. Exactly one job is active
// at a time; a reset supersedes the prior job rather than merging with it.
//
// ProcessedCount is the resume position: Results holds exactly the first
// ProcessedCount menu items' line items, in original menu order, and
// PendingQueue holds everything not yet committed.
type Job struct {
	ID             string     `json:"id"`
	Status         JobStatus  `json:"status"`
	TotalItems     int        `json:"total_items"`
	ProcessedCount int        `json:"processed_count"`
	Learnings      string     `json:"learnings"`
	Results        []LineItem `json:"results"`
	PendingQueue   []MenuItem `json:"pending_queue"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewJob builds a pending job over the given menu.
func NewJob(id string, items []MenuItem) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:           id,
		Status:       JobStatusPending,
		TotalItems:   len(items),
		Learnings:    DefaultLearnings,
		Results:      []LineItem{},
		PendingQueue: append([]MenuItem(nil), items...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks the job's internal invariants.
func (j *Job) Validate() error {
	if j.ProcessedCount < 0 || j.ProcessedCount > j.TotalItems {
		return errInvariant("processed_count out of range")
	}
	if len(j.Results) != j.ProcessedCount {
		return errInvariant("results length does not match processed_count")
	}
	if j.ProcessedCount+len(j.PendingQueue) != j.TotalItems {
		return errInvariant("pending_queue does not account for remaining items")
	}
	return nil
}

// JobProgress is the read-only projection served to status readers.
type JobProgress struct {
	ProcessedCount int        `json:"processed_count"`
	TotalItems     int        `json:"total_items"`
	Status         JobStatus  `json:"status"`
	Learnings      string     `json:"learnings"`
	LatestItems    []LineItem `json:"latest_items"`
}

// Progress builds the status projection, returning at most the latest n
// results for visual feedback.
func (j *Job) Progress(n int) JobProgress {
	latest := j.Results
	if n > 0 && len(latest) > n {
		latest = latest[len(latest)-n:]
	}
	return JobProgress{
		ProcessedCount: j.ProcessedCount,
		TotalItems:     j.TotalItems,
		Status:         j.Status,
		Learnings:      j.Learnings,
		LatestItems:    append([]LineItem(nil), latest...),
	}
}

type invariantError string

func errInvariant(msg string) error { return invariantError(msg) }

func (e invariantError) Error() string { return "job invariant violated: " + string(e) }
