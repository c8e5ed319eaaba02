package models

import (
	"time"
)

// JobStatus represents the state of a collection job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusRunning    JobStatus = "running"
	JobStatusCancelling JobStatus = "cancelling"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status is a final state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo validates a status transition against the job state machine.
// Allowed: pending -> running, running -> cancelling, running/cancelling -> terminal.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusCancelling || next == JobStatusCompleted || next == JobStatusFailed
	case JobStatusCancelling:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Job represents one user-visible unit of collection work.
// Jobs are mutated exclusively through the job store's update operations,
// never read-modify-write by callers.
type Job struct {
	ID          string    `json:"id"`
	Keyword     string    `json:"keyword"`
	TargetCount int       `json:"target_count"`
	Status      JobStatus `json:"status"`
	Progress    string    `json:"progress,omitempty"`
	ResultFile  string    `json:"result_file,omitempty"`
	WorkerMode  int       `json:"worker_mode"`
	BatchID     string    `json:"batch_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	// CancelRequested is advisory. The owning background task polls it and
	// drives the job to a terminal state itself.
	CancelRequested bool `json:"cancel_requested"`
}

// JobRequest is the payload for creating a collection job
type JobRequest struct {
	Keyword    string `json:"keyword" validate:"required,min=1,max=200"`
	Count      int    `json:"count" validate:"min=0,max=100000"`
	Expand     bool   `json:"expand"`
	StartDate  string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	WorkerMode int    `json:"worker_mode,omitempty" validate:"omitempty,oneof=1 3 5"`
}

// UnlimitedTarget reports whether the request asks for uncapped collection.
// A zero count, or a very large count with an explicit date range, disables
// the early-stop cap and fetches a fixed amount per chunk instead.
func (r *JobRequest) UnlimitedTarget() bool {
	if r.Count == 0 {
		return true
	}
	return r.Count >= 10000 && r.StartDate != "" && r.EndDate != ""
}
