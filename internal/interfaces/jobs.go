package interfaces

import (
	"github.com/ternarybob/colligo/internal/models"
)

// JobStore is the in-memory registry of job records. All operations are
// safe for concurrent use; Get and GetAll return copies so callers never
// mutate shared state directly.
type JobStore interface {
	Add(id, keyword string, target, workerMode int) *models.Job
	Update(id string, update JobUpdate) error
	Get(id string) (*models.Job, bool)
	GetAll() []*models.Job
	Remove(id string)
	RequestCancel(id string) error
	IsCancelled(id string) bool
}

// JobUpdate carries the mutable fields of a job record. Nil fields are left
// unchanged, so callers update status, progress and result independently.
type JobUpdate struct {
	Status     *models.JobStatus
	Progress   *string
	ResultFile *string
}

// StatusUpdate builds an update that only moves the status
func StatusUpdate(status models.JobStatus) JobUpdate {
	return JobUpdate{Status: &status}
}

// ProgressUpdate builds an update that only changes the progress message
func ProgressUpdate(progress string) JobUpdate {
	return JobUpdate{Progress: &progress}
}
