package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Store is the in-memory job registry. One instance is constructed per
// process and handed to every caller; all mutation goes through Update so
// callers never read-modify-write shared records.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

var _ interfaces.JobStore = (*Store)(nil)

// NewStore creates an empty job registry
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*models.Job),
	}
}

// Add registers a new job in pending state
func (s *Store) Add(id, keyword string, target, workerMode int) *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &models.Job{
		ID:          id,
		Keyword:     keyword,
		TargetCount: target,
		Status:      models.JobStatusPending,
		WorkerMode:  workerMode,
		CreatedAt:   time.Now(),
	}
	s.jobs[id] = job
	return copyJob(job)
}

// Update applies a partial update. Status changes are validated against
// the job state machine; a result file may only be attached to a job that
// ends up in the completed state.
func (s *Store) Update(id string, update interfaces.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}

	if update.Status != nil && *update.Status != job.Status {
		if !job.Status.CanTransitionTo(*update.Status) {
			return fmt.Errorf("invalid status transition %s -> %s for job %s", job.Status, *update.Status, id)
		}
		job.Status = *update.Status
		if job.Status.IsTerminal() {
			job.CompletedAt = time.Now()
		}
	}

	if update.ResultFile != nil {
		finalStatus := job.Status
		if finalStatus != models.JobStatusCompleted {
			return fmt.Errorf("result file requires completed status, job %s is %s", id, finalStatus)
		}
		job.ResultFile = *update.ResultFile
	}

	if update.Progress != nil {
		job.Progress = *update.Progress
	}

	return nil
}

// Get returns a copy of the job record
func (s *Store) Get(id string) (*models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return copyJob(job), true
}

// GetAll returns copies of every job, newest first
func (s *Store) GetAll() []*models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		all = append(all, copyJob(job))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all
}

// Remove deletes the job record
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// RequestCancel sets the advisory cancellation flag. The owning background
// task polls the flag and drives the job to a terminal state itself.
func (s *Store) RequestCancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %s already %s", id, job.Status)
	}

	job.CancelRequested = true
	if job.Status == models.JobStatusRunning {
		job.Status = models.JobStatusCancelling
	}
	return nil
}

// IsCancelled reports the cancellation flag. Unknown jobs read as
// cancelled so orphaned background tasks stop promptly.
func (s *Store) IsCancelled(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return true
	}
	return job.CancelRequested
}

// SetBatchID links a job to a batch group
func (s *Store) SetBatchID(id, batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.BatchID = batchID
	}
}

func copyJob(job *models.Job) *models.Job {
	clone := *job
	return &clone
}
