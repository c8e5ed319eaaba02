package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/collect"
	"github.com/ternarybob/colligo/internal/services/expand"
	"github.com/ternarybob/colligo/internal/services/output"
	"github.com/ternarybob/colligo/internal/services/schedule"
)

// Grace periods before finished jobs leave the registry
const (
	completedRemovalGrace = 30 * time.Second
	failedRemovalGrace    = 10 * time.Second
)

// Service owns the full collection pipeline. Each submitted job runs as
// one panic-protected background task: expand, chunk, build the grid,
// execute against the primary source, top up from the secondary source,
// materialize, and drive the job record to a terminal state.
type Service struct {
	config       *common.Config
	store        *Store
	checkpoints  interfaces.CheckpointStorage
	primary      interfaces.Fetcher
	expander     *expand.Service
	chunker      *schedule.Chunker
	fallback     *collect.Fallback
	materializer *output.CSVMaterializer
	batches      *BatchTracker
	events       interfaces.EventPublisher
	validate     *validator.Validate
	logger       arbor.ILogger

	// jobGate serializes whole-job execution when configured. This keeps
	// concurrent jobs from stacking load on the external source.
	jobGate chan struct{}
}

// ServiceDeps carries the collaborators for NewService
type ServiceDeps struct {
	Config       *common.Config
	Store        *Store
	Checkpoints  interfaces.CheckpointStorage
	Primary      interfaces.Fetcher
	Secondary    interfaces.Fetcher
	Expander     *expand.Service
	Chunker      *schedule.Chunker
	Materializer *output.CSVMaterializer
	Batches      *BatchTracker
	Events       interfaces.EventPublisher
	Logger       arbor.ILogger
}

// NewService wires the job pipeline
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		config:       deps.Config,
		store:        deps.Store,
		checkpoints:  deps.Checkpoints,
		primary:      deps.Primary,
		expander:     deps.Expander,
		chunker:      deps.Chunker,
		fallback:     collect.NewFallback(deps.Secondary, &deps.Config.Fallback, deps.Logger),
		materializer: deps.Materializer,
		batches:      deps.Batches,
		events:       deps.Events,
		validate:     validator.New(),
		logger:       deps.Logger,
	}
	if s.events == nil {
		s.events = interfaces.NopPublisher{}
	}
	if deps.Config.Workers.SerializeJobs {
		s.jobGate = make(chan struct{}, 1)
	}
	return s
}

// SetEventPublisher replaces the progress event sink. Call before any
// job is submitted.
func (s *Service) SetEventPublisher(events interfaces.EventPublisher) {
	if events == nil {
		events = interfaces.NopPublisher{}
	}
	s.events = events
}

// Submit validates the request, registers the job and starts its
// background task. The returned job is a snapshot in pending state.
func (s *Service) Submit(req *models.JobRequest) (*models.Job, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid job request: %w", err)
	}
	if req.WorkerMode == 0 {
		req.WorkerMode = s.config.Workers.DefaultMode
	}

	id := common.NewJobID()
	job := s.store.Add(id, req.Keyword, req.Count, req.WorkerMode)

	reqCopy := *req
	common.SafeGo(s.logger, "job "+id, func() {
		s.run(id, &reqCopy, nil)
	})

	s.logger.Info().
		Str("job_id", id).
		Str("keyword", req.Keyword).
		Int("target", req.Count).
		Int("workers", req.WorkerMode).
		Bool("expand", req.Expand).
		Msg("Job submitted")
	return job, nil
}

// SubmitBatch registers a batch group and submits its jobs. The group's
// artifacts are merged once every job finishes.
func (s *Service) SubmitBatch(reqs []*models.JobRequest) (string, []*models.Job, error) {
	if len(reqs) == 0 {
		return "", nil, fmt.Errorf("batch requires at least one job")
	}

	batchID := s.batches.Create(len(reqs))
	jobs := make([]*models.Job, 0, len(reqs))
	for _, req := range reqs {
		job, err := s.Submit(req)
		if err != nil {
			// Count the rejected slot so the survivors can still merge
			s.batches.JobFinished(batchID, "")
			s.logger.Warn().Err(err).Str("batch_id", batchID).Msg("Batch job rejected")
			continue
		}
		s.store.SetBatchID(job.ID, batchID)
		jobs = append(jobs, job)
	}
	if len(jobs) == 0 {
		return "", nil, fmt.Errorf("all batch jobs were rejected")
	}
	return batchID, jobs, nil
}

// Resume restarts a job from its persisted checkpoint, reprocessing the
// complement work-item set from last_completed_index+1.
func (s *Service) Resume(jobID string) (*models.Job, error) {
	cp, err := s.checkpoints.Load(context.Background(), jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return nil, fmt.Errorf("no checkpoint for job %s", jobID)
	}

	if existing, ok := s.store.Get(jobID); ok && !existing.Status.IsTerminal() {
		return nil, fmt.Errorf("job %s is still %s", jobID, existing.Status)
	}
	s.store.Remove(jobID)

	job := s.store.Add(jobID, cp.Keyword, cp.TargetCount, cp.WorkerMode)
	req := &models.JobRequest{
		Keyword:    cp.Keyword,
		Count:      cp.TargetCount,
		StartDate:  cp.StartDate,
		EndDate:    cp.EndDate,
		WorkerMode: cp.WorkerMode,
	}

	common.SafeGo(s.logger, "job "+jobID, func() {
		s.run(jobID, req, cp)
	})

	s.logger.Info().
		Str("job_id", jobID).
		Int("resume_offset", cp.LastCompletedIndex+1).
		Int("total_items", cp.TotalItems).
		Int("restored_records", len(cp.Records)).
		Msg("Job resumed from checkpoint")
	return job, nil
}

// Cancel sets the job's advisory cancellation flag
func (s *Service) Cancel(jobID string) error {
	if err := s.store.RequestCancel(jobID); err != nil {
		return err
	}
	s.publish(jobID)
	return nil
}

// run is the owning background task for one job. Only this task moves the
// job out of running.
func (s *Service) run(id string, req *models.JobRequest, cp *models.Checkpoint) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_id", id).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Job task panicked")
			s.finishFailed(id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if s.jobGate != nil {
		s.setProgress(id, "waiting for the running job to finish")
		s.jobGate <- struct{}{}
		defer func() { <-s.jobGate }()
	}

	s.setStatus(id, models.JobStatusRunning)

	start := parseDate(req.StartDate)
	end := parseDate(req.EndDate)

	var variations []string
	var chunks []models.DateChunk
	if cp != nil {
		variations = cp.Variations
		chunks = cp.Chunks
	} else {
		if req.Expand {
			s.setProgress(id, "discovering query variations")
			variations = s.expander.Expand(context.Background(), req.Keyword)
		} else {
			variations = []string{expand.SimpleQuery(req.Keyword)}
		}
		chunks = s.chunker.Chunks(start, end)
	}

	grid := schedule.BuildGrid(variations, chunks)

	acc := collect.NewAccumulator()
	resumeOffset := 0
	if cp != nil {
		acc.Restore(cp.Records, cp.SeenURLs)
		resumeOffset = cp.LastCompletedIndex + 1
		if resumeOffset > len(grid) {
			resumeOffset = len(grid)
		}
	}
	pending := grid[resumeOffset:]

	target := req.Count
	if req.UnlimitedTarget() {
		target = 0
	}

	s.setProgress(id, fmt.Sprintf("%d variations x %d chunks, %d items pending", len(variations), len(chunks), len(pending)))

	saveCheckpoint := func(watermark int) {
		records, seen := acc.Snapshot()
		checkpoint := &models.Checkpoint{
			JobID:              id,
			Keyword:            req.Keyword,
			Variations:         variations,
			Chunks:             chunks,
			Records:            records,
			SeenURLs:           seen,
			LastCompletedIndex: watermark,
			TotalItems:         len(grid),
			TargetCount:        req.Count,
			StartDate:          req.StartDate,
			EndDate:            req.EndDate,
			WorkerMode:         req.WorkerMode,
		}
		// A failed save costs one checkpoint cycle, never the job
		if err := s.checkpoints.Save(context.Background(), checkpoint); err != nil {
			s.logger.Warn().Err(err).Str("job_id", id).Msg("Checkpoint save failed, continuing")
		}
	}

	executor := collect.NewExecutor(collect.ExecutorParams{
		Fetcher:         s.primary,
		Accumulator:     acc,
		Retry:           collect.NewRetryPolicy(&s.config.Workers),
		Logger:          s.logger,
		Target:          target,
		Workers:         req.WorkerMode,
		StaggerDelay:    s.config.Workers.StaggerDelay,
		CheckpointEvery: s.config.Workers.CheckpointEvery,
		Cancelled: func() bool {
			return s.store.IsCancelled(id)
		},
		OnProgress: func(done, total, unique int) {
			msg := fmt.Sprintf("%d/%d items, %d unique collected", done, total, unique)
			if err := s.store.Update(id, interfaces.ProgressUpdate(msg)); err != nil {
				s.logger.Debug().Err(err).Str("job_id", id).Msg("Progress update rejected")
			}
			s.publishUnique(id, unique)
		},
		OnCheckpoint: saveCheckpoint,
	})

	result := executor.Run(context.Background(), pending)

	s.logger.Info().
		Str("job_id", id).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Bool("early_stopped", result.EarlyStopped).
		Bool("cancelled", result.Cancelled).
		Int("unique", acc.Count()).
		Msg("Primary execution finished")

	if target > 0 && acc.Count() < target && !result.Cancelled {
		s.setProgress(id, fmt.Sprintf("topping up from secondary source: %d/%d collected", acc.Count(), target))
		added := s.fallback.TopUp(context.Background(), variations, target, acc, func() bool {
			return s.store.IsCancelled(id)
		})
		s.logger.Info().
			Str("job_id", id).
			Int("added", added).
			Int("unique", acc.Count()).
			Msg("Secondary top-up finished")
	}

	records, _ := acc.Snapshot()
	cancelled := s.store.IsCancelled(id)

	if len(records) == 0 {
		if cancelled {
			s.finishFailed(id, "cancelled before any results were collected")
		} else {
			s.finishFailed(id, "no results collected from any source")
		}
		return
	}

	filename, err := s.materializer.Write(req.Keyword, records)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", id).Msg("Failed to write result artifact")
		s.finishFailed(id, fmt.Sprintf("failed to write results: %v", err))
		return
	}

	message := fmt.Sprintf("%d unique records collected", len(records))
	if target > 0 && len(records) < target {
		message = fmt.Sprintf("%s (below target of %d)", message, target)
	}
	if cancelled {
		message += ", stopped by cancellation"
	}

	s.finishCompleted(id, filename, message)
}

// finishCompleted drives the job to its terminal success state, discards
// the checkpoint and schedules removal after the grace period.
func (s *Service) finishCompleted(id, filename, message string) {
	status := models.JobStatusCompleted
	err := s.store.Update(id, interfaces.JobUpdate{
		Status:     &status,
		Progress:   &message,
		ResultFile: &filename,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Msg("Failed to finalize job")
	}
	s.publish(id)

	if err := s.checkpoints.Delete(context.Background(), id); err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Msg("Failed to delete checkpoint")
	}

	s.notifyBatch(id, filename)
	s.scheduleRemoval(id, completedRemovalGrace)
}

// finishFailed drives the job to its terminal failure state. The
// checkpoint is kept so the job can be resumed.
func (s *Service) finishFailed(id, message string) {
	status := models.JobStatusFailed
	err := s.store.Update(id, interfaces.JobUpdate{
		Status:   &status,
		Progress: &message,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Msg("Failed to mark job failed")
	}
	s.publish(id)

	s.notifyBatch(id, "")
	s.scheduleRemoval(id, failedRemovalGrace)
}

func (s *Service) notifyBatch(id, filename string) {
	job, ok := s.store.Get(id)
	if !ok || job.BatchID == "" {
		return
	}

	merged, done, err := s.batches.JobFinished(job.BatchID, filename)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Str("batch_id", job.BatchID).Msg("Batch completion failed")
		return
	}
	if done {
		s.registerMergedJob(job.BatchID, merged)
	}
}

// registerMergedJob surfaces the batch merge result as its own completed
// job so it is visible and downloadable like any other.
func (s *Service) registerMergedJob(batchID, filename string) {
	id := common.NewJobID()
	s.store.Add(id, "batch merge "+batchID, 0, 0)

	running := models.JobStatusRunning
	s.store.Update(id, interfaces.JobUpdate{Status: &running})

	status := models.JobStatusCompleted
	message := "merged batch results"
	if err := s.store.Update(id, interfaces.JobUpdate{
		Status:     &status,
		Progress:   &message,
		ResultFile: &filename,
	}); err != nil {
		s.logger.Warn().Err(err).Str("batch_id", batchID).Msg("Failed to register merged job")
	}
	s.publish(id)
}

func (s *Service) scheduleRemoval(id string, grace time.Duration) {
	common.SafeGo(s.logger, "jobRemoval "+id, func() {
		time.Sleep(grace)
		s.store.Remove(id)
	})
}

func (s *Service) setStatus(id string, status models.JobStatus) {
	if err := s.store.Update(id, interfaces.StatusUpdate(status)); err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Msg("Status update rejected")
	}
	s.publish(id)
}

func (s *Service) setProgress(id, message string) {
	if err := s.store.Update(id, interfaces.ProgressUpdate(message)); err != nil {
		s.logger.Debug().Err(err).Str("job_id", id).Msg("Progress update rejected")
	}
	s.publish(id)
}

func (s *Service) publish(id string) {
	s.publishUnique(id, 0)
}

func (s *Service) publishUnique(id string, unique int) {
	job, ok := s.store.Get(id)
	if !ok {
		return
	}
	s.events.Publish(models.ProgressEvent{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		UniqueCount: unique,
		Timestamp:   time.Now(),
	})
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}
