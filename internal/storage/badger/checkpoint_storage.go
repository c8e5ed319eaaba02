package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CheckpointStorage implements the CheckpointStorage interface for Badger.
// One snapshot per job id, overwritten in place on each save.
type CheckpointStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.CheckpointStorage = (*CheckpointStorage)(nil)

// NewCheckpointStorage creates a new CheckpointStorage instance
func NewCheckpointStorage(db *BadgerDB, logger arbor.ILogger) *CheckpointStorage {
	return &CheckpointStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CheckpointStorage) Save(ctx context.Context, checkpoint *models.Checkpoint) error {
	if checkpoint.JobID == "" {
		return fmt.Errorf("checkpoint job ID is required")
	}

	checkpoint.SavedAt = time.Now()

	if err := s.db.Store().Upsert(checkpoint.JobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	s.logger.Debug().
		Str("job_id", checkpoint.JobID).
		Int("records", len(checkpoint.Records)).
		Int("last_completed_index", checkpoint.LastCompletedIndex).
		Msg("Checkpoint saved")
	return nil
}

func (s *CheckpointStorage) Load(ctx context.Context, jobID string) (*models.Checkpoint, error) {
	var checkpoint models.Checkpoint
	if err := s.db.Store().Get(jobID, &checkpoint); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func (s *CheckpointStorage) Delete(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &models.Checkpoint{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	s.logger.Debug().Str("job_id", jobID).Msg("Checkpoint deleted")
	return nil
}

func (s *CheckpointStorage) ListPending(ctx context.Context) ([]models.CheckpointSummary, error) {
	var checkpoints []models.Checkpoint
	if err := s.db.Store().Find(&checkpoints, badgerhold.Where("JobID").Ne("").SortBy("SavedAt").Reverse()); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	summaries := make([]models.CheckpointSummary, len(checkpoints))
	for i := range checkpoints {
		summaries[i] = checkpoints[i].Summary()
	}
	return summaries, nil
}

// DeleteOlderThan removes checkpoints whose last save precedes the cutoff.
// Used by the cleanup scheduler to discard abandoned jobs.
func (s *CheckpointStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []models.Checkpoint
	if err := s.db.Store().Find(&stale, badgerhold.Where("SavedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to find stale checkpoints: %w", err)
	}

	deleted := 0
	for i := range stale {
		if err := s.db.Store().Delete(stale[i].JobID, &models.Checkpoint{}); err != nil {
			s.logger.Warn().Err(err).Str("job_id", stale[i].JobID).Msg("Failed to delete stale checkpoint")
			continue
		}
		deleted++
	}
	return deleted, nil
}
