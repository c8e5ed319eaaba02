package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// CheckpointStorage persists job snapshots for crash resume. One snapshot
// per job id, overwritten in place.
type CheckpointStorage interface {
	Save(ctx context.Context, checkpoint *models.Checkpoint) error
	Load(ctx context.Context, jobID string) (*models.Checkpoint, error)
	Delete(ctx context.Context, jobID string) error
	ListPending(ctx context.Context) ([]models.CheckpointSummary, error)
}
