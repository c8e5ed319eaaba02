package models

import (
	"time"
)

// Checkpoint is a durable snapshot of one job's in-flight state, keyed by
// job id with one snapshot per job, overwritten in place. Reloading a
// checkpoint and resuming from LastCompletedIndex+1 must visit the
// complement work-item set exactly once; the restored seen-URL set keeps
// re-fetched duplicates from double-counting.
type Checkpoint struct {
	JobID      string      `json:"job_id" badgerhold:"key"`
	Keyword    string      `json:"keyword"`
	Variations []string    `json:"variations"`
	Chunks     []DateChunk `json:"chunks"`
	Records    []Record    `json:"records"`
	SeenURLs   []string    `json:"seen_urls"`
	// LastCompletedIndex is a max-seen-ordinal watermark, not a true
	// completion set. An out-of-order sibling can advance it past a still
	// retrying item; re-running that item on resume is wasteful but safe
	// because the seen set absorbs duplicates.
	LastCompletedIndex int       `json:"last_completed_index"`
	TotalItems         int       `json:"total_items"`
	TargetCount        int       `json:"target_count"`
	StartDate          string    `json:"start_date,omitempty"`
	EndDate            string    `json:"end_date,omitempty"`
	WorkerMode         int       `json:"worker_mode"`
	SavedAt            time.Time `json:"saved_at"`
}

// CheckpointSummary is the lightweight listing form of a pending checkpoint
type CheckpointSummary struct {
	JobID              string    `json:"job_id"`
	Keyword            string    `json:"keyword"`
	RecordCount        int       `json:"record_count"`
	LastCompletedIndex int       `json:"last_completed_index"`
	TotalItems         int       `json:"total_items"`
	SavedAt            time.Time `json:"saved_at"`
}

// Summary converts a checkpoint to its listing form
func (c *Checkpoint) Summary() CheckpointSummary {
	return CheckpointSummary{
		JobID:              c.JobID,
		Keyword:            c.Keyword,
		RecordCount:        len(c.Records),
		LastCompletedIndex: c.LastCompletedIndex,
		TotalItems:         c.TotalItems,
		SavedAt:            c.SavedAt,
	}
}
