package jobs

import (
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/collect"
	"github.com/ternarybob/colligo/internal/services/output"
)

// BatchTracker groups independently submitted jobs and merges their result
// artifacts once all of them finish. The merge fires exactly once, when
// the completed count reaches the expected count.
type BatchTracker struct {
	mu           sync.Mutex
	groups       map[string]*models.BatchGroup
	materializer *output.CSVMaterializer
	logger       arbor.ILogger
}

// NewBatchTracker creates a batch tracker
func NewBatchTracker(materializer *output.CSVMaterializer, logger arbor.ILogger) *BatchTracker {
	return &BatchTracker{
		groups:       make(map[string]*models.BatchGroup),
		materializer: materializer,
		logger:       logger,
	}
}

// Create registers a group expecting the given number of jobs
func (t *BatchTracker) Create(expected int) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := common.NewBatchID()
	t.groups[id] = &models.BatchGroup{
		ID:       id,
		Expected: expected,
	}
	return id
}

// Get returns a copy of the group state
func (t *BatchTracker) Get(id string) (*models.BatchGroup, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	group, ok := t.groups[id]
	if !ok {
		return nil, false
	}
	clone := *group
	clone.ResultFiles = append([]string(nil), group.ResultFiles...)
	return &clone, true
}

// JobFinished records one finished job. Jobs that produced no artifact
// still count toward completion. When the group completes, the listed
// artifacts are merged with URL dedup into a single file.
func (t *BatchTracker) JobFinished(batchID, resultFile string) (string, bool, error) {
	t.mu.Lock()
	group, ok := t.groups[batchID]
	if !ok {
		t.mu.Unlock()
		return "", false, fmt.Errorf("batch not found: %s", batchID)
	}

	group.Completed++
	if resultFile != "" {
		group.ResultFiles = append(group.ResultFiles, resultFile)
	}

	if group.Completed < group.Expected || group.Merged {
		t.mu.Unlock()
		return "", false, nil
	}

	group.Merged = true
	files := append([]string(nil), group.ResultFiles...)
	t.mu.Unlock()

	merged, err := t.merge(files)
	if err != nil {
		return "", false, err
	}

	t.mu.Lock()
	group.MergedFile = merged
	t.mu.Unlock()

	t.logger.Info().
		Str("batch_id", batchID).
		Int("files", len(files)).
		Str("merged_file", merged).
		Msg("Batch results merged")
	return merged, true, nil
}

func (t *BatchTracker) merge(files []string) (string, error) {
	acc := collect.NewAccumulator()
	for _, file := range files {
		records, err := t.materializer.ReadRecords(file)
		if err != nil {
			t.logger.Warn().Err(err).Str("file", file).Msg("Skipping unreadable artifact in batch merge")
			continue
		}
		acc.Merge(records)
	}

	records, _ := acc.Snapshot()
	return t.materializer.Write("batch_merged", records)
}
