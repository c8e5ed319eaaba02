package jobs

import (
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/output"
)

func newBatchFixture(t *testing.T) (*BatchTracker, *output.CSVMaterializer) {
	t.Helper()
	cfg := &common.OutputConfig{Directory: t.TempDir()}
	materializer := output.NewCSVMaterializer(cfg, arbor.NewLogger())
	return NewBatchTracker(materializer, arbor.NewLogger()), materializer
}

func TestBatchMergeTriggersExactlyOnce(t *testing.T) {
	tracker, materializer := newBatchFixture(t)

	fileA, err := materializer.Write("job-a", []models.Record{
		{"url": "https://example.com/p/1", "text": "one"},
		{"url": "https://example.com/p/2", "text": "two"},
	})
	if err != nil {
		t.Fatal(err)
	}
	fileB, err := materializer.Write("job-b", []models.Record{
		{"url": "https://example.com/p/2", "text": "duplicate of two"},
		{"url": "https://example.com/p/3", "text": "three"},
	})
	if err != nil {
		t.Fatal(err)
	}

	batchID := tracker.Create(2)

	merged, done, err := tracker.JobFinished(batchID, fileA)
	if err != nil {
		t.Fatal(err)
	}
	if done || merged != "" {
		t.Error("merge must not trigger before all jobs finish")
	}

	merged, done, err = tracker.JobFinished(batchID, fileB)
	if err != nil {
		t.Fatal(err)
	}
	if !done || merged == "" {
		t.Fatal("merge should trigger when completed == expected")
	}

	// Merged artifact deduplicates by URL across the two files
	records, err := materializer.ReadRecords(merged)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("merged record count = %d, want 3 unique URLs", len(records))
	}

	group, _ := tracker.Get(batchID)
	if !group.Merged || group.MergedFile != merged {
		t.Errorf("group state = %+v", group)
	}
}

func TestBatchCountsJobsWithoutArtifacts(t *testing.T) {
	tracker, materializer := newBatchFixture(t)

	file, err := materializer.Write("job-a", []models.Record{{"url": "https://example.com/p/1"}})
	if err != nil {
		t.Fatal(err)
	}

	batchID := tracker.Create(2)

	// A failed job finishes with no artifact but still advances the count
	if _, done, err := tracker.JobFinished(batchID, ""); err != nil || done {
		t.Fatalf("failed job completion: done=%v err=%v", done, err)
	}

	merged, done, err := tracker.JobFinished(batchID, file)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("merge should still trigger with a missing artifact")
	}

	records, err := materializer.ReadRecords(merged)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("merged record count = %d, want 1", len(records))
	}
}

func TestBatchUnknownID(t *testing.T) {
	tracker, _ := newBatchFixture(t)

	if _, _, err := tracker.JobFinished("batch_missing", "x.csv"); err == nil {
		t.Error("expected error for unknown batch id")
	}
}
