package badger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestStorage(t *testing.T) (*CheckpointStorage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "badger-test")
	if err != nil {
		t.Fatal(err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatal(err)
	}

	db := &BadgerDB{store: store}
	storage := &CheckpointStorage{db: db, logger: arbor.NewLogger()}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return storage, cleanup
}

func TestCheckpointRoundTrip(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	original := &models.Checkpoint{
		JobID:      "job_test-1",
		Keyword:    "flood",
		Variations: []string{"flood", "#flood", "flood warning"},
		Chunks: []models.DateChunk{
			{Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)},
			{Start: time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		},
		Records: []models.Record{
			{"url": "https://example.com/p/1", "text": "first"},
			{"url": "https://example.com/p/2", "text": "second"},
		},
		SeenURLs:           []string{"https://example.com/p/1", "https://example.com/p/2"},
		LastCompletedIndex: 4,
		TotalItems:         10,
		TargetCount:        120,
		WorkerMode:         3,
	}

	if err := storage.Save(ctx, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "job_test-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected checkpoint, got nil")
	}

	if loaded.Keyword != original.Keyword {
		t.Errorf("Keyword = %q, want %q", loaded.Keyword, original.Keyword)
	}
	if len(loaded.Variations) != 3 {
		t.Errorf("Variations length = %d, want 3", len(loaded.Variations))
	}
	if len(loaded.Chunks) != 2 {
		t.Errorf("Chunks length = %d, want 2", len(loaded.Chunks))
	}
	if len(loaded.Records) != 2 {
		t.Errorf("Records length = %d, want 2", len(loaded.Records))
	}
	if loaded.Records[0]["url"] != "https://example.com/p/1" {
		t.Errorf("first record url = %q", loaded.Records[0]["url"])
	}
	if len(loaded.SeenURLs) != 2 {
		t.Errorf("SeenURLs length = %d, want 2", len(loaded.SeenURLs))
	}
	if loaded.LastCompletedIndex != 4 {
		t.Errorf("LastCompletedIndex = %d, want 4", loaded.LastCompletedIndex)
	}
	if loaded.SavedAt.IsZero() {
		t.Error("SavedAt should be set on save")
	}
}

func TestCheckpointOverwrite(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	first := &models.Checkpoint{JobID: "job_overwrite", Keyword: "storm", LastCompletedIndex: 2, TotalItems: 8}
	if err := storage.Save(ctx, first); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	second := &models.Checkpoint{JobID: "job_overwrite", Keyword: "storm", LastCompletedIndex: 7, TotalItems: 8}
	if err := storage.Save(ctx, second); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "job_overwrite")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LastCompletedIndex != 7 {
		t.Errorf("LastCompletedIndex = %d, want 7 (overwritten in place)", loaded.LastCompletedIndex)
	}

	summaries, err := storage.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("expected 1 pending checkpoint, got %d", len(summaries))
	}
}

func TestCheckpointLoadMissing(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	loaded, err := storage.Load(context.Background(), "job_missing")
	if err != nil {
		t.Fatalf("Load of missing checkpoint should not error, got %v", err)
	}
	if loaded != nil {
		t.Error("expected nil checkpoint for missing job id")
	}
}

func TestCheckpointDelete(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	cp := &models.Checkpoint{JobID: "job_del", Keyword: "fire"}
	if err := storage.Save(ctx, cp); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := storage.Delete(ctx, "job_del"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "job_del")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != nil {
		t.Error("expected checkpoint to be gone after delete")
	}

	// Deleting again is not an error
	if err := storage.Delete(ctx, "job_del"); err != nil {
		t.Errorf("repeat Delete should be nil, got %v", err)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	stale := &models.Checkpoint{JobID: "job_stale", Keyword: "old"}
	if err := storage.Save(ctx, stale); err != nil {
		t.Fatal(err)
	}
	// Backdate the stale checkpoint past the cutoff
	stale.SavedAt = time.Now().Add(-10 * 24 * time.Hour)
	if err := storage.db.Store().Upsert(stale.JobID, stale); err != nil {
		t.Fatal(err)
	}

	fresh := &models.Checkpoint{JobID: "job_fresh", Keyword: "new"}
	if err := storage.Save(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	deleted, err := storage.DeleteOlderThan(ctx, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	loaded, _ := storage.Load(ctx, "job_fresh")
	if loaded == nil {
		t.Error("fresh checkpoint should survive cleanup")
	}
}
