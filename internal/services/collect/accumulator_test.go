package collect

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ternarybob/colligo/internal/models"
)

func TestMergeDedupIdempotence(t *testing.T) {
	acc := NewAccumulator()

	rec := models.Record{"url": "https://example.com/p/1", "text": "hello"}

	if added := acc.Merge([]models.Record{rec}); added != 1 {
		t.Errorf("first merge added = %d, want 1", added)
	}
	if added := acc.Merge([]models.Record{rec}); added != 0 {
		t.Errorf("second merge of same record added = %d, want 0", added)
	}
	if acc.Count() != 1 {
		t.Errorf("Count = %d, want 1", acc.Count())
	}
}

func TestMergeFirstSeenWins(t *testing.T) {
	acc := NewAccumulator()

	acc.Merge([]models.Record{{"url": "https://example.com/p/1", "text": "original"}})
	acc.Merge([]models.Record{{"url": "https://example.com/p/1", "text": "duplicate"}})

	records, _ := acc.Snapshot()
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
	if records[0]["text"] != "original" {
		t.Errorf("kept record text = %q, want the first-seen copy", records[0]["text"])
	}
}

func TestMergeRejectsEmptyURL(t *testing.T) {
	acc := NewAccumulator()

	added := acc.Merge([]models.Record{
		{"text": "no url at all"},
		{"url": "", "text": "empty url"},
		{"url": "https://example.com/ok"},
	})
	if added != 1 {
		t.Errorf("added = %d, want 1 (records without identity keys rejected)", added)
	}
}

func TestMergeNormalizesIdentityKey(t *testing.T) {
	acc := NewAccumulator()

	acc.Merge([]models.Record{{"url": "https://Example.com/p/1?b=2&a=1#frag"}})
	added := acc.Merge([]models.Record{{"url": "https://example.com/p/1?a=1&b=2"}})

	if added != 0 {
		t.Errorf("equivalent URL forms should dedup, added = %d", added)
	}
}

func TestMergeConcurrentSafety(t *testing.T) {
	acc := NewAccumulator()

	// Every goroutine merges the same 50 URLs; only 50 should survive
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				acc.Merge([]models.Record{{"url": fmt.Sprintf("https://example.com/p/%d", i)}})
			}
		}()
	}
	wg.Wait()

	if acc.Count() != 50 {
		t.Errorf("Count = %d, want 50 unique across concurrent mergers", acc.Count())
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	acc := NewAccumulator()
	acc.Merge([]models.Record{
		{"url": "https://example.com/p/1", "text": "one"},
		{"url": "https://example.com/p/2", "text": "two"},
	})

	records, seen := acc.Snapshot()

	restored := NewAccumulator()
	restored.Restore(records, seen)

	if restored.Count() != 2 {
		t.Fatalf("restored Count = %d, want 2", restored.Count())
	}

	// Restored seen set must absorb duplicates exactly like the original
	if added := restored.Merge([]models.Record{{"url": "https://example.com/p/1"}}); added != 0 {
		t.Errorf("restored accumulator re-accepted a seen URL")
	}
	if added := restored.Merge([]models.Record{{"url": "https://example.com/p/3"}}); added != 1 {
		t.Errorf("restored accumulator rejected a new URL")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	acc := NewAccumulator()
	acc.Merge([]models.Record{{"url": "https://example.com/p/1"}})

	records, _ := acc.Snapshot()
	records[0]["url"] = "mutated"

	fresh, _ := acc.Snapshot()
	if fresh[0]["url"] != "https://example.com/p/1" {
		t.Errorf("snapshot mutation leaked into accumulator state: %q", fresh[0]["url"])
	}
}
