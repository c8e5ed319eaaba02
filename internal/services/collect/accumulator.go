package collect

import (
	"sync"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

// Accumulator merges records from concurrent workers into one growing
// collection, deduplicating by canonical URL. The check-and-insert is
// atomic under a single mutex so two workers holding the same URL can
// never both pass the membership test.
type Accumulator struct {
	mu      sync.Mutex
	seen    map[string]bool
	records []models.Record
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{
		seen: make(map[string]bool),
	}
}

// Merge adds records whose identity key is non-empty and unseen, returning
// the count of newly accepted records. The first-seen copy of a URL wins.
func (a *Accumulator) Merge(records []models.Record) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	added := 0
	for _, rec := range records {
		key := common.NormalizeURL(rec.URL())
		if key == "" || a.seen[key] {
			continue
		}
		a.seen[key] = true
		a.records = append(a.records, rec)
		added++
	}
	return added
}

// Count returns the number of unique records accepted so far
func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Snapshot returns consistent copies of the record list and seen-key set,
// taken under the accumulator lock. Used for checkpointing.
func (a *Accumulator) Snapshot() ([]models.Record, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	records := make([]models.Record, len(a.records))
	for i, rec := range a.records {
		clone := make(models.Record, len(rec))
		for k, v := range rec {
			clone[k] = v
		}
		records[i] = clone
	}

	keys := make([]string, 0, len(a.seen))
	for k := range a.seen {
		keys = append(keys, k)
	}
	return records, keys
}

// Restore replaces the accumulator state from a checkpoint. The seen set
// is restored verbatim so re-fetched duplicates are not double-counted.
func (a *Accumulator) Restore(records []models.Record, seenKeys []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.records = make([]models.Record, len(records))
	copy(a.records, records)

	a.seen = make(map[string]bool, len(seenKeys))
	for _, k := range seenKeys {
		a.seen[k] = true
	}
}
