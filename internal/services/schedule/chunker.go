package schedule

import (
	"time"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

// Chunk size thresholds. Wider ranges use coarser chunks to keep the work
// grid bounded.
const (
	wideRangeDays   = 180
	mediumRangeDays = 60

	wideChunkDays   = 30
	mediumChunkDays = 14
	narrowChunkDays = 7
)

// Chunker splits date ranges into bounded sub-ranges
type Chunker struct {
	config *common.ChunkingConfig
	// now is injectable for tests
	now func() time.Time
}

// NewChunker creates a date chunker
func NewChunker(config *common.ChunkingConfig) *Chunker {
	return &Chunker{
		config: config,
		now:    time.Now,
	}
}

// Chunks produces ordered, non-overlapping sub-ranges covering [start,end]
// exactly. Nil dates synthesize a lookback window ending today, chunked
// weekly. A zero-length range yields one degenerate chunk.
func (c *Chunker) Chunks(start, end *time.Time) []models.DateChunk {
	if start == nil || end == nil {
		e := c.now().Truncate(24 * time.Hour)
		s := e.AddDate(0, 0, -c.config.LookbackDays)
		return split(s, e, narrowChunkDays)
	}

	s, e := *start, *end
	if !s.Before(e) {
		return []models.DateChunk{{Start: s, End: e}}
	}

	spanDays := int(e.Sub(s).Hours() / 24)
	if spanDays <= narrowChunkDays && !c.config.SplitSingleWeek {
		return []models.DateChunk{{Start: s, End: e}}
	}

	return split(s, e, chunkSizeFor(spanDays))
}

func chunkSizeFor(spanDays int) int {
	switch {
	case spanDays > wideRangeDays:
		return wideChunkDays
	case spanDays > mediumRangeDays:
		return mediumChunkDays
	default:
		return narrowChunkDays
	}
}

// split walks [start,end] in sizeDays steps. Adjacent chunks share a
// boundary date so the concatenation covers the span with no gaps; the
// final chunk is clamped to end.
func split(start, end time.Time, sizeDays int) []models.DateChunk {
	var chunks []models.DateChunk
	for cur := start; cur.Before(end); {
		next := cur.AddDate(0, 0, sizeDays)
		if next.After(end) {
			next = end
		}
		chunks = append(chunks, models.DateChunk{Start: cur, End: next})
		cur = next
	}
	if len(chunks) == 0 {
		chunks = append(chunks, models.DateChunk{Start: start, End: end})
	}
	return chunks
}
