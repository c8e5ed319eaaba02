package schedule

import (
	"testing"
	"time"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func newTestChunker() *Chunker {
	cfg := common.NewDefaultConfig()
	return NewChunker(&cfg.Chunking)
}

// verifyCoverage checks the chunk list covers [start,end] exactly with no
// gaps and no overlaps.
func verifyCoverage(t *testing.T, chunks []models.DateChunk, start, end time.Time) {
	t.Helper()

	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if !chunks[0].Start.Equal(start) {
		t.Errorf("first chunk starts at %v, want %v", chunks[0].Start, start)
	}
	if !chunks[len(chunks)-1].End.Equal(end) {
		t.Errorf("last chunk ends at %v, want %v", chunks[len(chunks)-1].End, end)
	}
	for i := 1; i < len(chunks); i++ {
		if !chunks[i].Start.Equal(chunks[i-1].End) {
			t.Errorf("gap or overlap between chunk %d (end %v) and chunk %d (start %v)",
				i-1, chunks[i-1].End, i, chunks[i].Start)
		}
	}
}

func TestChunksAdaptiveSizing(t *testing.T) {
	tests := []struct {
		name      string
		spanDays  int
		chunkDays int
	}{
		{"200 day range uses 30 day chunks", 200, 30},
		{"90 day range uses 14 day chunks", 90, 14},
		{"20 day range uses 7 day chunks", 20, 7},
	}

	chunker := newTestChunker()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := date(2025, 1, 1)
			end := start.AddDate(0, 0, tt.spanDays)

			chunks := chunker.Chunks(&start, &end)
			verifyCoverage(t, chunks, start, end)

			// All chunks except the last clamped one have the expected width
			for i := 0; i < len(chunks)-1; i++ {
				width := int(chunks[i].End.Sub(chunks[i].Start).Hours() / 24)
				if width != tt.chunkDays {
					t.Errorf("chunk %d width = %d days, want %d", i, width, tt.chunkDays)
				}
			}
		})
	}
}

func TestChunksShortRangeSingleChunk(t *testing.T) {
	chunker := newTestChunker()

	start := date(2025, 3, 1)
	end := date(2025, 3, 6)

	chunks := chunker.Chunks(&start, &end)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for 5 day range, got %d", len(chunks))
	}
	verifyCoverage(t, chunks, start, end)
}

func TestChunksShortRangeSplitWhenConfigured(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Chunking.SplitSingleWeek = true
	chunker := NewChunker(&cfg.Chunking)

	start := date(2025, 3, 1)
	end := date(2025, 3, 6)

	chunks := chunker.Chunks(&start, &end)
	verifyCoverage(t, chunks, start, end)
}

func TestChunksZeroLengthRange(t *testing.T) {
	chunker := newTestChunker()

	day := date(2025, 5, 10)
	chunks := chunker.Chunks(&day, &day)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 degenerate chunk, got %d", len(chunks))
	}
	if !chunks[0].Start.Equal(day) || !chunks[0].End.Equal(day) {
		t.Errorf("degenerate chunk = [%v, %v], want [%v, %v]", chunks[0].Start, chunks[0].End, day, day)
	}
}

func TestChunksNoDatesSynthesizesLookback(t *testing.T) {
	cfg := common.NewDefaultConfig()
	chunker := NewChunker(&cfg.Chunking)
	chunker.now = func() time.Time { return date(2025, 6, 30) }

	chunks := chunker.Chunks(nil, nil)

	wantStart := date(2025, 6, 30).AddDate(0, 0, -cfg.Chunking.LookbackDays)
	verifyCoverage(t, chunks, wantStart, date(2025, 6, 30))

	// Lookback window is chunked weekly
	width := int(chunks[0].End.Sub(chunks[0].Start).Hours() / 24)
	if width != 7 {
		t.Errorf("lookback chunk width = %d days, want 7", width)
	}
}
