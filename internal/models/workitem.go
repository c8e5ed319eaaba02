package models

import (
	"fmt"
	"time"
)

// WorkItem is one (query variation, date chunk) unit of fetch work.
// Index is dense, zero-based and stable for a given (variations, chunks)
// pairing; resume correctness depends on this ordering.
type WorkItem struct {
	Index     int        `json:"index"`
	Variation string     `json:"variation"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
}

// Query renders the search query for this item, appending date operators
// when the chunk is date-bounded.
func (w WorkItem) Query() string {
	if w.Start == nil || w.End == nil {
		return w.Variation
	}
	return fmt.Sprintf("%s since:%s until:%s",
		w.Variation,
		w.Start.Format("2006-01-02"),
		w.End.Format("2006-01-02"))
}

// DateChunk is one bounded date sub-range produced by the chunker
type DateChunk struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
