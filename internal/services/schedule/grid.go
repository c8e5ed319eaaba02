package schedule

import (
	"github.com/ternarybob/colligo/internal/models"
)

// BuildGrid crosses variations with date chunks into a dense, zero-based,
// row-major ordered list of work items (all chunks of variation 0, then all
// chunks of variation 1, and so on). Checkpoint resume offsets are only
// meaningful under this fixed enumeration order.
func BuildGrid(variations []string, chunks []models.DateChunk) []models.WorkItem {
	items := make([]models.WorkItem, 0, len(variations)*len(chunks))
	index := 0
	for _, variation := range variations {
		if len(chunks) == 0 {
			items = append(items, models.WorkItem{Index: index, Variation: variation})
			index++
			continue
		}
		for _, chunk := range chunks {
			start, end := chunk.Start, chunk.End
			items = append(items, models.WorkItem{
				Index:     index,
				Variation: variation,
				Start:     &start,
				End:       &end,
			})
			index++
		}
	}
	return items
}
