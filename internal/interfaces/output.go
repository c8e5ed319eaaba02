package interfaces

import (
	"github.com/ternarybob/colligo/internal/models"
)

// Materializer writes a final record set to a tabular artifact and returns
// the generated filename. Heterogeneous records are handled by taking the
// union of keys across all records as columns.
type Materializer interface {
	Write(keyword string, records []models.Record) (string, error)
}
