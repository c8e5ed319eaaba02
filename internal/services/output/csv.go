package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

// preferredColumns lead the CSV header in a fixed order; any other keys
// observed across the record set follow alphabetically.
var preferredColumns = []string{
	models.FieldURL,
	models.FieldText,
	models.FieldTitle,
	models.FieldSnippet,
	models.FieldAuthor,
	models.FieldDate,
	models.FieldSource,
	models.FieldLikes,
	models.FieldReplies,
	models.FieldReposts,
}

// CSVMaterializer writes final record sets as CSV artifacts. Columns are
// the union of all observed record keys so heterogeneous records from the
// two sources keep every field.
type CSVMaterializer struct {
	config *common.OutputConfig
	logger arbor.ILogger
}

// NewCSVMaterializer creates a materializer writing into the configured
// output directory
func NewCSVMaterializer(config *common.OutputConfig, logger arbor.ILogger) *CSVMaterializer {
	return &CSVMaterializer{
		config: config,
		logger: logger,
	}
}

// Write materializes records into a keyword-and-timestamp named file and
// returns the bare filename for later retrieval.
func (m *CSVMaterializer) Write(keyword string, records []models.Record) (string, error) {
	if err := os.MkdirAll(m.config.Directory, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%d.csv", common.SanitizeFilename(keyword), time.Now().Unix())
	path := filepath.Join(m.config.Directory, filename)

	if err := writeCSV(path, records); err != nil {
		return "", err
	}

	m.logger.Info().
		Str("file", filename).
		Int("records", len(records)).
		Msg("Result artifact written")
	return filename, nil
}

func writeCSV(path string, records []models.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	columns := unionColumns(records)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(columns))
	for _, rec := range records {
		for i, col := range columns {
			row[i] = rec[col]
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return writer.Error()
}

// unionColumns collects every key across the record set: well-known fields
// first in their fixed order, then the rest alphabetically.
func unionColumns(records []models.Record) []string {
	present := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			present[k] = true
		}
	}

	var columns []string
	for _, col := range preferredColumns {
		if present[col] {
			columns = append(columns, col)
			delete(present, col)
		}
	}

	extras := make([]string, 0, len(present))
	for k := range present {
		extras = append(extras, k)
	}
	sort.Strings(extras)
	columns = append(columns, extras...)

	if len(columns) == 0 {
		columns = []string{models.FieldURL}
	}
	return columns
}

// ReadRecords loads a previously written artifact back into records.
// Used by batch merging and result previews.
func (m *CSVMaterializer) ReadRecords(filename string) ([]models.Record, error) {
	path := filepath.Join(m.config.Directory, filename)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	records := make([]models.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(models.Record, len(header))
		for i, col := range header {
			if i < len(row) && row[i] != "" {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Path resolves an artifact filename to its path inside the output
// directory, rejecting traversal outside it.
func (m *CSVMaterializer) Path(filename string) (string, error) {
	if filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid artifact name: %s", filename)
	}
	return filepath.Join(m.config.Directory, filename), nil
}
