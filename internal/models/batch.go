package models

// BatchGroup tracks independently submitted jobs whose results are merged
// once all of them finish. The merge triggers exactly once, when Completed
// reaches Expected.
type BatchGroup struct {
	ID          string   `json:"id"`
	Expected    int      `json:"expected"`
	Completed   int      `json:"completed"`
	ResultFiles []string `json:"result_files"`
	Merged      bool     `json:"merged"`
	MergedFile  string   `json:"merged_file,omitempty"`
}
