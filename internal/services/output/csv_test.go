package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

func newTestMaterializer(t *testing.T) *CSVMaterializer {
	t.Helper()
	cfg := &common.OutputConfig{Directory: t.TempDir()}
	return NewCSVMaterializer(cfg, arbor.NewLogger())
}

func TestWriteUnionOfFields(t *testing.T) {
	m := newTestMaterializer(t)

	// Records from two sources with disjoint field sets
	records := []models.Record{
		{"url": "https://example.com/p/1", "text": "a post", "likes": "5"},
		{"url": "https://search.example.com/r/1", "title": "a result", "snippet": "matched text"},
	}

	filename, err := m.Write("flood watch", records)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if !strings.HasPrefix(filename, "flood_watch_") || !strings.HasSuffix(filename, ".csv") {
		t.Errorf("filename = %q, want sanitized keyword + timestamp + .csv", filename)
	}

	file, err := os.Open(filepath.Join(m.config.Directory, filename))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != 3 {
		t.Fatalf("row count = %d, want header + 2 records", len(rows))
	}

	header := rows[0]
	for _, want := range []string{"url", "text", "title", "snippet", "likes"} {
		found := false
		for _, col := range header {
			if col == want {
				found = true
			}
		}
		if !found {
			t.Errorf("header %v missing column %q", header, want)
		}
	}

	// No field dropped: first record keeps likes, second keeps snippet
	col := map[string]int{}
	for i, c := range header {
		col[c] = i
	}
	if rows[1][col["likes"]] != "5" {
		t.Errorf("first record likes = %q, want 5", rows[1][col["likes"]])
	}
	if rows[1][col["snippet"]] != "" {
		t.Errorf("first record snippet should be empty, got %q", rows[1][col["snippet"]])
	}
	if rows[2][col["snippet"]] != "matched text" {
		t.Errorf("second record snippet = %q", rows[2][col["snippet"]])
	}
}

func TestWriteEmptyRecordSet(t *testing.T) {
	m := newTestMaterializer(t)

	filename, err := m.Write("empty", nil)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filename == "" {
		t.Error("expected a filename even for an empty set")
	}
}

func TestReadRecordsRoundTrip(t *testing.T) {
	m := newTestMaterializer(t)

	records := []models.Record{
		{"url": "https://example.com/p/1", "text": "one"},
		{"url": "https://example.com/p/2", "text": "two", "author": "bob"},
	}

	filename, err := m.Write("roundtrip", records)
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := m.ReadRecords(filename)
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d records, want 2", len(loaded))
	}
	if loaded[0]["url"] != "https://example.com/p/1" {
		t.Errorf("first url = %q", loaded[0]["url"])
	}
	if loaded[1]["author"] != "bob" {
		t.Errorf("second author = %q", loaded[1]["author"])
	}
	// Empty cells are not materialized as empty-string fields
	if _, ok := loaded[0]["author"]; ok {
		t.Error("empty cell should not produce a record field")
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	m := newTestMaterializer(t)

	if _, err := m.Path("../../etc/passwd"); err == nil {
		t.Error("expected traversal rejection")
	}
	if _, err := m.Path("good.csv"); err != nil {
		t.Errorf("plain filename rejected: %v", err)
	}
}
