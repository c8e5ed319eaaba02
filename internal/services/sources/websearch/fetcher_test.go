package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

const resultPage = `
<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpost%2F1&rut=abc">First  Result</a>
  <div class="result__snippet">Snippet   one
  spans lines</div>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/post/2">Second Result</a>
  <div class="result__snippet">Snippet two</div>
</div>
<div class="result">
  <div class="result__snippet">Result without a link is skipped</div>
</div>
</body></html>`

func TestParseResults(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resultPage))
	if err != nil {
		t.Fatal(err)
	}

	records := parseResults(doc)

	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}
	if records[0]["url"] != "https://example.com/post/1" {
		t.Errorf("first url = %q, want redirect unwrapped", records[0]["url"])
	}
	if records[0]["title"] != "First Result" {
		t.Errorf("first title = %q", records[0]["title"])
	}
	if records[0]["snippet"] != "Snippet one spans lines" {
		t.Errorf("first snippet = %q, want whitespace collapsed", records[0]["snippet"])
	}
	if records[1]["url"] != "https://example.com/post/2" {
		t.Errorf("second url = %q", records[1]["url"])
	}
}

func TestResolveRedirect(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa", "https://example.com/a"},
		{"https://example.com/direct", "https://example.com/direct"},
		{"/relative/only", ""},
	}

	for _, tt := range tests {
		if got := resolveRedirect(tt.input); got != tt.want {
			t.Errorf("resolveRedirect(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFetchStopsAtLimit(t *testing.T) {
	var pages int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		var sb strings.Builder
		sb.WriteString("<html><body>")
		for i := 0; i < 5; i++ {
			sb.WriteString(fmt.Sprintf(
				`<div class="result"><a class="result__a" href="https://example.com/p%d-%s">R</a></div>`,
				i, r.URL.Query().Get("s")))
		}
		sb.WriteString("</body></html>")
		w.Write([]byte(sb.String()))
	}))
	defer server.Close()

	fetcher := NewFetcher(nil, arbor.NewLogger())
	fetcher.endpoint = server.URL

	records, err := fetcher.Fetch(context.Background(), "flood", 8)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 8 {
		t.Errorf("record count = %d, want limit 8", len(records))
	}
	if pages != 2 {
		t.Errorf("pages fetched = %d, want 2", pages)
	}
	for _, rec := range records {
		if rec["source"] != "websearch" {
			t.Errorf("record missing source tag: %v", rec)
		}
	}
}

func TestFetchEmptyPageEndsPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body></body></html>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(nil, arbor.NewLogger())
	fetcher.endpoint = server.URL

	records, err := fetcher.Fetch(context.Background(), "flood", 50)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("record count = %d, want 0", len(records))
	}
}

func TestFetchServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fetcher := NewFetcher(nil, arbor.NewLogger())
	fetcher.endpoint = server.URL

	_, err := fetcher.Fetch(context.Background(), "flood", 10)
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "transient") {
		t.Errorf("expected transient classification, got %v", err)
	}
}
