package expand

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

type stubFetcher struct {
	records []models.Record
	err     error
	calls   int
}

func (f *stubFetcher) Fetch(ctx context.Context, query string, limit int) ([]models.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *stubFetcher) Name() string { return "stub" }

func newTestService(fetcher interfaces.Fetcher) *Service {
	return NewService(fetcher, common.NewDefaultConfig(), arbor.NewLogger())
}

func TestSimpleQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"flood", "flood"},
		{"flood,storm", "flood OR storm"},
		{" flood , storm warning ", "flood OR storm warning"},
		{"flood,,storm", "flood OR storm"},
	}

	for _, tt := range tests {
		if got := SimpleQuery(tt.input); got != tt.want {
			t.Errorf("SimpleQuery(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSeedVariations(t *testing.T) {
	got := SeedVariations("flood warning, storm")

	want := []string{"flood warning", "#floodwarning", "storm", "#storm"}
	if len(got) != len(want) {
		t.Fatalf("got %d variations %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("variation[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpandUsesDiscoveryContextWords(t *testing.T) {
	fetcher := &stubFetcher{
		records: []models.Record{
			{"url": "u1", "text": "massive flooding downtown rescue operations continue"},
			{"url": "u2", "text": "flooding rescue teams deployed downtown areas"},
			{"url": "u3", "text": "rescue boats arrive downtown"},
		},
	}
	svc := newTestService(fetcher)

	got := svc.Expand(context.Background(), "flood")

	if fetcher.calls != 1 {
		t.Fatalf("discovery fetch calls = %d, want 1", fetcher.calls)
	}

	// Seeds come first
	if got[0] != "flood" || got[1] != "#flood" {
		t.Errorf("expected seed variations first, got %v", got[:2])
	}

	// Repeated context words produce joined variations
	found := false
	for _, v := range got {
		if v == "flood downtown" || v == "flood rescue" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a context-word variation in %v", got)
	}
}

func TestExpandHashtagThreshold(t *testing.T) {
	fetcher := &stubFetcher{
		records: []models.Record{
			{"url": "u1", "text": "#floodwatch warning issued #floodwatch"},
			{"url": "u2", "text": "stay safe #once"},
		},
	}
	svc := newTestService(fetcher)

	got := svc.Expand(context.Background(), "flood")

	hasWatch, hasOnce := false, false
	for _, v := range got {
		if v == "#floodwatch" {
			hasWatch = true
		}
		if v == "#once" {
			hasOnce = true
		}
	}
	if !hasWatch {
		t.Errorf("hashtag seen twice should be included, got %v", got)
	}
	if hasOnce {
		t.Errorf("hashtag seen once should be dropped, got %v", got)
	}
}

func TestExpandDiscoveryFailureFallsBackToSeeds(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("browser disconnected")}
	svc := newTestService(fetcher)

	got := svc.Expand(context.Background(), "flood, storm")

	want := []string{"flood", "#flood", "storm", "#storm"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want seeds only %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("variation[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpandDedupeIsCaseInsensitive(t *testing.T) {
	fetcher := &stubFetcher{
		records: []models.Record{
			{"url": "u1", "text": "#Flood #flood #FLOOD"},
		},
	}
	svc := newTestService(fetcher)

	got := svc.Expand(context.Background(), "flood")

	count := 0
	for _, v := range got {
		if strings.EqualFold(v, "#flood") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one #flood form, got %d in %v", count, got)
	}
}

func TestExpandRespectsCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		tag := "#tag" + strconv.Itoa(i)
		// Each tag twice to clear the frequency threshold
		sb.WriteString(tag + " " + tag + " ")
	}
	fetcher := &stubFetcher{records: []models.Record{{"url": "u1", "text": sb.String()}}}

	cfg := common.NewDefaultConfig()
	cfg.Expand.MaxVariations = 10
	svc := NewService(fetcher, cfg, arbor.NewLogger())

	got := svc.Expand(context.Background(), "flood")

	if len(got) > 10 {
		t.Errorf("variation count %d exceeds cap 10", len(got))
	}
}
