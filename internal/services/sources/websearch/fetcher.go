package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"golang.org/x/time/rate"
)

const (
	searchEndpoint = "https://html.duckduckgo.com/html/"
	resultsPerPage = 30
	maxPages       = 10
)

// userAgents rotate across requests to blend into ordinary traffic
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// Fetcher is the secondary source: an HTML search-result scraper used by
// the fallback policy to make up shortfalls against the primary source.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
	uaIndex uint32
	// endpoint is overridable in tests
	endpoint string
}

// NewFetcher creates a web search fetcher
func NewFetcher(limiter *rate.Limiter, logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:  limiter,
		logger:   logger,
		endpoint: searchEndpoint,
	}
}

func (f *Fetcher) Name() string { return "websearch" }

// Fetch pages through search results until the soft limit is met or a page
// comes back empty.
func (f *Fetcher) Fetch(ctx context.Context, query string, limit int) ([]models.Record, error) {
	var records []models.Record
	seen := make(map[string]bool)

	for page := 0; page < maxPages && len(records) < limit; page++ {
		if ctx.Err() != nil {
			return records, nil
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return records, nil
			}
		}

		doc, err := f.fetchPage(ctx, query, page*resultsPerPage)
		if err != nil {
			if len(records) > 0 {
				// Partial yield beats a hard failure mid-pagination
				f.logger.Warn().Err(err).Int("page", page).Msg("Search pagination aborted, returning partial results")
				return records, nil
			}
			return nil, err
		}

		pageRecords := parseResults(doc)
		added := 0
		for _, rec := range pageRecords {
			key := rec.URL()
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			rec[models.FieldSource] = f.Name()
			records = append(records, rec)
			added++
			if len(records) >= limit {
				break
			}
		}

		if added == 0 {
			break
		}
	}

	f.logger.Debug().
		Str("query", query).
		Int("limit", limit).
		Int("fetched", len(records)).
		Msg("Web search fetch complete")
	return records, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, query string, offset int) (*goquery.Document, error) {
	params := url.Values{}
	params.Set("q", query)
	if offset > 0 {
		params.Set("s", strconv.Itoa(offset))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, interfaces.NewPermanentError("websearch", err)
	}
	req.Header.Set("User-Agent", f.nextUserAgent())
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, interfaces.NewTransientError("websearch", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, interfaces.NewTransientError("websearch", fmt.Errorf("status %d", resp.StatusCode))
	default:
		return nil, interfaces.NewPermanentError("websearch", fmt.Errorf("status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, interfaces.NewTransientError("websearch", err)
	}
	return doc, nil
}

func (f *Fetcher) nextUserAgent() string {
	i := atomic.AddUint32(&f.uaIndex, 1)
	return userAgents[int(i)%len(userAgents)]
}

// parseResults extracts result entries from a search result page
func parseResults(doc *goquery.Document) []models.Record {
	var records []models.Record

	doc.Find("div.result").Each(func(_ int, sel *goquery.Selection) {
		anchor := sel.Find("a.result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}

		target := resolveRedirect(href)
		if target == "" {
			return
		}

		records = append(records, models.Record{
			models.FieldURL:     target,
			models.FieldTitle:   cleanText(anchor.Text()),
			models.FieldSnippet: cleanText(sel.Find(".result__snippet").Text()),
		})
	})

	return records
}

// resolveRedirect unwraps the engine's redirect URL to the real target
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Host == "" && u.Scheme == "" {
		return ""
	}
	return href
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
