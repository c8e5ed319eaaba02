package timeline

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"golang.org/x/time/rate"
)

const (
	searchBaseURL = "https://x.com/search"
	cookieDomain  = ".x.com"
)

// Fetcher is the primary source: a chromedp-driven timeline search scraper.
// One browser instance is shared across fetches; the instance is created
// lazily on first use and recreated after a browser-level failure.
type Fetcher struct {
	config  *common.ScraperConfig
	limiter *rate.Limiter
	logger  arbor.ILogger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewFetcher creates a timeline fetcher. The limiter paces navigation
// globally across all jobs.
func NewFetcher(config *common.ScraperConfig, limiter *rate.Limiter, logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		config:  config,
		limiter: limiter,
		logger:  logger,
	}
}

func (f *Fetcher) Name() string { return "timeline" }

// Fetch drives the browser through a timeline search, scrolling until the
// soft limit is met or the page stops yielding new posts.
func (f *Fetcher) Fetch(ctx context.Context, query string, limit int) ([]models.Record, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, interfaces.NewTransientError("timeline", err)
		}
	}

	browserCtx, err := f.browser()
	if err != nil {
		return nil, interfaces.NewTransientError("timeline", err)
	}

	fetchCtx, cancel := context.WithTimeout(browserCtx, f.config.RequestTimeout)
	defer cancel()

	// Propagate caller cancellation into the browser context
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	target := fmt.Sprintf("%s?q=%s&f=live", searchBaseURL, url.QueryEscape(query))

	if err := chromedp.Run(fetchCtx,
		chromedp.Navigate(target),
		chromedp.Sleep(f.config.ScrollDelay),
	); err != nil {
		f.dropBrowser()
		return nil, classify("navigate", err)
	}

	records, err := f.scrollAndExtract(fetchCtx, ctx, query, limit)
	if err != nil {
		f.dropBrowser()
		return nil, err
	}

	f.logger.Debug().
		Str("query", query).
		Int("limit", limit).
		Int("fetched", len(records)).
		Msg("Timeline fetch complete")
	return records, nil
}

// scrollAndExtract alternates extraction and scrolling, giving up after a
// run of scrolls that surface nothing new.
func (f *Fetcher) scrollAndExtract(fetchCtx, callerCtx context.Context, query string, limit int) ([]models.Record, error) {
	seen := make(map[string]bool)
	var records []models.Record
	emptyRounds := 0

	for len(records) < limit && emptyRounds < f.config.MaxScrollAttempts {
		if callerCtx.Err() != nil {
			// Cooperative cancellation: return what we have
			return records, nil
		}

		var extracted []map[string]string
		if err := chromedp.Run(fetchCtx, chromedp.Evaluate(extractScript, &extracted)); err != nil {
			if len(records) > 0 {
				return records, nil
			}
			return nil, classify("extract", err)
		}

		added := 0
		for _, raw := range extracted {
			rec := models.Record(raw)
			rec[models.FieldSource] = f.Name()
			key := rec.URL()
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			records = append(records, rec)
			added++
			if len(records) >= limit {
				break
			}
		}

		if added == 0 {
			emptyRounds++
		} else {
			emptyRounds = 0
		}

		if len(records) >= limit {
			break
		}

		if err := chromedp.Run(fetchCtx,
			chromedp.Evaluate(`window.scrollBy(0, window.innerHeight * 2)`, nil),
			chromedp.Sleep(f.config.ScrollDelay),
		); err != nil {
			if len(records) > 0 {
				return records, nil
			}
			return nil, classify("scroll", err)
		}
	}

	return records, nil
}

// browser returns the shared browser context, creating it on first use
func (f *Fetcher) browser() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browserCtx != nil && f.browserCtx.Err() == nil {
		return f.browserCtx, nil
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(f.config.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	startCtx, startCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer startCancel()
	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	if err := f.injectAuthCookies(browserCtx); err != nil {
		f.logger.Warn().Err(err).Msg("Failed to inject auth cookies, continuing unauthenticated")
	}

	f.allocCancel = allocCancel
	f.browserCtx = browserCtx
	f.browserCancel = browserCancel

	f.logger.Info().Bool("headless", f.config.Headless).Msg("Browser instance started")
	return browserCtx, nil
}

// injectAuthCookies seeds the session cookies from configuration
func (f *Fetcher) injectAuthCookies(browserCtx context.Context) error {
	if f.config.AuthToken == "" {
		return nil
	}

	cookies := map[string]string{
		"auth_token": f.config.AuthToken,
	}
	if f.config.CSRFToken != "" {
		cookies["ct0"] = f.config.CSRFToken
	}

	return chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		for name, value := range cookies {
			err := network.SetCookie(name, value).
				WithDomain(cookieDomain).
				WithPath("/").
				WithSecure(true).
				WithHTTPOnly(name == "auth_token").
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", name, err)
			}
		}
		return nil
	}))
}

// dropBrowser discards the shared instance so the next fetch starts fresh
func (f *Fetcher) dropBrowser() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browserCancel != nil {
		f.browserCancel()
		f.browserCancel = nil
	}
	if f.allocCancel != nil {
		f.allocCancel()
		f.allocCancel = nil
	}
	f.browserCtx = nil
	f.logger.Debug().Msg("Browser instance dropped")
}

// Close shuts down the shared browser instance
func (f *Fetcher) Close() {
	f.dropBrowser()
}

// classify maps browser-level failures to typed fetch errors. Everything a
// browser can do wrong mid-session (timeouts, lost targets, closed
// websockets) is worth a retry on a fresh instance.
func classify(op string, err error) error {
	return interfaces.NewTransientError("timeline "+op, err)
}

// extractScript pulls visible timeline posts out of the DOM
const extractScript = `
(() => {
	const out = [];
	for (const article of document.querySelectorAll('article[data-testid="tweet"]')) {
		const link = article.querySelector('a[href*="/status/"]');
		if (!link) continue;
		const textEl = article.querySelector('[data-testid="tweetText"]');
		const userEl = article.querySelector('[data-testid="User-Name"] a');
		const timeEl = article.querySelector('time');
		const stat = (name) => {
			const el = article.querySelector('[data-testid="' + name + '"]');
			return el ? (el.textContent || '').trim() : '';
		};
		out.push({
			url: link.href.split('?')[0],
			text: textEl ? textEl.innerText : '',
			author: userEl ? userEl.getAttribute('href').slice(1) : '',
			date: timeEl ? timeEl.getAttribute('datetime') : '',
			replies: stat('reply'),
			reposts: stat('retweet'),
			likes: stat('like'),
		});
	}
	return out;
})()
`
