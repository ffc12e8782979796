package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mohammad-safakhou/gamescout/internal/telemetry"
)

// StopReason explains why pagination ended.
type StopReason string

const (
	StopEmptyPage     StopReason = "empty_page"
	StopSmallResult   StopReason = "small_result"
	StopStaleFeed     StopReason = "stale_feed"
	StopPageCap       StopReason = "page_cap"
	StopNoMorePages   StopReason = "no_more_pages"
	StopUpstreamError StopReason = "upstream_error"
)

// FetchOptions bounds one fetch invocation.
type FetchOptions struct {
	MaxPages int
	PerPage  int
	// MaxItemAge stops pagination once every item on a page is older:
	// the feed is date-ordered, so further pages are older still.
	MaxItemAge time.Duration
	// SmallResultThreshold skips remaining pages when the upstream-reported
	// total is below it; one page already holds everything.
	SmallResultThreshold int
}

func (o FetchOptions) withDefaults() FetchOptions {
	if o.MaxPages <= 0 {
		o.MaxPages = 3
	}
	if o.PerPage <= 0 {
		o.PerPage = 96
	}
	if o.MaxItemAge <= 0 {
		o.MaxItemAge = 7 * 24 * time.Hour
	}
	if o.SmallResultThreshold <= 0 {
		o.SmallResultThreshold = 20
	}
	return o
}

// BackoffConfig bounds the 429 retry loop: base × 2^attempt plus a small
// random jitter, capped at Cap, at most MaxRetries attempts before the
// fetch fails with ErrRateLimited.
type BackoffConfig struct {
	Base       time.Duration
	Cap        time.Duration
	MaxRetries int
}

// DefaultBackoffConfig returns the production retry budget.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Base: 5 * time.Second, Cap: 90 * time.Second, MaxRetries: 4}
}

// Fetcher pulls catalog pages sequentially with jittered pacing between
// pages. Pages are never fetched in parallel: the randomized delay is itself
// the anti-throttling mechanism.
type Fetcher struct {
	baseURL string
	client  *http.Client
	delays  DelayConfigLoader
	backoff BackoffConfig
	logger  *log.Logger

	// overridable for tests
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher constructs a Fetcher. delays may be nil, in which case the
// default pacing window is used unchanged for the fetcher's lifetime.
func NewFetcher(baseURL string, client *http.Client, delays DelayConfigLoader, backoff BackoffConfig, logger *log.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if delays == nil {
		delays = StaticDelayLoader(DefaultDelayConfig())
	}
	if backoff.MaxRetries <= 0 {
		backoff = DefaultBackoffConfig()
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[FETCHER] ", log.LstdFlags)
	}
	return &Fetcher{
		baseURL: baseURL,
		client:  client,
		delays:  delays,
		backoff: backoff,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// searchResponse mirrors the paginated search feed envelope.
type searchResponse struct {
	Items      []json.RawMessage `json:"items"`
	Pagination *struct {
		CurrentPage  int `json:"current_page"`
		TotalPages   int `json:"total_pages"`
		TotalEntries int `json:"total_entries"`
	} `json:"pagination"`
}

// FetchPages pulls up to opts.MaxPages catalog pages for the given filters,
// deduplicates items by ID across pages and returns them with the reason
// pagination stopped.
//
// Stop conditions are checked after every page, first match wins: empty
// page; upstream total below the small-result threshold; every item on the
// page older than MaxItemAge; page cap reached; upstream reports no further
// pages.
//
// 429 responses are retried on the same page with exponential backoff;
// exhausting the budget surfaces ErrRateLimited. 401/403 surface
// ErrAuthExpired immediately. Any other page-level failure is logged and
// ends the fetch with the items accumulated so far (best effort).
func (f *Fetcher) FetchPages(ctx context.Context, sess Session, filters SearchFilters, opts FetchOptions) ([]Item, StopReason, error) {
	opts = opts.withDefaults()

	var items []Item
	seen := make(map[int64]bool)

	for page := 1; ; page++ {
		if page > 1 {
			cfg, err := f.delays.DelayConfig(ctx)
			if err != nil {
				cfg = DefaultDelayConfig()
			}
			delay := cfg.Next(f.rng)
			f.logger.Printf("page %d: waiting %s before request", page, delay.Round(time.Millisecond))
			if err := f.sleep(ctx, delay); err != nil {
				return items, StopUpstreamError, err
			}
		}

		resp, err := f.fetchPage(ctx, sess, filters, page, opts.PerPage)
		if err != nil {
			switch {
			case isFatal(err):
				return items, StopUpstreamError, err
			default:
				// Malformed page or transient upstream failure:
				// keep what we have.
				telemetry.FetchPages.WithLabelValues("skipped").Inc()
				f.logger.Printf("page %d: %v (returning %d items)", page, err, len(items))
				telemetry.FetchStops.WithLabelValues(string(StopUpstreamError)).Inc()
				return items, StopUpstreamError, nil
			}
		}
		telemetry.FetchPages.WithLabelValues("ok").Inc()

		pageItems := make([]Item, 0, len(resp.Items))
		for _, raw := range resp.Items {
			item, err := decodeSearchItem(raw)
			if err != nil {
				f.logger.Printf("page %d: skipping item: %v", page, err)
				continue
			}
			pageItems = append(pageItems, item)
			if !seen[item.ID] {
				seen[item.ID] = true
				items = append(items, item)
			}
		}

		if reason, stop := f.stopAfterPage(resp, pageItems, page, opts); stop {
			telemetry.FetchStops.WithLabelValues(string(reason)).Inc()
			f.logger.Printf("page %d: stopping (%s), %d items total", page, reason, len(items))
			return items, reason, nil
		}
	}
}

func (f *Fetcher) stopAfterPage(resp *searchResponse, pageItems []Item, page int, opts FetchOptions) (StopReason, bool) {
	if len(pageItems) == 0 {
		return StopEmptyPage, true
	}
	if resp.Pagination != nil && resp.Pagination.TotalEntries > 0 &&
		resp.Pagination.TotalEntries < opts.SmallResultThreshold {
		return StopSmallResult, true
	}
	if allOlderThan(pageItems, opts.MaxItemAge) {
		return StopStaleFeed, true
	}
	if page >= opts.MaxPages {
		return StopPageCap, true
	}
	if resp.Pagination != nil && resp.Pagination.TotalPages > 0 &&
		resp.Pagination.CurrentPage >= resp.Pagination.TotalPages {
		return StopNoMorePages, true
	}
	return "", false
}

// allOlderThan reports whether every item with a known age is older than
// maxAge, and at least one age is known. Items without an age signal are
// treated as fresh.
func allOlderThan(items []Item, maxAge time.Duration) bool {
	cutoff := time.Now().Add(-maxAge)
	known := 0
	for _, it := range items {
		if it.AddedSince.IsZero() {
			return false
		}
		known++
		if it.AddedSince.After(cutoff) {
			return false
		}
	}
	return known > 0
}

func isFatal(err error) bool {
	return errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrRateLimited)
}

func (f *Fetcher) fetchPage(ctx context.Context, sess Session, filters SearchFilters, page, perPage int) (*searchResponse, error) {
	reqURL, err := f.buildURL(filters, page, perPage)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		resp, err := f.doRequest(ctx, sess, reqURL)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			telemetry.FetchPages.WithLabelValues("auth_expired").Inc()
			return nil, fmt.Errorf("page %d: status %d: %w", page, resp.StatusCode, ErrAuthExpired)
		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt >= f.backoff.MaxRetries {
				telemetry.FetchPages.WithLabelValues("rate_limited").Inc()
				return nil, fmt.Errorf("page %d: %d attempts exhausted: %w", page, attempt+1, ErrRateLimited)
			}
			wait := f.backoffWait(attempt)
			telemetry.RateLimitRetries.Inc()
			f.logger.Printf("page %d: 429, attempt %d, backing off %s", page, attempt+1, wait.Round(time.Millisecond))
			if err := f.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("page %d: unexpected status %d", page, resp.StatusCode)
		}

		if readErr != nil {
			return nil, fmt.Errorf("page %d: read body: %w", page, readErr)
		}
		var out searchResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, &ShapeError{Feed: "search", Reason: fmt.Sprintf("page %d: %v", page, err)}
		}
		return &out, nil
	}
}

// backoffWait computes base × 2^attempt plus up to 500ms of jitter, capped.
func (f *Fetcher) backoffWait(attempt int) time.Duration {
	wait := f.backoff.Base << uint(attempt)
	if f.backoff.Cap > 0 && wait > f.backoff.Cap {
		wait = f.backoff.Cap
	}
	return wait + time.Duration(f.rng.Int63n(int64(500*time.Millisecond)))
}

func (f *Fetcher) doRequest(ctx context.Context, sess Session, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", sess.UserAgent)
	if sess.CookieHeader != "" {
		req.Header.Set("Cookie", sess.CookieHeader)
	}
	if sess.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+sess.AuthToken)
	}
	return f.client.Do(req)
}

func (f *Fetcher) buildURL(filters SearchFilters, page, perPage int) (string, error) {
	base, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("base url: %w", err)
	}
	base.Path = "/api/v2/catalog/items"

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	if filters.SearchText != "" {
		params.Set("search_text", filters.SearchText)
	}
	if !filters.PriceFrom.IsZero() {
		params.Set("price_from", filters.PriceFrom.String())
	}
	if !filters.PriceTo.IsZero() {
		params.Set("price_to", filters.PriceTo.String())
	}
	if filters.Currency != "" {
		params.Set("currency", filters.Currency)
	}
	if filters.Order != "" {
		params.Set("order", filters.Order)
	}
	for _, s := range filters.Statuses {
		params.Add("status[]", s)
	}
	base.RawQuery = params.Encode()
	return base.String(), nil
}
