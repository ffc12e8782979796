package alerts

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mohammad-safakhou/gamescout/internal/marketplace"
	"github.com/mohammad-safakhou/gamescout/internal/relevance"
	"github.com/mohammad-safakhou/gamescout/internal/telemetry"
)

// Alert is a persisted price alert. Created by user action elsewhere; this
// package only reads it and bumps the trigger bookkeeping when a new match
// is recorded.
type Alert struct {
	ID             int64           `json:"id"`
	GameTitle      string          `json:"game_title"`
	Platform       string          `json:"platform,omitempty"`
	MaxPrice       decimal.Decimal `json:"max_price"`
	IsActive       bool            `json:"is_active"`
	TriggeredCount int             `json:"triggered_count"`
	TriggeredAt    *time.Time      `json:"triggered_at,omitempty"`
}

// Match is one new (alert, item) pairing found during a sweep.
type Match struct {
	AlertID    int64            `json:"alert_id"`
	AlertTitle string           `json:"alert_title"`
	Reason     string           `json:"match_reason"`
	Item       marketplace.Item `json:"item"`
}

// SweepStats aggregates why candidates were skipped. Kept even when a sweep
// finds nothing: the skip profile is the main observability signal.
type SweepStats struct {
	SkippedUnavailable int `json:"skipped_unavailable"`
	SkippedPrice       int `json:"skipped_price"`
	SkippedPlatform    int `json:"skipped_platform"`
	SkippedTitle       int `json:"skipped_title"`
}

// AlertError records one alert's failure without failing the sweep.
type AlertError struct {
	AlertID int64  `json:"alert_id"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// SweepSummary is the caller-facing record of one sweep run.
type SweepSummary struct {
	RunID           string       `json:"run_id"`
	StartedAt       time.Time    `json:"started_at"`
	FinishedAt      time.Time    `json:"finished_at"`
	AlertsChecked   int          `json:"alerts_checked"`
	ItemsChecked    int          `json:"items_checked"`
	Matches         []Match      `json:"matches"`
	UpdatedAlertIDs []int64      `json:"updated_alert_ids"`
	Stats           SweepStats   `json:"stats"`
	Errors          []AlertError `json:"errors,omitempty"`
}

// Fetcher is the slice of the paginated fetcher the matcher needs.
type Fetcher interface {
	FetchPages(ctx context.Context, sess marketplace.Session, filters marketplace.SearchFilters, opts marketplace.FetchOptions) ([]marketplace.Item, marketplace.StopReason, error)
}

// Store is the persistence collaborator. InsertMatch must have
// conflict-ignore semantics on (alertID, itemID) and report whether a row
// was actually inserted; that uniqueness guard is what makes repeated sweeps
// idempotent, including across concurrent processes.
type Store interface {
	ListActiveAlerts(ctx context.Context) ([]Alert, error)
	InsertMatch(ctx context.Context, alertID, itemID int64, reason string) (bool, error)
	MarkAlertTriggered(ctx context.Context, alertID int64, at time.Time) error
}

// MatchPublisher hands new matches to the delivery system. Publish failures
// are logged and never fail the sweep.
type MatchPublisher interface {
	PublishMatch(ctx context.Context, m Match) error
}

// Options tunes a Matcher.
type Options struct {
	// Workers bounds concurrent alert processing. Page pacing stays
	// sequential inside each alert's fetch; alerts are independent.
	Workers int
	// TitleOverlapThreshold is the primary word-overlap acceptance bar.
	TitleOverlapThreshold float64
	// TokenSetThreshold is the Jaccard fallback bar.
	TokenSetThreshold float64
	// Fetch bounds each alert's candidate fetch.
	Fetch marketplace.FetchOptions
	// Statuses are passed to the alert-filtered endpoint.
	Statuses []string
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.TitleOverlapThreshold <= 0 {
		o.TitleOverlapThreshold = 0.75
	}
	if o.TokenSetThreshold <= 0 {
		o.TokenSetThreshold = 0.5
	}
	return o
}

// Matcher runs the per-alert fetch, match, persist cycle. Each alert
// moves through those stages independently; one alert's failure is recorded
// and the sweep continues.
type Matcher struct {
	fetcher   Fetcher
	store     Store
	publisher MatchPublisher
	opts      Options
	logger    *log.Logger
}

// NewMatcher constructs a Matcher. publisher may be nil.
func NewMatcher(fetcher Fetcher, store Store, publisher MatchPublisher, opts Options, logger *log.Logger) *Matcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[ALERTS] ", log.LstdFlags)
	}
	return &Matcher{
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		opts:      opts.withDefaults(),
		logger:    logger,
	}
}

// Sweep processes every active alert once and returns the summary. The
// error return is reserved for failures that prevent the sweep from running
// at all (listing alerts); per-alert failures land in Summary.Errors.
func (m *Matcher) Sweep(ctx context.Context, sess marketplace.Session) (*SweepSummary, error) {
	summary := &SweepSummary{
		RunID:           uuid.NewString(),
		StartedAt:       time.Now().UTC(),
		Matches:         []Match{},
		UpdatedAlertIDs: []int64{},
	}

	alerts, err := m.store.ListActiveAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	summary.AlertsChecked = len(alerts)

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, m.opts.Workers)

	for _, alert := range alerts {
		wg.Add(1)
		sem <- struct{}{}
		go func(alert Alert) {
			defer wg.Done()
			defer func() { <-sem }()

			result, aerr := m.sweepAlert(ctx, sess, alert)

			mu.Lock()
			defer mu.Unlock()
			if aerr != nil {
				telemetry.SweepAlerts.WithLabelValues("error").Inc()
				m.logger.Printf("alert %d: %s failed: %s (continuing)", alert.ID, aerr.Stage, aerr.Message)
				summary.Errors = append(summary.Errors, *aerr)
				return
			}
			telemetry.SweepAlerts.WithLabelValues("ok").Inc()
			summary.ItemsChecked += result.itemsChecked
			summary.Matches = append(summary.Matches, result.matches...)
			summary.Stats.SkippedUnavailable += result.stats.SkippedUnavailable
			summary.Stats.SkippedPrice += result.stats.SkippedPrice
			summary.Stats.SkippedPlatform += result.stats.SkippedPlatform
			summary.Stats.SkippedTitle += result.stats.SkippedTitle
			if len(result.matches) > 0 {
				summary.UpdatedAlertIDs = append(summary.UpdatedAlertIDs, alert.ID)
			}
		}(alert)
	}
	wg.Wait()

	summary.FinishedAt = time.Now().UTC()
	m.logger.Printf("sweep %s: %d alerts, %d items, %d new matches, %d errors",
		summary.RunID, summary.AlertsChecked, summary.ItemsChecked, len(summary.Matches), len(summary.Errors))
	return summary, nil
}

type alertResult struct {
	itemsChecked int
	matches      []Match
	stats        SweepStats
}

// sweepAlert runs one alert through fetching, matching and persisting.
func (m *Matcher) sweepAlert(ctx context.Context, sess marketplace.Session, alert Alert) (alertResult, *AlertError) {
	var result alertResult

	// Fetching.
	searchText := alert.GameTitle
	if alert.Platform != "" {
		searchText += " " + alert.Platform
	}
	filters := marketplace.SearchFilters{
		SearchText: searchText,
		PriceTo:    alert.MaxPrice,
		Order:      "newest_first",
		Statuses:   m.opts.Statuses,
	}
	items, stopReason, err := m.fetcher.FetchPages(ctx, sess, filters, m.opts.Fetch)
	if err != nil {
		return result, &AlertError{AlertID: alert.ID, Stage: "fetching", Message: err.Error()}
	}
	m.logger.Printf("alert %d (%q): %d candidates (stop: %s)", alert.ID, alert.GameTitle, len(items), stopReason)
	result.itemsChecked = len(items)

	// Matching.
	var matched []Match
	for _, item := range items {
		reason, skip := m.matchItem(alert, item)
		if skip != "" {
			result.stats.bump(skip)
			telemetry.SweepSkipped.WithLabelValues(skip).Inc()
			continue
		}
		matched = append(matched, Match{
			AlertID:    alert.ID,
			AlertTitle: alert.GameTitle,
			Reason:     reason,
			Item:       item,
		})
	}

	// Persisting. Only rows the DB actually inserted count as new matches
	// and bump the alert's trigger bookkeeping.
	for _, match := range matched {
		inserted, err := m.store.InsertMatch(ctx, match.AlertID, match.Item.ID, match.Reason)
		if err != nil {
			return result, &AlertError{AlertID: alert.ID, Stage: "persisting", Message: err.Error()}
		}
		if !inserted {
			continue
		}
		if err := m.store.MarkAlertTriggered(ctx, alert.ID, time.Now().UTC()); err != nil {
			return result, &AlertError{AlertID: alert.ID, Stage: "persisting", Message: err.Error()}
		}
		telemetry.SweepMatches.Inc()
		result.matches = append(result.matches, match)
		if m.publisher != nil {
			if err := m.publisher.PublishMatch(ctx, match); err != nil {
				m.logger.Printf("alert %d: publish match for item %d: %v", alert.ID, match.Item.ID, err)
			}
		}
	}
	return result, nil
}

// matchItem applies the alert's criteria to one candidate. It returns the
// human-readable match reason, or a non-empty skip reason.
func (m *Matcher) matchItem(alert Alert, item marketplace.Item) (reason, skip string) {
	if !item.Available() {
		return "", "unavailable"
	}
	if !alert.MaxPrice.IsZero() && item.PriceAmount.GreaterThan(alert.MaxPrice) {
		return "", "price"
	}

	itemText := item.Title
	if item.Description != "" {
		itemText += " " + item.Description
	}

	if alert.Platform != "" {
		want, ok := relevance.CanonicalPlatform(alert.Platform)
		if !ok {
			// Multi-word names like "nintendo switch" only resolve through
			// the phrase aliases, so run the full detector before falling
			// back to a literal comparison.
			if hits := relevance.DetectPlatforms(alert.Platform); len(hits) > 0 {
				want = hits[0]
			} else {
				want = relevance.Platform(relevance.NormalizeText(alert.Platform))
			}
		}
		found := false
		for _, p := range relevance.DetectPlatforms(itemText) {
			if p == want {
				found = true
				break
			}
		}
		if !found {
			return "", "platform"
		}
	}

	overlap := wordOverlapRatio(alert.GameTitle, itemText)
	if overlap >= m.opts.TitleOverlapThreshold {
		return fmt.Sprintf("price %s <= %s, title overlap %.2f",
			item.PriceAmount.StringFixed(2), alert.MaxPrice.StringFixed(2), overlap), ""
	}
	if sim := tokenSetSimilarity(alert.GameTitle, item.Title); sim >= m.opts.TokenSetThreshold {
		return fmt.Sprintf("price %s <= %s, token-set similarity %.2f",
			item.PriceAmount.StringFixed(2), alert.MaxPrice.StringFixed(2), sim), ""
	}
	return "", "title"
}

func (s *SweepStats) bump(reason string) {
	switch reason {
	case "unavailable":
		s.SkippedUnavailable++
	case "price":
		s.SkippedPrice++
	case "platform":
		s.SkippedPlatform++
	case "title":
		s.SkippedTitle++
	}
}
