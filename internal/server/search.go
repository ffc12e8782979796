package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	appconfig "github.com/mohammad-safakhou/gamescout/config"
	"github.com/mohammad-safakhou/gamescout/internal/marketplace"
	"github.com/mohammad-safakhou/gamescout/internal/relevance"
	"github.com/mohammad-safakhou/gamescout/internal/store"
	"github.com/mohammad-safakhou/gamescout/internal/telemetry"
)

// SearchHandler serves ad hoc marketplace searches: fetch, score, filter.
type SearchHandler struct {
	Fetcher  *marketplace.Fetcher
	Sessions marketplace.SessionSource
	Store    *store.Store
	Cfg      *appconfig.Config
	Logger   *log.Logger
}

// Register mounts the routes on the authenticated API group.
func (h *SearchHandler) Register(g *echo.Group) {
	g.POST("/search", h.search)
}

// SearchRequest is the ad hoc query payload.
type SearchRequest struct {
	Query       string  `json:"query"`
	PriceFrom   string  `json:"price_from,omitempty"`
	PriceTo     string  `json:"price_to,omitempty"`
	MinScore    float64 `json:"min_score,omitempty"`
	MaxResults  int     `json:"max_results,omitempty"`
	ExcludeSeen bool    `json:"exclude_seen,omitempty"`
}

// SearchResponse is the best-effort result list. Degraded is set when the
// upstream fetch failed partway and the list covers only what was fetched.
type SearchResponse struct {
	Items      []relevance.ScoredItem `json:"items"`
	StopReason string                 `json:"stop_reason"`
	Relaxed    bool                   `json:"relaxed"`
	Degraded   bool                   `json:"degraded,omitempty"`
}

func (h *SearchHandler) search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	telemetry.SearchRequests.Inc()

	ctx := c.Request().Context()
	sess, err := h.Sessions.Session(ctx)
	if err != nil {
		if errors.Is(err, marketplace.ErrMissingCredential) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "marketplace credential not configured")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	filters := marketplace.SearchFilters{
		SearchText: req.Query,
		Currency:   h.Cfg.Marketplace.Currency,
		Order:      "relevance",
	}
	if req.PriceFrom != "" {
		if filters.PriceFrom, err = decimal.NewFromString(req.PriceFrom); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad price_from")
		}
	}
	if req.PriceTo != "" {
		if filters.PriceTo, err = decimal.NewFromString(req.PriceTo); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad price_to")
		}
	}

	items, stopReason, err := h.Fetcher.FetchPages(ctx, sess, filters, marketplace.FetchOptions{
		MaxPages:             h.Cfg.Marketplace.MaxPages,
		PerPage:              h.Cfg.Marketplace.PerPage,
		MaxItemAge:           time.Duration(h.Cfg.Marketplace.MaxItemAgeDays) * 24 * time.Hour,
		SmallResultThreshold: h.Cfg.Marketplace.SmallResultThreshold,
	})
	if err != nil {
		// Auth expiry needs external action and is surfaced explicitly;
		// anything else degrades to a best-effort answer.
		if errors.Is(err, marketplace.ErrAuthExpired) {
			return echo.NewHTTPError(http.StatusUnauthorized, "marketplace session expired, refresh credentials")
		}
		h.Logger.Printf("fetch for %q: %v (serving %d fetched items)", req.Query, err, len(items))
	}

	if req.ExcludeSeen && h.Store != nil && len(items) > 0 {
		items = h.dropSeen(c, items)
	}

	result := relevance.FilterAndRank(items, relevance.Query{Text: req.Query}, req.MinScore, req.MaxResults)

	return c.JSON(http.StatusOK, SearchResponse{
		Items:      result.Items,
		StopReason: string(stopReason),
		Relaxed:    result.Relaxed,
		Degraded:   err != nil,
	})
}

// dropSeen filters out items already in the seen ledger and records the
// survivors. Ledger failures only log: missing dedup must not break search.
func (h *SearchHandler) dropSeen(c echo.Context, items []marketplace.Item) []marketplace.Item {
	ctx := c.Request().Context()
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	missing, err := h.Store.MissingItemIDs(ctx, ids)
	if err != nil {
		h.Logger.Printf("seen-items lookup: %v (skipping dedup)", err)
		return items
	}
	keep := make(map[int64]bool, len(missing))
	for _, id := range missing {
		keep[id] = true
	}
	out := items[:0]
	for _, it := range items {
		if keep[it.ID] {
			out = append(out, it)
		}
	}
	if err := h.Store.MarkItemsSeen(ctx, missing); err != nil {
		h.Logger.Printf("seen-items mark: %v", err)
	}
	return out
}
