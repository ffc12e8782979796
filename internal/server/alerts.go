package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/mohammad-safakhou/gamescout/internal/alerts"
	"github.com/mohammad-safakhou/gamescout/internal/marketplace"
	"github.com/mohammad-safakhou/gamescout/internal/store"
)

// AlertsHandler exposes alert listing, creation and manual sweep runs.
// Alert creation normally happens in the UI; the endpoint here is the same
// narrow persistence write, useful for operations and tests.
type AlertsHandler struct {
	Matcher  *alerts.Matcher
	Sessions marketplace.SessionSource
	Store    *store.Store
	Logger   *log.Logger
}

// Register mounts the routes on the authenticated API group.
func (h *AlertsHandler) Register(g *echo.Group) {
	g.GET("/alerts", h.list)
	g.POST("/alerts", h.create)
	g.POST("/alerts/sweep", h.sweep)
}

func (h *AlertsHandler) list(c echo.Context) error {
	items, err := h.Store.ListAlerts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []alerts.Alert{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AlertsHandler) create(c echo.Context) error {
	var req struct {
		GameTitle string `json:"game_title"`
		Platform  string `json:"platform"`
		MaxPrice  string `json:"max_price"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.GameTitle == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "game_title required")
	}
	maxPrice, err := decimal.NewFromString(req.MaxPrice)
	if err != nil || maxPrice.IsNegative() {
		return echo.NewHTTPError(http.StatusBadRequest, "bad max_price")
	}
	id, err := h.Store.CreateAlert(c.Request().Context(), req.GameTitle, req.Platform, maxPrice)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]int64{"id": id})
}

// sweep runs the alert matcher once, right now, and returns the summary.
func (h *AlertsHandler) sweep(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := h.Sessions.Session(ctx)
	if err != nil {
		if errors.Is(err, marketplace.ErrMissingCredential) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "marketplace credential not configured")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	summary, err := h.Matcher.Sweep(ctx, sess)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.Store.CreateSweep(ctx, summary.RunID, summary.StartedAt); err != nil {
		h.Logger.Printf("record sweep %s: %v", summary.RunID, err)
	} else {
		detail, _ := json.Marshal(summary.Errors)
		if err := h.Store.FinishSweep(ctx, summary, detail); err != nil {
			h.Logger.Printf("finish sweep %s: %v", summary.RunID, err)
		}
	}
	return c.JSON(http.StatusOK, summary)
}
