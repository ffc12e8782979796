package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/mohammad-safakhou/gamescout/config"
	"github.com/mohammad-safakhou/gamescout/internal/alerts"
	"github.com/mohammad-safakhou/gamescout/internal/marketplace"
	"github.com/mohammad-safakhou/gamescout/internal/queue/streams"
	"github.com/mohammad-safakhou/gamescout/internal/store"
	"github.com/mohammad-safakhou/gamescout/internal/worker"
)

// Run wires the whole service together and blocks serving HTTP: store,
// fetcher, alert matcher, optional cron scheduler, and the API routes.
func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		baseLogger.Printf("migrate: %v (continuing)", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	var matchPublisher alerts.MatchPublisher
	if cfg.Storage.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		matchPublisher = streams.NewMatchPublisher(streams.NewPublisher(rdb, 10000), "")
	}

	sessions := marketplace.CredentialSource{
		Cookie:     cfg.Marketplace.Cookie,
		CookieFile: cfg.Marketplace.CookieFile,
		UserAgent:  cfg.Marketplace.UserAgent,
	}
	fetcher := NewFetcher(cfg)
	matcher := alerts.NewMatcher(fetcher, st, matchPublisher, alerts.Options{
		Workers:               cfg.Alerts.Workers,
		TitleOverlapThreshold: cfg.Alerts.TitleOverlapThreshold,
		TokenSetThreshold:     cfg.Alerts.TokenSetThreshold,
		Statuses:              cfg.Alerts.Statuses,
		Fetch: marketplace.FetchOptions{
			MaxPages:             cfg.Alerts.MaxPages,
			PerPage:              cfg.Marketplace.PerPage,
			MaxItemAge:           time.Duration(cfg.Marketplace.MaxItemAgeDays) * 24 * time.Hour,
			SmallResultThreshold: cfg.Marketplace.SmallResultThreshold,
		},
	}, nil)

	if cfg.Alerts.ScheduleCron != "" {
		sched, err := worker.NewScheduler(cfg.Alerts.ScheduleCron, matcher, sessions, st, rdb, nil)
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	api := e.Group("/api")
	api.Use(withAuth([]byte(secret)))

	searchHandler := &SearchHandler{
		Fetcher:  fetcher,
		Sessions: sessions,
		Store:    st,
		Cfg:      cfg,
		Logger:   log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
	}
	searchHandler.Register(api)

	alertsHandler := &AlertsHandler{
		Matcher:  matcher,
		Sessions: sessions,
		Store:    st,
		Logger:   log.New(log.Writer(), "[ALERTS-API] ", log.LstdFlags),
	}
	alertsHandler.Register(api)

	return e.Start(cfg.Server.Address)
}

// NewFetcher builds the paginated fetcher from marketplace config, with the
// pacing window behind a TTL-refreshed loader.
func NewFetcher(cfg *appconfig.Config) *marketplace.Fetcher {
	mc := cfg.Marketplace
	window := marketplace.DelayConfig{
		Base:      mc.Delay.Base,
		JitterMin: mc.Delay.JitterMin,
		JitterMax: mc.Delay.JitterMax,
		Min:       mc.Delay.Min,
		Max:       mc.Delay.Max,
	}
	if window.Base <= 0 {
		window = marketplace.DefaultDelayConfig()
	}
	loader := marketplace.NewCachedDelayLoader(
		marketplace.StaticDelayLoader(window), mc.Delay.RefreshTTL, window)

	timeout := mc.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return marketplace.NewFetcher(
		mc.BaseURL,
		&http.Client{Timeout: timeout},
		loader,
		marketplace.BackoffConfig{
			Base:       mc.Backoff.Base,
			Cap:        mc.Backoff.Cap,
			MaxRetries: mc.Backoff.MaxRetries,
		},
		nil,
	)
}
