// Package telemetry declares the prometheus instruments shared across the
// fetch and alert pipelines. Collectors register on the default registry and
// are exposed by the HTTP server on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchPages counts catalog pages fetched, by outcome (ok, skipped,
	// rate_limited, auth_expired).
	FetchPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamescout_fetch_pages_total",
		Help: "Catalog pages fetched, by outcome.",
	}, []string{"outcome"})

	// FetchStops counts fetch terminations by stop reason.
	FetchStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamescout_fetch_stops_total",
		Help: "Pagination stop conditions hit, by reason.",
	}, []string{"reason"})

	// RateLimitRetries counts 429 backoff retries.
	RateLimitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamescout_rate_limit_retries_total",
		Help: "Retries performed after upstream 429 responses.",
	})

	// SearchRequests counts ad hoc search invocations.
	SearchRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamescout_search_requests_total",
		Help: "Ad hoc search requests served.",
	})

	// SweepAlerts counts alerts processed by sweeps, by outcome (ok, error).
	SweepAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamescout_sweep_alerts_total",
		Help: "Alerts processed during sweeps, by outcome.",
	}, []string{"outcome"})

	// SweepMatches counts newly recorded alert matches.
	SweepMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamescout_sweep_matches_total",
		Help: "New alert matches recorded.",
	})

	// SweepSkipped counts candidate items rejected during matching, by
	// reason (unavailable, price, platform, title).
	SweepSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamescout_sweep_skipped_total",
		Help: "Candidate items skipped during alert matching, by reason.",
	}, []string{"reason"})
)
