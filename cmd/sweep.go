package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/gamescout/config"
	"github.com/mohammad-safakhou/gamescout/internal/alerts"
	"github.com/mohammad-safakhou/gamescout/internal/marketplace"
	srv "github.com/mohammad-safakhou/gamescout/internal/server"
	"github.com/mohammad-safakhou/gamescout/internal/store"
)

func sweepCMD() *cobra.Command {
	var cfgPath string

	var sweep = &cobra.Command{
		Use:   "sweep",
		Short: "Run one alert sweep against the marketplace and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()

			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			st, err := store.NewWithDSN(ctx, dsn)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions := marketplace.CredentialSource{
				Cookie:     cfg.Marketplace.Cookie,
				CookieFile: cfg.Marketplace.CookieFile,
				UserAgent:  cfg.Marketplace.UserAgent,
			}
			sess, err := sessions.Session(ctx)
			if err != nil {
				return err
			}

			matcher := alerts.NewMatcher(srv.NewFetcher(cfg), st, nil, alerts.Options{
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

			summary, err := matcher.Sweep(ctx, sess)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			recordSweep(ctx, st, summary)

			fmt.Printf("sweep %s: %d alerts, %d items, %d matches, %d errors in %s\n",
				summary.RunID, summary.AlertsChecked, summary.ItemsChecked,
				len(summary.Matches), len(summary.Errors),
				summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
			for _, m := range summary.Matches {
				fmt.Printf("  alert %d (%s): item %d matched (%s)\n", m.AlertID, m.AlertTitle, m.Item.ID, m.Reason)
			}
			for _, e := range summary.Errors {
				fmt.Printf("  alert %d failed at %s: %s\n", e.AlertID, e.Stage, e.Message)
			}
			return nil
		},
	}
	sweep.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return sweep
}

func recordSweep(ctx context.Context, st *store.Store, summary *alerts.SweepSummary) {
	if err := st.CreateSweep(ctx, summary.RunID, summary.StartedAt); err != nil {
		fmt.Printf("warning: record sweep: %v\n", err)
		return
	}
	detail, _ := json.Marshal(summary.Errors)
	if err := st.FinishSweep(ctx, summary, detail); err != nil {
		fmt.Printf("warning: finish sweep: %v\n", err)
	}
}
