package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/gamescout/config"
	"github.com/mohammad-safakhou/gamescout/internal/marketplace"
	"github.com/mohammad-safakhou/gamescout/internal/relevance"
	srv "github.com/mohammad-safakhou/gamescout/internal/server"
)

func searchCMD() *cobra.Command {
	var cfgPath string
	var priceFrom, priceTo string
	var minScore float64
	var maxResults int
	var asJSON bool

	var search = &cobra.Command{
		Use:   "search <query>",
		Short: "Run one ad hoc marketplace search and print ranked results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			query := args[0]

			sessions := marketplace.CredentialSource{
				Cookie:     cfg.Marketplace.Cookie,
				CookieFile: cfg.Marketplace.CookieFile,
				UserAgent:  cfg.Marketplace.UserAgent,
			}
			ctx := context.Background()
			sess, err := sessions.Session(ctx)
			if err != nil {
				return err
			}

			filters := marketplace.SearchFilters{
				SearchText: query,
				Currency:   cfg.Marketplace.Currency,
				Order:      "relevance",
			}
			if priceFrom != "" {
				if filters.PriceFrom, err = decimal.NewFromString(priceFrom); err != nil {
					return fmt.Errorf("invalid --price-from %q: %w", priceFrom, err)
				}
			}
			if priceTo != "" {
				if filters.PriceTo, err = decimal.NewFromString(priceTo); err != nil {
					return fmt.Errorf("invalid --price-to %q: %w", priceTo, err)
				}
			}

			fetcher := srv.NewFetcher(cfg)
			items, stop, err := fetcher.FetchPages(ctx, sess, filters, marketplace.FetchOptions{
				MaxPages:             cfg.Marketplace.MaxPages,
				PerPage:              cfg.Marketplace.PerPage,
				MaxItemAge:           time.Duration(cfg.Marketplace.MaxItemAgeDays) * 24 * time.Hour,
				SmallResultThreshold: cfg.Marketplace.SmallResultThreshold,
			})
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}

			result := relevance.FilterAndRank(items, relevance.Query{Text: query}, minScore, maxResults)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"items":       result.Items,
					"stop_reason": stop,
					"relaxed":     result.Relaxed,
				})
			}

			fmt.Printf("fetched %d items (stop: %s), %d after ranking", len(items), stop, len(result.Items))
			if result.Relaxed {
				fmt.Printf(" [relaxed threshold]")
			}
			fmt.Println()
			for _, it := range result.Items {
				fmt.Printf("%6.1f  %-8s  %s %s  %s\n",
					it.Score, it.Confidence,
					it.Item.PriceAmount.StringFixed(2), it.Item.PriceCurrency,
					it.Item.Title)
			}
			return nil
		},
	}
	search.Flags().StringVar(&priceFrom, "price-from", "", "minimum price")
	search.Flags().StringVar(&priceTo, "price-to", "", "maximum price")
	search.Flags().Float64Var(&minScore, "min-score", 0, "relevance threshold (0 = default)")
	search.Flags().IntVar(&maxResults, "max", 20, "maximum results to print")
	search.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	search.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return search
}
