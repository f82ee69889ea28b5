package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/pipeline"
	"github.com/seenimoa/filingret/internal/pricecache"
	"github.com/seenimoa/filingret/internal/returns"
	"github.com/seenimoa/filingret/pkg/models"
	"github.com/seenimoa/filingret/pkg/utils"
)

var returnsCmd = &cobra.Command{
	Use:   "returns TICKER FILING_DATE",
	Short: "Show the event-window returns after one filing date",
	Long: `Fetches daily prices around FILING_DATE (YYYY-MM-DD) and prints the
return from the anchor close (the filing date, or the next trading day) to
the close the given number of trading days later. When the series ends
early the return is measured over the days available and flagged.`,
	Example: `  filingret returns AAPL 2023-08-04
  filingret returns MSFT 2023-10-24 --horizons 1,7,30`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := utils.NormalizeTicker(args[0])
		filed, err := models.ParseDate(args[1])
		if err != nil {
			return err
		}
		horizons := cfg.Collection.Horizons
		if cmd.Flags().Changed("horizons") {
			s, _ := cmd.Flags().GetString("horizons")
			if horizons, err = parseInts(s); err != nil {
				return fmt.Errorf("invalid --horizons: %w", err)
			}
		}
		maxH := 0
		for _, h := range horizons {
			if h <= 0 {
				return fmt.Errorf("horizons must be positive, got %d", h)
			}
			maxH = max(maxH, h)
		}
		if maxH == 0 {
			return fmt.Errorf("no horizons given")
		}

		reg, err := newRegistry()
		if err != nil {
			return err
		}
		cache := pipeline.NewPriceCache(cfg, reg, false, log)
		series, err := cache.GetOrFetch(cmd.Context(), ticker, cache.Window(filed, maxH))
		if errors.Is(err, pricecache.ErrNoData) {
			return fmt.Errorf("no prices for %s around %s", ticker, filed.Format(models.DateLayout))
		}
		if err != nil {
			return err
		}
		log.Debug("prices loaded", zap.String("ticker", ticker), zap.Int("bars", len(series.Bars)))

		fmt.Printf("%s filing %s\n", ticker, filed.Format(models.DateLayout))
		for _, h := range horizons {
			obs, err := returns.Calculate(filed, h, series)
			if err != nil {
				fmt.Printf("  %4dd  n/a  (%v)\n", h, err)
				continue
			}
			note := ""
			if !obs.Exact() {
				note = fmt.Sprintf("  [only %d trading days available]", obs.EffectiveDays)
			}
			fmt.Printf("  %4dd  %8s  %s → %s%s\n", h,
				utils.FormatOptionalPct(obs.ActualReturnPct, 2),
				obs.AnchorDate.Format(models.DateLayout),
				obs.EndDate.Format(models.DateLayout),
				note)
		}
		return nil
	},
}

func init() {
	returnsCmd.Flags().String("horizons", "", "comma-separated horizons in trading days (default: collection.horizons)")
}
