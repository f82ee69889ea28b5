package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/dataset"
	"github.com/seenimoa/filingret/internal/pipeline"
	"github.com/seenimoa/filingret/internal/quality"
	"github.com/seenimoa/filingret/internal/report"
	"github.com/seenimoa/filingret/pkg/models"
	"github.com/seenimoa/filingret/pkg/utils"
)

var collectCmd = &cobra.Command{
	Use:   "collect [TICKER...]",
	Short: "Collect filings, compute event-window returns and save the dataset",
	Long: `Lists each ticker's filings from SEC EDGAR, drops duplicate
(ticker, filing date) records, fetches daily prices once per ticker and
computes the return over each horizon. The joined rows are saved to --out
(.json or .csv) and a data-quality report is printed.

With no tickers, collection.tickers from the config is used, falling back
to every ticker with a known CIK.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyCollectFlags(cmd); err != nil {
			return err
		}

		tickers := args
		if len(tickers) == 0 {
			tickers = cfg.Collection.Tickers
		}
		if len(tickers) == 0 {
			tickers = cfg.Reference.Tickers()
		}
		for i, t := range tickers {
			tickers[i] = utils.NormalizeTicker(t)
		}
		since, err := models.ParseDate(cfg.Collection.Since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}

		reg, err := newRegistry()
		if err != nil {
			return err
		}
		collector, err := pipeline.New(cfg, reg, log)
		if err != nil {
			return err
		}

		start := time.Now()
		res, err := collector.Run(cmd.Context(), tickers, since, cfg.Collection.Horizons)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if err := dataset.Save(out, res.Rows, res.Horizons); err != nil {
			return err
		}
		log.Info("dataset saved",
			zap.String("path", out),
			zap.Int("rows", len(res.Rows)),
			zap.Duration("elapsed", time.Since(start)))

		fmt.Printf("Saved %s rows to %s\n", utils.FormatCount(len(res.Rows)), out)
		for _, h := range res.Horizons {
			fmt.Printf("  %3dd returns: %d/%d\n", h, res.WithReturns[h], len(res.Rows))
		}
		if len(res.Dropped) > 0 {
			fmt.Printf("  duplicates dropped: %d\n", len(res.Dropped))
		}
		if len(res.Failed) > 0 {
			failed := make([]string, 0, len(res.Failed))
			for t := range res.Failed {
				failed = append(failed, t)
			}
			sort.Strings(failed)
			fmt.Printf("  tickers failed: %s\n", strings.Join(failed, ", "))
		}
		fmt.Println()

		th := quality.ThresholdsFrom(cfg.Quality)
		auditH := res.Horizons[0]
		for _, h := range res.Horizons {
			if h == cfg.Evaluation.Horizon {
				auditH = h
			}
		}
		findings := quality.Audit(res.Rows, auditH, th)
		rc, err := reportConfig(cmd)
		if err != nil {
			return err
		}
		rc.Sections = []report.Section{report.SectionCache, report.SectionQuality}
		return report.Write(os.Stdout, &report.Report{
			Title:    fmt.Sprintf("Collection: %d tickers since %s", len(tickers), since.Format(models.DateLayout)),
			Quality:  &findings,
			Cache:    &res.Cache,
			Warnings: quality.Guard(findings, th, log),
		}, rc)
	},
}

func init() {
	f := collectCmd.Flags()
	f.String("since", "", "earliest filing date, YYYY-MM-DD (default: collection.since)")
	f.String("horizons", "", "comma-separated horizons in trading days (default: collection.horizons)")
	f.String("types", "", "comma-separated filing types (default: collection.filing_types)")
	f.String("extractors", "", "comma-separated feature extractors: "+strings.Join(pipeline.ExtractorNames, ", "))
	f.String("out", "filings.json", "output dataset (.json or .csv)")
	f.Bool("feed", false, "list filings from the EDGAR Atom feed instead of submissions JSON")
	f.Int("concurrency", 0, "parallel ticker fetches (default: prices.concurrency)")
	f.String("format", "text", "report format: text, json, html")
}

// applyCollectFlags folds explicitly set flags into the collection config.
func applyCollectFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	if f.Changed("since") {
		cfg.Collection.Since, _ = f.GetString("since")
	}
	if f.Changed("horizons") {
		s, _ := f.GetString("horizons")
		hs, err := parseInts(s)
		if err != nil {
			return fmt.Errorf("invalid --horizons: %w", err)
		}
		cfg.Collection.Horizons = hs
	}
	if f.Changed("types") {
		s, _ := f.GetString("types")
		cfg.Collection.FilingTypes = splitList(s)
	}
	if f.Changed("extractors") {
		s, _ := f.GetString("extractors")
		cfg.Collection.Extractors = splitList(s)
	}
	if f.Changed("feed") {
		cfg.Collection.UseFeed, _ = f.GetBool("feed")
	}
	if f.Changed("concurrency") {
		cfg.Prices.Concurrency, _ = f.GetInt("concurrency")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, p := range splitList(s) {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
