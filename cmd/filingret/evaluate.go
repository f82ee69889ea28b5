package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/backtest"
	"github.com/seenimoa/filingret/internal/dataset"
	"github.com/seenimoa/filingret/internal/features"
	"github.com/seenimoa/filingret/internal/quality"
	"github.com/seenimoa/filingret/internal/report"
	"github.com/seenimoa/filingret/pkg/models"
)

// loadedDataset is a saved dataset ready for scoring.
type loadedDataset struct {
	rows     []models.JoinedRow // duplicates dropped, first kept
	findings quality.Findings   // audited over the rows as read
	skipped  int                // malformed records
}

// loadDataset reads a saved dataset, audits it at horizon h and then drops
// duplicate (ticker, date) rows so that duplicates show up in the findings
// but are scored once.
func loadDataset(path string, h int, th quality.Thresholds) (loadedDataset, error) {
	rows, skipped, err := dataset.Load(path, log)
	if err != nil {
		return loadedDataset{}, err
	}
	findings := quality.Audit(rows, h, th)
	rows, dropped := quality.Dedup(rows)
	for _, d := range dropped {
		log.Info("duplicate row dropped", zap.String("key", d.Filing.Key().String()))
	}
	log.Debug("dataset loaded",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
		zap.Int("skipped", skipped),
		zap.Int("duplicates", len(dropped)))
	return loadedDataset{rows: rows, findings: findings, skipped: skipped}, nil
}

// horizonFlag returns --horizon if set, otherwise evaluation.horizon.
func horizonFlag(cmd *cobra.Command) int {
	if cmd.Flags().Changed("horizon") {
		h, _ := cmd.Flags().GetInt("horizon")
		return h
	}
	return cfg.Evaluation.Horizon
}

// --- Evaluate Command ---

var evaluateCmd = &cobra.Command{
	Use:   "evaluate DATASET",
	Short: "Score a direction predictor against realized returns",
	Long: `Loads a dataset written by collect, audits it (duplicates included),
drops duplicate (ticker, date) rows and scores the predictor's direction
calls at the chosen horizon.
A zero return counts as positive; rows without a return are excluded.

--simulate replaces the features with draws conditioned on the realized
return. Such a run only checks the harness and is labelled a feasibility
run in every report format.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		h := horizonFlag(cmd)
		if f.Changed("exact") {
			cfg.Evaluation.ExactHorizonOnly, _ = f.GetBool("exact")
		}
		if f.Changed("allow-simulated") {
			cfg.Evaluation.AllowSimulated, _ = f.GetBool("allow-simulated")
		}
		name := cfg.Evaluation.Predictor
		if f.Changed("predictor") {
			name, _ = f.GetString("predictor")
		}

		th := quality.ThresholdsFrom(cfg.Quality)
		ds, err := loadDataset(args[0], h, th)
		if err != nil {
			return err
		}
		rows, findings := ds.rows, ds.findings
		warnings := quality.Guard(findings, th, log)

		if limit, _ := f.GetFloat64("drop-extreme"); limit > 0 {
			var n int
			rows, n = quality.DropExtreme(rows, h, limit)
			log.Info("extreme returns dropped", zap.Float64("limitPct", limit), zap.Int("rows", n))
			warnings = append(warnings, fmt.Sprintf("%d rows beyond ±%.0f%% dropped before scoring", n, limit))
		}
		if w, _ := f.GetBool("winsorize"); w {
			lo, hi, n := quality.WinsorizeReturns(rows, h, 1, 99)
			log.Info("returns winsorized", zap.Float64("lower", lo), zap.Float64("upper", hi), zap.Int("clipped", n))
			warnings = append(warnings, fmt.Sprintf("%d returns clipped to [%.2f%%, %.2f%%] before scoring", n, lo, hi))
		}

		if sim, _ := f.GetBool("simulate"); sim {
			seed, _ := f.GetUint64("seed")
			// Start from empty vectors so rows without a return carry no
			// real provenance next to the simulated ones.
			for i := range rows {
				rows[i].Features = models.FeatureVector{}
			}
			n := features.Simulate(rows, h, seed)
			cfg.Evaluation.AllowSimulated = true
			log.Warn("features simulated from realized returns", zap.Int("rows", n), zap.Uint64("seed", seed))
		}

		var model *backtest.LogisticModel
		if name == backtest.PredictorLogistic {
			path := cfg.Model.Path
			if f.Changed("model") {
				path, _ = f.GetString("model")
			}
			if model, err = backtest.LoadModel(path); err != nil {
				return err
			}
		}
		p, err := backtest.NewPredictor(name, model)
		if err != nil {
			return err
		}

		engine := backtest.NewEngine(backtest.ConfigFrom(cfg.Evaluation), log)
		summary, err := engine.Run(p, rows, h)
		if err != nil {
			return err
		}

		rc, err := reportConfig(cmd)
		if err != nil {
			return err
		}
		return report.Write(os.Stdout, &report.Report{
			Evaluation: summary,
			Quality:    &findings,
			Warnings:   warnings,
			Skipped:    ds.skipped,
		}, rc)
	},
}

// --- Audit Command ---

var auditCmd = &cobra.Command{
	Use:   "audit DATASET",
	Short: "Report data-quality findings for a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		th := quality.ThresholdsFrom(cfg.Quality)
		ds, err := loadDataset(args[0], horizonFlag(cmd), th)
		if err != nil {
			return err
		}
		findings := ds.findings

		rc, err := reportConfig(cmd)
		if err != nil {
			return err
		}
		rc.Sections = []report.Section{report.SectionQuality}
		return report.Write(os.Stdout, &report.Report{
			Quality:  &findings,
			Warnings: quality.Guard(findings, th, log),
			Skipped:  ds.skipped,
		}, rc)
	},
}

func init() {
	f := evaluateCmd.Flags()
	f.Int("horizon", 0, "horizon in trading days (default: evaluation.horizon)")
	f.String("predictor", "", "predictor: always-positive, surprise, logistic (default: evaluation.predictor)")
	f.String("model", "", "logistic model file (default: model.path)")
	f.Bool("exact", false, "score only returns measured over the full horizon")
	f.Bool("simulate", false, "feasibility run on features simulated from the realized returns")
	f.Uint64("seed", 42, "random seed for --simulate")
	f.Bool("allow-simulated", false, "accept datasets whose features are simulated")
	f.Float64("drop-extreme", 0, "drop rows whose |return| exceeds this percentage before scoring")
	f.Bool("winsorize", false, "clip returns to their 1st/99th percentiles before error metrics")
	f.String("format", "text", "report format: text, json, html")
	f.Int("min-segment", 0, "hide segment groups with fewer scored rows")

	a := auditCmd.Flags()
	a.Int("horizon", 0, "horizon in trading days (default: evaluation.horizon)")
	a.String("format", "text", "report format: text, json, html")
}
