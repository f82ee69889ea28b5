package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/backtest"
	"github.com/seenimoa/filingret/internal/quality"
	"github.com/seenimoa/filingret/pkg/models"
	"github.com/seenimoa/filingret/pkg/utils"
)

// --- Train Command ---

var trainCmd = &cobra.Command{
	Use:   "train DATASET",
	Short: "Fit the logistic direction model on EPS-surprise features",
	Long: `Fits a standardized logistic regression on the rows' EPS-surprise
features against the sign of the realized return (zero counts as
positive). Rows are split chronologically: the earliest model.train_fraction
fit the weights, the rest report held-out accuracy. Simulated features are
refused.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		h := horizonFlag(cmd)
		ds, err := loadDataset(args[0], h, quality.ThresholdsFrom(cfg.Quality))
		if err != nil {
			return err
		}
		rows := ds.rows
		if limit, _ := f.GetFloat64("drop-extreme"); limit > 0 {
			var n int
			rows, n = quality.DropExtreme(rows, h, limit)
			log.Info("extreme returns dropped", zap.Float64("limitPct", limit), zap.Int("rows", n))
		}

		opts := backtest.TrainOptions{
			LearningRate:  cfg.Model.LearningRate,
			Iterations:    cfg.Model.Iterations,
			L2:            cfg.Model.L2,
			TrainFraction: cfg.Model.TrainFraction,
		}
		m, err := backtest.Train(rows, h, opts)
		if err != nil {
			return err
		}

		out := cfg.Model.Path
		if f.Changed("out") {
			out, _ = f.GetString("out")
		}
		if err := m.Save(out); err != nil {
			return err
		}
		log.Info("model saved", zap.String("path", out), zap.Int("horizon", h))

		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Logistic model: %dd horizon\n", h)
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Train samples:    %d\n", m.TrainSamples)
		fmt.Printf("  Test samples:     %d\n", m.TestSamples)
		fmt.Printf("  Train accuracy:   %s\n", utils.FormatPct(m.TrainAccuracyPct, 1))
		if m.TestSamples > 0 {
			fmt.Printf("  Test accuracy:    %s\n", utils.FormatPct(m.TestAccuracyPct, 1))
			fmt.Printf("  Test baseline:    %s (always positive)\n", utils.FormatPct(m.TestBaselinePct, 1))
		}
		fmt.Println()
		fmt.Println("  Weights (standardized):")
		for i, name := range m.Inputs {
			fmt.Printf("    %-16s %+.4f\n", name, m.Weights[i])
		}
		fmt.Printf("    %-16s %+.4f\n", "bias", m.Bias)
		fmt.Println()
		fmt.Printf("  Saved to %s\n", out)
		return nil
	},
}

// --- Predict Command ---

// prediction is one row of predict output.
type prediction struct {
	Ticker         string                `json:"ticker"`
	FilingDate     string                `json:"filingDate"`
	FilingType     models.FilingType     `json:"filingType"`
	Probability    float64               `json:"probability"`
	PredictedSign  models.Sign           `json:"predictedSign"`
	Recommendation models.Recommendation `json:"recommendation"`
}

var predictCmd = &cobra.Command{
	Use:   "predict DATASET",
	Short: "Score each filing with a trained model and map it to an action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		path := cfg.Model.Path
		if f.Changed("model") {
			path, _ = f.GetString("model")
		}
		m, err := backtest.LoadModel(path)
		if err != nil {
			return err
		}
		ds, err := loadDataset(args[0], cfg.Evaluation.Horizon, quality.ThresholdsFrom(cfg.Quality))
		if err != nil {
			return err
		}
		rows := ds.rows

		preds := make([]prediction, 0, len(rows))
		for _, r := range rows {
			prob := m.Probability(r.Features)
			preds = append(preds, prediction{
				Ticker:         r.Filing.Ticker,
				FilingDate:     r.Filing.FilingDate.Format(models.DateLayout),
				FilingType:     r.Filing.FilingType,
				Probability:    prob,
				PredictedSign:  m.PredictFeatures(r.Features).PredictedSign,
				Recommendation: backtest.Recommend(prob),
			})
		}

		if format, _ := f.GetString("format"); format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(preds)
		}

		fmt.Printf("%-8s %-10s %-5s %7s  %-6s %-5s %s\n", "TICKER", "FILED", "TYPE", "P(UP)", "ACTION", "SIZE", "REASON")
		for _, p := range preds {
			fmt.Printf("%-8s %-10s %-5s %7.3f  %-6s %-5s %s\n",
				p.Ticker, p.FilingDate, p.FilingType, p.Probability,
				p.Recommendation.Action, p.Recommendation.Size, p.Recommendation.Reason)
		}
		return nil
	},
}

func init() {
	t := trainCmd.Flags()
	t.Int("horizon", 0, "horizon in trading days (default: evaluation.horizon)")
	t.String("out", "", "model output file (default: model.path)")
	t.Float64("drop-extreme", 0, "drop rows whose |return| exceeds this percentage before fitting")

	p := predictCmd.Flags()
	p.String("model", "", "model file (default: model.path)")
	p.String("format", "text", "output format: text, json")
}
