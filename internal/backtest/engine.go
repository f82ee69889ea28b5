// Package backtest scores direction predictions for SEC filings against the
// realized event-window returns: accuracy, error, segment and confidence
// statistics, the predictors being compared, and the logistic model.
package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/config"
	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/pkg/models"
)

// Provenance guard errors.
var (
	// ErrSimulatedFeatures rejects outcome-derived features where an
	// out-of-sample result is expected.
	ErrSimulatedFeatures = errors.New("simulated features present")
	// ErrMixedProvenance rejects batches mixing real and simulated features.
	ErrMixedProvenance = errors.New("batch mixes real and simulated features")
)

// ════════════════════════════════════════════════════════════════════
// Engine Configuration
// ════════════════════════════════════════════════════════════════════

// Config holds the evaluation options.
type Config struct {
	ExactHorizonOnly  bool       // treat shortened windows as null
	AllowSimulated    bool       // accept an all-simulated batch as a feasibility run
	ConfidenceBuckets int        // default 5
	Segments          []NamedKey // default StandardSegments
}

// DefaultConfig returns the standard evaluation options.
func DefaultConfig() Config {
	return Config{ConfidenceBuckets: 5, Segments: StandardSegments()}
}

// ConfigFrom adapts the evaluation section of the application config.
func ConfigFrom(c config.EvaluationConfig) Config {
	cfg := DefaultConfig()
	cfg.ExactHorizonOnly = c.ExactHorizonOnly
	cfg.AllowSimulated = c.AllowSimulated
	if c.ConfidenceBuckets > 0 {
		cfg.ConfidenceBuckets = c.ConfidenceBuckets
	}
	return cfg
}

// ════════════════════════════════════════════════════════════════════
// Summary
// ════════════════════════════════════════════════════════════════════

// Summary is the nested result of one evaluation run.
type Summary struct {
	RunID       string    `json:"runId"`
	Predictor   string    `json:"predictor"`
	Horizon     int       `json:"horizonDays"`
	GeneratedAt time.Time `json:"generatedAt"`

	Rows              int  `json:"rows"`
	NullActual        int  `json:"nullActual"`
	NonExact          int  `json:"nonExactExcluded"`
	SimulatedFeatures int  `json:"simulatedFeatures"`
	Feasibility       bool `json:"feasibility"`

	Accuracy   AccuracyStats                       `json:"accuracy"`
	Baseline   AccuracyStats                       `json:"baseline"`
	Errors     *ErrorSummary                       `json:"errors,omitempty"`
	Spread     *float64                            `json:"returnSpreadPct,omitempty"`
	Confusion  ConfusionMatrix                     `json:"confusion"`
	Confidence []BucketStats                       `json:"confidenceBuckets,omitempty"`
	Segments   map[string]map[string]AccuracyStats `json:"segments"`
	// SegmentOrder lists Segments' names in the configured order.
	SegmentOrder []string `json:"-"`

	Pairs []Pair `json:"-"`
}

// LiftPct is the accuracy gain over the always-positive baseline, in
// percentage points.
func (s *Summary) LiftPct() float64 {
	return s.Accuracy.AccuracyPct - s.Baseline.AccuracyPct
}

// ════════════════════════════════════════════════════════════════════
// Engine
// ════════════════════════════════════════════════════════════════════

// Engine evaluates a predictor over a batch of joined rows. It holds no
// state between runs.
type Engine struct {
	cfg Config
	log *zap.Logger
}

// NewEngine creates an engine, filling unset options from DefaultConfig.
func NewEngine(cfg Config, log *zap.Logger) *Engine {
	if cfg.ConfidenceBuckets <= 0 {
		cfg.ConfidenceBuckets = DefaultConfig().ConfidenceBuckets
	}
	if cfg.Segments == nil {
		cfg.Segments = StandardSegments()
	}
	return &Engine{cfg: cfg, log: logging.OrNop(log)}
}

// Run predicts every row and folds the pairs at the given horizon into a
// Summary. A batch with simulated features is refused unless AllowSimulated
// is set, and a batch mixing simulated with real features is always
// refused.
func (e *Engine) Run(p Predictor, rows []models.JoinedRow, horizon int) (*Summary, error) {
	if p == nil {
		return nil, fmt.Errorf("predictor is nil")
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}

	simulated, real := 0, 0
	for _, r := range rows {
		switch r.Features.Provenance {
		case models.ProvenanceSimulated:
			simulated++
		case models.ProvenanceReal:
			real++
		}
	}
	if simulated > 0 && real > 0 {
		return nil, fmt.Errorf("%w: %d simulated, %d real", ErrMixedProvenance, simulated, real)
	}
	if simulated > 0 && !e.cfg.AllowSimulated {
		return nil, fmt.Errorf("%w in %d rows; rerun as a feasibility check to accept them", ErrSimulatedFeatures, simulated)
	}

	s := &Summary{
		RunID:             uuid.NewString(),
		Predictor:         p.Name(),
		Horizon:           horizon,
		GeneratedAt:       time.Now().UTC(),
		Rows:              len(rows),
		SimulatedFeatures: simulated,
		Feasibility:       simulated > 0,
		Pairs:             make([]Pair, 0, len(rows)),
	}

	for _, r := range rows {
		obs := r.Return(horizon)
		actual := obs.ActualReturnPct
		switch {
		case !obs.Valid():
			s.NullActual++
		case e.cfg.ExactHorizonOnly && !obs.Exact():
			s.NonExact++
			actual = nil
		}
		s.Pairs = append(s.Pairs, Pair{
			Filing:     r.Filing,
			Features:   r.Features,
			Prediction: p.Predict(r),
			Actual:     actual,
		})
	}

	s.Accuracy = Accuracy(s.Pairs)
	s.Baseline = PositiveRate(s.Pairs)
	if es := ErrorStats(s.Pairs); es.N > 0 {
		s.Errors = &es
	}
	s.Spread = ReturnSpread(s.Pairs)
	s.Confusion = Confusion(s.Pairs)
	s.Confidence = ConfidenceBuckets(s.Pairs, e.cfg.ConfidenceBuckets)

	s.Segments = make(map[string]map[string]AccuracyStats, len(e.cfg.Segments))
	for _, seg := range e.cfg.Segments {
		s.Segments[seg.Name] = Segment(s.Pairs, seg.Key)
		s.SegmentOrder = append(s.SegmentOrder, seg.Name)
	}

	e.log.Info("evaluation complete",
		zap.String("run_id", s.RunID),
		zap.String("predictor", s.Predictor),
		zap.Int("horizon", horizon),
		zap.Int("evaluated", s.Accuracy.Total),
		zap.Int("null", s.NullActual),
		zap.Int("non_exact", s.NonExact),
		zap.Float64("accuracy_pct", s.Accuracy.AccuracyPct),
		zap.Bool("feasibility", s.Feasibility),
	)
	return s, nil
}
