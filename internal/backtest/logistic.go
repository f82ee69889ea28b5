package backtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/filingret/internal/features"
	"github.com/seenimoa/filingret/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Logistic Direction Model
// ════════════════════════════════════════════════════════════════════

// Input names, in the order the weights are stored.
const (
	InEPSSurprisePct = "epsSurprisePct"
	InEPSSurpriseAbs = "epsSurpriseAbs"
	InEPSBeat        = "epsBeat"
	InEPSMiss        = "epsMiss"
	InLargeBeat      = "largeBeat"
	InLargeMiss      = "largeMiss"
)

// LogisticInputs is the model's feature order.
var LogisticInputs = []string{
	InEPSSurprisePct, InEPSSurpriseAbs, InEPSBeat, InEPSMiss, InLargeBeat, InLargeMiss,
}

// ErrInsufficientData is returned when too few labelled rows remain to fit.
var ErrInsufficientData = errors.New("insufficient training data")

// TrainOptions controls the gradient-descent fit.
type TrainOptions struct {
	LearningRate  float64
	Iterations    int
	L2            float64
	TrainFraction float64 // chronological share used for fitting
}

// DefaultTrainOptions mirrors the model defaults in config.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{LearningRate: 0.1, Iterations: 2000, L2: 0.01, TrainFraction: 0.8}
}

// LogisticModel is a standardized logistic regression on EPS-surprise
// inputs. The JSON form is the persisted model file.
type LogisticModel struct {
	Inputs  []string  `json:"inputs"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Means   []float64 `json:"means"`
	StdDevs []float64 `json:"stdDevs"`

	Horizon          int       `json:"horizon"`
	TrainedAt        time.Time `json:"trainedAt"`
	TrainSamples     int       `json:"trainSamples"`
	TestSamples      int       `json:"testSamples"`
	TrainAccuracyPct float64   `json:"trainAccuracyPct"`
	TestAccuracyPct  float64   `json:"testAccuracyPct"`
	TestBaselinePct  float64   `json:"testBaselinePct"`
}

// Inputs builds the model's raw input vector from a feature vector. A
// missing EPS surprise reads as 0 (inline).
func Inputs(fv models.FeatureVector) []float64 {
	pct, _ := fv.Num(features.SurprisePctName(features.FeatEPS))
	cat := features.Classify(pct)
	return []float64{
		pct,
		math.Abs(pct),
		boolf(cat == models.SurpriseBeat),
		boolf(cat == models.SurpriseMiss),
		boolf(pct > largeSurprisePct),
		boolf(pct < -largeSurprisePct),
	}
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type sample struct {
	filed time.Time
	x     []float64
	y     float64
	row   models.JoinedRow
}

// Train fits the model on rows with a non-null return at horizon. Rows are
// ordered by filing date and split chronologically: the earliest
// TrainFraction fit the weights, the rest score the held-out accuracy.
// Simulated features are refused.
func Train(rows []models.JoinedRow, horizon int, opts TrainOptions) (*LogisticModel, error) {
	if opts.TrainFraction <= 0 || opts.TrainFraction >= 1 {
		return nil, fmt.Errorf("train fraction must be in (0,1), got %v", opts.TrainFraction)
	}
	if opts.Iterations <= 0 || opts.LearningRate <= 0 {
		return nil, fmt.Errorf("iterations and learning rate must be positive")
	}

	var samples []sample
	for _, r := range rows {
		actual, ok := r.Return(horizon).Value()
		if !ok {
			continue
		}
		if r.Features.Provenance == models.ProvenanceSimulated {
			return nil, fmt.Errorf("%w: %s", ErrSimulatedFeatures, r.Filing.Key())
		}
		y := 0.0
		if models.SignOf(actual) == models.Positive {
			y = 1
		}
		samples = append(samples, sample{filed: r.Filing.FilingDate, x: Inputs(r.Features), y: y, row: r})
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].filed.Before(samples[j].filed) })

	split := int(float64(len(samples)) * opts.TrainFraction)
	if split < 2 {
		return nil, fmt.Errorf("%w: %d labelled rows", ErrInsufficientData, len(samples))
	}
	train, test := samples[:split], samples[split:]

	m := &LogisticModel{
		Inputs:       append([]string(nil), LogisticInputs...),
		Horizon:      horizon,
		TrainedAt:    time.Now().UTC(),
		TrainSamples: len(train),
		TestSamples:  len(test),
	}
	m.standardize(train)
	m.fit(train, opts)

	m.TrainAccuracyPct = Accuracy(m.pairs(train, horizon)).AccuracyPct
	if len(test) > 0 {
		testPairs := m.pairs(test, horizon)
		m.TestAccuracyPct = Accuracy(testPairs).AccuracyPct
		m.TestBaselinePct = PositiveRate(testPairs).AccuracyPct
	}
	return m, nil
}

// standardize records per-input mean and population standard deviation.
// Constant inputs get a unit deviation so they scale to zero.
func (m *LogisticModel) standardize(train []sample) {
	k := len(m.Inputs)
	m.Means = make([]float64, k)
	m.StdDevs = make([]float64, k)
	col := make([]float64, len(train))
	for j := 0; j < k; j++ {
		for i, s := range train {
			col[i] = s.x[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if !(std >= 1e-12) {
			std = 1
		}
		m.Means[j], m.StdDevs[j] = mean, std
	}
}

// fit runs full-batch gradient descent on the L2-penalized log loss,
// starting from zero weights. The bias is not penalized.
func (m *LogisticModel) fit(train []sample, opts TrainOptions) {
	n, k := len(train), len(m.Inputs)
	x := mat.NewDense(n, k, nil)
	y := mat.NewVecDense(n, nil)
	for i, s := range train {
		x.SetRow(i, m.scale(s.x))
		y.SetVec(i, s.y)
	}

	w := mat.NewVecDense(k, nil)
	resid := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(k, nil)
	var bias float64
	for it := 0; it < opts.Iterations; it++ {
		resid.MulVec(x, w)
		for i := 0; i < n; i++ {
			resid.SetVec(i, sigmoid(resid.AtVec(i)+bias)-y.AtVec(i))
		}
		grad.MulVec(x.T(), resid)
		grad.ScaleVec(1/float64(n), grad)
		grad.AddScaledVec(grad, opts.L2, w)
		w.AddScaledVec(w, -opts.LearningRate, grad)
		bias -= opts.LearningRate * mat.Sum(resid) / float64(n)
	}
	m.Weights = mat.Col(nil, 0, w)
	m.Bias = bias
}

func (m *LogisticModel) scale(raw []float64) []float64 {
	out := make([]float64, len(raw))
	for j, v := range raw {
		out[j] = (v - m.Means[j]) / m.StdDevs[j]
	}
	return out
}

func (m *LogisticModel) logit(x []float64) float64 {
	z := m.Bias
	for j, v := range x {
		z += m.Weights[j] * v
	}
	return z
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func (m *LogisticModel) pairs(samples []sample, horizon int) []Pair {
	out := make([]Pair, len(samples))
	for i, s := range samples {
		out[i] = Pair{
			Filing:     s.row.Filing,
			Features:   s.row.Features,
			Prediction: m.PredictFeatures(s.row.Features),
			Actual:     s.row.Return(horizon).ActualReturnPct,
		}
	}
	return out
}

// Probability returns the model's probability of a non-negative return.
func (m *LogisticModel) Probability(fv models.FeatureVector) float64 {
	return sigmoid(m.logit(m.scale(Inputs(fv))))
}

// PredictFeatures returns a direction-only prediction; Confidence is the
// positive-class probability and the sign is positive at 0.5 or above.
func (m *LogisticModel) PredictFeatures(fv models.FeatureVector) models.PredictionResult {
	p := m.Probability(fv)
	sign := models.Negative
	if p >= 0.5 {
		sign = models.Positive
	}
	return models.NewSignPrediction(sign, p)
}

// ────────────────────────────────────────────────────────────────────
// Persistence
// ────────────────────────────────────────────────────────────────────

// Save writes the model as indented JSON.
func (m *LogisticModel) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

// LoadModel reads a model written by Save and checks it is usable.
func LoadModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m LogisticModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks the stored vectors agree with the input order.
func (m *LogisticModel) Validate() error {
	k := len(LogisticInputs)
	if len(m.Inputs) != k || len(m.Weights) != k || len(m.Means) != k || len(m.StdDevs) != k {
		return fmt.Errorf("expected %d inputs, weights, means and stddevs", k)
	}
	for j, name := range LogisticInputs {
		if m.Inputs[j] != name {
			return fmt.Errorf("input %d is %q, want %q", j, m.Inputs[j], name)
		}
		if m.StdDevs[j] <= 0 {
			return fmt.Errorf("stddev of %s must be positive", name)
		}
	}
	return nil
}

// ────────────────────────────────────────────────────────────────────
// Recommendation
// ────────────────────────────────────────────────────────────────────

// Recommend maps a positive-class probability to a trading action.
func Recommend(confidence float64) models.Recommendation {
	switch {
	case confidence >= 0.65:
		return models.Recommendation{Action: "BUY", Size: "FULL", Reason: "High confidence bullish signal"}
	case confidence >= 0.55:
		return models.Recommendation{Action: "BUY", Size: "HALF", Reason: "Moderate confidence bullish signal"}
	case confidence <= 0.35:
		return models.Recommendation{Action: "SHORT", Size: "HALF", Reason: "Low confidence suggests bearish outcome"}
	case confidence <= 0.45:
		return models.Recommendation{Action: "HOLD", Size: "SMALL", Reason: "Low confidence, small position or skip"}
	}
	return models.Recommendation{Action: "HOLD", Size: "SMALL", Reason: "Neutral confidence"}
}
