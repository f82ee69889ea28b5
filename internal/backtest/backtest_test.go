package backtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/filingret/internal/features"
	"github.com/seenimoa/filingret/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

func day(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func pair(ticker string, sign models.Sign, actual *float64) Pair {
	return Pair{
		Filing:     models.FilingRecord{Ticker: ticker, FilingType: models.FilingQuarterly, FilingDate: day("2023-05-05")},
		Prediction: models.PredictionResult{PredictedSign: sign},
		Actual:     actual,
	}
}

func valuePair(pred, actual float64) Pair {
	return Pair{Prediction: models.NewValuePrediction(pred), Actual: models.Float(actual)}
}

func row(ticker, date string, ret *float64, prov models.Provenance) models.JoinedRow {
	r := models.JoinedRow{
		Filing:   models.FilingRecord{Ticker: ticker, FilingType: models.FilingQuarterly, FilingDate: day(date)},
		Features: models.NewFeatureVector(prov),
	}
	r.SetReturn(models.ReturnObservation{HorizonDays: 7, EffectiveDays: 7, ActualReturnPct: ret})
	return r
}

// ════════════════════════════════════════════════════════════════════
// Accuracy
// ════════════════════════════════════════════════════════════════════

func TestAccuracyExcludesNulls(t *testing.T) {
	actuals := []*float64{
		models.Float(1), models.Float(-2), nil, models.Float(3), nil,
		models.Float(-4), models.Float(5), nil, models.Float(6), models.Float(-7),
	}
	var pairs []Pair
	for _, a := range actuals {
		pairs = append(pairs, pair("AAPL", models.Positive, a))
	}

	s := Accuracy(pairs)
	assert.Equal(t, 7, s.Total, "3 nulls are excluded, not counted wrong")
	assert.Equal(t, 4, s.Correct)
	assert.InDelta(t, 400.0/7, s.AccuracyPct, 1e-9)
}

func TestAccuracyZeroIsPositive(t *testing.T) {
	pairs := []Pair{
		pair("A", models.Positive, models.Float(0)),
		valuePair(0, 0.5),
		valuePair(0, -0.5),
	}
	s := Accuracy(pairs)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Correct)

	base := PositiveRate(pairs)
	assert.Equal(t, 2, base.Correct, "a flat return counts toward the positive rate")
	assert.Equal(t, 3, base.Total)
}

func TestAccuracyEmpty(t *testing.T) {
	s := Accuracy([]Pair{pair("A", models.Positive, nil)})
	assert.Equal(t, AccuracyStats{}, s)
}

func TestSegment(t *testing.T) {
	pairs := []Pair{
		pair("AAPL", models.Positive, models.Float(1)),
		pair("AAPL", models.Positive, models.Float(-1)),
		pair("MSFT", models.Negative, models.Float(-1)),
		pair("MSFT", models.Negative, nil),
	}
	pairs[0].Filing.FilingDate = day("2022-05-01")
	pairs[0].Features = models.NewFeatureVector(models.ProvenanceReal)
	pairs[0].Features.SetCat(features.CatMarketCapBucket, features.CapUltra)

	byTicker := Segment(pairs, ByTicker)
	assert.Equal(t, AccuracyStats{Correct: 1, Total: 2, AccuracyPct: 50}, byTicker["AAPL"])
	assert.Equal(t, AccuracyStats{Correct: 1, Total: 1, AccuracyPct: 100}, byTicker["MSFT"])
	assert.Equal(t, []string{"AAPL", "MSFT"}, SegmentKeys(byTicker))

	byYear := Segment(pairs, ByYear)
	assert.Equal(t, 1, byYear["2022"].Total)
	assert.Equal(t, 2, byYear["2023"].Total)

	byCap := Segment(pairs, ByCapBucket)
	assert.Equal(t, 1, byCap[features.CapUltra].Total)
	assert.Equal(t, 2, byCap[unknownSegment].Total)

	bySurprise := Segment(pairs, BySurprise)
	assert.Contains(t, bySurprise, "none")
}

func TestByShortInterest(t *testing.T) {
	pairs := []Pair{
		pair("GME", models.Positive, models.Float(12)),
		pair("GME", models.Positive, models.Float(-3)),
		pair("AAPL", models.Positive, models.Float(1)),
		pair("AAPL", models.Negative, models.Float(1)),
	}
	pairs[0].Features.SetCat(features.CatShortInterest, features.ShortHigh)
	pairs[0].Features.SetCat(features.CatConsensusSurprise, string(models.SurpriseBeat))
	// Consensus wins over the year-over-year surprise.
	pairs[0].Features.SetCat(features.SurpriseName(features.FeatEPS), string(models.SurpriseMiss))
	pairs[1].Features.SetCat(features.CatShortInterest, features.ShortHigh)
	pairs[2].Features.SetCat(features.CatShortInterest, features.ShortNormal)
	pairs[2].Features.SetCat(features.SurpriseName(features.FeatEPS), string(models.SurpriseInline))

	assert.Equal(t, "high/beat", ByShortInterest(pairs[0]))
	assert.Equal(t, "high/none", ByShortInterest(pairs[1]))
	assert.Equal(t, "normal/inline", ByShortInterest(pairs[2]))
	assert.Equal(t, "none", ByShortInterest(pairs[3]))

	seg := Segment(pairs, ByShortInterest)
	assert.Equal(t, AccuracyStats{Correct: 1, Total: 1, AccuracyPct: 100}, seg["high/beat"])
	assert.Equal(t, AccuracyStats{Correct: 0, Total: 1, AccuracyPct: 0}, seg["none"])

	var names []string
	for _, nk := range StandardSegments() {
		names = append(names, nk.Name)
	}
	assert.Contains(t, names, "shortInterest")
}

// ════════════════════════════════════════════════════════════════════
// Error, spread, confusion, confidence
// ════════════════════════════════════════════════════════════════════

func TestErrorStats(t *testing.T) {
	pairs := []Pair{
		valuePair(1, 2),
		valuePair(2, 4),
		valuePair(3, 0),
		pair("A", models.Positive, models.Float(9)), // no value
		{Prediction: models.NewValuePrediction(5)},  // no actual
	}
	e := ErrorStats(pairs)
	assert.Equal(t, 3, e.N)
	assert.InDelta(t, 2, e.MeanAbsoluteError, 1e-12)
	assert.InDelta(t, 2, e.MedianAbsoluteError, 1e-12)

	e = ErrorStats(append(pairs, valuePair(0, 10)))
	assert.InDelta(t, 2.5, e.MedianAbsoluteError, 1e-12, "even count averages the middle two")

	assert.Equal(t, 0, ErrorStats([]Pair{pair("A", models.Positive, models.Float(1))}).N)
}

func TestReturnSpreadAndConfusion(t *testing.T) {
	pairs := []Pair{
		pair("A", models.Positive, models.Float(4)),
		pair("A", models.Positive, models.Float(-2)),
		pair("A", models.Negative, models.Float(-3)),
		pair("A", models.Negative, models.Float(1)),
		pair("A", models.Negative, nil),
	}
	spread := ReturnSpread(pairs)
	require.NotNil(t, spread)
	assert.InDelta(t, 1-(-1), *spread, 1e-12)

	m := Confusion(pairs)
	assert.Equal(t, ConfusionMatrix{TruePositive: 1, FalsePositive: 1, TrueNegative: 1, FalseNegative: 1}, m)
	assert.InDelta(t, 50, m.Precision(), 1e-12)
	assert.InDelta(t, 50, m.Recall(), 1e-12)

	assert.Nil(t, ReturnSpread(pairs[:2]), "no negative calls")
}

func TestConfidenceBuckets(t *testing.T) {
	withConf := func(c float64, actual float64) Pair {
		sign := models.Negative
		if c >= 0.5 {
			sign = models.Positive
		}
		return Pair{Prediction: models.NewSignPrediction(sign, c), Actual: models.Float(actual)}
	}
	pairs := []Pair{
		withConf(0.95, 1),  // bucket 4, correct
		withConf(0.05, 1),  // certainty 0.95, bucket 4, wrong
		withConf(1.0, 2),   // closes the last bucket
		withConf(0.52, -1), // bucket 0, wrong
		pair("A", models.Positive, models.Float(1)),
	}
	b := ConfidenceBuckets(pairs, 5)
	require.Len(t, b, 5)
	assert.InDelta(t, 0.5, b[0].Low, 1e-12)
	assert.InDelta(t, 1.0, b[4].High, 1e-12)
	assert.Equal(t, 1, b[0].Total)
	assert.Equal(t, 0, b[0].Correct)
	assert.Equal(t, 3, b[4].Total)
	assert.Equal(t, 2, b[4].Correct)

	assert.Nil(t, ConfidenceBuckets(pairs[4:], 5))
}

// ════════════════════════════════════════════════════════════════════
// Predictors
// ════════════════════════════════════════════════════════════════════

func surpriseRow(capB float64, regime string, epsCat models.SurpriseCategory, epsPct float64, revCat models.SurpriseCategory) models.JoinedRow {
	r := row("AMD", "2023-05-02", models.Float(1), models.ProvenanceReal)
	fv := &r.Features
	fv.SetNum(features.FeatMarketCap, capB)
	fv.SetCat(features.CatRegime, regime)
	fv.SetCat(features.SurpriseName(features.FeatEPS), string(epsCat))
	fv.SetNum(features.SurprisePctName(features.FeatEPS), epsPct)
	fv.SetCat(features.SurpriseName(features.FeatRevenue), string(revCat))
	return r
}

func TestSurpriseFactor(t *testing.T) {
	tests := []struct {
		name string
		row  models.JoinedRow
		want float64
	}{
		{"mid cap bull large beat",
			surpriseRow(300, "bull", models.SurpriseBeat, 12, models.SurpriseMiss),
			0.83 + 1.5 + 1.0 + 0.8 - 1.5},
		{"small cap bear large miss",
			surpriseRow(100, "bear", models.SurpriseMiss, -15, models.SurpriseMiss),
			0.83 - 0.5 - 1.0 - 0.7 - 1.5},
		{"bull damps a negative call",
			surpriseRow(100, "bull", models.SurpriseMiss, -3, models.SurpriseInline),
			(0.83 - 0.5 - 1.0) * 0.3},
		{"bear damps a positive call",
			surpriseRow(3000, "bear", models.SurpriseInline, 1, models.SurpriseBeat),
			(0.83 + 0.5 + 0.6 + 0.8) * 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SurpriseFactor{}.Predict(tt.row)
			require.NotNil(t, got.PredictedValue)
			assert.InDelta(t, tt.want, *got.PredictedValue, 1e-9)
			assert.Equal(t, models.SignOf(tt.want), got.PredictedSign)
		})
	}
}

func TestSurpriseFactorTextSignals(t *testing.T) {
	r := row("X", "2023-05-02", nil, models.ProvenanceReal)
	r.Features.SetNum(features.FeatSentiment, 0.2)
	r.Features.SetNum(features.FeatRiskDelta, 1.5)
	got := SurpriseFactor{}.Predict(r)
	assert.InDelta(t, 0.83+1.0-1.2, *got.PredictedValue, 1e-9)
}

func TestNewPredictor(t *testing.T) {
	p, err := NewPredictor(PredictorAlwaysPositive, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Positive, p.Predict(models.JoinedRow{}).PredictedSign)

	p, err = NewPredictor("", nil)
	require.NoError(t, err)
	assert.Equal(t, PredictorSurprise, p.Name())

	_, err = NewPredictor(PredictorLogistic, nil)
	assert.Error(t, err)
	_, err = NewPredictor("oracle", nil)
	assert.Error(t, err)
}

// ════════════════════════════════════════════════════════════════════
// Engine
// ════════════════════════════════════════════════════════════════════

func TestEngineRun(t *testing.T) {
	rows := []models.JoinedRow{
		row("AAPL", "2023-05-05", models.Float(2), models.ProvenanceReal),
		row("AAPL", "2023-08-04", models.Float(-1), models.ProvenanceReal),
		row("MSFT", "2023-04-25", models.Float(0), models.ProvenanceReal),
		row("MSFT", "2023-07-27", nil, models.ProvenanceReal),
	}
	short := models.ReturnObservation{HorizonDays: 7, EffectiveDays: 3, ActualReturnPct: models.Float(5)}
	rows = append(rows, models.JoinedRow{Filing: models.FilingRecord{Ticker: "NVDA", FilingDate: day("2024-08-28")}})
	rows[4].SetReturn(short)

	e := NewEngine(Config{ExactHorizonOnly: true}, nil)
	s, err := e.Run(AlwaysPositive{}, rows, 7)
	require.NoError(t, err)

	_, err = uuid.Parse(s.RunID)
	assert.NoError(t, err)
	assert.Equal(t, 5, s.Rows)
	assert.Equal(t, 1, s.NullActual)
	assert.Equal(t, 1, s.NonExact)
	assert.Equal(t, 2, s.Accuracy.Correct)
	assert.Equal(t, 3, s.Accuracy.Total)
	assert.InDelta(t, 200.0/3, s.Accuracy.AccuracyPct, 1e-9)
	assert.Equal(t, s.Accuracy, s.Baseline)
	assert.InDelta(t, 0, s.LiftPct(), 1e-12)
	assert.Nil(t, s.Errors, "always-positive carries no values")
	assert.Nil(t, s.Confidence)
	assert.False(t, s.Feasibility)
	assert.Equal(t, []string{"ticker", "filingType", "year", "marketCap", "regime", "epsSurprise"}, s.SegmentOrder)
	assert.Equal(t, 2, s.Segments["ticker"]["AAPL"].Total)

	// Without the exact-horizon filter the shortened window counts.
	s, err = NewEngine(DefaultConfig(), nil).Run(AlwaysPositive{}, rows, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Accuracy.Total)
	assert.Equal(t, 0, s.NonExact)
}

func TestEngineProvenanceGuard(t *testing.T) {
	sim := []models.JoinedRow{
		row("TSLA", "2023-01-30", models.Float(3), models.ProvenanceSimulated),
		row("TSLA", "2023-04-24", models.Float(-3), models.ProvenanceSimulated),
	}

	_, err := NewEngine(DefaultConfig(), nil).Run(SurpriseFactor{}, sim, 7)
	assert.ErrorIs(t, err, ErrSimulatedFeatures)

	cfg := DefaultConfig()
	cfg.AllowSimulated = true
	s, err := NewEngine(cfg, nil).Run(SurpriseFactor{}, sim, 7)
	require.NoError(t, err)
	assert.True(t, s.Feasibility)
	assert.Equal(t, 2, s.SimulatedFeatures)

	mixed := append(sim, row("TSLA", "2023-07-24", models.Float(1), models.ProvenanceReal))
	_, err = NewEngine(cfg, nil).Run(SurpriseFactor{}, mixed, 7)
	assert.ErrorIs(t, err, ErrMixedProvenance)
}

func TestEngineRejectsBadInput(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	_, err := e.Run(nil, nil, 7)
	assert.Error(t, err)
	_, err = e.Run(AlwaysPositive{}, nil, 0)
	assert.Error(t, err)
}

// ════════════════════════════════════════════════════════════════════
// Logistic model
// ════════════════════════════════════════════════════════════════════

// separable builds n rows whose return sign follows the EPS surprise sign.
func separable(n int) []models.JoinedRow {
	start := day("2020-01-31")
	var rows []models.JoinedRow
	for i := 0; i < n; i++ {
		pct, ret := 8.0+float64(i%5), 2.0
		if i%2 == 1 {
			pct, ret = -pct, -2
		}
		r := row("AAPL", start.AddDate(0, 0, 30*i).Format(models.DateLayout), models.Float(ret), models.ProvenanceReal)
		r.Features.SetNum(features.SurprisePctName(features.FeatEPS), pct)
		rows = append(rows, r)
	}
	return rows
}

func TestTrainSeparable(t *testing.T) {
	rows := separable(40)
	// Reverse so Train has to restore chronological order.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	m, err := Train(rows, 7, DefaultTrainOptions())
	require.NoError(t, err)
	assert.Equal(t, 32, m.TrainSamples)
	assert.Equal(t, 8, m.TestSamples)
	assert.Equal(t, 100.0, m.TrainAccuracyPct)
	assert.Equal(t, 100.0, m.TestAccuracyPct)
	assert.Equal(t, 50.0, m.TestBaselinePct)

	beat := models.NewFeatureVector(models.ProvenanceReal)
	beat.SetNum(features.SurprisePctName(features.FeatEPS), 20)
	res := m.PredictFeatures(beat)
	assert.Equal(t, models.Positive, res.PredictedSign)
	require.NotNil(t, res.Confidence)
	assert.Greater(t, float64(*res.Confidence), 0.65)

	miss := models.NewFeatureVector(models.ProvenanceReal)
	miss.SetNum(features.SurprisePctName(features.FeatEPS), -20)
	assert.Less(t, m.Probability(miss), 0.35)
}

func TestTrainDeterministic(t *testing.T) {
	a, err := Train(separable(30), 7, DefaultTrainOptions())
	require.NoError(t, err)
	b, err := Train(separable(30), 7, DefaultTrainOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Weights, b.Weights)
	assert.Equal(t, a.Bias, b.Bias)
}

func TestStandardizeAndFitStep(t *testing.T) {
	x := func(v float64) []float64 { return []float64{v, 7, 0, 0, 0, 0} }
	train := []sample{{x: x(1), y: 1}, {x: x(3), y: 0}}

	m := &LogisticModel{Inputs: LogisticInputs}
	m.standardize(train)
	assert.InDeltaSlice(t, []float64{2, 7, 0, 0, 0, 0}, m.Means, 1e-12)
	assert.InDelta(t, 1.0, m.StdDevs[0], 1e-12, "population deviation")
	assert.Equal(t, 1.0, m.StdDevs[1], "constant input scales to zero")

	// One step from zero: residuals are -0.5 and 0.5 on scaled inputs -1
	// and 1, so the gradient on the first weight is 0.5.
	m.fit(train, TrainOptions{LearningRate: 0.1, Iterations: 1, L2: 0.01})
	require.Len(t, m.Weights, len(LogisticInputs))
	assert.InDelta(t, -0.05, m.Weights[0], 1e-12)
	for j := 1; j < len(m.Weights); j++ {
		assert.Zero(t, m.Weights[j])
	}
	assert.InDelta(t, 0, m.Bias, 1e-12)

	// A second step applies the L2 shrink to the non-zero weight.
	m.fit(train, TrainOptions{LearningRate: 0.1, Iterations: 2, L2: 0.01})
	r := sigmoid(0.05) - 1 // first sample, scaled input -1
	grad := (r*-1+(sigmoid(-0.05)-0)*1)/2 + 0.01*-0.05
	assert.InDelta(t, -0.05-0.1*grad, m.Weights[0], 1e-12)
}

func TestTrainRefusals(t *testing.T) {
	sim := separable(10)
	sim[3].Features.Provenance = models.ProvenanceSimulated
	_, err := Train(sim, 7, DefaultTrainOptions())
	assert.ErrorIs(t, err, ErrSimulatedFeatures)

	_, err = Train(separable(2), 7, DefaultTrainOptions())
	assert.ErrorIs(t, err, ErrInsufficientData)

	opts := DefaultTrainOptions()
	opts.TrainFraction = 1
	_, err = Train(separable(10), 7, opts)
	assert.Error(t, err)
}

func TestModelSaveLoad(t *testing.T) {
	m, err := Train(separable(20), 7, DefaultTrainOptions())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, m.Save(path))
	got, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, m.Weights, got.Weights)
	assert.Equal(t, m.Means, got.Means)
	assert.Equal(t, LogisticInputs, got.Inputs)

	fv := separable(1)[0].Features
	assert.Equal(t, m.Probability(fv), got.Probability(fv))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"inputs":["eps"],"weights":[1]}`), 0o644))
	_, err = LoadModel(bad)
	assert.Error(t, err)

	_, err = LoadModel(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		conf         float64
		action, size string
	}{
		{0.80, "BUY", "FULL"},
		{0.65, "BUY", "FULL"},
		{0.60, "BUY", "HALF"},
		{0.50, "HOLD", "SMALL"},
		{0.40, "HOLD", "SMALL"},
		{0.35, "SHORT", "HALF"},
		{0.10, "SHORT", "HALF"},
	}
	for _, tt := range tests {
		r := Recommend(tt.conf)
		assert.Equal(t, tt.action, r.Action, "conf=%v", tt.conf)
		assert.Equal(t, tt.size, r.Size, "conf=%v", tt.conf)
	}
}
