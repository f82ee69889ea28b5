package backtest

import (
	"github.com/seenimoa/filingret/internal/features"
	"github.com/seenimoa/filingret/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Baseline: Always Positive
// ════════════════════════════════════════════════════════════════════

// AlwaysPositive calls every filing positive. Its accuracy is the batch's
// positive rate, the bar every other predictor has to clear.
type AlwaysPositive struct{}

func (AlwaysPositive) Name() string { return PredictorAlwaysPositive }

func (AlwaysPositive) Predict(models.JoinedRow) models.PredictionResult {
	return models.PredictionResult{PredictedSign: models.Positive}
}

// ════════════════════════════════════════════════════════════════════
// Surprise Factor Heuristic
// ════════════════════════════════════════════════════════════════════

// SurpriseFactor scores a filing additively from its EPS and revenue
// surprise, text signals, market-cap bucket and calendar regime, then damps
// calls that fight the regime. The output is a predicted return in percent.
// Missing inputs contribute nothing.
type SurpriseFactor struct{}

// Weights of the surprise heuristic.
const (
	surpriseBaseline      = 0.83
	riskDeltaWeight       = -0.8
	sentimentWeight       = 5.0
	epsBeatWeight         = 1.0
	epsLargeBeatWeight    = 0.8
	epsMissWeight         = -1.0
	epsLargeMissWeight    = -0.7
	epsInlineWeight       = 0.6
	revenueBeatWeight     = 0.8
	revenueMissWeight     = -1.5
	largeSurprisePct      = 10.0
	bullNegativeDampening = 0.3
	bearPositiveDampening = 0.5
)

func (SurpriseFactor) Name() string { return PredictorSurprise }

func (SurpriseFactor) Predict(row models.JoinedRow) models.PredictionResult {
	fv := row.Features
	pred := surpriseBaseline

	if d, ok := fv.Num(features.FeatRiskDelta); ok {
		pred += riskDeltaWeight * d
	}
	if s, ok := fv.Num(features.FeatSentiment); ok {
		pred += sentimentWeight * s
	}

	regime, _ := fv.Cat(features.CatRegime)
	if capB, ok := fv.Num(features.FeatMarketCap); ok {
		pred += capAdjustment(capB, regime)
	}

	if s, ok := features.SurpriseFor(fv, features.FeatEPS); ok {
		switch s.Category {
		case models.SurpriseBeat:
			pred += epsBeatWeight
			if s.MagnitudePct > largeSurprisePct {
				pred += epsLargeBeatWeight
			}
		case models.SurpriseMiss:
			pred += epsMissWeight
			if s.MagnitudePct < -largeSurprisePct {
				pred += epsLargeMissWeight
			}
		case models.SurpriseInline:
			pred += epsInlineWeight
		}
	}
	if c, ok := fv.Cat(features.SurpriseName(features.FeatRevenue)); ok {
		switch models.SurpriseCategory(c) {
		case models.SurpriseBeat:
			pred += revenueBeatWeight
		case models.SurpriseMiss:
			pred += revenueMissWeight
		}
	}

	switch {
	case regime == features.RegimeBull && pred < 0:
		pred *= bullNegativeDampening
	case regime == features.RegimeBear && pred > 0:
		pred *= bearPositiveDampening
	}
	return models.NewValuePrediction(pred)
}

// capAdjustment favours mid caps, more so in a bull year, and penalizes
// small caps. capB is in billions USD.
func capAdjustment(capB float64, regime string) float64 {
	switch {
	case capB < 200:
		return -0.5
	case capB < 500:
		if regime == features.RegimeBull {
			return 1.5
		}
		return 1.0
	case capB < 1000:
		return 0.3
	default:
		return 0.5
	}
}

// ════════════════════════════════════════════════════════════════════
// Logistic Model
// ════════════════════════════════════════════════════════════════════

// Logistic wraps a trained LogisticModel as a Predictor. Confidence is the
// model's probability of a non-negative return.
type Logistic struct {
	Model *LogisticModel
}

func (l *Logistic) Name() string { return PredictorLogistic }

func (l *Logistic) Predict(row models.JoinedRow) models.PredictionResult {
	return l.Model.PredictFeatures(row.Features)
}
