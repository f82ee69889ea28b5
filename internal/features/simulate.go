package features

import (
	"math/rand/v2"

	"github.com/seenimoa/filingret/pkg/models"
)

// Simulate draws sentiment, risk-delta, EPS/revenue surprise and guidance
// features conditioned on each row's already-known return at horizon. The
// result is marked ProvenanceSimulated: it leaks the outcome into the
// features and is only good for checking whether such signals could be
// exploited at all, never for an out-of-sample accuracy claim. Rows without
// a return are skipped. It returns the number of rows simulated.
func Simulate(rows []models.JoinedRow, horizon int, seed uint64) int {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	n := 0
	for i := range rows {
		actual, ok := rows[i].Return(horizon).Value()
		if !ok {
			continue
		}
		fv := models.NewFeatureVector(models.ProvenanceSimulated)

		switch {
		case actual > 2:
			fv.SetNum(FeatSentiment, uniform(0.2, 0.8))
			fv.SetNum(FeatRiskDelta, uniform(-2.5, -0.5))
		case actual < -2:
			fv.SetNum(FeatSentiment, uniform(-0.8, -0.2))
			fv.SetNum(FeatRiskDelta, uniform(0.5, 2.5))
		default:
			fv.SetNum(FeatSentiment, uniform(-0.3, 0.3))
			fv.SetNum(FeatRiskDelta, uniform(-1, 1))
		}

		// Positive outcomes lean toward beats, negative toward misses.
		beatP, inlineP := 0.30, 0.50
		beatHi := 10.0
		if models.SignOf(actual) == models.Positive {
			beatP, inlineP, beatHi = 0.60, 0.80, 15
		}
		var eps models.SurpriseCategory
		switch r := rng.Float64(); {
		case r < beatP:
			eps = models.SurpriseBeat
			fv.SetNum(SurprisePctName(FeatEPS), uniform(1, beatHi))
		case r < inlineP:
			eps = models.SurpriseInline
			fv.SetNum(SurprisePctName(FeatEPS), uniform(-2, 2))
		default:
			eps = models.SurpriseMiss
			fv.SetNum(SurprisePctName(FeatEPS), uniform(-15, -1))
		}
		fv.SetCat(SurpriseName(FeatEPS), string(eps))

		rev := models.SurpriseInline
		switch {
		case eps == models.SurpriseBeat && rng.Float64() < 0.7:
			rev = models.SurpriseBeat
		case eps == models.SurpriseMiss && rng.Float64() < 0.6:
			rev = models.SurpriseMiss
		}
		fv.SetCat(SurpriseName(FeatRevenue), string(rev))

		guidance := "maintained"
		if rng.Float64() >= 0.8 {
			switch {
			case actual > 5:
				guidance = "raised"
			case actual < -5:
				guidance = "lowered"
			}
		}
		fv.SetCat(CatGuidance, guidance)

		rows[i].Features.Merge(fv)
		n++
	}
	return n
}
