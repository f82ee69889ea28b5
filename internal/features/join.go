package features

import (
	"github.com/seenimoa/filingret/pkg/models"
)

// Feature names shared by the extractors, predictors and reports.
const (
	FeatEPS       = "eps"
	FeatRevenue   = "revenue"   // millions USD
	FeatNetIncome = "netIncome" // millions USD

	FeatSentiment           = "sentimentScore"
	FeatSentimentConfidence = "sentimentConfidence"
	FeatRiskScore           = "riskScore"
	FeatRiskDelta           = "riskScoreDelta"

	FeatVolumeRatio = "volumeRatio"

	FeatMarketMomentum   = "marketMomentum"
	FeatMarketVolatility = "marketVolatility"
	FeatFlightToQuality  = "flightToQuality"
	FeatMarketCap        = "marketCap" // billions USD
	CatMarketRegime      = "marketRegime"
	CatMarketCapBucket   = "marketCapBucket"
	CatRegime            = "regime" // calendar-year regime from reference data

	FeatFedFunds    = "fedFundsRate"
	FeatTreasury10Y = "treasury10y"
	FeatTermSpread  = "termSpread"

	CatGuidance = "guidanceChange"
)

// SurpriseName and SurprisePctName name the category and magnitude features
// that JoinSurprises derives from a metric.
func SurpriseName(metric string) string    { return metric + "Surprise" }
func SurprisePctName(metric string) string { return metric + "SurprisePct" }

// Records returns the filing records of rows in the same order.
func Records(rows []models.JoinedRow) []models.FilingRecord {
	out := make([]models.FilingRecord, len(rows))
	for i, r := range rows {
		out[i] = r.Filing
	}
	return out
}

// Join merges externally computed vectors onto rows by (ticker, filing
// date) and returns how many rows matched. Rows without a vector are left
// untouched.
func Join(rows []models.JoinedRow, byKey map[models.FilingKey]models.FeatureVector) int {
	matched := 0
	for i := range rows {
		fv, ok := byKey[rows[i].Filing.Key()]
		if !ok {
			continue
		}
		rows[i].Features.Merge(fv)
		matched++
	}
	return matched
}

// JoinSurprises attaches the surprise of metric against each row's prior
// comparable filing, as a category (metric+"Surprise") and a magnitude
// (metric+"SurprisePct"). Rows without a prior, or whose prior lacks the
// metric or has it at zero, get neither field. It returns how many rows
// received a surprise.
func JoinSurprises(rows []models.JoinedRow, metric string) int {
	prior := priorIndex(Records(rows))
	n := 0
	for i := range rows {
		cur, ok := rows[i].Features.Num(metric)
		if !ok || prior[i] < 0 {
			continue
		}
		prev, ok := rows[prior[i]].Features.Num(metric)
		if !ok {
			continue
		}
		s, ok := SurpriseOf(cur, prev)
		if !ok {
			continue
		}
		rows[i].Features.SetCat(SurpriseName(metric), string(s.Category))
		rows[i].Features.SetNum(SurprisePctName(metric), s.MagnitudePct)
		n++
	}
	return n
}

// SurpriseFor reads back a surprise attached by JoinSurprises.
func SurpriseFor(fv models.FeatureVector, metric string) (models.Surprise, bool) {
	cat, ok := fv.Cat(SurpriseName(metric))
	if !ok {
		return models.Surprise{}, false
	}
	pct, _ := fv.Num(SurprisePctName(metric))
	return models.Surprise{Category: models.SurpriseCategory(cat), MagnitudePct: pct}, true
}
