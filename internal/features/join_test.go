package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/filingret/pkg/models"
)

func rowsFrom(recs []models.FilingRecord) []models.JoinedRow {
	rows := make([]models.JoinedRow, len(recs))
	for i, r := range recs {
		rows[i] = models.JoinedRow{Filing: r}
	}
	return rows
}

func TestJoinByKey(t *testing.T) {
	rows := rowsFrom([]models.FilingRecord{
		{Ticker: "AAPL", FilingDate: date("2023-08-04")},
		{Ticker: "MSFT", FilingDate: date("2023-07-27")},
	})
	vec := models.NewFeatureVector(models.ProvenanceModel)
	vec.SetNum("score", 0.7)

	n := Join(rows, map[models.FilingKey]models.FeatureVector{
		{Ticker: "AAPL", Date: "2023-08-04"}: vec,
		{Ticker: "AAPL", Date: "2023-08-05"}: vec,
	})
	assert.Equal(t, 1, n)
	v, ok := rows[0].Features.Num("score")
	require.True(t, ok)
	assert.Equal(t, 0.7, v)
	assert.Equal(t, models.ProvenanceModel, rows[0].Features.Provenance)
	_, ok = rows[1].Features.Num("score")
	assert.False(t, ok)
}

func TestJoinSurprises(t *testing.T) {
	recs := quarterlies("AAPL",
		"2022-04-29", "2022-07-29", "2022-10-28",
		"2023-02-03", "2023-05-05", "2023-08-04",
	)
	rows := rowsFrom(recs)
	eps := []float64{1.52, 1.20, 1.29, 1.88, 1.52, 1.26}
	for i, v := range eps {
		rows[i].Features.SetNum(FeatEPS, v)
	}
	// Prior of row 5 (row 1) lacks the metric.
	delete(rows[1].Features.Values, FeatEPS)

	n := JoinSurprises(rows, FeatEPS)
	assert.Equal(t, 1, n)

	s, ok := SurpriseFor(rows[4].Features, FeatEPS)
	require.True(t, ok)
	assert.Equal(t, models.SurpriseInline, s.Category) // 1.52 vs 1.52
	assert.InDelta(t, 0, s.MagnitudePct, 1e-12)

	for _, i := range []int{0, 1, 2, 3, 5} {
		_, ok := SurpriseFor(rows[i].Features, FeatEPS)
		assert.False(t, ok, "row %d must have no surprise, not a default inline", i)
	}
}

func TestSimulateMarksProvenance(t *testing.T) {
	rows := rowsFrom(quarterlies("TSLA", "2023-01-30", "2023-04-24", "2023-07-24"))
	rows[0].SetReturn(models.ReturnObservation{HorizonDays: 7, EffectiveDays: 7, ActualReturnPct: models.Float(8)})
	rows[1].SetReturn(models.ReturnObservation{HorizonDays: 7, EffectiveDays: 7, ActualReturnPct: models.Float(-6)})
	// rows[2] has no return.

	n := Simulate(rows, 7, 42)
	assert.Equal(t, 2, n)
	assert.Equal(t, models.ProvenanceSimulated, rows[0].Features.Provenance)
	assert.Equal(t, models.ProvenanceSimulated, rows[1].Features.Provenance)
	assert.Empty(t, rows[2].Features.Provenance)

	s, ok := rows[0].Features.Num(FeatSentiment)
	require.True(t, ok)
	assert.True(t, s >= 0.2 && s <= 0.8)
	d, _ := rows[1].Features.Num(FeatRiskDelta)
	assert.True(t, d >= 0.5 && d <= 2.5)

	// Same seed, same draws.
	again := rowsFrom(quarterlies("TSLA", "2023-01-30", "2023-04-24", "2023-07-24"))
	again[0].SetReturn(rows[0].Return(7))
	again[1].SetReturn(rows[1].Return(7))
	Simulate(again, 7, 42)
	assert.Equal(t, rows[0].Features, again[0].Features)
}

func TestSimulateDegradesRealVector(t *testing.T) {
	rows := rowsFrom(quarterlies("TSLA", "2023-01-30"))
	rows[0].Features = models.NewFeatureVector(models.ProvenanceReal)
	rows[0].Features.SetNum(FeatEPS, 1.19)
	rows[0].SetReturn(models.ReturnObservation{HorizonDays: 7, EffectiveDays: 7, ActualReturnPct: models.Float(0)})

	Simulate(rows, 7, 1)
	assert.Equal(t, models.ProvenanceSimulated, rows[0].Features.Provenance)
	_, ok := rows[0].Features.Num(FeatEPS)
	assert.True(t, ok)
}

func TestJoinSurprisesAcrossAnnualFilings(t *testing.T) {
	q, k := models.FilingQuarterly, models.FilingAnnual
	rows := rowsFrom([]models.FilingRecord{
		filing("MSFT", q, "2022-10-25"),
		filing("MSFT", q, "2023-01-26"),
		filing("MSFT", q, "2023-04-27"),
		filing("MSFT", k, "2023-07-27"),
		filing("MSFT", q, "2023-10-24"),
	})
	for i, v := range []float64{2.35, 2.20, 2.45, 2.69, 2.99} {
		rows[i].Features.SetNum(FeatEPS, v)
	}

	assert.Equal(t, 1, JoinSurprises(rows, FeatEPS))
	s, ok := SurpriseFor(rows[4].Features, FeatEPS)
	require.True(t, ok)
	assert.Equal(t, models.SurpriseBeat, s.Category)
	assert.InDelta(t, (2.99-2.35)/2.35*100, s.MagnitudePct, 1e-9)
	_, ok = SurpriseFor(rows[3].Features, FeatEPS)
	assert.False(t, ok, "first 10-K has no earlier 10-K")
}
