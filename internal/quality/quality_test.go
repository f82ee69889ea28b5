package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/filingret/pkg/models"
)

func day(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func row(ticker, date string, ret *float64) models.JoinedRow {
	r := models.JoinedRow{Filing: models.FilingRecord{Ticker: ticker, FilingType: models.FilingQuarterly, FilingDate: day(date)}}
	r.SetReturn(models.ReturnObservation{HorizonDays: 7, EffectiveDays: 7, ActualReturnPct: ret})
	return r
}

func TestDedupKeepsFirst(t *testing.T) {
	recs := []models.FilingRecord{
		{Ticker: "AAPL", FilingDate: day("2023-08-04"), AccessionNumber: "first"},
		{Ticker: "MSFT", FilingDate: day("2023-07-27"), AccessionNumber: "m"},
		{Ticker: "aapl", FilingDate: day("2023-08-04"), AccessionNumber: "second"},
		{Ticker: "AAPL", FilingDate: day("2023-05-05"), AccessionNumber: "other date"},
	}
	kept, dropped := DedupRecords(recs)
	require.Len(t, kept, 3)
	assert.Equal(t, "first", kept[0].AccessionNumber)
	assert.Equal(t, "m", kept[1].AccessionNumber)
	assert.Equal(t, "other date", kept[2].AccessionNumber)
	require.Len(t, dropped, 1)
	assert.Equal(t, "second", dropped[0].AccessionNumber)
}

func TestDedupRows(t *testing.T) {
	rows := []models.JoinedRow{
		row("AAPL", "2023-08-04", models.Float(1)),
		row("AAPL", "2023-08-04", models.Float(2)),
	}
	kept, dropped := Dedup(rows)
	require.Len(t, kept, 1)
	v, _ := kept[0].Return(7).Value()
	assert.Equal(t, 1.0, v)
	assert.Len(t, dropped, 1)

	kept, dropped = Dedup(nil)
	assert.Empty(t, kept)
	assert.Empty(t, dropped)
}

func TestAudit(t *testing.T) {
	rows := []models.JoinedRow{
		row("AAPL", "2023-08-04", models.Float(0)),
		row("AAPL", "2023-08-04", models.Float(0)),
		row("SIVB", "2023-03-10", models.Float(-100)),
		row("GME", "2021-03-10", models.Float(75)),
		row("GME", "2021-06-09", models.Float(250)),
		row("MSFT", "2023-07-27", nil),
		row("NVDA", "2023-08-23", models.Float(4)),
	}
	short := models.ReturnObservation{HorizonDays: 7, EffectiveDays: 2, ActualReturnPct: models.Float(-3)}
	rows[6].SetReturn(short)

	f := Audit(rows, 7, DefaultThresholds())
	assert.Equal(t, 7, f.Rows)
	assert.Equal(t, 6, f.WithReturn)
	assert.Equal(t, 1, f.Null)
	assert.Equal(t, 1, f.NonExact)
	assert.Equal(t, 2, f.ExactZero)
	assert.Equal(t, 1, f.ExactWipeout)
	assert.Equal(t, 2, f.HighOutliers, "75% and exactly -100% are high")
	assert.Equal(t, 1, f.ExtremeOutliers, "250% is beyond the bound")
	assert.Equal(t, map[string]int{"GME": 2, "SIVB": 1}, f.OutliersBy)
	assert.Equal(t, []models.FilingKey{{Ticker: "AAPL", Date: "2023-08-04"}}, f.DuplicateKeys)
	assert.Equal(t, 1, f.DuplicateRows)

	require.NotNil(t, f.Distribution)
	assert.Equal(t, -100.0, f.Distribution.Min)
	assert.Equal(t, 250.0, f.Distribution.Max)
	assert.InDelta(t, (0+0-100+75+250-3)/6.0, f.Distribution.Mean, 1e-9)

	assert.Equal(t, []string{"GME", "SIVB"}, f.TopOutlierTickers(5))
	assert.Equal(t, []string{"GME"}, f.TopOutlierTickers(1))
}

func TestAuditEmpty(t *testing.T) {
	f := Audit(nil, 7, DefaultThresholds())
	assert.Nil(t, f.Distribution)
	assert.Empty(t, Guard(f, DefaultThresholds(), nil))
}

func TestGuard(t *testing.T) {
	var rows []models.JoinedRow
	for i := 0; i < 20; i++ {
		v := 1.0
		if i < 4 {
			v = 0 // 20% exact zeros
		}
		rows = append(rows, row("T", time.Date(2023, 1, 2+i, 0, 0, 0, 0, time.UTC).Format(models.DateLayout), models.Float(v)))
	}
	msgs := Guard(Audit(rows, 7, DefaultThresholds()), DefaultThresholds(), nil)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "exact 0%")
	assert.Contains(t, msgs[0], "4 rows (20.0%)")

	lenient := DefaultThresholds()
	lenient.MaxZeroSharePct = 25
	assert.Empty(t, Guard(Audit(rows, 7, lenient), lenient, nil))
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 3.0, Percentile(sorted, 50))
	assert.Equal(t, 1.0, Percentile(sorted, 0))
	assert.Equal(t, 5.0, Percentile(sorted, 100))
	assert.InDelta(t, 1.04, Percentile(sorted, 1), 1e-12)
	assert.InDelta(t, 4.96, Percentile(sorted, 99), 1e-12)
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
}

func TestWinsorize(t *testing.T) {
	values := make([]float64, 101)
	for i := range values {
		values[i] = float64(i)
	}
	values[0], values[100] = -500, 900

	lo, hi, n := Winsorize(values, 1, 99)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 99.0, hi)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1.0, values[0])
	assert.Equal(t, 99.0, values[100])
	assert.Equal(t, 50.0, values[50])
}

func TestWinsorizeReturnsLeavesOtherSlicesAlone(t *testing.T) {
	var rows []models.JoinedRow
	for i := 0; i < 101; i++ {
		rows = append(rows, row("T", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format(models.DateLayout), models.Float(float64(i))))
	}
	*rows[100].Returns[7].ActualReturnPct = 900
	orig := append([]models.JoinedRow(nil), rows...)

	_, hi, n := WinsorizeReturns(rows, 7, 1, 99)
	assert.Equal(t, 99.0, hi)
	assert.Equal(t, 2, n)

	v, _ := rows[100].Return(7).Value()
	assert.Equal(t, 99.0, v)
	raw, _ := orig[100].Return(7).Value()
	assert.Equal(t, 900.0, raw)
}

func TestDropExtreme(t *testing.T) {
	rows := []models.JoinedRow{
		row("A", "2023-01-03", models.Float(150)),
		row("B", "2023-01-03", models.Float(-101)),
		row("C", "2023-01-03", models.Float(-100)),
		row("D", "2023-01-03", nil),
	}
	kept, n := DropExtreme(rows, 7, 100)
	assert.Equal(t, 2, n)
	require.Len(t, kept, 2)
	assert.Equal(t, "C", kept[0].Filing.Ticker)
	assert.Equal(t, "D", kept[1].Filing.Ticker)
}
