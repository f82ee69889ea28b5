package dataset

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/filingret/internal/features"
	"github.com/seenimoa/filingret/pkg/models"
)

func sampleRows() []models.JoinedRow {
	d, _ := models.ParseDate("2023-08-04")
	a := models.JoinedRow{Filing: models.FilingRecord{
		Ticker: "AAPL", CIK: "0000320193", FilingType: models.FilingQuarterly, FilingDate: d,
		AccessionNumber: "0000320193-23-000077", PrimaryDocument: "aapl-20230701.htm",
	}}
	a.SetReturn(models.ReturnObservation{
		HorizonDays: 7, EffectiveDays: 7, AnchorDate: d, EndDate: d.AddDate(0, 0, 11),
		ActualReturnPct: models.Float(-4.817),
	})
	a.SetReturn(models.ReturnObservation{HorizonDays: 30, EffectiveDays: 12, ActualReturnPct: models.Float(1.25)})
	a.Features = models.NewFeatureVector(models.ProvenanceReal)
	a.Features.SetNum("epsSurprisePct", -14.47)
	a.Features.SetCat("epsSurprise", "miss")

	d2, _ := models.ParseDate("2024-11-01")
	b := models.JoinedRow{Filing: models.FilingRecord{Ticker: "MSFT", FilingType: models.FilingAnnual, FilingDate: d2}}
	b.SetReturn(models.ReturnObservation{HorizonDays: 7})
	return []models.JoinedRow{a, b}
}

func assertRoundTrip(t *testing.T, want, got []models.JoinedRow) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Filing.Key(), got[i].Filing.Key())
		assert.Equal(t, want[i].Filing.FilingType, got[i].Filing.FilingType)
		assert.Equal(t, want[i].Filing.AccessionNumber, got[i].Filing.AccessionNumber)
		for _, h := range []int{7, 30} {
			w, g := want[i].Return(h), got[i].Return(h)
			assert.Equal(t, w.ActualReturnPct == nil, g.ActualReturnPct == nil, "row %d h=%d", i, h)
			if w.ActualReturnPct != nil {
				assert.Equal(t, *w.ActualReturnPct, *g.ActualReturnPct)
				assert.Equal(t, w.EffectiveDays, g.EffectiveDays)
			}
		}
		assert.Equal(t, want[i].Features.Provenance, got[i].Features.Provenance)
		for k, v := range want[i].Features.Values {
			gv, ok := got[i].Features.Num(k)
			assert.True(t, ok)
			assert.Equal(t, v, gv)
		}
		for k, v := range want[i].Features.Categories {
			gv, _ := got[i].Features.Cat(k)
			assert.Equal(t, v, gv)
		}
	}
}

func TestJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRows(), []int{7, 30}))

	var env map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, "success", env["status"])
	assert.Equal(t, 2.0, env["collected"])
	assert.Equal(t, 1.0, env["withReturns"])
	filings := env["filings"].([]any)
	first := filings[0].(map[string]any)
	assert.Equal(t, "2023-08-04", first["filingDate"])
	assert.Equal(t, -4.817, first["actual7dReturn"])
	second := filings[1].(map[string]any)
	v, present := second["actual7dReturn"]
	assert.True(t, present)
	assert.Nil(t, v, "null return stays null, never 0")

	rows, skipped, err := ReadJSON(&buf, nil)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assertRoundTrip(t, sampleRows(), rows)
	assert.Equal(t, "2023-08-15", rows[0].Return(7).EndDate.Format(models.DateLayout))
}

func TestReadJSONLegacyCollectorOutput(t *testing.T) {
	in := `{"status":"success","collected":3,"withReturns":1,"filings":[
		{"ticker":"AAPL","filingType":"10-Q","accessionNumber":"a","filingDate":"2023-08-04","actual7dReturn":-4.82},
		{"ticker":"AAPL","filingType":"10-K","accessionNumber":"b","filingDate":"2023-11-03","actual7dReturn":null},
		{"ticker":"AAPL","filingType":"10-Q","accessionNumber":"c","filingDate":"08/2023","actual7dReturn":1.0}
	]}`
	rows, skipped, err := ReadJSON(strings.NewReader(in), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped, "unparseable date skips only that record")
	require.Len(t, rows, 2)

	o := rows[0].Return(7)
	assert.True(t, o.Exact())
	assert.Equal(t, -4.82, *o.ActualReturnPct)
	assert.False(t, rows[1].Return(7).Valid())
	assert.Equal(t, models.FilingAnnual, rows[1].Filing.FilingType)
}

func TestReadJSONLegacyTopLevelFeatures(t *testing.T) {
	in := `{"filings":[
		{"ticker":"AAPL","filingType":"10-Q","filingDate":"2023-08-04","actual7dReturn":-4.82,
		 "epsSurprise":8.2,"sentimentScore":0.35,"riskScore":12,"riskScoreDelta":-3,"marketCap":2.9e12},
		{"ticker":"MSFT","filingType":"10-Q","filingDate":"2023-07-27","actual7dReturn":1.1,
		 "sentimentScore":0.1,"riskScore":null,
		 "features":{"provenance":"simulated","values":{"sentimentScore":0.9}}},
		{"ticker":"AMD","filingType":"10-Q","filingDate":"2023-08-02","sentimentScore":"high"}
	]}`
	rows, skipped, err := ReadJSON(strings.NewReader(in), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 2)

	fv := rows[0].Features
	assert.Equal(t, models.ProvenanceReal, fv.Provenance)
	pct, ok := fv.Num(features.SurprisePctName(features.FeatEPS))
	require.True(t, ok)
	assert.Equal(t, 8.2, pct)
	s, ok := features.SurpriseFor(fv, features.FeatEPS)
	require.True(t, ok)
	assert.Equal(t, models.SurpriseBeat, s.Category)
	sent, _ := fv.Num(features.FeatSentiment)
	assert.Equal(t, 0.35, sent)
	risk, _ := fv.Num(features.FeatRiskScore)
	assert.Equal(t, 12.0, risk)
	delta, _ := fv.Num(features.FeatRiskDelta)
	assert.Equal(t, -3.0, delta)
	capB, _ := fv.Num(features.FeatMarketCap)
	assert.InDelta(t, 2900, capB, 1e-9, "dollars become billions")
	bucket, _ := fv.Cat(features.CatMarketCapBucket)
	assert.Equal(t, features.CapUltra, bucket)

	// The features object wins and keeps its provenance.
	fv = rows[1].Features
	assert.Equal(t, models.ProvenanceSimulated, fv.Provenance)
	sent, _ = fv.Num(features.FeatSentiment)
	assert.Equal(t, 0.9, sent)
	_, ok = fv.Num(features.FeatRiskScore)
	assert.False(t, ok, "null stays absent")
}

func TestReadJSONMalformedFields(t *testing.T) {
	in := `{"filings":[
		{"ticker":"A","filingType":"10-Q","filingDate":"2023-01-03","actual7dReturn":"n/a"},
		{"ticker":"B","filingType":"8-K","filingDate":"2023-01-03"},
		{"filingType":"10-Q","filingDate":"2023-01-03"},
		{"ticker":"C","filingType":"10-Q","filingDate":"2023-01-03","returns":[{"horizonDays":7,"effectiveDays":7,"actualReturnPct":"x"}]},
		{"ticker":"D","filingType":"quarterly","filingDate":"2023-01-03T16:05:00Z"}
	]}`
	rows, skipped, err := ReadJSON(strings.NewReader(in), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)
	require.Len(t, rows, 1)
	assert.Equal(t, "D", rows[0].Filing.Ticker)
	assert.Equal(t, time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), rows[0].Filing.FilingDate)
}

func TestReadJSONUnreadable(t *testing.T) {
	_, _, err := ReadJSON(strings.NewReader("not json"), nil)
	assert.Error(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRows(), []int{7, 30}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"ticker,cik,companyName,filingType,filingDate,accessionNumber,reportDate,primaryDocument,"+
			"actual7dReturn,effective7d,actual30dReturn,effective30d,provenance,epsSurprisePct,cat_epsSurprise",
		lines[0])
	assert.Contains(t, lines[1], ",-4.817,7,1.25,12,real,-14.47,miss")
	assert.Contains(t, lines[2], "MSFT,,,10-K,2024-11-01,,,,,,,,,,")

	rows, skipped, err := ReadCSV(&buf, nil)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assertRoundTrip(t, sampleRows(), rows)
	assert.False(t, rows[1].Return(30).Valid())
}

func TestReadCSVMalformed(t *testing.T) {
	in := "ticker,filingType,filingDate,actual7dReturn,volumeRatio\n" +
		"AAPL,10-Q,2023-08-04,1.5,2\n" +
		"MSFT,10-Q,not-a-date,1.5,2\n" +
		"NVDA,10-Q,2023-08-23,abc,2\n" +
		"AMD,10-Q,2023-08-01,1,NaN\n" +
		"TSLA,10-Q,2023-07-24\n" +
		"META,10-Q,2023-07-27,,\n"
	rows, skipped, err := ReadCSV(strings.NewReader(in), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0].Filing.Ticker)
	v, _ := rows[0].Features.Num("volumeRatio")
	assert.Equal(t, 2.0, v)
	assert.Equal(t, "META", rows[1].Filing.Ticker)
	assert.False(t, rows[1].Return(7).Valid())
}

func TestReadCSVMissingColumns(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("ticker,date\nAAPL,2023-01-01\n"), nil)
	assert.Error(t, err)
}

func TestSaveLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"rows.json", "rows.csv"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, sampleRows(), nil))
		rows, skipped, err := Load(path, nil)
		require.NoError(t, err, name)
		assert.Zero(t, skipped)
		assertRoundTrip(t, sampleRows(), rows)
	}
	_, _, err := Load(filepath.Join(dir, "missing.json"), nil)
	assert.Error(t, err)
}

func TestFormats(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatOf("x/ROWS.CSV"))
	assert.Equal(t, FormatJSON, FormatOf("rows.json"))
	assert.Equal(t, FormatJSON, FormatOf("rows"))
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
	assert.Equal(t, []int{7, 30}, Horizons(sampleRows()))
}
