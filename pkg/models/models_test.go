package models

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ── Filing Tests ──

func TestParseFilingType(t *testing.T) {
	tests := []struct {
		in      string
		want    FilingType
		wantErr bool
	}{
		{"10-Q", FilingQuarterly, false},
		{"10-k", FilingAnnual, false},
		{"quarterly-report", FilingQuarterly, false},
		{"annual", FilingAnnual, false},
		{"8-K", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFilingType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFilingType(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFilingType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilingKeyIgnoresAccession(t *testing.T) {
	a := FilingRecord{Ticker: "aapl", FilingDate: day("2024-05-03"), AccessionNumber: "0000320193-24-000069"}
	b := FilingRecord{Ticker: "AAPL", FilingDate: day("2024-05-03"), AccessionNumber: "0000320193-24-000070"}
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %v vs %v", a.Key(), b.Key())
	}
	if a.Key().String() != "AAPL_2024-05-03" {
		t.Errorf("Key().String() = %q", a.Key().String())
	}
}

func TestDocumentURL(t *testing.T) {
	f := FilingRecord{CIK: "0000320193", AccessionNumber: "0000320193-24-000069", PrimaryDocument: "aapl-20240330.htm"}
	want := "https://www.sec.gov/Archives/edgar/data/320193/000032019324000069/aapl-20240330.htm"
	if got := f.DocumentURL(); got != want {
		t.Errorf("DocumentURL() = %q, want %q", got, want)
	}
	if (FilingRecord{}).DocumentURL() != "" {
		t.Error("expected empty URL for incomplete record")
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, err := ParseDate("not-a-date"); err == nil {
		t.Error("expected error for unparseable date")
	}
	got, err := ParseDate("2023-11-03T16:30:00Z")
	if err != nil {
		t.Fatalf("ParseDate RFC3339: %v", err)
	}
	if !got.Equal(day("2023-11-03")) {
		t.Errorf("got %v, want midnight 2023-11-03", got)
	}
}

func TestCompanyFactsLookup(t *testing.T) {
	facts := &CompanyFacts{Facts: map[string]map[string][]FactValue{
		"EarningsPerShareBasic": {"USD/shares": {{Value: 1.55, Accession: "0000320193-24-000069"}}},
		"EarningsPerShareDiluted": {"USD/shares": {
			{Value: 1.40, Accession: "0000320193-23-000064"},
			{Value: 1.53, Accession: "0000320193-24-000069"},
		}},
	}}
	v, ok := facts.Lookup("000032019324000069", []string{"EarningsPerShareDiluted", "EarningsPerShareBasic"}, []string{"USD/shares"})
	if !ok || v.Value != 1.53 {
		t.Errorf("Lookup = %v, %v; want 1.53 from diluted", v.Value, ok)
	}
	if _, ok := facts.Lookup("missing", []string{"EarningsPerShareDiluted"}, []string{"USD/shares"}); ok {
		t.Error("expected miss for unknown accession")
	}
	var nilFacts *CompanyFacts
	if _, ok := nilFacts.Lookup("x", nil, nil); ok {
		t.Error("nil facts should never match")
	}
}

// ── Price Tests ──

func TestPriceSeriesValidate(t *testing.T) {
	good := PriceSeries{Ticker: "X", Bars: []PriceBar{
		{Date: day("2024-01-02"), Close: 100},
		{Date: day("2024-01-03"), Close: 101},
	}}
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	dup := PriceSeries{Ticker: "X", Bars: []PriceBar{
		{Date: day("2024-01-02"), Close: 100},
		{Date: day("2024-01-02"), Close: 101},
	}}
	if err := dup.Validate(); err == nil {
		t.Error("expected error for repeated date")
	}

	zero := PriceSeries{Ticker: "X", Bars: []PriceBar{{Date: day("2024-01-02"), Close: 0}}}
	if err := zero.Validate(); err == nil {
		t.Error("expected error for zero close")
	}
}

func TestSortedCopy(t *testing.T) {
	s := PriceSeries{Ticker: "X", Bars: []PriceBar{
		{Date: day("2024-01-04"), Close: 103},
		{Date: day("2024-01-02"), Close: 100},
		{Date: day("2024-01-03"), Close: 0},
		{Date: day("2024-01-02").Add(14 * time.Hour), Close: 101},
	}}
	out := s.SortedCopy()
	if out.Len() != 2 {
		t.Fatalf("Len = %d, want 2", out.Len())
	}
	if out.Bars[0].Close != 101 || out.Bars[1].Close != 103 {
		t.Errorf("unexpected bars: %+v", out.Bars)
	}
	if err := out.Validate(); err != nil {
		t.Errorf("sorted copy should validate: %v", err)
	}
}

func TestDateRange(t *testing.T) {
	a := DateRange{From: day("2024-01-10"), To: day("2024-01-20")}
	b := DateRange{From: day("2024-01-05"), To: day("2024-01-12")}

	u := a.Union(b)
	if !u.From.Equal(day("2024-01-05")) || !u.To.Equal(day("2024-01-20")) {
		t.Errorf("Union = %v", u)
	}
	if !u.Covers(a) || !u.Covers(b) {
		t.Error("union should cover both inputs")
	}
	if a.Covers(b) {
		t.Error("a should not cover b")
	}
	if (DateRange{}).Covers(a) {
		t.Error("zero range covers nothing")
	}
	if got := a.Pad(14).To; !got.Equal(day("2024-02-03")) {
		t.Errorf("Pad(14).To = %v", got)
	}
}

// ── Observation / Feature Tests ──

func TestReturnObservationExact(t *testing.T) {
	o := ReturnObservation{HorizonDays: 7, EffectiveDays: 7, ActualReturnPct: Float(3)}
	if !o.Exact() {
		t.Error("expected exact")
	}
	o.EffectiveDays = 3
	if o.Exact() {
		t.Error("shortened horizon is not exact")
	}
	if (ReturnObservation{HorizonDays: 7}).Valid() {
		t.Error("nil return is not valid")
	}
}

func TestFeatureVectorMergeProvenance(t *testing.T) {
	real := NewFeatureVector(ProvenanceReal)
	real.SetNum("epsSurprisePct", 7.5)

	sim := NewFeatureVector(ProvenanceSimulated)
	sim.SetNum("sentimentScore", 0.4)

	real.Merge(sim)
	if real.Provenance != ProvenanceSimulated {
		t.Errorf("Provenance = %q, want simulated", real.Provenance)
	}
	if v, ok := real.Num("sentimentScore"); !ok || v != 0.4 {
		t.Errorf("merged value missing: %v %v", v, ok)
	}

	var empty FeatureVector
	empty.SetCat("regime", "bull")
	if c, _ := empty.Cat("regime"); c != "bull" {
		t.Errorf("Cat = %q", c)
	}
}

func TestSignOfZeroIsPositive(t *testing.T) {
	if SignOf(0) != Positive {
		t.Error("zero must bucket as positive")
	}
	if SignOf(-0.0001) != Negative {
		t.Error("negative value must bucket as negative")
	}
}
