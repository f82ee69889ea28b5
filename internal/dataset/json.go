package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/features"
	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/pkg/models"
)

// StatusSuccess is the envelope status of a completed collection.
const StatusSuccess = "success"

// envelope is the collection output: counts plus one object per filing.
// withReturns counts filings with a return at the first horizon.
type envelope struct {
	Status      string            `json:"status"`
	Collected   int               `json:"collected"`
	WithReturns int               `json:"withReturns"`
	Horizons    []int             `json:"horizons,omitempty"`
	Filings     []json.RawMessage `json:"filings"`
}

type observationJSON struct {
	HorizonDays     int      `json:"horizonDays"`
	EffectiveDays   int      `json:"effectiveDays"`
	AnchorDate      string   `json:"anchorDate,omitempty"`
	EndDate         string   `json:"endDate,omitempty"`
	ActualReturnPct *float64 `json:"actualReturnPct"`
}

func dateOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

// encodeRow flattens a row into the filing object: record fields, one
// actual{h}dReturn per horizon, the full observations and the features.
func encodeRow(r models.JoinedRow, horizons []int) map[string]any {
	f := r.Filing
	obj := map[string]any{
		"ticker":          f.Ticker,
		"filingType":      f.FilingType,
		"filingDate":      f.FilingDate.Format(models.DateLayout),
		"accessionNumber": f.AccessionNumber,
	}
	for k, v := range map[string]string{
		"cik": f.CIK, "companyName": f.CompanyName, "reportDate": f.ReportDate, "primaryDocument": f.PrimaryDocument,
	} {
		if v != "" {
			obj[k] = v
		}
	}

	obs := make([]observationJSON, 0, len(horizons))
	for _, h := range horizons {
		o := r.Return(h)
		obj[returnName(h)] = o.ActualReturnPct
		obs = append(obs, observationJSON{
			HorizonDays:     h,
			EffectiveDays:   o.EffectiveDays,
			AnchorDate:      dateOrEmpty(o.AnchorDate),
			EndDate:         dateOrEmpty(o.EndDate),
			ActualReturnPct: o.ActualReturnPct,
		})
	}
	obj["returns"] = obs
	if r.Features.Provenance != "" || len(r.Features.Values) > 0 || len(r.Features.Categories) > 0 {
		obj["features"] = r.Features
	}
	return obj
}

// WriteJSON writes rows as the indented collection envelope.
func WriteJSON(w io.Writer, rows []models.JoinedRow, horizons []int) error {
	if len(horizons) == 0 {
		horizons = Horizons(rows)
	}
	env := envelope{
		Status:    StatusSuccess,
		Collected: len(rows),
		Horizons:  horizons,
		Filings:   make([]json.RawMessage, 0, len(rows)),
	}
	for _, r := range rows {
		if len(horizons) > 0 && r.Return(horizons[0]).Valid() {
			env.WithReturns++
		}
		raw, err := json.Marshal(encodeRow(r, horizons))
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.Filing.Key(), err)
		}
		env.Filings = append(env.Filings, raw)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

// ReadJSON reads a collection envelope. Filings written by older collectors
// that carry only actual{h}dReturn fields load with the effective horizon
// assumed equal to h, and their top-level feature numbers become real
// features.
func ReadJSON(r io.Reader, log *zap.Logger) ([]models.JoinedRow, int, error) {
	log = logging.OrNop(log)
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, 0, fmt.Errorf("decode dataset: %w", err)
	}

	rows := make([]models.JoinedRow, 0, len(env.Filings))
	skipped := 0
	for i, raw := range env.Filings {
		row, err := decodeRow(raw)
		if err != nil {
			skipped++
			log.Warn("skipping malformed record", zap.Int("index", i), zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func decodeRow(raw json.RawMessage) (models.JoinedRow, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.JoinedRow{}, malformed("%v", err)
	}
	str := func(key string) (string, error) {
		v, ok := fields[key]
		if !ok || string(v) == "null" {
			return "", nil
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", malformed("%s: %v", key, err)
		}
		return s, nil
	}

	var row models.JoinedRow
	f := &row.Filing
	var err error
	for key, dst := range map[string]*string{
		"ticker": &f.Ticker, "cik": &f.CIK, "companyName": &f.CompanyName, "accessionNumber": &f.AccessionNumber,
		"reportDate": &f.ReportDate, "primaryDocument": &f.PrimaryDocument,
	} {
		if *dst, err = str(key); err != nil {
			return row, err
		}
	}
	if f.Ticker == "" {
		return row, malformed("missing ticker")
	}

	date, err := str("filingDate")
	if err != nil {
		return row, err
	}
	if f.FilingDate, err = models.ParseDate(date); err != nil {
		return row, malformed("%s: %v", f.Ticker, err)
	}
	form, err := str("filingType")
	if err != nil {
		return row, err
	}
	if f.FilingType, err = models.ParseFilingType(form); err != nil {
		return row, malformed("%s %s: %v", f.Ticker, date, err)
	}

	if raw, ok := fields["returns"]; ok {
		var obs []observationJSON
		if err := json.Unmarshal(raw, &obs); err != nil {
			return row, malformed("%s %s returns: %v", f.Ticker, date, err)
		}
		for _, o := range obs {
			ret, err := decodeObservation(o)
			if err != nil {
				return row, malformed("%s %s: %v", f.Ticker, date, err)
			}
			row.SetReturn(ret)
		}
	} else {
		for key, v := range fields {
			m := returnKey.FindStringSubmatch(key)
			if m == nil {
				continue
			}
			h, _ := strconv.Atoi(m[1])
			var pct *float64
			if err := json.Unmarshal(v, &pct); err != nil {
				return row, malformed("%s %s %s: %v", f.Ticker, date, key, err)
			}
			o := models.ReturnObservation{HorizonDays: h, ActualReturnPct: pct}
			if pct != nil {
				o.EffectiveDays = h
			}
			row.SetReturn(o)
		}
	}

	if raw, ok := fields["features"]; ok {
		if err := json.Unmarshal(raw, &row.Features); err != nil {
			return row, malformed("%s %s features: %v", f.Ticker, date, err)
		}
	}
	if err := decodeLegacyFeatures(fields, &row.Features); err != nil {
		return row, malformed("%s %s: %v", f.Ticker, date, err)
	}
	return row, nil
}

// Older collections carry a few features as top-level numbers instead of a
// features object. epsSurprise is the percent surprise; marketCap is in
// dollars.
var legacyFeatureKeys = map[string]string{
	"epsSurprise":    features.SurprisePctName(features.FeatEPS),
	"sentimentScore": features.FeatSentiment,
	"riskScore":      features.FeatRiskScore,
	"riskScoreDelta": features.FeatRiskDelta,
	"marketCap":      features.FeatMarketCap,
}

// decodeLegacyFeatures copies top-level feature keys into fv as real
// features. A value already present in the features object wins.
func decodeLegacyFeatures(fields map[string]json.RawMessage, fv *models.FeatureVector) error {
	found := false
	for key, name := range legacyFeatureKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var v *float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if v == nil {
			continue
		}
		if _, ok := fv.Num(name); ok {
			continue
		}
		val := *v
		switch key {
		case "epsSurprise":
			if _, ok := fv.Cat(features.SurpriseName(features.FeatEPS)); !ok {
				fv.SetCat(features.SurpriseName(features.FeatEPS), string(features.Classify(val)))
			}
		case "marketCap":
			val /= 1e9
			if _, ok := fv.Cat(features.CatMarketCapBucket); !ok {
				fv.SetCat(features.CatMarketCapBucket, features.CapBucket(val))
			}
		}
		fv.SetNum(name, val)
		found = true
	}
	if found && fv.Provenance == "" {
		fv.Provenance = models.ProvenanceReal
	}
	return nil
}

func decodeObservation(o observationJSON) (models.ReturnObservation, error) {
	if o.HorizonDays <= 0 {
		return models.ReturnObservation{}, fmt.Errorf("horizon %d", o.HorizonDays)
	}
	ret := models.ReturnObservation{
		HorizonDays:     o.HorizonDays,
		EffectiveDays:   o.EffectiveDays,
		ActualReturnPct: o.ActualReturnPct,
	}
	var err error
	if o.AnchorDate != "" {
		if ret.AnchorDate, err = models.ParseDate(o.AnchorDate); err != nil {
			return ret, err
		}
	}
	if o.EndDate != "" {
		if ret.EndDate, err = models.ParseDate(o.EndDate); err != nil {
			return ret, err
		}
	}
	return ret, nil
}
