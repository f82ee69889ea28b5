package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/pkg/models"
)

// Fixed leading CSV columns.
var recordColumns = []string{
	"ticker", "cik", "companyName", "filingType", "filingDate",
	"accessionNumber", "reportDate", "primaryDocument",
}

const (
	provenanceColumn = "provenance"
	// catPrefix marks categorical feature columns; unprefixed feature
	// columns are numeric.
	catPrefix = "cat_"
)

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// parseNumber accepts finite decimal numbers only.
func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

// featureColumns returns the sorted union of numeric and categorical
// feature names across rows.
func featureColumns(rows []models.JoinedRow) (numeric, categorical []string) {
	num, cat := make(map[string]bool), make(map[string]bool)
	for _, r := range rows {
		for k := range r.Features.Values {
			num[k] = true
		}
		for k := range r.Features.Categories {
			cat[k] = true
		}
	}
	for k := range num {
		numeric = append(numeric, k)
	}
	for k := range cat {
		categorical = append(categorical, k)
	}
	sort.Strings(numeric)
	sort.Strings(categorical)
	return numeric, categorical
}

// WriteCSV writes one row per filing. Column order: record fields, then per
// horizon the return and its effective days, the provenance, numeric
// features and cat_-prefixed categorical features. Nulls are empty cells.
func WriteCSV(w io.Writer, rows []models.JoinedRow, horizons []int) error {
	if len(horizons) == 0 {
		horizons = Horizons(rows)
	}
	numeric, categorical := featureColumns(rows)

	header := append([]string(nil), recordColumns...)
	for _, h := range horizons {
		header = append(header, returnName(h), effectiveName(h))
	}
	header = append(header, provenanceColumn)
	header = append(header, numeric...)
	for _, c := range categorical {
		header = append(header, catPrefix+c)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		f := r.Filing
		rec := []string{
			f.Ticker, f.CIK, f.CompanyName, string(f.FilingType), f.FilingDate.Format(models.DateLayout),
			f.AccessionNumber, f.ReportDate, f.PrimaryDocument,
		}
		for _, h := range horizons {
			o := r.Return(h)
			if v, ok := o.Value(); ok {
				rec = append(rec, formatFloat(v), strconv.Itoa(o.EffectiveDays))
			} else {
				rec = append(rec, "", "")
			}
		}
		rec = append(rec, string(r.Features.Provenance))
		for _, n := range numeric {
			if v, ok := r.Features.Num(n); ok {
				rec = append(rec, formatFloat(v))
			} else {
				rec = append(rec, "")
			}
		}
		for _, c := range categorical {
			v, _ := r.Features.Cat(c)
			rec = append(rec, v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", f.Key(), err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

// ReadCSV reads a table written by WriteCSV. Columns are matched by header
// name, so extra or reordered columns are fine. Rows with an unparseable
// date, filing type or number are logged and skipped.
func ReadCSV(r io.Reader, log *zap.Logger) ([]models.JoinedRow, int, error) {
	log = logging.OrNop(log)
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, need := range []string{"ticker", "filingType", "filingDate"} {
		if _, ok := col[need]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", need)
		}
	}

	var rows []models.JoinedRow
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				log.Warn("skipping malformed record", zap.Int("line", perr.Line), zap.Error(err))
				continue
			}
			return rows, skipped, fmt.Errorf("read dataset: %w", err)
		}
		row, err := decodeCSV(header, col, rec)
		if err != nil {
			skipped++
			line, _ := cr.FieldPos(0)
			log.Warn("skipping malformed record", zap.Int("line", line), zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func decodeCSV(header []string, col map[string]int, rec []string) (models.JoinedRow, error) {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var row models.JoinedRow
	f := &row.Filing
	f.Ticker = get("ticker")
	f.CIK = get("cik")
	f.CompanyName = get("companyName")
	f.AccessionNumber = get("accessionNumber")
	f.ReportDate = get("reportDate")
	f.PrimaryDocument = get("primaryDocument")
	if f.Ticker == "" {
		return row, malformed("missing ticker")
	}
	var err error
	if f.FilingDate, err = models.ParseDate(get("filingDate")); err != nil {
		return row, malformed("%s: %v", f.Ticker, err)
	}
	if f.FilingType, err = models.ParseFilingType(get("filingType")); err != nil {
		return row, malformed("%s: %v", f.Ticker, err)
	}

	fixed := make(map[string]bool, len(recordColumns)+1)
	for _, c := range recordColumns {
		fixed[c] = true
	}
	fixed[provenanceColumn] = true

	for i, name := range header {
		if i >= len(rec) || fixed[name] {
			continue
		}
		cell := strings.TrimSpace(rec[i])
		switch {
		case returnKey.MatchString(name):
			h, _ := strconv.Atoi(returnKey.FindStringSubmatch(name)[1])
			o := models.ReturnObservation{HorizonDays: h}
			if cell != "" {
				v, err := parseNumber(cell)
				if err != nil {
					return row, malformed("%s %s %s: %v", f.Ticker, get("filingDate"), name, err)
				}
				o.ActualReturnPct = models.Float(v)
				o.EffectiveDays = h
				if eff := get(effectiveName(h)); eff != "" {
					if o.EffectiveDays, err = strconv.Atoi(eff); err != nil {
						return row, malformed("%s %s %s: %v", f.Ticker, get("filingDate"), effectiveName(h), err)
					}
				}
			}
			row.SetReturn(o)
		case effectiveKey.MatchString(name):
			// read with its return column
		case cell == "":
		case strings.HasPrefix(name, catPrefix):
			row.Features.SetCat(strings.TrimPrefix(name, catPrefix), cell)
		default:
			v, err := parseNumber(cell)
			if err != nil {
				return row, malformed("%s %s %s: %v", f.Ticker, get("filingDate"), name, err)
			}
			row.Features.SetNum(name, v)
		}
	}
	row.Features.Provenance = models.Provenance(get(provenanceColumn))
	return row, nil
}
