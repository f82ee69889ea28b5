package sec

import (
	"time"

	"github.com/seenimoa/filingret/pkg/models"
)

// --- EDGAR Submissions (data.sec.gov/submissions) ---

// edgarSubmissionsResponse is the response from company submissions endpoint.
type edgarSubmissionsResponse struct {
	CIK            string       `json:"cik"`
	EntityType     string       `json:"entityType"`
	SIC            string       `json:"sic"`
	SICDescription string       `json:"sicDescription"`
	Name           string       `json:"name"`
	Tickers        []string     `json:"tickers"`
	Exchanges      []string     `json:"exchanges"`
	FiscalYearEnd  string       `json:"fiscalYearEnd"`
	Filings        edgarFilings `json:"filings"`
}

type edgarFilings struct {
	Recent edgarFilingSet `json:"recent"`
	Files  []edgarFile    `json:"files"`
}

// edgarFilingSet is EDGAR's column-oriented filing table; index i across all
// slices describes one filing. Overflow pages use the same layout.
type edgarFilingSet struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
	IsXBRL          []int    `json:"isXBRL"`
	Description     []string `json:"primaryDocDescription"`
}

// edgarFile points at an overflow page of older filings.
type edgarFile struct {
	Name        string `json:"name"`
	FilingCount int    `json:"filingCount"`
	FilingFrom  string `json:"filingFrom"`
	FilingTo    string `json:"filingTo"`
}

func (s edgarFilingSet) at(i int, col []string) string {
	if i < len(col) {
		return col[i]
	}
	return ""
}

// records converts the table into filing records, keeping only the wanted
// forms filed inside [since, until]. Zero bounds are open.
func (s edgarFilingSet) records(ticker, cik, name string, forms map[string]bool, since, until time.Time) []models.FilingRecord {
	var out []models.FilingRecord
	for i, acc := range s.AccessionNumber {
		form := s.at(i, s.Form)
		if len(forms) > 0 && !forms[form] {
			continue
		}
		ft, err := models.ParseFilingType(form)
		if err != nil {
			continue
		}
		filed := parseSECDate(s.at(i, s.FilingDate))
		if filed.IsZero() {
			continue
		}
		if !since.IsZero() && filed.Before(since) {
			continue
		}
		if !until.IsZero() && filed.After(until) {
			continue
		}
		out = append(out, models.FilingRecord{
			Ticker:          ticker,
			CIK:             cik,
			CompanyName:     name,
			FilingType:      ft,
			FilingDate:      filed,
			AccessionNumber: acc,
			ReportDate:      s.at(i, s.ReportDate),
			PrimaryDocument: s.at(i, s.PrimaryDocument),
		})
	}
	return out
}

// --- EDGAR Company Facts (XBRL) ---

// edgarCompanyFactsResponse is the response from the company facts endpoint.
type edgarCompanyFactsResponse struct {
	CIK        int                             `json:"cik"`
	EntityName string                          `json:"entityName"`
	Facts      map[string]map[string]edgarFact `json:"facts"` // taxonomy -> concept -> fact
}

type edgarFact struct {
	Label       string                     `json:"label"`
	Description string                     `json:"description"`
	Units       map[string][]edgarFactUnit `json:"units"` // unit type ("USD", "USD/shares") -> values
}

type edgarFactUnit struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Val   float64 `json:"val"`
	Accn  string  `json:"accn"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"` // "Q1", "Q2", "Q3", "FY"
	Form  string  `json:"form"`
	Filed string  `json:"filed"`
	Frame string  `json:"frame,omitempty"`
}

// --- CIK / Ticker Mapping ---

// edgarTickerEntry is a row from company_tickers.json, which is a map of
// {"0": {cik_str, ticker, title}, ...}.
type edgarTickerEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// --- Helper for date parsing ---

func parseSECDate(s string) time.Time {
	// Try common SEC date formats.
	for _, layout := range []string{
		"2006-01-02",
		"2006-01-02T15:04:05.000Z",
		"01/02/2006",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			// Keep the calendar date as written, not its UTC instant.
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}
