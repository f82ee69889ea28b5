// Package models defines the core data structures used throughout filingret.
package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used by SEC EDGAR and in every
// dataset filingret reads or writes.
const DateLayout = "2006-01-02"

// --- SEC Filings ---

// FilingType is the SEC form type of a periodic report.
type FilingType string

const (
	FilingQuarterly FilingType = "10-Q" // quarterly report
	FilingAnnual    FilingType = "10-K" // annual report
)

// ParseFilingType accepts the EDGAR form name ("10-Q", "10-K") or the
// descriptive aliases used in older datasets.
func ParseFilingType(s string) (FilingType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "10-Q", "QUARTERLY", "QUARTERLY-REPORT":
		return FilingQuarterly, nil
	case "10-K", "ANNUAL", "ANNUAL-REPORT":
		return FilingAnnual, nil
	}
	return "", fmt.Errorf("unknown filing type %q", s)
}

// IsQuarterly reports whether the filing is a 10-Q.
func (t FilingType) IsQuarterly() bool { return t == FilingQuarterly }

// FilingRecord represents one SEC filing event.
type FilingRecord struct {
	Ticker          string     `json:"ticker"`
	CIK             string     `json:"cik,omitempty"`
	CompanyName     string     `json:"companyName,omitempty"`
	FilingType      FilingType `json:"filingType"`
	FilingDate      time.Time  `json:"-"`
	AccessionNumber string     `json:"accessionNumber"`
	ReportDate      string     `json:"reportDate,omitempty"`
	PrimaryDocument string     `json:"primaryDocument,omitempty"`
}

// FilingKey identifies a filing by (ticker, calendar date). Two records with
// the same key are duplicates regardless of accession number.
type FilingKey struct {
	Ticker string
	Date   string // YYYY-MM-DD
}

func (k FilingKey) String() string { return k.Ticker + "_" + k.Date }

// Key returns the dedup/join key of the record.
func (f FilingRecord) Key() FilingKey {
	return FilingKey{Ticker: strings.ToUpper(f.Ticker), Date: f.FilingDate.Format(DateLayout)}
}

// DocumentURL returns the EDGAR archive URL of the primary document, or ""
// when the record lacks the pieces needed to build it.
func (f FilingRecord) DocumentURL() string {
	if f.CIK == "" || f.AccessionNumber == "" || f.PrimaryDocument == "" {
		return ""
	}
	cik := strings.TrimLeft(f.CIK, "0")
	acc := strings.ReplaceAll(f.AccessionNumber, "-", "")
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s", cik, acc, f.PrimaryDocument)
}

// CIKMapping represents a mapping from ticker/name to CIK number.
type CIKMapping struct {
	CIK    string `json:"cik"`
	Symbol string `json:"symbol,omitempty"`
	Name   string `json:"name"`
}

// --- XBRL company facts ---

// FactValue is a single reported XBRL value tied to the filing that reported it.
type FactValue struct {
	Concept   string  `json:"concept"`
	Unit      string  `json:"unit"`
	Value     float64 `json:"value"`
	Accession string  `json:"accn"`
	Form      string  `json:"form"`
	Filed     string  `json:"filed"`
	FY        int     `json:"fy"`
	FP        string  `json:"fp"`
	End       string  `json:"end"`
}

// CompanyFacts is the point-in-time reported metric set for one company,
// indexed concept → unit → values in reporting order.
type CompanyFacts struct {
	CIK        int                               `json:"cik"`
	EntityName string                            `json:"entityName"`
	Facts      map[string]map[string][]FactValue `json:"facts"`
}

// Lookup returns the first value of any of the given concepts (in order)
// reported by the given accession number, trying each unit in turn.
func (c *CompanyFacts) Lookup(accession string, concepts []string, units []string) (FactValue, bool) {
	if c == nil {
		return FactValue{}, false
	}
	want := strings.ReplaceAll(accession, "-", "")
	for _, concept := range concepts {
		byUnit, ok := c.Facts[concept]
		if !ok {
			continue
		}
		for _, unit := range units {
			for _, v := range byUnit[unit] {
				if strings.ReplaceAll(v.Accession, "-", "") == want {
					return v, true
				}
			}
		}
	}
	return FactValue{}, false
}

// ParseDate parses a YYYY-MM-DD (or RFC3339) date into a UTC midnight time.
// Unparseable input is a malformed-record error, never a zero date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02 15:04:05", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
