// Package report renders evaluation summaries, data-quality findings and
// price-cache statistics as a console report, an HTML page or JSON.
// Rounding happens here and nowhere upstream.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/filingret/internal/backtest"
	"github.com/seenimoa/filingret/internal/pricecache"
	"github.com/seenimoa/filingret/internal/quality"
	"github.com/seenimoa/filingret/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Report Config
// ════════════════════════════════════════════════════════════════════

// Format specifies the output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat accepts text, json or html.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatHTML:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text, json or html)", s)
}

// Section identifies a report section to include.
type Section string

const (
	SectionOverall    Section = "overall"
	SectionErrors     Section = "errors"
	SectionConfusion  Section = "confusion"
	SectionConfidence Section = "confidence"
	SectionSegments   Section = "segments"
	SectionCache      Section = "cache"
	SectionQuality    Section = "quality"
)

// AllSections returns all report sections in display order.
func AllSections() []Section {
	return []Section{
		SectionOverall,
		SectionErrors,
		SectionConfusion,
		SectionConfidence,
		SectionSegments,
		SectionCache,
		SectionQuality,
	}
}

// Config controls report rendering. Sections apply to the text and HTML
// forms; JSON always carries the full mapping.
type Config struct {
	Format         Format
	Sections       []Section
	Title          string
	MinSegmentSize int // segment rows with fewer scored records are hidden
	ChartCfg       ChartConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Format:   FormatText,
		Sections: AllSections(),
		ChartCfg: DefaultChartConfig(),
	}
}

func (c Config) hasSection(s Section) bool {
	for _, sec := range c.Sections {
		if sec == s {
			return true
		}
	}
	return false
}

// ════════════════════════════════════════════════════════════════════
// Report
// ════════════════════════════════════════════════════════════════════

// Report is everything one run can print. Any part may be nil.
type Report struct {
	Title       string            `json:"title,omitempty"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Evaluation  *backtest.Summary `json:"evaluation,omitempty"`
	Quality     *quality.Findings `json:"quality,omitempty"`
	Cache       *pricecache.Stats `json:"priceCache,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Skipped     int               `json:"skippedRecords"`
}

// Write renders r to w in cfg.Format.
func Write(w io.Writer, r *Report, cfg Config) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	switch cfg.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatHTML:
		out, err := GenerateHTML(r, cfg)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		out, err := GenerateText(r, cfg)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	}
}

// GenerateText renders the console report.
func GenerateText(r *Report, cfg Config) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report is nil")
	}
	return renderText(buildData(r, cfg, false)), nil
}

// GenerateHTML renders a standalone HTML page with embedded SVG charts.
func GenerateHTML(r *Report, cfg Config) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report is nil")
	}
	tmpl, err := template.New("report").Parse(PageTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, buildData(r, cfg, true)); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// ════════════════════════════════════════════════════════════════════
// Report Data (flattened for rendering)
// ════════════════════════════════════════════════════════════════════

// Row is a label/value line.
type Row struct {
	Label string
	Value string
}

// SegmentRow is one group of a segment breakdown.
type SegmentRow struct {
	Key      string
	Accuracy string
	Correct  int
	Total    int
	Beats    bool // at or above the baseline
}

// SegmentTable is one segment breakdown.
type SegmentTable struct {
	Name   string
	Rows   []SegmentRow
	Hidden int // rows below MinSegmentSize
	Chart  template.HTML
}

// ReportData is the model both renderers read.
type ReportData struct {
	Title       string
	GeneratedAt string
	RunID       string

	Feasibility bool
	Warnings    []string

	Overall    []Row
	Errors     []Row
	Confusion  []Row
	Buckets    []Row
	Segments   []SegmentTable
	Cache      []Row
	Quality    []Row
	Outliers   []Row
	GaugeChart template.HTML

	ShowOverall    bool
	ShowErrors     bool
	ShowConfusion  bool
	ShowConfidence bool
	ShowSegments   bool
	ShowCache      bool
	ShowQuality    bool
}

func buildData(r *Report, cfg Config, charts bool) ReportData {
	d := ReportData{
		Title:       cfg.Title,
		GeneratedAt: generatedAt(r.GeneratedAt),
		Warnings:    r.Warnings,
	}
	if d.Title == "" {
		d.Title = r.Title
	}

	if s := r.Evaluation; s != nil {
		if d.Title == "" {
			d.Title = fmt.Sprintf("Filing return evaluation: %s at %dd", s.Predictor, s.Horizon)
		}
		d.RunID = s.RunID
		d.Feasibility = s.Feasibility
		d.ShowOverall = cfg.hasSection(SectionOverall)
		d.ShowErrors = cfg.hasSection(SectionErrors) && s.Errors != nil && s.Errors.N > 0
		d.ShowConfusion = cfg.hasSection(SectionConfusion) && s.Accuracy.Total > 0
		d.ShowConfidence = cfg.hasSection(SectionConfidence) && len(s.Confidence) > 0
		d.ShowSegments = cfg.hasSection(SectionSegments) && len(s.Segments) > 0

		d.Overall = overallRows(s, r.Skipped)
		if s.Errors != nil {
			d.Errors = []Row{
				{"Mean absolute error", utils.FormatPct(s.Errors.MeanAbsoluteError, 2)},
				{"Median absolute error", utils.FormatPct(s.Errors.MedianAbsoluteError, 2)},
				{"Records with a predicted value", utils.FormatCount(s.Errors.N)},
			}
		}
		m := s.Confusion
		d.Confusion = []Row{
			{"Predicted +, actual +", utils.FormatCount(m.TruePositive)},
			{"Predicted +, actual -", utils.FormatCount(m.FalsePositive)},
			{"Predicted -, actual -", utils.FormatCount(m.TrueNegative)},
			{"Predicted -, actual +", utils.FormatCount(m.FalseNegative)},
			{"Precision (+)", utils.FormatPct(m.Precision()*100, 1)},
			{"Recall (+)", utils.FormatPct(m.Recall()*100, 1)},
		}
		for _, b := range s.Confidence {
			d.Buckets = append(d.Buckets, Row{
				Label: fmt.Sprintf("%.2f-%.2f", b.Low, b.High),
				Value: accuracyText(b.AccuracyStats),
			})
		}
		d.Segments = segmentTables(s, cfg, charts)
		if charts {
			d.GaugeChart = template.HTML(GaugeChart(s.Accuracy.AccuracyPct, "Direction accuracy %", 180))
		}
	}
	if d.Title == "" {
		d.Title = "Filing return data report"
	}

	if c := r.Cache; c != nil {
		d.ShowCache = cfg.hasSection(SectionCache)
		d.Cache = []Row{
			{"Tickers", utils.FormatCount(c.Tickers)},
			{"Source fetches", utils.FormatCount(c.Fetches)},
			{"Failed fetches", utils.FormatCount(c.Failures)},
			{"Cache hits", utils.FormatCount(c.Hits)},
			{"Cache misses", utils.FormatCount(c.Misses)},
			{"Price bars", utils.FormatCount(c.Bars)},
		}
	}

	if f := r.Quality; f != nil {
		d.ShowQuality = cfg.hasSection(SectionQuality)
		d.Quality = qualityRows(f)
		for _, t := range f.TopOutlierTickers(5) {
			d.Outliers = append(d.Outliers, Row{t, utils.FormatCount(f.OutliersBy[t])})
		}
	}
	return d
}

func overallRows(s *backtest.Summary, skipped int) []Row {
	rows := []Row{
		{"Predictor", s.Predictor},
		{"Horizon", fmt.Sprintf("%d trading days", s.Horizon)},
		{"Records", utils.FormatCount(s.Rows)},
		{"Null actual (excluded)", utils.FormatCount(s.NullActual)},
	}
	if s.NonExact > 0 {
		rows = append(rows, Row{"Shortened horizon (excluded)", utils.FormatCount(s.NonExact)})
	}
	if skipped > 0 {
		rows = append(rows, Row{"Malformed input records (skipped)", utils.FormatCount(skipped)})
	}
	rows = append(rows,
		Row{"Direction accuracy", accuracyText(s.Accuracy)},
		Row{"Baseline (always positive)", accuracyText(s.Baseline)},
	)
	if s.Accuracy.Total > 0 {
		rows = append(rows, Row{"Lift over baseline", fmt.Sprintf("%+.1f pts", s.LiftPct())})
	}
	if s.Spread != nil {
		rows = append(rows, Row{"Return spread (pred + minus pred -)", utils.FormatOptionalPct(s.Spread, 2)})
	}
	return rows
}

func qualityRows(f *quality.Findings) []Row {
	rows := []Row{
		{"Horizon", fmt.Sprintf("%d trading days", f.Horizon)},
		{"Records", utils.FormatCount(f.Rows)},
		{"With return", utils.FormatCount(f.WithReturn)},
		{"Null return", utils.FormatCount(f.Null)},
		{"Shortened horizon", utils.FormatCount(f.NonExact)},
		{"Duplicate (ticker, date) rows", fmt.Sprintf("%d across %d keys", f.DuplicateRows, len(f.DuplicateKeys))},
		{"Exact 0% returns", utils.FormatCount(f.ExactZero)},
		{"Exact -100% returns", utils.FormatCount(f.ExactWipeout)},
		{"High outliers", utils.FormatCount(f.HighOutliers)},
		{"Extreme outliers", utils.FormatCount(f.ExtremeOutliers)},
	}
	if dist := f.Distribution; dist != nil {
		rows = append(rows,
			Row{"Min / P1 / P25", fmt.Sprintf("%.2f%% / %.2f%% / %.2f%%", dist.Min, dist.P1, dist.P25)},
			Row{"Median", utils.FormatPct(dist.Median, 2)},
			Row{"P75 / P99 / Max", fmt.Sprintf("%.2f%% / %.2f%% / %.2f%%", dist.P75, dist.P99, dist.Max)},
			Row{"Mean ± std", fmt.Sprintf("%.2f%% ± %.2f%%", dist.Mean, dist.StdDev)},
		)
	}
	return rows
}

func segmentTables(s *backtest.Summary, cfg Config, charts bool) []SegmentTable {
	names := s.SegmentOrder
	if len(names) == 0 {
		for n := range s.Segments {
			names = append(names, n)
		}
		sort.Strings(names)
	}

	var out []SegmentTable
	for _, name := range names {
		groups, ok := s.Segments[name]
		if !ok {
			continue
		}
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		t := SegmentTable{Name: name}
		var bars []BarItem
		for _, k := range keys {
			st := groups[k]
			if st.Total == 0 || st.Total < cfg.MinSegmentSize {
				t.Hidden++
				continue
			}
			t.Rows = append(t.Rows, SegmentRow{
				Key:      k,
				Accuracy: utils.FormatPct(st.AccuracyPct, 1),
				Correct:  st.Correct,
				Total:    st.Total,
				Beats:    st.AccuracyPct >= s.Baseline.AccuracyPct,
			})
			bars = append(bars, BarItem{Label: k, Value: st.AccuracyPct, Count: st.Total})
		}
		if charts && len(bars) > 0 {
			cc := cfg.ChartCfg
			cc.Title = "Accuracy by " + name
			t.Chart = template.HTML(AccuracyBarChart(bars, s.Baseline.AccuracyPct, cc))
		}
		out = append(out, t)
	}
	return out
}

func accuracyText(a backtest.AccuracyStats) string {
	if a.Total == 0 {
		return "n/a (0 scored)"
	}
	return fmt.Sprintf("%s (%d/%d)", utils.FormatPct(a.AccuracyPct, 1), a.Correct, a.Total)
}

func generatedAt(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.In(utils.ET).Format("02 Jan 2006, 03:04 PM MST")
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

// FeasibilityBanner heads every report computed over simulated features.
const FeasibilityBanner = "FEASIBILITY RUN: features were simulated from the realized returns. " +
	"Accuracy measures the harness, not predictive power."

func renderText(d ReportData) string {
	var sb strings.Builder
	line := strings.Repeat("═", 64)
	thinLine := strings.Repeat("─", 64)

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  %s\n", d.Title))
	if d.RunID != "" {
		sb.WriteString(fmt.Sprintf("  Generated: %s | Run: %s\n", d.GeneratedAt, d.RunID))
	} else {
		sb.WriteString(fmt.Sprintf("  Generated: %s\n", d.GeneratedAt))
	}
	sb.WriteString(line + "\n")

	if d.Feasibility {
		sb.WriteString("\n  !! " + FeasibilityBanner + "\n")
		sb.WriteString(thinLine + "\n")
	}

	writeRows := func(title string, show bool, rows []Row) {
		if !show || len(rows) == 0 {
			return
		}
		sb.WriteString(fmt.Sprintf("\n  ■ %s\n", title))
		for _, r := range rows {
			sb.WriteString(fmt.Sprintf("    %-36s %s\n", r.Label, r.Value))
		}
		sb.WriteString(thinLine + "\n")
	}

	writeRows("OVERALL", d.ShowOverall, d.Overall)
	writeRows("ERROR", d.ShowErrors, d.Errors)
	writeRows("CONFUSION", d.ShowConfusion, d.Confusion)
	writeRows("CONFIDENCE BUCKETS", d.ShowConfidence, d.Buckets)

	if d.ShowSegments {
		sb.WriteString("\n  ■ SEGMENTS\n")
		for _, t := range d.Segments {
			sb.WriteString(fmt.Sprintf("    %s\n", t.Name))
			for _, r := range t.Rows {
				mark := " "
				if r.Beats {
					mark = "+"
				}
				sb.WriteString(fmt.Sprintf("    %s %-24s %7s  (%d/%d)\n", mark, r.Key, r.Accuracy, r.Correct, r.Total))
			}
			if t.Hidden > 0 {
				sb.WriteString(fmt.Sprintf("      (%d small groups hidden)\n", t.Hidden))
			}
		}
		sb.WriteString(thinLine + "\n")
	}

	writeRows("PRICE CACHE", d.ShowCache, d.Cache)
	writeRows("DATA QUALITY", d.ShowQuality, d.Quality)
	writeRows("OUTLIERS BY TICKER", d.ShowQuality, d.Outliers)

	if len(d.Warnings) > 0 {
		sb.WriteString("\n  ■ WARNINGS\n")
		for _, w := range d.Warnings {
			sb.WriteString(fmt.Sprintf("    ! %s\n", w))
		}
		sb.WriteString(thinLine + "\n")
	}

	sb.WriteString("\n" + line + "\n")
	return sb.String()
}
