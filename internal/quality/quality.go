// Package quality finds and filters the data-quality anomalies of a filing
// batch: duplicate (ticker, date) records, bulk exact-zero and exact -100%
// returns that usually mean missing data, and implausible outliers.
package quality

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/config"
	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Dedup
// ════════════════════════════════════════════════════════════════════

func dedup[T any](items []T, key func(T) models.FilingKey) (kept, dropped []T) {
	seen := make(map[models.FilingKey]bool, len(items))
	kept = make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if seen[k] {
			dropped = append(dropped, it)
			continue
		}
		seen[k] = true
		kept = append(kept, it)
	}
	return kept, dropped
}

// DedupRecords keeps the first record per (ticker, filing date) in input
// order and returns the later duplicates separately.
func DedupRecords(recs []models.FilingRecord) (kept, dropped []models.FilingRecord) {
	return dedup(recs, models.FilingRecord.Key)
}

// Dedup is DedupRecords for joined rows.
func Dedup(rows []models.JoinedRow) (kept, dropped []models.JoinedRow) {
	return dedup(rows, func(r models.JoinedRow) models.FilingKey { return r.Filing.Key() })
}

// ════════════════════════════════════════════════════════════════════
// Audit
// ════════════════════════════════════════════════════════════════════

// Thresholds configure what counts as an outlier and when an anomaly is
// systemic. Outlier bounds are absolute returns in percent; shares are
// percentages of the rows that carry a return.
type Thresholds struct {
	HighOutlierPct       float64
	ExtremeOutlierPct    float64
	MaxZeroSharePct      float64
	MaxWipeoutSharePct   float64
	MaxDuplicateSharePct float64
}

// DefaultThresholds mirrors the quality defaults in config.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighOutlierPct:       50,
		ExtremeOutlierPct:    100,
		MaxZeroSharePct:      5,
		MaxWipeoutSharePct:   1,
		MaxDuplicateSharePct: 1,
	}
}

// ThresholdsFrom adapts the quality section of the application config.
func ThresholdsFrom(c config.QualityConfig) Thresholds {
	return Thresholds{
		HighOutlierPct:       c.HighOutlierPct,
		ExtremeOutlierPct:    c.ExtremeOutlierPct,
		MaxZeroSharePct:      c.MaxZeroSharePct,
		MaxWipeoutSharePct:   c.MaxWipeoutSharePct,
		MaxDuplicateSharePct: c.MaxDuplicateSharePct,
	}
}

// Distribution summarizes the non-null returns of a batch.
type Distribution struct {
	Min    float64 `json:"min"`
	P1     float64 `json:"p1"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P99    float64 `json:"p99"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
}

// Findings is the data-quality report of one batch at one horizon.
type Findings struct {
	Horizon    int `json:"horizonDays"`
	Rows       int `json:"rows"`
	WithReturn int `json:"withReturn"`
	Null       int `json:"null"`
	NonExact   int `json:"nonExact"`

	DuplicateKeys []models.FilingKey `json:"duplicateKeys,omitempty"`
	DuplicateRows int                `json:"duplicateRows"`

	ExactZero       int            `json:"exactZero"`
	ExactWipeout    int            `json:"exactWipeout"`
	HighOutliers    int            `json:"highOutliers"`
	ExtremeOutliers int            `json:"extremeOutliers"`
	OutliersBy      map[string]int `json:"outliersByTicker,omitempty"`

	Distribution *Distribution `json:"distribution,omitempty"`
}

// Audit scans rows for anomalies at horizon. High outliers have an
// absolute return above HighOutlierPct up to ExtremeOutlierPct; extreme ones
// lie beyond it. Both are counted per ticker.
func Audit(rows []models.JoinedRow, horizon int, th Thresholds) Findings {
	f := Findings{Horizon: horizon, Rows: len(rows), OutliersBy: make(map[string]int)}

	counts := make(map[models.FilingKey]int, len(rows))
	var order []models.FilingKey
	var values []float64
	for _, r := range rows {
		k := r.Filing.Key()
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++

		obs := r.Return(horizon)
		v, ok := obs.Value()
		if !ok {
			f.Null++
			continue
		}
		f.WithReturn++
		values = append(values, v)
		if !obs.Exact() {
			f.NonExact++
		}
		switch {
		case v == 0:
			f.ExactZero++
		case v == -100:
			f.ExactWipeout++
		}
		switch a := math.Abs(v); {
		case a > th.ExtremeOutlierPct:
			f.ExtremeOutliers++
			f.OutliersBy[k.Ticker]++
		case a > th.HighOutlierPct:
			f.HighOutliers++
			f.OutliersBy[k.Ticker]++
		}
	}
	for _, k := range order {
		if n := counts[k]; n > 1 {
			f.DuplicateKeys = append(f.DuplicateKeys, k)
			f.DuplicateRows += n - 1
		}
	}
	f.Distribution = distribution(values)
	return f
}

func distribution(values []float64) *Distribution {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))
	var ss float64
	for _, v := range sorted {
		ss += (v - mean) * (v - mean)
	}
	std := 0.0
	if len(sorted) > 1 {
		std = math.Sqrt(ss / float64(len(sorted)-1))
	}

	return &Distribution{
		Min:    sorted[0],
		P1:     Percentile(sorted, 1),
		P25:    Percentile(sorted, 25),
		Median: Percentile(sorted, 50),
		P75:    Percentile(sorted, 75),
		P99:    Percentile(sorted, 99),
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		StdDev: std,
	}
}

// Percentile returns the p-th percentile (0-100) of a sorted slice by
// linear interpolation between closest ranks. It returns NaN for an empty
// slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	frac := rank - float64(lo)
	if lo+1 >= n {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// ════════════════════════════════════════════════════════════════════
// Guard rails
// ════════════════════════════════════════════════════════════════════

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// Guard returns one message per anomaly whose share of the batch exceeds its
// threshold, logging each as a warning. Anomalies are findings, not errors:
// the batch continues either way.
func Guard(f Findings, th Thresholds, log *zap.Logger) []string {
	log = logging.OrNop(log)
	var out []string
	warn := func(msg string, n int, pct float64) {
		out = append(out, fmt.Sprintf("%s: %d rows (%.1f%%)", msg, n, pct))
		log.Warn(msg, zap.Int("rows", n), zap.Float64("share_pct", pct), zap.Int("horizon", f.Horizon))
	}

	if pct := share(f.ExactZero, f.WithReturn); f.ExactZero > 0 && pct > th.MaxZeroSharePct {
		warn("bulk exact 0% returns, likely missing price data", f.ExactZero, pct)
	}
	if pct := share(f.ExactWipeout, f.WithReturn); f.ExactWipeout > 0 && pct > th.MaxWipeoutSharePct {
		warn("bulk exact -100% returns, likely delistings or bad prices", f.ExactWipeout, pct)
	}
	if pct := share(f.DuplicateRows, f.Rows); f.DuplicateRows > 0 && pct > th.MaxDuplicateSharePct {
		warn("duplicate ticker/date rows", f.DuplicateRows, pct)
	}
	if f.ExtremeOutliers > 0 {
		warn(fmt.Sprintf("returns beyond ±%.0f%%", th.ExtremeOutlierPct), f.ExtremeOutliers, share(f.ExtremeOutliers, f.WithReturn))
	}
	return out
}

// TopOutlierTickers returns up to n tickers with the most outliers, ties
// broken alphabetically.
func (f Findings) TopOutlierTickers(n int) []string {
	tickers := make([]string, 0, len(f.OutliersBy))
	for t := range f.OutliersBy {
		tickers = append(tickers, t)
	}
	sort.Slice(tickers, func(i, j int) bool {
		a, b := f.OutliersBy[tickers[i]], f.OutliersBy[tickers[j]]
		if a != b {
			return a > b
		}
		return tickers[i] < tickers[j]
	})
	if n >= 0 && len(tickers) > n {
		tickers = tickers[:n]
	}
	return tickers
}

// ════════════════════════════════════════════════════════════════════
// Cleaning
// ════════════════════════════════════════════════════════════════════

// DropExtreme removes rows whose return at horizon is beyond ±limitPct and
// returns the kept rows and the number removed. Null returns are kept.
func DropExtreme(rows []models.JoinedRow, horizon int, limitPct float64) ([]models.JoinedRow, int) {
	kept := make([]models.JoinedRow, 0, len(rows))
	for _, r := range rows {
		if v, ok := r.Return(horizon).Value(); ok && math.Abs(v) > limitPct {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(rows) - len(kept)
}

// Winsorize clips values to their lo-th and hi-th percentiles in place and
// returns the bounds and how many values were clipped.
func Winsorize(values []float64, lo, hi float64) (lower, upper float64, clipped int) {
	if len(values) == 0 {
		return math.NaN(), math.NaN(), 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	lower, upper = Percentile(sorted, lo), Percentile(sorted, hi)
	for i, v := range values {
		switch {
		case v < lower:
			values[i] = lower
			clipped++
		case v > upper:
			values[i] = upper
			clipped++
		}
	}
	return lower, upper, clipped
}

// WinsorizeReturns applies Winsorize to the non-null returns at horizon.
// Clipped rows get a copied Returns map so other slices holding the same
// rows keep their raw values.
func WinsorizeReturns(rows []models.JoinedRow, horizon int, lo, hi float64) (lower, upper float64, clipped int) {
	var idx []int
	var values []float64
	for i, r := range rows {
		if v, ok := r.Return(horizon).Value(); ok {
			idx = append(idx, i)
			values = append(values, v)
		}
	}
	lower, upper, clipped = Winsorize(values, lo, hi)
	for j, i := range idx {
		obs := rows[i].Return(horizon)
		if *obs.ActualReturnPct != values[j] {
			obs.ActualReturnPct = models.Float(values[j])
			copied := make(map[int]models.ReturnObservation, len(rows[i].Returns))
			for h, o := range rows[i].Returns {
				copied[h] = o
			}
			rows[i].Returns = copied
			rows[i].SetReturn(obs)
		}
	}
	return lower, upper, clipped
}
