// Package returns computes event-window percentage returns from a daily
// price series. Every function is pure: the same inputs always produce the
// same observation.
package returns

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/seenimoa/filingret/pkg/models"
)

// ErrMalformedSeries marks a series that breaks the ordering or price
// invariants. It aborts the current record only.
var ErrMalformedSeries = errors.New("malformed price series")

// Calculate returns the percentage change from the anchor (the first trading
// day on or after filingDate) to horizonDays trading days later. When the
// series ends early the last available day is used and EffectiveDays is
// shorter than HorizonDays. The return is null when there is no anchor or
// fewer than two rows from the anchor on.
func Calculate(filingDate time.Time, horizonDays int, series models.PriceSeries) (models.ReturnObservation, error) {
	obs := models.ReturnObservation{HorizonDays: horizonDays}
	if horizonDays <= 0 {
		return obs, fmt.Errorf("horizon must be positive, got %d", horizonDays)
	}
	if err := series.Validate(); err != nil {
		return obs, fmt.Errorf("%w: %v", ErrMalformedSeries, err)
	}

	anchor := AnchorIndex(filingDate, series)
	if anchor < 0 {
		return obs, nil
	}
	last := series.Len() - 1
	if last-anchor < 1 {
		return obs, nil
	}

	end := anchor + horizonDays
	if end > last {
		end = last
	}

	start := series.Bars[anchor].Close
	pct := (series.Bars[end].Close - start) / start * 100

	obs.EffectiveDays = end - anchor
	obs.AnchorDate = models.Day(series.Bars[anchor].Date)
	obs.EndDate = models.Day(series.Bars[end].Date)
	obs.ActualReturnPct = models.Float(pct)
	return obs, nil
}

// CalculateExact is Calculate for callers that need the full horizon: a
// shortened observation comes back with a null return.
func CalculateExact(filingDate time.Time, horizonDays int, series models.PriceSeries) (models.ReturnObservation, error) {
	obs, err := Calculate(filingDate, horizonDays, series)
	if err != nil || obs.Exact() {
		return obs, err
	}
	obs.ActualReturnPct = nil
	return obs, nil
}

// AnchorIndex returns the index of the first bar dated on or after the
// filing's calendar day, or -1. Dates compare by calendar day so a filing
// timestamp never skips its own trading day.
func AnchorIndex(filingDate time.Time, series models.PriceSeries) int {
	d := models.Day(filingDate)
	i := sort.Search(series.Len(), func(i int) bool {
		return !models.Day(series.Bars[i].Date).Before(d)
	})
	if i == series.Len() {
		return -1
	}
	return i
}

// Trailing returns the percentage change over the lookbackDays trading days
// that end at the last bar strictly before asOf. It is null when fewer than
// lookbackDays+1 such bars exist.
func Trailing(asOf time.Time, lookbackDays int, series models.PriceSeries) (*float64, error) {
	if lookbackDays <= 0 {
		return nil, fmt.Errorf("lookback must be positive, got %d", lookbackDays)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSeries, err)
	}
	end := lastBefore(asOf, series)
	start := end - lookbackDays
	if end < 0 || start < 0 {
		return nil, nil
	}
	from := series.Bars[start].Close
	return models.Float((series.Bars[end].Close - from) / from * 100), nil
}

// Volatility returns the sample standard deviation of daily percentage
// returns over the lookbackDays trading days before asOf.
func Volatility(asOf time.Time, lookbackDays int, series models.PriceSeries) (*float64, error) {
	if lookbackDays < 2 {
		return nil, fmt.Errorf("volatility lookback must be at least 2, got %d", lookbackDays)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSeries, err)
	}
	end := lastBefore(asOf, series)
	start := end - lookbackDays
	if end < 0 || start < 0 {
		return nil, nil
	}

	daily := make([]float64, 0, lookbackDays)
	for i := start + 1; i <= end; i++ {
		prev := series.Bars[i-1].Close
		daily = append(daily, (series.Bars[i].Close-prev)/prev*100)
	}
	var mean float64
	for _, r := range daily {
		mean += r
	}
	mean /= float64(len(daily))
	var ss float64
	for _, r := range daily {
		ss += (r - mean) * (r - mean)
	}
	return models.Float(math.Sqrt(ss / float64(len(daily)-1))), nil
}

// VolumeRatio returns the mean volume of the recentDays bars before asOf
// divided by the mean volume of the baselineDays bars before those. It is
// null when the window is incomplete or the baseline volume is zero.
func VolumeRatio(asOf time.Time, recentDays, baselineDays int, series models.PriceSeries) *float64 {
	if recentDays <= 0 || baselineDays <= 0 {
		return nil
	}
	end := lastBefore(asOf, series)
	recentStart := end - recentDays + 1
	baseStart := recentStart - baselineDays
	if end < 0 || baseStart < 0 {
		return nil
	}
	mean := func(from, to int) float64 {
		var sum float64
		for i := from; i <= to; i++ {
			sum += float64(series.Bars[i].Volume)
		}
		return sum / float64(to-from+1)
	}
	base := mean(baseStart, recentStart-1)
	if base <= 0 {
		return nil
	}
	return models.Float(mean(recentStart, end) / base)
}

// lastBefore returns the index of the last bar dated strictly before asOf's
// calendar day, or -1.
func lastBefore(asOf time.Time, series models.PriceSeries) int {
	d := models.Day(asOf)
	return sort.Search(series.Len(), func(i int) bool {
		return !models.Day(series.Bars[i].Date).Before(d)
	}) - 1
}
