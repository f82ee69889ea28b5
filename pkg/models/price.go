package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PriceBar represents a single daily bar of price data.
type PriceBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close,omitempty"`
	Volume   int64     `json:"volume"`
}

// PriceSeries is the ordered daily-close history of one ticker. Only trading
// days are present; non-trading days are absent, never zero-filled.
type PriceSeries struct {
	Ticker string     `json:"ticker"`
	Bars   []PriceBar `json:"bars"`
}

// Len returns the number of trading days in the series.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Empty reports whether the series has no rows ("no data").
func (s PriceSeries) Empty() bool { return len(s.Bars) == 0 }

// Range returns the first and last trading dates of the series.
func (s PriceSeries) Range() DateRange {
	if len(s.Bars) == 0 {
		return DateRange{}
	}
	return DateRange{From: Day(s.Bars[0].Date), To: Day(s.Bars[len(s.Bars)-1].Date)}
}

// Validate checks the series invariants: strictly increasing trading dates and
// finite, positive closes.
func (s PriceSeries) Validate() error {
	for i, b := range s.Bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close <= 0 {
			return fmt.Errorf("%s bar %d (%s): invalid close %v", s.Ticker, i, b.Date.Format(DateLayout), b.Close)
		}
		if i > 0 && !Day(b.Date).After(Day(s.Bars[i-1].Date)) {
			return fmt.Errorf("%s bar %d (%s): dates not strictly increasing", s.Ticker, i, b.Date.Format(DateLayout))
		}
	}
	return nil
}

// SortedCopy returns a copy of the series sorted by date with duplicate days
// collapsed (the last bar for a day wins) and bars without a close dropped.
func (s PriceSeries) SortedCopy() PriceSeries {
	bars := make([]PriceBar, 0, len(s.Bars))
	for _, b := range s.Bars {
		if b.Close > 0 {
			bars = append(bars, b)
		}
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && Day(out[n-1].Date).Equal(Day(b.Date)) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return PriceSeries{Ticker: s.Ticker, Bars: out}
}

// Slice returns the bars whose dates fall inside r (inclusive).
func (s PriceSeries) Slice(r DateRange) PriceSeries {
	var bars []PriceBar
	for _, b := range s.Bars {
		if r.Contains(b.Date) {
			bars = append(bars, b)
		}
	}
	return PriceSeries{Ticker: s.Ticker, Bars: bars}
}

// DateRange is an inclusive calendar-day range.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IsZero reports whether the range is unset.
func (r DateRange) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

// Contains reports whether t's calendar day lies inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(r.From)) && !d.After(Day(r.To))
}

// Covers reports whether r fully contains other.
func (r DateRange) Covers(other DateRange) bool {
	if r.IsZero() {
		return false
	}
	return !Day(other.From).Before(Day(r.From)) && !Day(other.To).After(Day(r.To))
}

// Union returns the smallest range containing both r and other.
func (r DateRange) Union(other DateRange) DateRange {
	if r.IsZero() {
		return other
	}
	if other.IsZero() {
		return r
	}
	out := r
	if other.From.Before(out.From) {
		out.From = other.From
	}
	if other.To.After(out.To) {
		out.To = other.To
	}
	return out
}

// Pad extends the end of the range by the given number of calendar days.
func (r DateRange) Pad(days int) DateRange {
	return DateRange{From: r.From, To: r.To.AddDate(0, 0, days)}
}

func (r DateRange) String() string {
	return r.From.Format(DateLayout) + ".." + r.To.Format(DateLayout)
}
