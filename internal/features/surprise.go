// Package features attaches per-filing attributes to the record stream:
// externally computed vectors joined by (ticker, date), period-over-period
// surprises found through the prior comparable filing, and the extractors
// that derive real features from SEC and market data.
package features

import (
	"sort"
	"strings"

	"github.com/seenimoa/filingret/pkg/models"
)

// SurpriseThresholdPct is the fixed beat/miss band. The bounds are
// exclusive: exactly ±5% is inline.
const SurpriseThresholdPct = 5.0

// SurpriseOf classifies current against its prior comparable value. ok is
// false when the prior is zero, since the change is undefined.
func SurpriseOf(current, prior float64) (s models.Surprise, ok bool) {
	if prior == 0 {
		return models.Surprise{}, false
	}
	pct := (current - prior) / abs(prior) * 100
	return models.Surprise{Category: Classify(pct), MagnitudePct: pct}, true
}

// Classify buckets a percentage change into beat, miss or inline.
func Classify(pct float64) models.SurpriseCategory {
	switch {
	case pct > SurpriseThresholdPct:
		return models.SurpriseBeat
	case pct < -SurpriseThresholdPct:
		return models.SurpriseMiss
	}
	return models.SurpriseInline
}

// PriorComparable returns the index in records of the filing that records[i]
// is compared with, or -1. A 10-Q compares with the filing four positions
// earlier in the ticker's date-sorted sequence of all its filings; with three
// 10-Qs and one 10-K a year that is the same fiscal quarter a year before. A
// 10-K compares with the most recent earlier 10-K. records need not be sorted.
func PriorComparable(records []models.FilingRecord, i int) int {
	if i < 0 || i >= len(records) {
		return -1
	}
	return priorIndex(records)[i]
}

// QuarterlyLookback is how many filings back a 10-Q's comparable sits.
const QuarterlyLookback = 4

// priorIndex computes PriorComparable for every record at once.
func priorIndex(records []models.FilingRecord) []int {
	seqs := make(map[string][]int)
	for i, r := range records {
		k := strings.ToUpper(r.Ticker)
		seqs[k] = append(seqs[k], i)
	}

	prior := make([]int, len(records))
	for i := range prior {
		prior[i] = -1
	}
	for _, idx := range seqs {
		sort.SliceStable(idx, func(a, b int) bool {
			return records[idx[a]].FilingDate.Before(records[idx[b]].FilingDate)
		})
		lastAnnual := -1
		for pos, i := range idx {
			cur := records[i]
			switch {
			case cur.FilingType.IsQuarterly():
				if pos >= QuarterlyLookback {
					prior[i] = idx[pos-QuarterlyLookback]
				}
			default:
				// Walk back past same-day annuals, which are not a prior period.
				for back := lastAnnual; back >= 0; back-- {
					if records[idx[back]].FilingType == cur.FilingType &&
						records[idx[back]].FilingDate.Before(cur.FilingDate) {
						prior[i] = idx[back]
						break
					}
				}
				lastAnnual = pos
			}
			// Same-day duplicates are not a prior period.
			if p := prior[i]; p >= 0 && !records[p].FilingDate.Before(cur.FilingDate) {
				prior[i] = -1
			}
		}
	}
	return prior
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
