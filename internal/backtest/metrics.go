package backtest

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/seenimoa/filingret/internal/features"
	"github.com/seenimoa/filingret/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Scored Pairs
// ════════════════════════════════════════════════════════════════════

// Pair is one scored filing: the prediction made for it and the realized
// return it is judged against. Actual is nil when the return is unknown.
type Pair struct {
	Filing     models.FilingRecord     `json:"filing"`
	Features   models.FeatureVector    `json:"-"`
	Prediction models.PredictionResult `json:"prediction"`
	Actual     *float64                `json:"actual"`
}

// Correct reports whether the predicted and realized directions agree.
// A zero return is non-negative. Pairs without an actual are never correct.
func (p Pair) Correct() bool {
	if p.Actual == nil {
		return false
	}
	return p.Prediction.PredictedSign == models.SignOf(*p.Actual)
}

// ════════════════════════════════════════════════════════════════════
// Direction Accuracy
// ════════════════════════════════════════════════════════════════════

// AccuracyStats is the direction-accuracy fold of a batch of pairs.
type AccuracyStats struct {
	Correct     int     `json:"correct"`
	Total       int     `json:"total"`
	AccuracyPct float64 `json:"accuracyPct"`
}

// Accuracy counts pairs whose predicted sign matches the realized sign.
// Pairs with a null actual are left out of Total, not counted as misses.
func Accuracy(pairs []Pair) AccuracyStats {
	var s AccuracyStats
	for _, p := range pairs {
		if p.Actual == nil {
			continue
		}
		s.Total++
		if p.Correct() {
			s.Correct++
		}
	}
	s.finish()
	return s
}

func (s *AccuracyStats) finish() {
	if s.Total > 0 {
		s.AccuracyPct = float64(s.Correct) / float64(s.Total) * 100
	}
}

// PositiveRate is the "always positive" baseline: Correct holds the number
// of non-null actuals that are >= 0.
func PositiveRate(pairs []Pair) AccuracyStats {
	var s AccuracyStats
	for _, p := range pairs {
		if p.Actual == nil {
			continue
		}
		s.Total++
		if models.SignOf(*p.Actual) == models.Positive {
			s.Correct++
		}
	}
	s.finish()
	return s
}

// ────────────────────────────────────────────────────────────────────
// Segments
// ────────────────────────────────────────────────────────────────────

// KeyFunc maps a pair to its segment label.
type KeyFunc func(Pair) string

// NamedKey is a KeyFunc with the label reports print for it.
type NamedKey struct {
	Name string
	Key  KeyFunc
}

// Segment groups pairs by key and computes accuracy per group with the same
// null-exclusion rule as Accuracy.
func Segment(pairs []Pair, key KeyFunc) map[string]AccuracyStats {
	groups := make(map[string][]Pair)
	for _, p := range pairs {
		k := key(p)
		groups[k] = append(groups[k], p)
	}
	out := make(map[string]AccuracyStats, len(groups))
	for k, g := range groups {
		out[k] = Accuracy(g)
	}
	return out
}

// SegmentKeys returns a segment map's labels in sorted order.
func SegmentKeys(m map[string]AccuracyStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const unknownSegment = "unknown"

func ByTicker(p Pair) string { return strings.ToUpper(p.Filing.Ticker) }

func ByFilingType(p Pair) string { return string(p.Filing.FilingType) }

func ByYear(p Pair) string {
	if p.Filing.FilingDate.IsZero() {
		return unknownSegment
	}
	return strconv.Itoa(p.Filing.FilingDate.Year())
}

func ByCapBucket(p Pair) string { return catOr(p.Features, features.CatMarketCapBucket) }

func ByRegime(p Pair) string { return catOr(p.Features, features.CatRegime) }

// BySurprise segments on the EPS surprise category; filings without a prior
// comparable land in "none".
func BySurprise(p Pair) string {
	if c, ok := p.Features.Cat(features.SurpriseName(features.FeatEPS)); ok {
		return c
	}
	return "none"
}

// ByShortInterest crosses the short interest level with the earnings
// surprise, consensus first and the year-over-year EPS surprise otherwise,
// e.g. "high/beat". Heavily shorted names that beat are where squeezes
// happen. Filings without short interest land in "none".
func ByShortInterest(p Pair) string {
	lvl, ok := p.Features.Cat(features.CatShortInterest)
	if !ok {
		return "none"
	}
	if c, ok := p.Features.Cat(features.CatConsensusSurprise); ok {
		return lvl + "/" + c
	}
	return lvl + "/" + BySurprise(p)
}

func catOr(fv models.FeatureVector, name string) string {
	if c, ok := fv.Cat(name); ok && c != "" {
		return c
	}
	return unknownSegment
}

// StandardSegments are the groupings every evaluation summary carries.
func StandardSegments() []NamedKey {
	return []NamedKey{
		{Name: "ticker", Key: ByTicker},
		{Name: "filingType", Key: ByFilingType},
		{Name: "year", Key: ByYear},
		{Name: "marketCap", Key: ByCapBucket},
		{Name: "regime", Key: ByRegime},
		{Name: "epsSurprise", Key: BySurprise},
		{Name: "shortInterest", Key: ByShortInterest},
	}
}

// ════════════════════════════════════════════════════════════════════
// Error Statistics
// ════════════════════════════════════════════════════════════════════

// ErrorSummary holds absolute-error statistics in percentage points.
type ErrorSummary struct {
	MeanAbsoluteError   float64 `json:"meanAbsoluteError"`
	MedianAbsoluteError float64 `json:"medianAbsoluteError"`
	N                   int     `json:"n"`
}

// ErrorStats computes MAE and median absolute error over pairs that carry
// both a numeric predicted value and an actual. N is zero when none do.
func ErrorStats(pairs []Pair) ErrorSummary {
	var errs []float64
	for _, p := range pairs {
		if p.Actual == nil || p.Prediction.PredictedValue == nil {
			continue
		}
		errs = append(errs, math.Abs(*p.Prediction.PredictedValue-*p.Actual))
	}
	if len(errs) == 0 {
		return ErrorSummary{}
	}

	var sum float64
	for _, e := range errs {
		sum += e
	}
	sort.Float64s(errs)
	return ErrorSummary{
		MeanAbsoluteError:   sum / float64(len(errs)),
		MedianAbsoluteError: median(errs),
		N:                   len(errs),
	}
}

// median of a sorted, non-empty slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// ────────────────────────────────────────────────────────────────────
// Return spread
// ────────────────────────────────────────────────────────────────────

// ReturnSpread is the mean actual return of predicted-positive filings minus
// that of predicted-negative ones. It is nil unless both sides are non-empty.
func ReturnSpread(pairs []Pair) *float64 {
	var posSum, negSum float64
	var posN, negN int
	for _, p := range pairs {
		if p.Actual == nil {
			continue
		}
		if p.Prediction.PredictedSign == models.Positive {
			posSum += *p.Actual
			posN++
		} else {
			negSum += *p.Actual
			negN++
		}
	}
	if posN == 0 || negN == 0 {
		return nil
	}
	return models.Float(posSum/float64(posN) - negSum/float64(negN))
}

// ────────────────────────────────────────────────────────────────────
// Confusion matrix
// ────────────────────────────────────────────────────────────────────

// ConfusionMatrix counts predicted vs realized directions, positive class
// being a non-negative return.
type ConfusionMatrix struct {
	TruePositive  int `json:"truePositive"`
	FalsePositive int `json:"falsePositive"`
	TrueNegative  int `json:"trueNegative"`
	FalseNegative int `json:"falseNegative"`
}

func Confusion(pairs []Pair) ConfusionMatrix {
	var m ConfusionMatrix
	for _, p := range pairs {
		if p.Actual == nil {
			continue
		}
		actualPos := models.SignOf(*p.Actual) == models.Positive
		switch predPos := p.Prediction.PredictedSign == models.Positive; {
		case predPos && actualPos:
			m.TruePositive++
		case predPos:
			m.FalsePositive++
		case actualPos:
			m.FalseNegative++
		default:
			m.TrueNegative++
		}
	}
	return m
}

// Precision of the positive calls, or 0 when none were made.
func (m ConfusionMatrix) Precision() float64 {
	if d := m.TruePositive + m.FalsePositive; d > 0 {
		return float64(m.TruePositive) / float64(d) * 100
	}
	return 0
}

// Recall of the positive class, or 0 when there were no positives.
func (m ConfusionMatrix) Recall() float64 {
	if d := m.TruePositive + m.FalseNegative; d > 0 {
		return float64(m.TruePositive) / float64(d) * 100
	}
	return 0
}

// ────────────────────────────────────────────────────────────────────
// Confidence buckets
// ────────────────────────────────────────────────────────────────────

// BucketStats is the accuracy of predictions whose certainty falls in
// [Low, High). The last bucket is closed at 1.
type BucketStats struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
	AccuracyStats
}

// ConfidenceBuckets splits pairs by certainty in the predicted direction,
// max(p, 1-p) for a positive-class probability p, into n equal-width buckets
// over [0.5, 1]. Pairs without a confidence are ignored; the result is nil
// when none carry one.
func ConfidenceBuckets(pairs []Pair, n int) []BucketStats {
	if n <= 0 {
		return nil
	}
	width := 0.5 / float64(n)
	buckets := make([]BucketStats, n)
	for i := range buckets {
		buckets[i].Low = 0.5 + float64(i)*width
		buckets[i].High = 0.5 + float64(i+1)*width
	}

	seen := false
	for _, p := range pairs {
		if p.Prediction.Confidence == nil || p.Actual == nil {
			continue
		}
		seen = true
		c := float64(*p.Prediction.Confidence)
		cert := math.Max(c, 1-c)
		i := int((cert - 0.5) / width)
		if i >= n {
			i = n - 1
		}
		if i < 0 {
			i = 0
		}
		buckets[i].Total++
		if p.Correct() {
			buckets[i].Correct++
		}
	}
	if !seen {
		return nil
	}
	for i := range buckets {
		buckets[i].finish()
	}
	return buckets
}
