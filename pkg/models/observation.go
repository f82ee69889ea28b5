package models

import (
	"sort"
	"time"
)

// ReturnObservation is the realized percentage return of one filing over a
// horizon of trading days. ActualReturnPct is nil when there was not enough
// data; nil means "exclude from aggregates", never zero.
type ReturnObservation struct {
	HorizonDays     int       `json:"horizonDays"`
	EffectiveDays   int       `json:"effectiveDays"`
	AnchorDate      time.Time `json:"anchorDate,omitempty"`
	EndDate         time.Time `json:"endDate,omitempty"`
	ActualReturnPct *float64  `json:"actualReturnPct"`
}

// Valid reports whether the observation carries a return value.
func (o ReturnObservation) Valid() bool { return o.ActualReturnPct != nil }

// Exact reports whether the full horizon was available. Callers that need
// exact-horizon returns discard observations where this is false.
func (o ReturnObservation) Exact() bool {
	return o.Valid() && o.EffectiveDays == o.HorizonDays
}

// Value returns the return and whether it is present.
func (o ReturnObservation) Value() (float64, bool) {
	if o.ActualReturnPct == nil {
		return 0, false
	}
	return *o.ActualReturnPct, true
}

// Float returns a pointer to a copy of v.
func Float(v float64) *float64 { return &v }

// --- Features ---

// Provenance tells where a feature vector came from. Simulated features are
// derived from the known outcome and must never back an out-of-sample claim.
type Provenance string

const (
	ProvenanceReal      Provenance = "real"
	ProvenanceSimulated Provenance = "simulated"
	ProvenanceModel     Provenance = "model"
)

// FeatureVector is the set of per-filing attributes joined onto a record.
type FeatureVector struct {
	Provenance Provenance         `json:"provenance,omitempty"`
	Values     map[string]float64 `json:"values,omitempty"`
	Categories map[string]string  `json:"categories,omitempty"`
}

// NewFeatureVector returns an empty vector with the given provenance.
func NewFeatureVector(p Provenance) FeatureVector {
	return FeatureVector{
		Provenance: p,
		Values:     make(map[string]float64),
		Categories: make(map[string]string),
	}
}

// Num returns a numeric feature and whether it is present.
func (f FeatureVector) Num(name string) (float64, bool) {
	v, ok := f.Values[name]
	return v, ok
}

// Cat returns a categorical feature and whether it is present.
func (f FeatureVector) Cat(name string) (string, bool) {
	v, ok := f.Categories[name]
	return v, ok
}

// SetNum stores a numeric feature, allocating the map on first use.
func (f *FeatureVector) SetNum(name string, v float64) {
	if f.Values == nil {
		f.Values = make(map[string]float64)
	}
	f.Values[name] = v
}

// SetCat stores a categorical feature, allocating the map on first use.
func (f *FeatureVector) SetCat(name, v string) {
	if f.Categories == nil {
		f.Categories = make(map[string]string)
	}
	f.Categories[name] = v
}

// Merge copies other's values into f. Provenance degrades: merging anything
// simulated into a real vector marks the result simulated.
func (f *FeatureVector) Merge(other FeatureVector) {
	for k, v := range other.Values {
		f.SetNum(k, v)
	}
	for k, v := range other.Categories {
		f.SetCat(k, v)
	}
	switch {
	case f.Provenance == "":
		f.Provenance = other.Provenance
	case other.Provenance == ProvenanceSimulated:
		f.Provenance = ProvenanceSimulated
	}
}

// Names returns the sorted numeric and categorical feature names.
func (f FeatureVector) Names() (numeric, categorical []string) {
	for k := range f.Values {
		numeric = append(numeric, k)
	}
	for k := range f.Categories {
		categorical = append(categorical, k)
	}
	sort.Strings(numeric)
	sort.Strings(categorical)
	return numeric, categorical
}

// --- Surprise ---

// SurpriseCategory classifies a period-over-period change.
type SurpriseCategory string

const (
	SurpriseBeat   SurpriseCategory = "beat"
	SurpriseMiss   SurpriseCategory = "miss"
	SurpriseInline SurpriseCategory = "inline"
)

// Surprise is the classified percentage change of a metric against its prior
// comparable period.
type Surprise struct {
	Category     SurpriseCategory `json:"category"`
	MagnitudePct float64          `json:"magnitudePct"`
}

// --- Joined rows ---

// JoinedRow is one element of the record stream: a filing with its realized
// returns (keyed by horizon) and joined features.
type JoinedRow struct {
	Filing   FilingRecord              `json:"filing"`
	Returns  map[int]ReturnObservation `json:"returns"`
	Features FeatureVector             `json:"features"`
}

// Return returns the observation for a horizon, or a null observation.
func (r JoinedRow) Return(horizon int) ReturnObservation {
	if o, ok := r.Returns[horizon]; ok {
		return o
	}
	return ReturnObservation{HorizonDays: horizon}
}

// SetReturn stores the observation for its horizon.
func (r *JoinedRow) SetReturn(o ReturnObservation) {
	if r.Returns == nil {
		r.Returns = make(map[int]ReturnObservation)
	}
	r.Returns[o.HorizonDays] = o
}
