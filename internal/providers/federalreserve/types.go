package federalreserve

// ---------------------------------------------------------------------------
// NY Fed Markets API response types.
// ---------------------------------------------------------------------------

// nyfedRatesResponse wraps the ref rates (EFFR, SOFR, OBFR).
type nyfedRatesResponse struct {
	RefRates []nyfedRefRate `json:"refRates"`
}

// nyfedRefRate is a single ref rate entry from the NY Fed.
type nyfedRefRate struct {
	EffectiveDate    string  `json:"effectiveDate"`
	Type             string  `json:"type,omitempty"`
	PercentRate      float64 `json:"percentRate"`
	TargetRateTo     float64 `json:"targetRateTo,omitempty"`
	TargetRateFrom   float64 `json:"targetRateFrom,omitempty"`
	VolumeInBillions float64 `json:"volumeInBillions,omitempty"`
}
