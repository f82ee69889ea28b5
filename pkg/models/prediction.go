package models

// Sign is the direction bucket of a return or prediction.
type Sign int

const (
	Negative Sign = -1
	Positive Sign = 1
)

// SignOf buckets a value by direction. Zero counts as non-negative, so an
// exactly flat return lands in the positive bucket.
func SignOf(v float64) Sign {
	if v >= 0 {
		return Positive
	}
	return Negative
}

func (s Sign) String() string {
	if s == Negative {
		return "negative"
	}
	return "positive"
}

// Confidence represents the probability of a positive outcome (0.0 to 1.0).
type Confidence float64

// PredictionResult is a predictor's output for one filing. Predictors that
// only emit a direction leave PredictedValue nil.
type PredictionResult struct {
	PredictedValue *float64    `json:"predictedValue,omitempty"`
	PredictedSign  Sign        `json:"predictedSign"`
	Confidence     *Confidence `json:"confidence,omitempty"`
}

// NewValuePrediction builds a result from a predicted return.
func NewValuePrediction(v float64) PredictionResult {
	return PredictionResult{PredictedValue: Float(v), PredictedSign: SignOf(v)}
}

// NewSignPrediction builds a direction-only result.
func NewSignPrediction(s Sign, conf float64) PredictionResult {
	c := Confidence(conf)
	return PredictionResult{PredictedSign: s, Confidence: &c}
}

// Recommendation is the trading action derived from a model confidence.
type Recommendation struct {
	Action string `json:"action"` // BUY, SHORT, HOLD
	Size   string `json:"size"`   // FULL, HALF, SMALL
	Reason string `json:"reason"`
}
