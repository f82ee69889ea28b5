package backtest

import (
	"fmt"

	"github.com/seenimoa/filingret/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Predictor Interface
// ════════════════════════════════════════════════════════════════════

// Predictor turns one joined row into a direction call.
type Predictor interface {
	// Name returns the identifier used in summaries and on the command line.
	Name() string

	// Predict must only look at the row's filing and features. Rows that
	// lack the inputs a predictor needs still get a prediction, built from
	// the predictor's neutral defaults.
	Predict(row models.JoinedRow) models.PredictionResult
}

// Predictor names accepted by NewPredictor.
const (
	PredictorAlwaysPositive = "always-positive"
	PredictorSurprise       = "surprise"
	PredictorLogistic       = "logistic"
)

// NewPredictor builds a predictor by name. model is required for
// PredictorLogistic and ignored otherwise.
func NewPredictor(name string, model *LogisticModel) (Predictor, error) {
	switch name {
	case PredictorAlwaysPositive:
		return AlwaysPositive{}, nil
	case PredictorSurprise, "":
		return SurpriseFactor{}, nil
	case PredictorLogistic:
		if model == nil {
			return nil, fmt.Errorf("predictor %q needs a trained model", name)
		}
		return &Logistic{Model: model}, nil
	}
	return nil, fmt.Errorf("unknown predictor %q (want %s, %s or %s)",
		name, PredictorAlwaysPositive, PredictorSurprise, PredictorLogistic)
}
