package ingest

import (
	"context"

	"github.com/expiwt/AlphaHack/internal/models"
)

// Prediction is the output of an income model for one client
type Prediction struct {
	Income     *float64
	Confidence *float64
}

// Predictor computes a predicted income. It is invoked only for records
// that carry no predicted income of their own.
type Predictor interface {
	Predict(ctx context.Context, rec models.ClientRecord) (Prediction, bool)
}

// TargetPredictor takes the model output already present in the target column
type TargetPredictor struct {
	Confidence float64
}

// Predict returns the target value, if any, with the configured confidence
func (p TargetPredictor) Predict(_ context.Context, rec models.ClientRecord) (Prediction, bool) {
	if rec.Target == nil {
		return Prediction{}, false
	}
	return Prediction{Income: models.Float(*rec.Target), Confidence: models.Float(p.Confidence)}, true
}
