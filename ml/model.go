package ml

import "context"

// Predictor is the inference surface consumed by the HTTP layer.
type Predictor interface {
	Predict(ctx context.Context, rec FeatureRecord) (Prediction, error)
	PredictRow(ctx context.Context, row Row) (Prediction, error)
	Info(ctx context.Context) (ModelInfo, error)
}
