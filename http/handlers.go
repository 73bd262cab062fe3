package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"horsecolic/db"
	"horsecolic/ml"
	"horsecolic/monitoring"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/text/message"
)

// LogStore is the persistence the handlers need. *db.Store implements it.
type LogStore interface {
	SavePrediction(ctx context.Context, entry db.PredictionLog) error
	RecentPredictions(ctx context.Context, limit int) ([]db.PredictionLog, error)
	LoadTrainingLog(ctx context.Context) ([]db.TrainingLog, error)
}

// Deps are the collaborators of the HTTP layer. Only Predictor is required.
type Deps struct {
	Predictor ml.Predictor
	Store     LogStore
	Hub       *monitoring.Hub
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

type handlers struct {
	Deps
	routes map[string]bool
}

func newHandlers(deps Deps) *handlers {
	return &handlers{Deps: deps, routes: make(map[string]bool)}
}

func (h *handlers) handle(mux *http.ServeMux, pattern, path string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, fn)
	h.routes[path] = true
}

func (h *handlers) register(mux *http.ServeMux) {
	h.handle(mux, "GET /api/health", "/api/health", handleHealth)
	h.handle(mux, "GET /api/ready", "/api/ready", h.handleReady)
	h.handle(mux, "GET /api/schema", "/api/schema", handleSchema)
	h.handle(mux, "GET /api/model", "/api/model", h.handleModel)
	h.handle(mux, "POST /api/predict", "/api/predict", h.handlePredict)
	h.handle(mux, "GET /api/predictions", "/api/predictions", h.handlePredictions)
	h.handle(mux, "GET /api/training", "/api/training", h.handleTraining)
	h.handle(mux, "GET /{$}", "/", h.handleForm)
	h.handle(mux, "POST /{$}", "/", h.handleFormSubmit)
	if h.Hub != nil {
		h.handle(mux, "GET /api/ws/predictions", "/api/ws/predictions", h.Hub.ServeWS)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics.Handler())
		h.routes["/metrics"] = true
	}
}

// route bounds the metrics label to registered paths.
func (h *handlers) route(r *http.Request) string {
	if h.routes[r.URL.Path] {
		return r.URL.Path
	}
	return "other"
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type predictionResponse struct {
	ID string `json:"id"`
	ml.Prediction
	Verdict   string `json:"verdict"`
	Language  string `json:"language"`
	RequestID string `json:"request_id,omitempty"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	info, err := h.Predictor.Info(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready", "schema": info.SchemaFingerprint})
}

func handleSchema(w http.ResponseWriter, r *http.Request) {
	schema := ml.CurrentSchema()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"columns":     schema.Columns,
		"numerical":   schema.Numerical,
		"categorical": schema.Categorical,
		"fingerprint": schema.Fingerprint(),
		"codes":       ml.CodeBook,
	})
}

func (h *handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	info, err := h.Predictor.Info(r.Context())
	if err != nil {
		h.respondPredictError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	var rec ml.FeatureRecord
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&rec); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Details: []string{err.Error()}})
		return
	}

	pred, err := h.Predictor.Predict(r.Context(), rec)
	if err != nil {
		h.respondPredictError(w, r, err)
		return
	}

	tag := requestLanguage(r)
	entry := h.record(r.Context(), "api", rec, pred)
	respondJSON(w, http.StatusOK, predictionResponse{
		ID:         entry.ID,
		Prediction: pred,
		Verdict:    verdict(message.NewPrinter(tag), pred.Survived),
		Language:   tag.String(),
		RequestID:  GetRequestID(r.Context()),
	})
}

// record persists and broadcasts a served prediction. Failures are logged only.
func (h *handlers) record(ctx context.Context, source string, rec ml.FeatureRecord, pred ml.Prediction) db.PredictionLog {
	entry := db.NewPredictionLog(source, rec, pred)
	if h.Store != nil {
		if err := h.Store.SavePrediction(ctx, entry); err != nil {
			h.Logger.Warn("prediction log write failed", zap.String("prediction_id", entry.ID), zap.Error(err))
		}
	}
	if h.Hub != nil {
		err := h.Hub.Publish(monitoring.PredictionEvent, monitoring.PredictionMessage{
			PredictionID:  entry.ID,
			Source:        source,
			Label:         pred.Label,
			Survived:      pred.Survived,
			Probabilities: pred.Probabilities,
			Confidence:    pred.Confidence,
		})
		if err != nil {
			h.Logger.Debug("prediction event dropped", zap.Error(err))
		}
	}
	return entry
}

func (h *handlers) respondPredictError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("prediction failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
	}
	resp := errorResponse{Error: err.Error()}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		resp.Error = "record failed validation"
		for _, e := range merr.Errors {
			resp.Details = append(resp.Details, e.Error())
		}
	}
	respondJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ml.ErrArtifactNotFound), errors.Is(err, ml.ErrArtifactCorrupt), errors.Is(err, ml.ErrNotFitted):
		return http.StatusServiceUnavailable
	case errors.Is(err, ml.ErrSchemaMismatch):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "prediction log disabled"})
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		l, err := cast.ToIntE(raw)
		if err != nil || l <= 0 {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(l, 500)
	}
	logs, err := h.Store.RecentPredictions(r.Context(), limit)
	if err != nil {
		h.Logger.Error("read prediction log", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read prediction log"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"count": len(logs), "predictions": logs})
}

func (h *handlers) handleTraining(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "training log disabled"})
		return
	}
	logs, err := h.Store.LoadTrainingLog(r.Context())
	if err != nil {
		h.Logger.Error("read training log", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read training log"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"count": len(logs), "runs": logs})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
