package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"horsecolic/ml"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics()
	m.ObservePrediction(ml.Prediction{Label: 1, Survived: true, Probabilities: [2]float64{0.2, 0.8}}, time.Millisecond, false)
	m.ObservePrediction(ml.Prediction{Label: 0, Probabilities: [2]float64{0.9, 0.1}}, time.Millisecond, true)
	m.ObserveFailure(&ml.SchemaError{Column: "pulse", Reason: "column missing"})
	m.ObserveFailure(fmt.Errorf("load: %w", ml.ErrArtifactNotFound))
	m.SetModelLoaded(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues("survived")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues("died")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("schema")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("artifact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelLoaded))
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "schema", FailureReason(ml.ErrSchemaMismatch))
	assert.Equal(t, "artifact", FailureReason(ml.ErrArtifactCorrupt))
	assert.Equal(t, "other", FailureReason(errors.New("boom")))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest(http.MethodPost, "/api/predict", http.StatusOK, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `horsecolic_http_requests_total{method="POST",route="/api/predict",status="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	counts := make(chan int, 4)
	hub.OnClientsChanged = func(n int) { counts <- n }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case n := <-counts:
		require.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("client never registered")
	}

	require.NoError(t, hub.Publish(PredictionEvent, PredictionMessage{PredictionID: "p-1", Label: 1, Survived: true, Confidence: 0.9}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, PredictionEvent, msg.Type)
	assert.NotEmpty(t, msg.ID)

	var payload PredictionMessage
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "p-1", payload.PredictionID)
	assert.True(t, payload.Survived)
}
