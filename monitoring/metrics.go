package monitoring

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"horsecolic/ml"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private Prometheus registry so tests and multiple servers
// in one process never collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	predictions     *prometheus.CounterVec
	cacheHits       prometheus.Counter
	failures        *prometheus.CounterVec
	latency         prometheus.Histogram
	survivalProb    prometheus.Histogram
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	modelLoaded     prometheus.Gauge
	wsClients       prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "horsecolic",
			Name:      "predictions_total",
			Help:      "Predictions served, by verdict.",
		}, []string{"verdict"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "horsecolic",
			Name:      "prediction_cache_hits_total",
			Help:      "Predictions answered from the memo cache.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "horsecolic",
			Name:      "prediction_failures_total",
			Help:      "Failed predictions, by reason.",
		}, []string{"reason"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "horsecolic",
			Name:      "prediction_duration_seconds",
			Help:      "Time spent validating, transforming and walking the tree.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		survivalProb: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "horsecolic",
			Name:      "survival_probability",
			Help:      "Distribution of predicted survival probability.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "horsecolic",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "horsecolic",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		modelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "horsecolic",
			Name:      "model_loaded",
			Help:      "1 when the pipeline artifact is loaded.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "horsecolic",
			Name:      "websocket_clients",
			Help:      "Connected prediction feed clients.",
		}),
	}
	m.registry.MustRegister(
		m.predictions, m.cacheHits, m.failures, m.latency, m.survivalProb,
		m.requests, m.requestDuration, m.modelLoaded, m.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePrediction implements ml.Observer.
func (m *Metrics) ObservePrediction(pred ml.Prediction, elapsed time.Duration, cached bool) {
	verdict := "died"
	if pred.Survived {
		verdict = "survived"
	}
	m.predictions.WithLabelValues(verdict).Inc()
	if cached {
		m.cacheHits.Inc()
	}
	m.latency.Observe(elapsed.Seconds())
	m.survivalProb.Observe(pred.Probabilities[1])
}

// ObserveFailure implements ml.Observer.
func (m *Metrics) ObserveFailure(err error) {
	m.failures.WithLabelValues(FailureReason(err)).Inc()
}

// FailureReason buckets a prediction error for the failures counter.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ml.ErrArtifactNotFound), errors.Is(err, ml.ErrArtifactCorrupt):
		return "artifact"
	case errors.Is(err, ml.ErrSchemaMismatch):
		return "schema"
	case errors.Is(err, ml.ErrNotFitted):
		return "not_fitted"
	default:
		return "other"
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) SetModelLoaded(loaded bool) {
	if loaded {
		m.modelLoaded.Set(1)
		return
	}
	m.modelLoaded.Set(0)
}

func (m *Metrics) SetClients(n int) {
	m.wsClients.Set(float64(n))
}
