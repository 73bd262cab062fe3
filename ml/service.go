package ml

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Observer receives one callback per served prediction.
type Observer interface {
	ObservePrediction(pred Prediction, elapsed time.Duration, cached bool)
	ObserveFailure(err error)
}

type ServiceOption func(*Service)

func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCacheSize memoizes the last n distinct rows. Zero disables the cache.
func WithCacheSize(n int) ServiceOption {
	return func(s *Service) { s.cacheSize = n }
}

func WithObserver(o Observer) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// Service is the inference side: it loads the pipeline at most once and
// serves predictions concurrently. A failed load is permanent for the
// lifetime of the service.
type Service struct {
	path      string
	logger    *zap.Logger
	cacheSize int
	cache     *lru.Cache[string, Prediction]
	observer  Observer
	load      func() (*Pipeline, error)
}

// NewService returns a service that loads the artifact at path on first use.
func NewService(path string, opts ...ServiceOption) (*Service, error) {
	s := &Service{path: path}
	s.load = sync.OnceValues(func() (*Pipeline, error) {
		start := time.Now()
		p, err := LoadModel(path)
		if err != nil {
			s.logger.Error("pipeline load failed", zap.String("path", path), zap.Error(err))
			return nil, err
		}
		s.logger.Info("pipeline loaded",
			zap.String("path", path),
			zap.String("schema", p.Schema.Fingerprint()),
			zap.Int("tree_nodes", len(p.Tree.Nodes)),
			zap.Int("encoded_width", p.Preprocessor.Width()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return p, nil
	})
	if err := s.apply(opts); err != nil {
		return nil, err
	}
	return s, nil
}

// NewServiceFromPipeline serves an already fitted pipeline.
func NewServiceFromPipeline(p *Pipeline, opts ...ServiceOption) (*Service, error) {
	s := &Service{load: func() (*Pipeline, error) { return p, nil }}
	if err := s.apply(opts); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) apply(opts []ServiceOption) error {
	s.logger = zap.NewNop()
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize > 0 {
		cache, err := lru.New[string, Prediction](s.cacheSize)
		if err != nil {
			return err
		}
		s.cache = cache
	}
	return nil
}

// Load forces the pipeline load and reports its outcome.
func (s *Service) Load(ctx context.Context) (*Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load()
}

// Ready reports whether the pipeline is loaded and usable.
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.Load(ctx)
	return err
}

// Predict validates a record and predicts its outcome.
func (s *Service) Predict(ctx context.Context, rec FeatureRecord) (Prediction, error) {
	if err := ValidateRecord(rec); err != nil {
		s.fail(err)
		return Prediction{}, err
	}
	return s.PredictRow(ctx, rec.Row())
}

// PredictRow predicts from a raw row carrying exactly the schema columns.
func (s *Service) PredictRow(ctx context.Context, row Row) (Prediction, error) {
	start := time.Now()
	p, err := s.Load(ctx)
	if err != nil {
		s.fail(err)
		return Prediction{}, err
	}
	if err := CheckRow(row, p.Schema.Columns); err != nil {
		s.fail(err)
		return Prediction{}, err
	}

	var key string
	if s.cache != nil {
		key = rowKey(row, p.Schema.Columns)
		if pred, ok := s.cache.Get(key); ok {
			s.observe(pred, time.Since(start), true)
			return pred, nil
		}
	}

	pred, err := p.Predict(row)
	if err != nil {
		s.fail(err)
		return Prediction{}, err
	}
	if s.cache != nil {
		s.cache.Add(key, pred)
	}
	s.observe(pred, time.Since(start), false)
	return pred, nil
}

func (s *Service) Info(ctx context.Context) (ModelInfo, error) {
	p, err := s.Load(ctx)
	if err != nil {
		return ModelInfo{}, err
	}
	return p.Info(), nil
}

func (s *Service) observe(pred Prediction, elapsed time.Duration, cached bool) {
	if s.observer != nil {
		s.observer.ObservePrediction(pred, elapsed, cached)
	}
}

func (s *Service) fail(err error) {
	if s.observer != nil {
		s.observer.ObserveFailure(err)
	}
}

// rowKey encodes row values in column order; all NaNs share one spelling.
func rowKey(row Row, columns []string) string {
	var b strings.Builder
	for i, name := range columns {
		if i > 0 {
			b.WriteByte('|')
		}
		v := row[name]
		if math.IsNaN(v) {
			b.WriteString("NaN")
			continue
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}
