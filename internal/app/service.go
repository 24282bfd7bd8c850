// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/turnover/internal/domain/features"
	"github.com/okian/turnover/internal/domain/prediction"
	"github.com/okian/turnover/pkg/logger"
	"github.com/okian/turnover/pkg/metrics"
)

const defaultRequestLoadTimeout = 5 * time.Second

// ModelInfo describes the configured artifact and its load state.
type ModelInfo struct {
	Registry  string     `json:"registry"`
	RepoID    string     `json:"repo_id"`
	Filename  string     `json:"filename"`
	Revision  string     `json:"revision"`
	Loaded    bool       `json:"loaded"`
	LoadedAt  *time.Time `json:"loaded_at,omitempty"`
	Trees     int        `json:"trees,omitempty"`
	Features  []string   `json:"features"`
	Bytes     int        `json:"bytes,omitempty"`
	Attempts  int64      `json:"load_attempts"`
	LastError string     `json:"last_error,omitempty"`
}

// Service implements the API dependencies for the prediction system.
type Service struct {
	mu sync.RWMutex

	provider    *Provider
	eagerLoad   bool
	loadTimeout time.Duration

	// State
	started   bool
	startedAt time.Time

	predictions atomic.Int64
	stays       atomic.Int64
	leaves      atomic.Int64
	failures    atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEagerLoad makes Start load the model instead of waiting for the
// first prediction.
func WithEagerLoad(eager bool) Option {
	return func(s *Service) {
		s.eagerLoad = eager
	}
}

// WithRequestLoadTimeout bounds how long a request waits for a model that
// is still loading before it gets ErrModelUnavailable. Zero waits as long
// as the request context allows.
func WithRequestLoadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.loadTimeout = d
		}
	}
}

// New constructs a Service that predicts with the model served by p.
func New(p *Provider, opts ...Option) *Service {
	s := &Service{
		provider:    p,
		eagerLoad:   true,
		loadTimeout: defaultRequestLoadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start marks the service as running and, when eager loading is on, tries
// to load the model. A failed load is logged and does not stop the
// service; predictions report ErrModelUnavailable until a load succeeds.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.provider == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no model provider", ErrModelUnavailable)
	}
	s.started = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info(ctx, "prediction service started",
		logger.String("artifact", s.provider.Ref().String()),
		logger.String("registry", s.provider.SourceName()),
		logger.Bool("eagerLoad", s.eagerLoad),
	)

	if s.eagerLoad {
		if err := s.Warm(ctx); err != nil {
			s.logger.Warn(ctx, "model not loaded at start-up; will retry on demand", logger.Error(err))
		}
	}
	return nil
}

// Stop marks the service as stopped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "prediction service stopped",
		logger.Int64("predictions", s.predictions.Load()),
	)
}

// Predict scores one feature vector. It returns an error wrapping
// ErrModelUnavailable when the model cannot be loaded.
func (s *Service) Predict(ctx context.Context, v features.Vector) (prediction.Result, error) {
	m, err := s.requestModel(ctx)
	if err != nil {
		s.failures.Add(1)
		metrics.RecordPredictionError("model_unavailable")
		return prediction.Result{}, err
	}

	start := time.Now()
	class, proba, err := m.Predict(v.Values())
	if err != nil {
		s.failures.Add(1)
		metrics.RecordPredictionError("evaluate")
		return prediction.Result{}, fmt.Errorf("evaluate: %w", err)
	}
	res, err := prediction.New(class, proba)
	if err != nil {
		s.failures.Add(1)
		metrics.RecordPredictionError("result")
		return prediction.Result{}, fmt.Errorf("evaluate: %w", err)
	}
	latency := time.Since(start)

	s.predictions.Add(1)
	if res.Label == prediction.Leave {
		s.leaves.Add(1)
	} else {
		s.stays.Add(1)
	}
	metrics.RecordPrediction(string(res.Label), float64(latency.Microseconds())/1000)
	s.log().Debug(ctx, "prediction",
		logger.Any("features", v.Map()),
		logger.String("label", string(res.Label)),
		logger.Float64("stay", res.Probabilities.Stay),
		logger.Float64("leave", res.Probabilities.Leave),
	)
	return res, nil
}

// EnsureModel reports ErrModelUnavailable unless a model is loaded or can
// be loaded within the request load timeout.
func (s *Service) EnsureModel(ctx context.Context) error {
	_, err := s.requestModel(ctx)
	return err
}

func (s *Service) requestModel(ctx context.Context) (*Model, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no model provider", ErrModelUnavailable)
	}
	if s.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()
	}
	return s.provider.Load(ctx)
}

// Warm loads the model if it is not loaded yet, waiting for as long as ctx
// and the fetch timeout allow.
func (s *Service) Warm(ctx context.Context) error {
	if s.provider == nil {
		return fmt.Errorf("%w: no model provider", ErrModelUnavailable)
	}
	_, err := s.provider.Load(ctx)
	return err
}

// Ready reports whether a model is loaded.
func (s *Service) Ready() bool {
	_, ok := s.provider.Loaded()
	return ok
}

// ModelInfo describes the artifact the service predicts with.
func (s *Service) ModelInfo() ModelInfo {
	ref := s.provider.Ref()
	info := ModelInfo{
		Registry:  s.provider.SourceName(),
		RepoID:    ref.RepoID,
		Filename:  ref.Filename,
		Revision:  ref.Rev(),
		Features:  features.Names(),
		Attempts:  s.provider.Attempts(),
		LastError: s.provider.LastError(),
	}
	if m, ok := s.provider.Loaded(); ok {
		at := m.LoadedAt()
		info.Loaded = true
		info.LoadedAt = &at
		info.Trees = m.NumTrees()
		info.Bytes = m.Size()
	}
	return info
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"modelLoaded":  s.Ready(),
		"loadAttempts": s.provider.Attempts(),
		"predictions":  s.predictions.Load(),
		"stay":         s.stays.Load(),
		"leave":        s.leaves.Load(),
		"failures":     s.failures.Load(),
	}
	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	}
	return stats
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return logger.Nop()
	}
	return s.logger
}
