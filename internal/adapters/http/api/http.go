// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	service "github.com/okian/turnover/internal/app"
	"github.com/okian/turnover/internal/domain/features"
	"github.com/okian/turnover/internal/domain/prediction"
	"github.com/okian/turnover/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Predict scores one validated feature vector.
	Predict(ctx context.Context, v features.Vector) (prediction.Result, error)

	// ModelInfo and Ready expose the model load state.
	ModelInfo() service.ModelInfo
	Ready() bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by request handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the prediction API.
type Server struct {
	logger logger.Logger

	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	predictHandler   *PredictHandler
	modelHandler     *ModelHandler
	dashboardHandler *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(statsProvider)
	s.predictHandler = NewPredictHandler(deps, s.logger)
	s.modelHandler = NewModelHandler(deps)
	s.dashboardHandler = newdashboardHandler()
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/model", MetricsMiddleware(s.modelHandler.HandleModel, "model"))
	mux.HandleFunc("/predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
}
