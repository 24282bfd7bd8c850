package api

import (
	"net/http"

	"github.com/okian/turnover/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the model is ready to serve.
type ReadinessChecker interface {
	Ready() bool
}

// HealthHandler handles liveness, readiness and metrics requests.
type HealthHandler struct {
	ready   ReadinessChecker
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ready ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		ready:   ready,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// HandleHealth handles GET /healthz. The process is live whether or not
// the model has loaded.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ModelLoaded: h.ready.Ready()})
}

// HandleReady handles GET /readyz: 200 once a model is loaded, 503 before.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if !h.ready.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "model_unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ready", ModelLoaded: true})
}

// HandleMetrics serves the custom Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
