package api

import (
	"net/http"
)

// ModelHandler reports the configured artifact and its load state.
type ModelHandler struct {
	deps Dependencies
}

// NewModelHandler creates a new model handler.
func NewModelHandler(deps Dependencies) *ModelHandler {
	return &ModelHandler{deps: deps}
}

// HandleModel handles GET /model requests.
func (h *ModelHandler) HandleModel(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ModelInfo())
}
