package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	service "github.com/okian/turnover/internal/app"
	"github.com/okian/turnover/internal/domain/features"
	"github.com/okian/turnover/internal/domain/prediction"
	"github.com/okian/turnover/pkg/logger"
)

const maxPredictBody = 64 << 10

// predictRequest mirrors the OpenAPI schema for POST /predict. Pointers
// tell a missing field apart from a zero value.
type predictRequest struct {
	SatisfactionLevel   *float64 `json:"satisfaction_level"`
	TimeSpendCompany    *float64 `json:"time_spend_company"`
	AverageMonthlyHours *float64 `json:"average_monthly_hours"`
	NumberProject       *float64 `json:"number_project"`
	LastEvaluation      *float64 `json:"last_evaluation"`
}

func (p predictRequest) vector() (features.Vector, error) {
	fields := [features.Count]*float64{
		features.SatisfactionLevel:   p.SatisfactionLevel,
		features.TimeSpendCompany:    p.TimeSpendCompany,
		features.AverageMonthlyHours: p.AverageMonthlyHours,
		features.NumberProject:       p.NumberProject,
		features.LastEvaluation:      p.LastEvaluation,
	}
	names := features.Names()
	var values [features.Count]float64
	for i, f := range fields {
		if f == nil {
			return features.Vector{}, fmt.Errorf("missing %s", names[i])
		}
		values[i] = *f
	}
	return features.FromValues(values)
}

type modelRef struct {
	Registry string `json:"registry"`
	RepoID   string `json:"repo_id"`
	Filename string `json:"filename"`
	Revision string `json:"revision"`
}

type predictResponse struct {
	ID            string                   `json:"id"`
	Label         prediction.Label         `json:"label"`
	Class         int                      `json:"class"`
	Description   string                   `json:"description"`
	Probabilities prediction.Probabilities `json:"probabilities"`
	Display       prediction.Display       `json:"display"`
	Features      map[string]float64       `json:"features"`
	Model         modelRef                 `json:"model"`
}

// PredictHandler handles prediction requests.
type PredictHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps Dependencies, l logger.Logger) *PredictHandler {
	return &PredictHandler{deps: deps, logger: l}
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req predictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPredictBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: trailing data after request body", ErrBadRequest))
		return
	}
	v, err := req.vector()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	id := uuid.NewString()
	res, err := h.deps.Predict(r.Context(), v)
	if err != nil {
		h.logger.Warn(r.Context(), "prediction failed", logger.String("id", id), logger.Error(err))
		if errors.Is(err, service.ErrModelUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "model_unavailable", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}

	info := h.deps.ModelInfo()
	h.logger.Info(r.Context(), "prediction served",
		logger.String("id", id),
		logger.String("label", string(res.Label)),
		logger.Float64("leave", res.Probabilities.Leave),
	)
	writeJSON(w, http.StatusOK, predictResponse{
		ID:            id,
		Label:         res.Label,
		Class:         res.Label.Class(),
		Description:   res.Label.Describe(),
		Probabilities: res.Probabilities,
		Display:       res.Display(),
		Features:      v.Map(),
		Model: modelRef{
			Registry: info.Registry,
			RepoID:   info.RepoID,
			Filename: info.Filename,
			Revision: info.Revision,
		},
	})
}
