// Package site serves the employee turnover prediction form.
package site

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/turnover/internal/app"
	"github.com/okian/turnover/internal/domain/features"
	"github.com/okian/turnover/internal/domain/prediction"
	"github.com/okian/turnover/pkg/logger"
)

// Error constants
var (
	ErrRender = errors.New("form render failed")
)

const maxFormBody = 16 << 10

// Predictor scores one feature vector. EnsureModel loads the model if it
// is not loaded yet.
type Predictor interface {
	Predict(ctx context.Context, v features.Vector) (prediction.Result, error)
	EnsureModel(ctx context.Context) error
}

// Register attaches the form at / and its assets at /static/ to mux.
func Register(_ context.Context, mux *http.ServeMux, p Predictor, l logger.Logger) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(FS())))
	mux.Handle("/", NewRootHandler(p, l))
}

// RootHandler renders the form and, on submit, the prediction.
type RootHandler struct {
	predictor Predictor
	logger    logger.Logger
}

// NewRootHandler creates a new root handler.
func NewRootHandler(p Predictor, l logger.Logger) *RootHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &RootHandler{predictor: p, logger: l}
}

type fieldView struct {
	Name   string
	Label  string
	Help   string
	Min    string
	Max    string
	Step   string
	Value  string
	Slider bool
}

type resultView struct {
	Label       string
	Description string
	Leave       bool
	Display     prediction.Display
	StayWidth   string
	LeaveWidth  string
}

type pageData struct {
	Fields []fieldView
	Result *resultView
	Error  string
	// Halted drops the form; only the error is shown.
	Halted bool
}

const unavailableMessage = "The prediction model is unavailable right now. Please try again later."

// ServeHTTP handles GET / (empty form) and POST / (form with result).
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.handleOpen(w, r)
	case http.MethodPost:
		h.handleSubmit(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

// handleOpen shows the empty form once the model is available.
func (h *RootHandler) handleOpen(w http.ResponseWriter, r *http.Request) {
	err := h.predictor.EnsureModel(r.Context())
	switch {
	case errors.Is(err, service.ErrModelUnavailable):
		h.logger.Warn(r.Context(), "form opened without model", logger.Error(err))
		h.render(w, r, http.StatusServiceUnavailable, pageData{Error: unavailableMessage, Halted: true})
		return
	case err != nil:
		h.logger.Error(r.Context(), "form model check failed", logger.Error(err))
		h.render(w, r, http.StatusInternalServerError, pageData{Error: "The prediction model could not be loaded.", Halted: true})
		return
	}
	h.render(w, r, http.StatusOK, pageData{Fields: fieldViews(features.Default())})
}

func (h *RootHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, pageData{
			Fields: fieldViews(features.Default()),
			Error:  "The form could not be read. Please try again.",
		})
		return
	}

	v := vectorFromForm(r)
	data := pageData{Fields: fieldViews(v)}

	res, err := h.predictor.Predict(r.Context(), v)
	switch {
	case errors.Is(err, service.ErrModelUnavailable):
		h.logger.Warn(r.Context(), "form prediction without model", logger.Error(err))
		data.Error = unavailableMessage
		h.render(w, r, http.StatusServiceUnavailable, data)
		return
	case err != nil:
		h.logger.Error(r.Context(), "form prediction failed", logger.Error(err))
		data.Error = "The prediction could not be computed."
		h.render(w, r, http.StatusInternalServerError, data)
		return
	}

	data.Result = &resultView{
		Label:       string(res.Label),
		Description: res.Label.Describe(),
		Leave:       res.Label == prediction.Leave,
		Display:     res.Display(),
		StayWidth:   strconv.FormatFloat(res.StayWidth(), 'f', 1, 64),
		LeaveWidth:  strconv.FormatFloat(res.LeaveWidth(), 'f', 1, 64),
	}
	h.render(w, r, http.StatusOK, data)
}

func (h *RootHandler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	var buf strings.Builder
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.logger.Error(r.Context(), "render form", logger.Error(errors.Join(ErrRender, err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

// vectorFromForm reads every field and clamps it into its domain. Missing
// or unparsable values fall back to the field default.
func vectorFromForm(r *http.Request) features.Vector {
	var values [features.Count]float64
	for i, f := range features.Fields() {
		v, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue(f.Name)), 64)
		if err != nil {
			values[i] = f.Default
			continue
		}
		values[i] = v
	}
	return features.Clamp(values)
}

func fieldViews(v features.Vector) []fieldView {
	fs := features.Fields()
	out := make([]fieldView, len(fs))
	for i, f := range fs {
		out[i] = fieldView{
			Name:   f.Name,
			Label:  f.Label,
			Help:   f.Help,
			Min:    formatNumber(f.Min),
			Max:    formatNumber(f.Max),
			Step:   formatNumber(f.Step),
			Value:  formatNumber(v.At(i)),
			Slider: f.Kind == features.Float,
		}
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
