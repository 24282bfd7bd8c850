package site

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	service "github.com/okian/turnover/internal/app"
	"github.com/okian/turnover/internal/domain/features"
	"github.com/okian/turnover/internal/domain/prediction"
	. "github.com/smartystreets/goconvey/convey"
)

type stubPredictor struct {
	err     error
	loadErr error
	got     []features.Vector
	pair    [2]float64
	checks  int
}

func (s *stubPredictor) EnsureModel(context.Context) error {
	s.checks++
	return s.loadErr
}

func (s *stubPredictor) Predict(_ context.Context, v features.Vector) (prediction.Result, error) {
	s.got = append(s.got, v)
	if s.err != nil {
		return prediction.Result{}, s.err
	}
	class := prediction.ClassStay
	if s.pair[1] > s.pair[0] {
		class = prediction.ClassLeave
	}
	return prediction.New(class, s.pair)
}

func post(mux http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func get(mux http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSiteHandler(t *testing.T) {
	Convey("Given the form site", t, func() {
		p := &stubPredictor{pair: [2]float64{0.62, 0.38}}
		mux := http.NewServeMux()
		Register(context.Background(), mux, p, nil)

		Convey("When the form is opened", func() {
			w := get(mux, "/")
			body := w.Body.String()

			Convey("Then every field is rendered with its default", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(body, ShouldContainSubstring, `name="satisfaction_level"`)
				So(body, ShouldContainSubstring, `value="200"`)
				So(body, ShouldContainSubstring, `value="0.7"`)
				So(strings.Count(body, `type="range"`), ShouldEqual, 2)
				So(body, ShouldNotContainSubstring, `class="result`)
			})

			Convey("And nothing is predicted", func() {
				So(p.got, ShouldBeEmpty)
				So(p.checks, ShouldEqual, 1)
			})
		})

		Convey("When the form is opened while the model is unavailable", func() {
			p.loadErr = fmt.Errorf("%w: hub down", service.ErrModelUnavailable)
			w := get(mux, "/")
			body := w.Body.String()

			Convey("Then only the error box is shown", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(body, ShouldContainSubstring, "model is unavailable")
				So(body, ShouldNotContainSubstring, "<form")
				So(body, ShouldNotContainSubstring, `class="result`)
				So(p.got, ShouldBeEmpty)
			})
		})

		Convey("When the model check fails otherwise", func() {
			p.loadErr = fmt.Errorf("boom")
			w := get(mux, "/")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldNotContainSubstring, "<form")
		})

		Convey("When the form is submitted", func() {
			w := post(mux, url.Values{
				"satisfaction_level":    {"0.5"},
				"time_spend_company":    {"3"},
				"average_monthly_hours": {"200"},
				"number_project":        {"4"},
				"last_evaluation":       {"0.7"},
			})
			body := w.Body.String()

			Convey("Then the result is rendered with both percentages", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(body, ShouldContainSubstring, "STAY")
				So(body, ShouldContainSubstring, "Employee is likely to STAY with the company")
				So(body, ShouldContainSubstring, "62.0%")
				So(body, ShouldContainSubstring, "38.0%")
			})

			Convey("And exactly one prediction is made", func() {
				So(p.got, ShouldHaveLength, 1)
				So(p.got[0].Values(), ShouldResemble, []float64{0.5, 3, 200, 4, 0.7})
			})
		})

		Convey("When submitted values leave their domains", func() {
			post(mux, url.Values{
				"satisfaction_level":    {"3"},
				"time_spend_company":    {"0"},
				"average_monthly_hours": {"1000"},
				"number_project":        {"4.6"},
				"last_evaluation":       {"abc"},
			})

			Convey("Then they are clamped before prediction", func() {
				So(p.got, ShouldHaveLength, 1)
				So(p.got[0].Values(), ShouldResemble, []float64{1, 1, 350, 5, 0.7})
			})
		})

		Convey("When the model predicts leaving", func() {
			p.pair = [2]float64{0.2, 0.8}
			body := post(mux, url.Values{}).Body.String()
			So(body, ShouldContainSubstring, "LEAVE")
			So(body, ShouldContainSubstring, `class="result leave"`)
		})

		Convey("When the model is unavailable", func() {
			p.err = fmt.Errorf("%w: hub down", service.ErrModelUnavailable)
			w := post(mux, url.Values{})
			body := w.Body.String()

			Convey("Then an error box is shown and no result is fabricated", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(body, ShouldContainSubstring, "model is unavailable")
				So(body, ShouldNotContainSubstring, `class="result`)
			})
		})

		Convey("When the path is unknown", func() {
			So(get(mux, "/some-asset").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the stylesheet is requested", func() {
			w := get(mux, "/static/style.css")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/css")
		})

		Convey("When the method is unsupported", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/", nil))
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSiteHandlerWithNilMux(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		Convey("Then registering panics", func() {
			So(func() {
				Register(context.Background(), nil, &stubPredictor{}, nil)
			}, ShouldPanic)
		})
	})
}
