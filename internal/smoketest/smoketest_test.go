package smoketest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/turnover/internal/adapters/http/api"
	"github.com/okian/turnover/internal/adapters/registry"
	service "github.com/okian/turnover/internal/app"
	"github.com/okian/turnover/internal/domain/features"
	"github.com/okian/turnover/internal/domain/forest/foresttest"
	"github.com/okian/turnover/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fixtureSource struct{ data []byte }

func (f fixtureSource) Name() string { return "fixture" }

func (f fixtureSource) Fetch(context.Context, registry.Ref) ([]byte, error) {
	if f.data == nil {
		return nil, registry.ErrNotFound
	}
	return f.data, nil
}

func newTestServer(src registry.Source) *httptest.Server {
	p := service.NewProvider(src, registry.Ref{RepoID: "acme/churn", Filename: "forest.json"})
	svc := service.New(p)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(mux)
	return httptest.NewServer(mux)
}

func testConfig(url string) *Config {
	return &Config{
		BaseURL:     url,
		NumRequests: 60,
		Workers:     4,
		Timeout:     5 * time.Second,
		Seed:        7,
		Repeat:      10,
	}
}

func TestRun(t *testing.T) {
	Convey("Given a service with the fixture forest", t, func() {
		srv := newTestServer(fixtureSource{data: foresttest.Zstd()})
		defer srv.Close()

		Convey("When the smoke test runs", func() {
			cfg := testConfig(srv.URL)
			cfg.OutputFile = filepath.Join(t.TempDir(), "out", "results.json")
			stats, err := Run(context.Background(), cfg)

			Convey("Then every check passes", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, 60)
				So(stats.Successful, ShouldEqual, 60)
				So(stats.Stay+stats.Leave, ShouldEqual, 60)
				So(stats.Repeated, ShouldEqual, 10)
				So(stats.Violations, ShouldEqual, 0)
			})

			Convey("And the results are written", func() {
				data, err := os.ReadFile(cfg.OutputFile)
				So(err, ShouldBeNil)
				var saved []Result
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(saved, ShouldHaveLength, 60)
				So(saved[0].Response.Label, ShouldEqual, "STAY")
			})
		})
	})

	Convey("Given a service whose model cannot be loaded", t, func() {
		srv := newTestServer(fixtureSource{})
		defer srv.Close()

		Convey("Then the run stops at the readiness check", func() {
			stats, err := Run(context.Background(), testConfig(srv.URL))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "not ready")
			So(stats.Submitted, ShouldEqual, 0)
		})
	})
}

func TestGenerateRequests(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		cfg := &Config{NumRequests: 200, Seed: 99}

		Convey("Then it is reproducible", func() {
			a := generateRequests(context.Background(), cfg, &Stats{})
			b := generateRequests(context.Background(), cfg, &Stats{})
			So(a, ShouldResemble, b)
		})

		Convey("Then the first requests are the default and both corners", func() {
			reqs := generateRequests(context.Background(), cfg, &Stats{})
			So(reqs[0], ShouldResemble, fromVector(features.Default()))
			So(reqs[1], ShouldResemble, Request{0, 1, 80, 1, 0})
			So(reqs[2], ShouldResemble, Request{1, 40, 350, 10, 1})
		})

		Convey("Then every request lies inside the feature domains", func() {
			for _, r := range generateRequests(context.Background(), cfg, &Stats{}) {
				_, err := features.New(r.SatisfactionLevel, r.TimeSpendCompany, r.AverageMonthlyHours, r.NumberProject, r.LastEvaluation)
				So(err, ShouldBeNil)
			}
		})
	})
}

func TestCheckResponse(t *testing.T) {
	Convey("Given a consistent response", t, func() {
		r := &Response{
			Label:         "LEAVE",
			Class:         1,
			Probabilities: Probabilities{Stay: 0.267, Leave: 0.733},
			Display:       Display{Stay: "26.7%", Leave: "73.3%"},
		}
		So(checkResponse(r), ShouldBeNil)

		Convey("When the class disagrees with the label", func() {
			r.Class = 0
			So(checkResponse(r), ShouldNotBeNil)
		})

		Convey("When the label disagrees with the probabilities", func() {
			r.Label, r.Class = "STAY", 0
			So(checkResponse(r), ShouldNotBeNil)
		})

		Convey("When the probabilities do not sum to one", func() {
			r.Probabilities.Stay = 0.3
			So(checkResponse(r), ShouldNotBeNil)
		})

		Convey("When the display is stale", func() {
			r.Display.Leave = "73.0%"
			So(checkResponse(r), ShouldNotBeNil)
		})

		Convey("When the label is unknown", func() {
			r.Label = "MAYBE"
			So(checkResponse(r), ShouldNotBeNil)
		})
	})
}

func TestVerifyValidation(t *testing.T) {
	Convey("Given a server that accepts anything", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		Convey("Then validation reports every accepted body", func() {
			stats := &Stats{}
			err := verifyValidation(context.Background(), testConfig(srv.URL), stats)
			So(errors.Is(err, ErrVerification), ShouldBeTrue)
			So(stats.Violations, ShouldEqual, len(invalidBodies))
		})
	})
}
