package forest_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/turnover/internal/domain/features"
	"github.com/okian/turnover/internal/domain/forest"
	"github.com/okian/turnover/internal/domain/forest/foresttest"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDecode(t *testing.T) {
	Convey("Given a serialized forest", t, func() {
		blobs := []struct {
			name string
			data []byte
		}{
			{"json", foresttest.JSON()},
			{"zstd", foresttest.Zstd()},
			{"gzip", foresttest.Gzip()},
		}

		for _, blob := range blobs {
			Convey("When decoding the "+blob.name+" encoding", func() {
				f, err := forest.Decode(blob.data, forest.WithFeatureNames(features.Names()))

				Convey("Then the structure is preserved", func() {
					So(err, ShouldBeNil)
					So(f.NumTrees(), ShouldEqual, 3)
					So(f.NumFeatures(), ShouldEqual, features.Count)
					So(f.Classes(), ShouldResemble, []int{0, 1})
					So(f.FeatureNames(), ShouldResemble, features.Names())
					So(f.Metadata()["estimator"], ShouldEqual, "fixture")
				})
			})
		}

		Convey("When the payload is not JSON", func() {
			_, err := forest.Decode([]byte("\x80\x04joblib pickle"))
			So(errors.Is(err, forest.ErrInvalidArtifact), ShouldBeTrue)
		})

		Convey("When the payload has unknown fields", func() {
			_, err := forest.Decode([]byte(`{"format":"decision_forest","surprise":true}`))
			So(errors.Is(err, forest.ErrInvalidArtifact), ShouldBeTrue)
		})

		Convey("When the gzip stream is truncated", func() {
			blob := foresttest.Gzip()
			_, err := forest.Decode(blob[:len(blob)/2])
			So(errors.Is(err, forest.ErrInvalidArtifact), ShouldBeTrue)
		})
	})
}

func TestNewValidation(t *testing.T) {
	Convey("Given artifacts with structural faults", t, func() {
		mutate := func(fn func(a *forest.Artifact)) error {
			a := foresttest.Artifact()
			fn(&a)
			_, err := forest.New(a, forest.WithFeatureNames(features.Names()))
			return err
		}

		Convey("Then each fault is reported as ErrInvalidArtifact", func() {
			faults := []func(a *forest.Artifact){
				func(a *forest.Artifact) { a.Format = "joblib" },
				func(a *forest.Artifact) { a.Classes = []int{0} },
				func(a *forest.Artifact) { a.Trees = nil },
				func(a *forest.Artifact) { a.Trees[0].Nodes = nil },
				func(a *forest.Artifact) { a.Trees[0].Nodes[1].Left = 0 },
				func(a *forest.Artifact) { a.Trees[0].Nodes[0].Right = 99 },
				func(a *forest.Artifact) { a.Trees[1].Nodes[0].Feature = 7 },
				func(a *forest.Artifact) { a.Trees[2].Nodes[1].Value = []float64{1} },
				func(a *forest.Artifact) { a.Trees[2].Nodes[1].Value = []float64{0, 0} },
				func(a *forest.Artifact) { a.Trees[2].Nodes[1].Value = []float64{-1, 2} },
				func(a *forest.Artifact) { a.Trees[2].Nodes[1].Value = []float64{math.MaxFloat64, math.MaxFloat64} },
				func(a *forest.Artifact) {
					a.FeatureNames[0], a.FeatureNames[4] = a.FeatureNames[4], a.FeatureNames[0]
				},
			}
			for _, fn := range faults {
				err := mutate(fn)
				So(errors.Is(err, forest.ErrInvalidArtifact), ShouldBeTrue)
			}
		})

		Convey("And a column count mismatch is ErrFeatureCount", func() {
			err := mutate(func(a *forest.Artifact) {
				a.NFeatures = 4
				a.FeatureNames = nil
			})
			So(errors.Is(err, forest.ErrFeatureCount), ShouldBeTrue)
		})

		Convey("And artifacts without names are accepted on count alone", func() {
			err := mutate(func(a *forest.Artifact) { a.FeatureNames = nil })
			So(err, ShouldBeNil)
		})
	})
}

func TestPredict(t *testing.T) {
	Convey("Given the fixture forest", t, func() {
		f := foresttest.Forest()

		Convey("When scoring the default form vector", func() {
			class, proba, err := f.Predict(features.Default().Values())

			Convey("Then it averages the per-tree leaf distributions", func() {
				So(err, ShouldBeNil)
				So(class, ShouldEqual, 0)
				So(proba[0], ShouldAlmostEqual, (0.95+0.8+0.9)/3, 1e-12)
				So(proba[1], ShouldAlmostEqual, (0.05+0.2+0.1)/3, 1e-12)
				So(proba[0]+proba[1], ShouldAlmostEqual, 1.0, 1e-12)
			})
		})

		Convey("When scoring a high-risk vector", func() {
			class, proba, err := f.Predict(foresttest.LeaveVector().Values())

			Convey("Then it predicts the leave class", func() {
				So(err, ShouldBeNil)
				So(class, ShouldEqual, 1)
				So(proba[1], ShouldAlmostEqual, (0.9+0.8+0.5)/3, 1e-12)
			})
		})

		Convey("When scoring the same vector twice", func() {
			x := foresttest.LeaveVector().Values()
			c1, p1, _ := f.Predict(x)
			c2, p2, _ := f.Predict(x)

			Convey("Then the results are identical", func() {
				So(c1, ShouldEqual, c2)
				So(p1, ShouldResemble, p2)
			})
		})

		Convey("When the input width is wrong", func() {
			_, _, err := f.Predict([]float64{0.5, 3})
			So(errors.Is(err, forest.ErrFeatureCount), ShouldBeTrue)
		})

		Convey("When encoding and decoding again", func() {
			blob, err := f.Encode()
			So(err, ShouldBeNil)
			again, err := forest.Decode(blob)
			So(err, ShouldBeNil)

			_, want, _ := f.Predict(features.Default().Values())
			_, got, _ := again.Predict(features.Default().Values())
			So(got, ShouldResemble, want)
		})
	})

	Convey("Given a forest whose only leaf is a tie", t, func() {
		f, err := forest.New(forest.Artifact{
			Format:    forest.Format,
			NFeatures: 1,
			Classes:   []int{0, 1},
			Trees: []forest.Tree{{Nodes: []forest.Node{
				{Feature: -1, Left: -1, Right: -1, Value: []float64{3, 3}},
			}}},
		})
		So(err, ShouldBeNil)

		Convey("Then the first class wins", func() {
			class, proba, err := f.Predict([]float64{42})
			So(err, ShouldBeNil)
			So(class, ShouldEqual, 0)
			So(proba, ShouldResemble, []float64{0.5, 0.5})
		})
	})
}
