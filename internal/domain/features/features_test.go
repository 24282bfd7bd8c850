package features_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/turnover/internal/domain/features"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFieldOrder(t *testing.T) {
	Convey("Given the feature table", t, func() {
		Convey("Then the names follow the training column order", func() {
			So(features.Names(), ShouldResemble, []string{
				"satisfaction_level",
				"time_spend_company",
				"average_monthly_hours",
				"number_project",
				"last_evaluation",
			})
		})

		Convey("And Fields returns a copy", func() {
			fs := features.Fields()
			fs[0].Name = "changed"
			So(features.Names()[0], ShouldEqual, "satisfaction_level")
		})

		Convey("And Lookup resolves names to positions", func() {
			f, idx, ok := features.Lookup("number_project")
			So(ok, ShouldBeTrue)
			So(idx, ShouldEqual, features.NumberProject)
			So(f.Kind, ShouldEqual, features.Integer)

			_, idx, ok = features.Lookup("salary")
			So(ok, ShouldBeFalse)
			So(idx, ShouldEqual, -1)
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given caller supplied values", t, func() {
		Convey("When all values are inside their domains", func() {
			v, err := features.New(0.5, 3, 200, 4, 0.7)

			Convey("Then the vector preserves the model order", func() {
				So(err, ShouldBeNil)
				So(v.Values(), ShouldResemble, []float64{0.5, 3, 200, 4, 0.7})
				So(v.SatisfactionLevel(), ShouldEqual, 0.5)
				So(v.TimeSpendCompany(), ShouldEqual, 3)
				So(v.AverageMonthlyHours(), ShouldEqual, 200)
				So(v.NumberProject(), ShouldEqual, 4)
				So(v.LastEvaluation(), ShouldEqual, 0.7)
			})

			Convey("And mutating Values does not change the vector", func() {
				vals := v.Values()
				vals[0] = 0.99
				So(v.At(features.SatisfactionLevel), ShouldEqual, 0.5)
			})
		})

		Convey("When values sit on the domain boundaries", func() {
			_, errLow := features.New(0.0, 1, 80, 1, 0.0)
			_, errHigh := features.New(1.0, 40, 350, 10, 1.0)

			Convey("Then both ends are accepted", func() {
				So(errLow, ShouldBeNil)
				So(errHigh, ShouldBeNil)
			})
		})

		Convey("When a value leaves its domain", func() {
			cases := []struct {
				name string
				err  error
			}{
				{"satisfaction_level", second(features.New(1.01, 3, 200, 4, 0.7))},
				{"time_spend_company", second(features.New(0.5, 41, 200, 4, 0.7))},
				{"average_monthly_hours", second(features.New(0.5, 3, 79, 4, 0.7))},
				{"number_project", second(features.New(0.5, 3, 200, 0, 0.7))},
				{"last_evaluation", second(features.New(0.5, 3, 200, 4, -0.1))},
			}

			Convey("Then each one is rejected with ErrOutOfDomain", func() {
				for _, c := range cases {
					So(errors.Is(c.err, features.ErrOutOfDomain), ShouldBeTrue)
					So(c.err.Error(), ShouldContainSubstring, c.name)
				}
			})
		})

		Convey("When an integer field carries a fraction", func() {
			_, err := features.FromValues([features.Count]float64{0.5, 3.5, 200, 4, 0.7})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, features.ErrOutOfDomain), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "whole number")
			})
		})

		Convey("When a value is NaN", func() {
			_, err := features.FromValues([features.Count]float64{math.NaN(), 3, 200, 4, 0.7})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, features.ErrOutOfDomain), ShouldBeTrue)
			})
		})
	})
}

func TestClamp(t *testing.T) {
	Convey("Given form input outside the domains", t, func() {
		v := features.Clamp([features.Count]float64{1.7, 0, 400.2, 7.6, math.NaN()})

		Convey("Then every field is forced inside its domain", func() {
			So(v.SatisfactionLevel(), ShouldEqual, 1.0)
			So(v.TimeSpendCompany(), ShouldEqual, 1)
			So(v.AverageMonthlyHours(), ShouldEqual, 350)
			So(v.NumberProject(), ShouldEqual, 8)
			So(v.LastEvaluation(), ShouldEqual, 0.7)
		})

		Convey("And the clamped vector passes strict validation", func() {
			var vals [features.Count]float64
			copy(vals[:], v.Values())
			_, err := features.FromValues(vals)
			So(err, ShouldBeNil)
		})
	})
}

func TestDefault(t *testing.T) {
	Convey("Given the default form state", t, func() {
		v := features.Default()

		Convey("Then it matches the initial form values", func() {
			So(v.Map(), ShouldResemble, map[string]float64{
				"satisfaction_level":    0.5,
				"time_spend_company":    3,
				"average_monthly_hours": 200,
				"number_project":        4,
				"last_evaluation":       0.7,
			})
		})
	})
}

func second(_ features.Vector, err error) error { return err }
