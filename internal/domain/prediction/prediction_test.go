package prediction_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/turnover/internal/domain/prediction"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLabelFor(t *testing.T) {
	Convey("Given classifier classes", t, func() {
		Convey("Then 0 maps to STAY and 1 maps to LEAVE", func() {
			stay, err := prediction.LabelFor(0)
			So(err, ShouldBeNil)
			So(stay, ShouldEqual, prediction.Stay)

			leave, err := prediction.LabelFor(1)
			So(err, ShouldBeNil)
			So(leave, ShouldEqual, prediction.Leave)
			So(leave.Class(), ShouldEqual, 1)
		})

		Convey("And any other class is rejected", func() {
			_, err := prediction.LabelFor(2)
			So(errors.Is(err, prediction.ErrUnknownClass), ShouldBeTrue)
		})
	})
}

func TestNewProbabilities(t *testing.T) {
	Convey("Given a probability pair", t, func() {
		Convey("When it sums to one", func() {
			p, err := prediction.NewProbabilities([2]float64{0.62, 0.38})

			Convey("Then it is accepted unchanged", func() {
				So(err, ShouldBeNil)
				So(p.Stay, ShouldAlmostEqual, 0.62, 1e-12)
				So(p.Leave, ShouldAlmostEqual, 0.38, 1e-12)
			})
		})

		Convey("When it drifts by floating point noise", func() {
			p, err := prediction.NewProbabilities([2]float64{0.3333333333, 0.6666666666})

			Convey("Then it is renormalised", func() {
				So(err, ShouldBeNil)
				So(p.Stay+p.Leave, ShouldAlmostEqual, 1.0, 1e-12)
			})
		})

		Convey("When it does not sum to one", func() {
			_, err := prediction.NewProbabilities([2]float64{0.5, 0.6})
			So(errors.Is(err, prediction.ErrInvalidProbability), ShouldBeTrue)
		})

		Convey("When it holds NaN or negatives", func() {
			_, errNaN := prediction.NewProbabilities([2]float64{math.NaN(), 1})
			_, errNeg := prediction.NewProbabilities([2]float64{-0.5, 1.5})
			So(errors.Is(errNaN, prediction.ErrInvalidProbability), ShouldBeTrue)
			So(errors.Is(errNeg, prediction.ErrInvalidProbability), ShouldBeTrue)
		})
	})
}

func TestResultDisplay(t *testing.T) {
	Convey("Given a LEAVE result", t, func() {
		r, err := prediction.New(1, [2]float64{0.125, 0.875})
		So(err, ShouldBeNil)

		Convey("Then percentages carry one decimal place", func() {
			So(r.Label, ShouldEqual, prediction.Leave)
			So(r.Display(), ShouldResemble, prediction.Display{Stay: "12.5%", Leave: "87.5%"})
			So(r.StayWidth()+r.LeaveWidth(), ShouldAlmostEqual, 100.0, 1e-9)
			So(r.Label.Describe(), ShouldContainSubstring, "LEAVE")
		})
	})

	Convey("Given a certain STAY result", t, func() {
		r, err := prediction.New(0, [2]float64{1, 0})
		So(err, ShouldBeNil)
		So(r.Display(), ShouldResemble, prediction.Display{Stay: "100.0%", Leave: "0.0%"})
	})
}
