// Package prediction holds the outcome of a single turnover inference.
package prediction

import (
	"fmt"
	"math"
)

// sumTolerance bounds how far a probability pair may drift from 1 before
// it is rejected rather than renormalised.
const sumTolerance = 1e-6

// Label is the human-facing class of a prediction.
type Label string

const (
	Stay  Label = "STAY"
	Leave Label = "LEAVE"
)

// Class indices as emitted by the classifier.
const (
	ClassStay  = 0
	ClassLeave = 1
)

// LabelFor maps a classifier class to its Label.
func LabelFor(class int) (Label, error) {
	switch class {
	case ClassStay:
		return Stay, nil
	case ClassLeave:
		return Leave, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownClass, class)
	}
}

// Class returns the classifier index of l.
func (l Label) Class() int {
	if l == Leave {
		return ClassLeave
	}
	return ClassStay
}

// Describe is the sentence shown under the label.
func (l Label) Describe() string {
	if l == Leave {
		return "Employee is likely to LEAVE the company"
	}
	return "Employee is likely to STAY with the company"
}

// Probabilities is the two-class distribution, one entry per label.
type Probabilities struct {
	Stay  float64 `json:"stay"`
	Leave float64 `json:"leave"`
}

// NewProbabilities validates a [P(stay), P(leave)] pair and renormalises
// away floating point drift.
func NewProbabilities(pair [2]float64) (Probabilities, error) {
	s, l := pair[ClassStay], pair[ClassLeave]
	if math.IsNaN(s) || math.IsNaN(l) || s < 0 || l < 0 {
		return Probabilities{}, fmt.Errorf("%w: %v", ErrInvalidProbability, pair)
	}
	sum := s + l
	if math.Abs(sum-1) > sumTolerance {
		return Probabilities{}, fmt.Errorf("%w: %v sums to %v", ErrInvalidProbability, pair, sum)
	}
	return Probabilities{Stay: s / sum, Leave: l / sum}, nil
}

// Percent formats p as a percentage with one decimal place.
func Percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// Display is the formatted view of a probability pair.
type Display struct {
	Stay  string `json:"stay"`
	Leave string `json:"leave"`
}

// Result is a single inference outcome. It is produced once per feature
// vector and is not retained.
type Result struct {
	Label         Label
	Probabilities Probabilities
}

// New assembles a Result from raw classifier output.
func New(class int, pair [2]float64) (Result, error) {
	label, err := LabelFor(class)
	if err != nil {
		return Result{}, err
	}
	probs, err := NewProbabilities(pair)
	if err != nil {
		return Result{}, err
	}
	return Result{Label: label, Probabilities: probs}, nil
}

// Display returns both probabilities formatted for humans.
func (r Result) Display() Display {
	return Display{
		Stay:  Percent(r.Probabilities.Stay),
		Leave: Percent(r.Probabilities.Leave),
	}
}

// StayWidth and LeaveWidth are bar widths in percent, for rendering.
func (r Result) StayWidth() float64  { return r.Probabilities.Stay * 100 }
func (r Result) LeaveWidth() float64 { return r.Probabilities.Leave * 100 }
