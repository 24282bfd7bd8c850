// Package features defines the fixed-order employee feature vector fed to
// the turnover classifier, together with the domain of each field.
//
// The classifier artifact was trained on the column order below and is
// order-sensitive: Values always returns the fields in that order.
package features

import (
	"fmt"
	"math"
)

// Count is the number of features in a Vector.
const Count = 5

// Feature positions inside a Vector.
const (
	SatisfactionLevel = iota
	TimeSpendCompany
	AverageMonthlyHours
	NumberProject
	LastEvaluation
)

// Kind distinguishes continuous fields from whole-number fields.
type Kind int

const (
	Float Kind = iota
	Integer
)

func (k Kind) String() string {
	if k == Integer {
		return "integer"
	}
	return "float"
}

// Field describes one feature: its wire name, domain and form presentation.
type Field struct {
	Name    string
	Label   string
	Help    string
	Kind    Kind
	Min     float64
	Max     float64
	Default float64
	Step    float64
}

// Contains reports whether v lies inside the field domain. Integer fields
// additionally require a whole number.
func (f Field) Contains(v float64) bool {
	if math.IsNaN(v) || v < f.Min || v > f.Max {
		return false
	}
	if f.Kind == Integer && v != math.Trunc(v) {
		return false
	}
	return true
}

// Clamp forces v into the field domain, rounding integer fields.
// NaN collapses to the field default.
func (f Field) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return f.Default
	}
	if f.Kind == Integer {
		v = math.Round(v)
	}
	return math.Max(f.Min, math.Min(f.Max, v))
}

var fields = [Count]Field{
	{
		Name: "satisfaction_level", Label: "Satisfaction Level",
		Help: "Employee satisfaction level (0 = Very Dissatisfied, 1 = Very Satisfied)",
		Kind: Float, Min: 0, Max: 1, Default: 0.5, Step: 0.01,
	},
	{
		Name: "time_spend_company", Label: "Years at Company",
		Help: "Number of years the employee has worked at the company",
		Kind: Integer, Min: 1, Max: 40, Default: 3, Step: 1,
	},
	{
		Name: "average_monthly_hours", Label: "Avg. Monthly Hours",
		Help: "Average number of hours worked per month",
		Kind: Integer, Min: 80, Max: 350, Default: 200, Step: 5,
	},
	{
		Name: "number_project", Label: "Number of Projects",
		Help: "Number of projects the employee is currently working on",
		Kind: Integer, Min: 1, Max: 10, Default: 4, Step: 1,
	},
	{
		Name: "last_evaluation", Label: "Last Evaluation",
		Help: "Last performance evaluation score (0 = Poor, 1 = Excellent)",
		Kind: Float, Min: 0, Max: 1, Default: 0.7, Step: 0.01,
	},
}

// Fields returns the feature descriptors in model order.
func Fields() []Field {
	out := make([]Field, Count)
	copy(out, fields[:])
	return out
}

// Names returns the feature names in model order.
func Names() []string {
	out := make([]string, Count)
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the descriptor for a feature name.
func Lookup(name string) (Field, int, bool) {
	for i, f := range fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// Vector is an immutable, ordered set of the five employee features.
// The zero value is not valid; build one with New, FromValues, Clamp or Default.
type Vector struct {
	values [Count]float64
}

// New validates the five caller-supplied values and returns a Vector.
func New(satisfactionLevel float64, timeSpendCompany, averageMonthlyHours, numberProject int, lastEvaluation float64) (Vector, error) {
	return FromValues([Count]float64{
		satisfactionLevel,
		float64(timeSpendCompany),
		float64(averageMonthlyHours),
		float64(numberProject),
		lastEvaluation,
	})
}

// FromValues validates values given in model order. Every field is checked
// independently against its domain.
func FromValues(values [Count]float64) (Vector, error) {
	for i, v := range values {
		f := fields[i]
		if !f.Contains(v) {
			if f.Kind == Integer {
				return Vector{}, fmt.Errorf("%w: %s=%v must be a whole number in [%g, %g]", ErrOutOfDomain, f.Name, v, f.Min, f.Max)
			}
			return Vector{}, fmt.Errorf("%w: %s=%v must be in [%g, %g]", ErrOutOfDomain, f.Name, v, f.Min, f.Max)
		}
	}
	return Vector{values: values}, nil
}

// Clamp builds a Vector the way the input form does: each value is forced
// into its domain, so the result is always valid.
func Clamp(values [Count]float64) Vector {
	var v Vector
	for i, x := range values {
		v.values[i] = fields[i].Clamp(x)
	}
	return v
}

// Default returns the initial form state.
func Default() Vector {
	var v Vector
	for i, f := range fields {
		v.values[i] = f.Default
	}
	return v
}

// Values returns a fresh slice of the features in model order.
func (v Vector) Values() []float64 {
	out := make([]float64, Count)
	copy(out, v.values[:])
	return out
}

// At returns the feature at position i.
func (v Vector) At(i int) float64 { return v.values[i] }

func (v Vector) SatisfactionLevel() float64 { return v.values[SatisfactionLevel] }
func (v Vector) TimeSpendCompany() int      { return int(v.values[TimeSpendCompany]) }
func (v Vector) AverageMonthlyHours() int   { return int(v.values[AverageMonthlyHours]) }
func (v Vector) NumberProject() int         { return int(v.values[NumberProject]) }
func (v Vector) LastEvaluation() float64    { return v.values[LastEvaluation] }

// Map returns the features keyed by name.
func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, Count)
	for i, f := range fields {
		out[f.Name] = v.values[i]
	}
	return out
}
