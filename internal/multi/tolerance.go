package multi

import (
	"fmt"
	"math"
)

type ToleranceMode string

const (
	ToleranceRelative ToleranceMode = "relative"
	ToleranceAbsolute ToleranceMode = "absolute"
)

// Tolerance defines the acceptable window around the desired win. In relative
// mode Value is a fraction of the desired win (0.10 is ±10%); in absolute mode
// it is an amount in stake currency.
type Tolerance struct {
	Mode  ToleranceMode `json:"mode"`
	Value float64       `json:"value"`
}

// DefaultTolerance is ±10% of the desired win.
func DefaultTolerance() Tolerance {
	return Tolerance{Mode: ToleranceRelative, Value: 0.10}
}

// ParseToleranceMode maps a config or request string to a mode. Empty input
// selects relative.
func ParseToleranceMode(s string) (ToleranceMode, error) {
	switch ToleranceMode(s) {
	case "", ToleranceRelative:
		return ToleranceRelative, nil
	case ToleranceAbsolute:
		return ToleranceAbsolute, nil
	}
	return "", fmt.Errorf("unknown tolerance mode %q", s)
}

func (t Tolerance) validate() error {
	if t.Mode != ToleranceRelative && t.Mode != ToleranceAbsolute {
		return &ValidationError{Field: "toleranceMode", Reason: fmt.Sprintf("must be %q or %q", ToleranceRelative, ToleranceAbsolute)}
	}
	if math.IsNaN(t.Value) || math.IsInf(t.Value, 0) || t.Value < 0 {
		return &ValidationError{Field: "tolerance", Reason: "must be a non-negative number"}
	}
	return nil
}

// Window returns the inclusive range of potential wins accepted for desiredWin.
// The lower bound never drops below zero.
func (t Tolerance) Window(desiredWin float64) (low, high float64) {
	switch t.Mode {
	case ToleranceAbsolute:
		low, high = desiredWin-t.Value, desiredWin+t.Value
	default:
		low, high = desiredWin*(1-t.Value), desiredWin*(1+t.Value)
	}
	if low < 0 {
		low = 0
	}
	return low, high
}

// Contains reports whether potentialWin falls inside the window. Edges are
// widened by a relative epsilon so that a product landing exactly on the
// boundary is not rejected by rounding.
func (t Tolerance) Contains(desiredWin, potentialWin float64) bool {
	low, high := t.Window(desiredWin)
	eps := epsilonFor(desiredWin)
	return potentialWin >= low-eps && potentialWin <= high+eps
}

// Deviation is the absolute distance between potentialWin and desiredWin.
func (t Tolerance) Deviation(desiredWin, potentialWin float64) float64 {
	return math.Abs(potentialWin - desiredWin)
}

func epsilonFor(v float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(v))
}
