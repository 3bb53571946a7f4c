package multi

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRequest is wrapped by every ValidationError.
var ErrInvalidRequest = errors.New("invalid search request")

// ValidationError names the offending request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidRequest, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// SearchRequest is the per-request input to Search. DesiredWin is the total
// payout (stake × combined odds), not the profit.
type SearchRequest struct {
	Stake      float64 `json:"stake"`
	DesiredWin float64 `json:"desiredWin"`
	MinLegs    int     `json:"minLegs"`
	MaxLegs    int     `json:"maxLegs"`

	// Tolerance overrides Options.Tolerance when set
	Tolerance *Tolerance `json:"tolerance,omitempty"`

	// PreferOver ranks combinations at or above the desired win ahead of
	// equally distant ones below it
	PreferOver bool `json:"preferOver,omitempty"`

	// MaxAlternatives caps alternatives per leg; zero uses Options.MaxAlternatives
	MaxAlternatives int `json:"alternatives,omitempty"`
}

// TargetOdds is the combined odds that would pay exactly DesiredWin.
func (r SearchRequest) TargetOdds() float64 {
	if r.Stake <= 0 {
		return 0
	}
	return r.DesiredWin / r.Stake
}

// Validate checks the request before any search work starts. A positive
// maxTargetOdds rejects targets above that multiple of the stake.
func (r SearchRequest) Validate(maxTargetOdds float64) error {
	if !positiveFinite(r.Stake) {
		return &ValidationError{Field: "stake", Reason: "must be a positive number"}
	}
	if !positiveFinite(r.DesiredWin) {
		return &ValidationError{Field: "desiredWin", Reason: "must be a positive number"}
	}
	if r.MinLegs < 1 {
		return &ValidationError{Field: "minLegs", Reason: "must be at least 1"}
	}
	if r.MaxLegs < 1 {
		return &ValidationError{Field: "maxLegs", Reason: "must be at least 1"}
	}
	if r.MinLegs > r.MaxLegs {
		return &ValidationError{Field: "minLegs", Reason: fmt.Sprintf("must not exceed maxLegs (%d > %d)", r.MinLegs, r.MaxLegs)}
	}
	if r.MaxAlternatives < 0 {
		return &ValidationError{Field: "alternatives", Reason: "must not be negative"}
	}
	if r.Tolerance != nil {
		if err := r.Tolerance.validate(); err != nil {
			return err
		}
	}
	if maxTargetOdds > 0 && r.TargetOdds() > maxTargetOdds {
		return &ValidationError{
			Field:  "desiredWin",
			Reason: fmt.Sprintf("target odds of %.2f exceed the maximum of %.0f; reduce the desired win or increase the stake", r.TargetOdds(), maxTargetOdds),
		}
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
