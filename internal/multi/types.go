package multi

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/multi-builder/internal/models"
)

const (
	DefaultMaxNodes        = 250000
	DefaultMaxResults      = 3
	DefaultMaxAlternatives = 3
)

// Options carries engine settings that do not change per request.
type Options struct {
	Tolerance Tolerance

	// MaxNodes bounds the number of selections tried as a leg. Zero or
	// negative disables the budget.
	MaxNodes int

	// MaxResults is how many ranked combinations Search returns
	MaxResults int

	MaxAlternatives int

	// AlternativeOddsBand, when positive, keeps only alternatives whose odds
	// are within ±band of the odds the leg would need to hit the target
	// exactly (0.2 gives the 0.8..1.2 ratio window)
	AlternativeOddsBand float64

	PreferOver bool

	// MaxTargetOdds is passed to SearchRequest.Validate; zero disables the cap
	MaxTargetOdds float64

	Logger *logrus.Entry
}

func DefaultOptions() Options {
	return Options{
		Tolerance:       DefaultTolerance(),
		MaxNodes:        DefaultMaxNodes,
		MaxResults:      DefaultMaxResults,
		MaxAlternatives: DefaultMaxAlternatives,
		MaxTargetOdds:   1000,
	}
}

// Leg is one selection inside a combination, tagged with its game.
type Leg struct {
	GameID    string           `json:"gameId"`
	GameLabel string           `json:"gameDescription"`
	Selection models.Selection `json:"selection"`
}

// Combination is a qualifying multi. Legs are ordered by the engine's game
// exploration order and never share a game.
type Combination struct {
	Legs         []Leg   `json:"legs"`
	CombinedOdds float64 `json:"combinedOdds"`
	PotentialWin float64 `json:"potentialWin"`
	Deviation    float64 `json:"deviation"`

	// SignedDeviation is PotentialWin minus the desired win
	SignedDeviation float64 `json:"signedDeviation"`

	Alternatives []AlternativeSet `json:"alternatives"`
}

// Alternative is a same-game substitute for a leg and the combination it
// would produce.
type Alternative struct {
	Selection    models.Selection `json:"selection"`
	CombinedOdds float64          `json:"combinedOdds"`
	PotentialWin float64          `json:"potentialWin"`
	Deviation    float64          `json:"deviation"`
}

// AlternativeSet lists substitutes for the leg at Position, best first. It
// is empty, never nil, when the game has no other selection.
type AlternativeSet struct {
	Position     int              `json:"position"`
	GameID       string           `json:"gameId"`
	Chosen       models.Selection `json:"chosen"`
	Alternatives []Alternative    `json:"alternatives"`
}

// Result is the outcome of one search. An empty Combinations slice is a
// normal "no combination found" outcome.
type Result struct {
	Combinations []Combination `json:"combinations"`

	NodesVisited    int `json:"nodesVisited"`
	Pruned          int `json:"pruned"`
	CandidatesFound int `json:"candidatesFound"`

	// Exhausted is set when the node budget or the context stopped the search
	// early; the combinations returned may then be suboptimal
	Exhausted bool `json:"exhausted"`

	Duration time.Duration `json:"duration"`
}

func (r *Result) Found() bool {
	return r != nil && len(r.Combinations) > 0
}

// Best returns the top ranked combination.
func (r *Result) Best() (Combination, bool) {
	if !r.Found() {
		return Combination{}, false
	}
	return r.Combinations[0], true
}
