package multi

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/stitts-dev/multi-builder/internal/models"
)

// Alternatives ranks, for every leg of combo, the other selections of the
// same game by how close the combination would land to req.DesiredWin if
// that selection replaced the chosen one. Ties prefer the higher weight, then
// the lower selection ID. A game with a single selection yields an empty set.
func Alternatives(catalog *models.Catalog, combo Combination, req SearchRequest, opts Options) []AlternativeSet {
	limit := req.MaxAlternatives
	if limit <= 0 {
		limit = opts.MaxAlternatives
	}
	target := req.TargetOdds()

	legOdds := make([]float64, len(combo.Legs))
	for i, leg := range combo.Legs {
		legOdds[i] = leg.Selection.Odds
	}

	sets := make([]AlternativeSet, 0, len(combo.Legs))
	for i, leg := range combo.Legs {
		set := AlternativeSet{
			Position:     i,
			GameID:       leg.GameID,
			Chosen:       leg.Selection,
			Alternatives: []Alternative{},
		}

		game, ok := catalog.GameByID(leg.GameID)
		if !ok {
			sets = append(sets, set)
			continue
		}

		base := productExcluding(legOdds, i)
		for _, alt := range game.Selections {
			if alt.ID == leg.Selection.ID || !validOdds(alt.Odds) {
				continue
			}
			if !withinBand(alt.Odds, target/base, opts.AlternativeOddsBand) {
				continue
			}
			odds := base * alt.Odds
			win := req.Stake * odds
			set.Alternatives = append(set.Alternatives, Alternative{
				Selection:    alt,
				CombinedOdds: odds,
				PotentialWin: win,
				Deviation:    math.Abs(win - req.DesiredWin),
			})
		}

		alts := set.Alternatives
		sort.SliceStable(alts, func(a, b int) bool {
			if alts[a].Deviation != alts[b].Deviation {
				return alts[a].Deviation < alts[b].Deviation
			}
			if alts[a].Selection.Weight != alts[b].Selection.Weight {
				return alts[a].Selection.Weight > alts[b].Selection.Weight
			}
			return alts[a].Selection.ID < alts[b].Selection.ID
		})
		if limit > 0 && len(alts) > limit {
			set.Alternatives = alts[:limit]
		}

		sets = append(sets, set)
	}

	return sets
}

func productExcluding(odds []float64, skip int) float64 {
	if len(odds) <= 1 {
		return 1
	}
	rest := make([]float64, 0, len(odds)-1)
	rest = append(rest, odds[:skip]...)
	rest = append(rest, odds[skip+1:]...)
	return floats.Prod(rest)
}

// withinBand reports whether odds/required lies in [1-band, 1+band]. A
// non-positive band accepts everything.
func withinBand(odds, required, band float64) bool {
	if band <= 0 || required <= 0 {
		return true
	}
	ratio := odds / required
	return ratio >= 1-band && ratio <= 1+band
}
