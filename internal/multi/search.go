package multi

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/stitts-dev/multi-builder/internal/models"
	"github.com/stitts-dev/multi-builder/pkg/logger"
)

// contextCheckInterval is how many nodes are visited between context polls
const contextCheckInterval = 1024

type gameSlot struct {
	game       *models.Game
	selections []*models.Selection
	minOdds    float64
	maxOdds    float64
}

type pick struct {
	slot int
	sel  *models.Selection
}

type candidate struct {
	picks     []pick
	odds      float64
	win       float64
	deviation float64
	signed    float64
}

type searcher struct {
	ctx  context.Context
	req  SearchRequest
	tol  Tolerance
	opts Options

	slots []gameSlot

	// odds window derived from the tolerance window on the desired win
	lowOdds, highOdds, oddsEps float64
	devEps                     float64

	// least[g][k] and most[g][k] are the smallest and largest products of k
	// legs drawn from slots g..n-1
	least, most [][]float64

	preferOver bool
	maxResults int

	path []pick
	best []candidate

	nodes     int
	pruned    int
	found     int
	exhausted bool
	cancelled bool
}

// Search runs the combination search with no deadline other than the node
// budget in opts.
func Search(catalog *models.Catalog, req SearchRequest, opts Options) (*Result, error) {
	return SearchContext(context.Background(), catalog, req, opts)
}

// SearchContext finds the best combinations of one selection per game whose
// potential win falls inside the tolerance window around req.DesiredWin.
// Invalid requests return a *ValidationError before any search work. Running
// out of budget or a cancelled ctx is not an error: the best combinations
// found so far are returned with Result.Exhausted set. The catalog is only
// read.
func SearchContext(ctx context.Context, catalog *models.Catalog, req SearchRequest, opts Options) (*Result, error) {
	if err := req.Validate(opts.MaxTargetOdds); err != nil {
		return nil, err
	}

	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = logger.WithSearchContext(uuid.New().String(), req.Stake, req.DesiredWin)
	}

	s := newSearcher(ctx, catalog, req, opts)

	log.WithFields(logrus.Fields{
		"games":       len(s.slots),
		"target_odds": req.TargetOdds(),
		"min_legs":    req.MinLegs,
		"max_legs":    req.MaxLegs,
		"tolerance":   s.tol.Value,
		"mode":        s.tol.Mode,
	}).Debug("Starting multi search")

	if len(s.slots) > 0 && s.feasible(0, 0, 1) {
		s.explore(0, 0, 1)
	} else {
		log.Debug("Request bounds cannot be met by the catalog, skipping search")
	}

	result := &Result{
		Combinations:    make([]Combination, 0, len(s.best)),
		NodesVisited:    s.nodes,
		Pruned:          s.pruned,
		CandidatesFound: s.found,
		Exhausted:       s.exhausted,
	}
	for _, c := range s.best {
		combo := s.toCombination(c)
		combo.Alternatives = Alternatives(catalog, combo, req, opts)
		result.Combinations = append(result.Combinations, combo)
	}
	result.Duration = time.Since(start)

	entry := log.WithFields(logrus.Fields{
		"nodes_visited": s.nodes,
		"pruned":        s.pruned,
		"candidates":    s.found,
		"returned":      len(result.Combinations),
		"duration_ms":   result.Duration.Milliseconds(),
	})
	switch {
	case s.cancelled:
		entry.Warn("Multi search cancelled, returning best combinations so far")
	case s.exhausted:
		entry.Warn("Multi search budget exhausted, returning best combinations so far")
	default:
		entry.Info("Multi search completed")
	}

	return result, nil
}

func newSearcher(ctx context.Context, catalog *models.Catalog, req SearchRequest, opts Options) *searcher {
	tol := opts.Tolerance
	if req.Tolerance != nil {
		tol = *req.Tolerance
	}
	if tol.Mode == "" {
		tol.Mode = ToleranceRelative
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 1
	}

	s := &searcher{
		ctx:        ctx,
		req:        req,
		tol:        tol,
		opts:       opts,
		preferOver: req.PreferOver || opts.PreferOver,
		maxResults: maxResults,
		devEps:     epsilonFor(req.DesiredWin),
	}

	low, high := tol.Window(req.DesiredWin)
	s.lowOdds = low / req.Stake
	s.highOdds = high / req.Stake
	s.oddsEps = s.devEps / req.Stake

	s.slots = buildSlots(catalog)
	s.orderSelections()
	s.computeBounds()
	s.path = make([]pick, 0, req.MaxLegs)

	return s
}

// buildSlots drops selections with unusable odds and games left empty, then
// orders games by selection count ascending so sparse games are decided
// first. Ties fall back to the game ID.
func buildSlots(catalog *models.Catalog) []gameSlot {
	if catalog == nil {
		return nil
	}

	slots := make([]gameSlot, 0, len(catalog.Games))
	for i := range catalog.Games {
		game := &catalog.Games[i]
		slot := gameSlot{game: game, minOdds: math.Inf(1), maxOdds: math.Inf(-1)}
		for j := range game.Selections {
			sel := &game.Selections[j]
			if !validOdds(sel.Odds) {
				continue
			}
			slot.selections = append(slot.selections, sel)
			slot.minOdds = math.Min(slot.minOdds, sel.Odds)
			slot.maxOdds = math.Max(slot.maxOdds, sel.Odds)
		}
		if len(slot.selections) > 0 {
			slots = append(slots, slot)
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if len(slots[i].selections) != len(slots[j].selections) {
			return len(slots[i].selections) < len(slots[j].selections)
		}
		return slots[i].game.ID < slots[j].game.ID
	})

	return slots
}

// orderSelections tries first the selections whose odds are closest, in log
// space, to the per-leg odds a mid-sized combination would need.
func (s *searcher) orderSelections() {
	n := len(s.slots)
	if n == 0 {
		return
	}

	hi := s.req.MaxLegs
	if hi > n {
		hi = n
	}
	legs := (s.req.MinLegs + hi) / 2
	if legs < 1 {
		legs = 1
	}
	if legs > n {
		legs = n
	}
	perLeg := math.Log(s.req.TargetOdds()) / float64(legs)

	for i := range s.slots {
		sels := s.slots[i].selections
		sort.SliceStable(sels, func(a, b int) bool {
			da := math.Abs(math.Log(sels[a].Odds) - perLeg)
			db := math.Abs(math.Log(sels[b].Odds) - perLeg)
			if da != db {
				return da < db
			}
			if sels[a].Odds != sels[b].Odds {
				return sels[a].Odds < sels[b].Odds
			}
			return sels[a].ID < sels[b].ID
		})
	}
}

// computeBounds fills the suffix product tables. Every odds value is at least
// 1, so the cheapest completion uses as few legs as allowed and the dearest
// as many as allowed.
func (s *searcher) computeBounds() {
	n := len(s.slots)
	s.least = make([][]float64, n+1)
	s.most = make([][]float64, n+1)

	for g := 0; g <= n; g++ {
		mins := make([]float64, 0, n-g)
		maxs := make([]float64, 0, n-g)
		for _, slot := range s.slots[g:] {
			mins = append(mins, slot.minOdds)
			maxs = append(maxs, slot.maxOdds)
		}
		sort.Float64s(mins)
		sort.Sort(sort.Reverse(sort.Float64Slice(maxs)))

		least := make([]float64, len(mins)+1)
		most := make([]float64, len(maxs)+1)
		least[0], most[0] = 1, 1
		for k := 1; k <= len(mins); k++ {
			least[k] = least[k-1] * mins[k-1]
			most[k] = most[k-1] * maxs[k-1]
		}
		s.least[g] = least
		s.most[g] = most
	}
}

// feasible reports whether a partial combination of legs legs at odds can
// still be completed from slots g..n-1 into one that lands in the window.
func (s *searcher) feasible(g, legs int, odds float64) bool {
	need := s.req.MinLegs - legs
	if need < 0 {
		need = 0
	}
	room := s.req.MaxLegs - legs
	if rem := len(s.slots) - g; room > rem {
		room = rem
	}
	if need > room {
		return false
	}
	if odds*s.most[g][room] < s.lowOdds-s.oddsEps {
		return false
	}
	if odds*s.least[g][need] > s.highOdds+s.oddsEps {
		return false
	}
	return true
}

func (s *searcher) inWindow(odds float64) bool {
	return odds >= s.lowOdds-s.oddsEps && odds <= s.highOdds+s.oddsEps
}

func (s *searcher) explore(start, legs int, odds float64) {
	for g := start; g < len(s.slots); g++ {
		// bounds only tighten as g grows, so no later game can help either
		if !s.feasible(g, legs, odds) {
			s.pruned++
			return
		}

		for _, sel := range s.slots[g].selections {
			if s.stop() {
				return
			}
			s.nodes++

			next := odds * sel.Odds
			nextLegs := legs + 1
			if !s.feasible(g+1, nextLegs, next) {
				s.pruned++
				continue
			}

			s.path = append(s.path, pick{slot: g, sel: sel})
			if nextLegs >= s.req.MinLegs && s.inWindow(next) {
				s.record()
			}
			if nextLegs < s.req.MaxLegs {
				s.explore(g+1, nextLegs, next)
			}
			s.path = s.path[:len(s.path)-1]

			if s.exhausted {
				return
			}
		}
	}
}

func (s *searcher) stop() bool {
	if s.exhausted {
		return true
	}
	if s.opts.MaxNodes > 0 && s.nodes >= s.opts.MaxNodes {
		s.exhausted = true
		return true
	}
	if s.ctx != nil && s.nodes%contextCheckInterval == 0 && s.ctx.Err() != nil {
		s.exhausted = true
		s.cancelled = true
		return true
	}
	return false
}

// record keeps the current path if it ranks within the top maxResults.
func (s *searcher) record() {
	s.found++

	odds := make([]float64, len(s.path))
	for i, p := range s.path {
		odds[i] = p.sel.Odds
	}
	combined := floats.Prod(odds)
	win := s.req.Stake * combined

	c := candidate{
		picks:     s.path,
		odds:      combined,
		win:       win,
		deviation: s.tol.Deviation(s.req.DesiredWin, win),
		signed:    win - s.req.DesiredWin,
	}

	idx := sort.Search(len(s.best), func(i int) bool {
		return s.less(c, s.best[i])
	})
	if idx >= s.maxResults {
		return
	}
	c.picks = append([]pick(nil), s.path...)

	s.best = append(s.best, candidate{})
	copy(s.best[idx+1:], s.best[idx:])
	s.best[idx] = c
	if len(s.best) > s.maxResults {
		s.best = s.best[:s.maxResults]
	}
}

// less ranks by deviation, then fewer legs, then (when preferring over) at or
// above the desired win first, then by the legs themselves in game order.
func (s *searcher) less(a, b candidate) bool {
	if math.Abs(a.deviation-b.deviation) > s.devEps {
		return a.deviation < b.deviation
	}
	if len(a.picks) != len(b.picks) {
		return len(a.picks) < len(b.picks)
	}
	if s.preferOver {
		aOver := a.signed >= -s.devEps
		bOver := b.signed >= -s.devEps
		if aOver != bOver {
			return aOver
		}
	}
	for i := range a.picks {
		pa, pb := a.picks[i], b.picks[i]
		if pa.slot != pb.slot {
			return pa.slot < pb.slot
		}
		if pa.sel.ID != pb.sel.ID {
			return pa.sel.ID < pb.sel.ID
		}
	}
	return false
}

func (s *searcher) toCombination(c candidate) Combination {
	legs := make([]Leg, len(c.picks))
	for i, p := range c.picks {
		game := s.slots[p.slot].game
		legs[i] = Leg{
			GameID:    game.ID,
			GameLabel: game.Description,
			Selection: *p.sel,
		}
	}
	return Combination{
		Legs:            legs,
		CombinedOdds:    c.odds,
		PotentialWin:    c.win,
		Deviation:       c.deviation,
		SignedDeviation: c.signed,
	}
}

func validOdds(odds float64) bool {
	return odds >= 1 && !math.IsInf(odds, 0) && !math.IsNaN(odds)
}
