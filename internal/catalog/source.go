package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stitts-dev/multi-builder/internal/models"
)

var (
	// ErrCatalogUnavailable is returned when no source could produce a catalog
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrNoGames is returned by a source that loaded cleanly but found no game
	// with a usable selection
	ErrNoGames = errors.New("catalog has no games")
)

// versionNamespace scopes content-derived catalog versions
var versionNamespace = uuid.MustParse("6f1d2c7e-93a4-4c55-8d0b-0e5a3c1b2f90")

// Source loads a full catalog snapshot.
type Source interface {
	Name() string
	Load(ctx context.Context) (*models.Catalog, error)
}

// newCatalog cleans the raw games and stamps the snapshot. Selections with
// odds below 1, blank IDs or duplicate IDs within a game are dropped, as are
// games left with nothing to bet on. ErrNoGames is returned when nothing
// survives.
func newCatalog(source string, games []models.Game) (*models.Catalog, error) {
	cleaned := make([]models.Game, 0, len(games))
	seenGames := make(map[string]bool, len(games))

	for _, g := range games {
		g.ID = strings.TrimSpace(g.ID)
		if g.ID == "" || seenGames[g.ID] {
			continue
		}
		if g.Description == "" {
			g.Description = "Game " + g.ID
		}

		seen := make(map[string]bool, len(g.Selections))
		selections := make([]models.Selection, 0, len(g.Selections))
		for _, s := range g.Selections {
			s.ID = strings.TrimSpace(s.ID)
			if s.ID == "" || seen[s.ID] {
				continue
			}
			if s.Odds < 1 || math.IsInf(s.Odds, 0) || math.IsNaN(s.Odds) {
				continue
			}
			seen[s.ID] = true
			s.GameID = g.ID
			selections = append(selections, s)
		}
		if len(selections) == 0 {
			continue
		}

		g.Selections = selections
		seenGames[g.ID] = true
		cleaned = append(cleaned, g)
	}

	if len(cleaned) == 0 {
		return nil, ErrNoGames
	}

	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].ID < cleaned[j].ID
	})

	return &models.Catalog{
		Version:  contentVersion(cleaned),
		Source:   source,
		LoadedAt: time.Now().UTC(),
		Games:    cleaned,
	}, nil
}

// contentVersion derives a stable version from the games so that the same
// odds loaded twice compare equal.
func contentVersion(games []models.Game) string {
	data, err := json.Marshal(games)
	if err != nil {
		return uuid.NewString()
	}
	return uuid.NewSHA1(versionNamespace, data).String()
}
