package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/multi-builder/internal/api/middleware"
	"github.com/stitts-dev/multi-builder/internal/models"
	"github.com/stitts-dev/multi-builder/pkg/logger"
	"github.com/stitts-dev/multi-builder/pkg/utils"
)

type CatalogHandler struct {
	catalogs CatalogProvider
}

func NewCatalogHandler(catalogs CatalogProvider) *CatalogHandler {
	return &CatalogHandler{
		catalogs: catalogs,
	}
}

type GameSummary struct {
	GameID          string             `json:"gameId"`
	GameDescription string             `json:"gameDescription"`
	Sport           string             `json:"sport,omitempty"`
	Selections      int                `json:"selections"`
	MinOdds         float64            `json:"minOdds"`
	MaxOdds         float64            `json:"maxOdds"`
	Bets            []models.Selection `json:"bets,omitempty"`
}

type CatalogResponse struct {
	Version    string        `json:"version"`
	Source     string        `json:"source"`
	Games      []GameSummary `json:"games"`
	Selections int           `json:"selections"`
}

// GetCatalog summarises the snapshot searches run against. Pass
// ?include=selections to list every bet.
func (h *CatalogHandler) GetCatalog(c *gin.Context) {
	cat, err := h.catalogs.Snapshot(c.Request.Context())
	if err != nil {
		utils.SendServiceUnavailable(c, "Could not load betting data", err.Error())
		return
	}

	utils.SendSuccess(c, summarizeCatalog(cat, c.Query("include") == "selections"))
}

// RefreshCatalog reloads the catalog from its source. The previous snapshot
// keeps serving when the reload fails.
func (h *CatalogHandler) RefreshCatalog(c *gin.Context) {
	log := logger.GetLogger().WithField(middleware.RequestIDKey, c.GetString(middleware.RequestIDKey))

	cat, err := h.catalogs.Refresh(c.Request.Context())
	if err != nil {
		log.WithError(err).Warn("Catalog refresh failed")
		if cat == nil {
			utils.SendServiceUnavailable(c, "Could not load betting data", err.Error())
			return
		}
	}

	utils.SendSuccess(c, h.catalogs.Status())
}

func summarizeCatalog(cat *models.Catalog, withSelections bool) CatalogResponse {
	resp := CatalogResponse{
		Version:    cat.Version,
		Source:     cat.Source,
		Games:      make([]GameSummary, 0, len(cat.Games)),
		Selections: cat.SelectionCount(),
	}

	for _, game := range cat.Games {
		summary := GameSummary{
			GameID:          game.ID,
			GameDescription: game.Description,
			Sport:           game.Sport,
			Selections:      len(game.Selections),
		}
		for i, sel := range game.Selections {
			if i == 0 || sel.Odds < summary.MinOdds {
				summary.MinOdds = sel.Odds
			}
			if sel.Odds > summary.MaxOdds {
				summary.MaxOdds = sel.Odds
			}
		}
		if withSelections {
			summary.Bets = game.Selections
		}
		resp.Games = append(resp.Games, summary)
	}

	return resp
}
