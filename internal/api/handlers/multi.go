package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/multi-builder/internal/api/middleware"
	"github.com/stitts-dev/multi-builder/internal/catalog"
	"github.com/stitts-dev/multi-builder/internal/models"
	"github.com/stitts-dev/multi-builder/internal/multi"
	"github.com/stitts-dev/multi-builder/pkg/config"
	"github.com/stitts-dev/multi-builder/pkg/logger"
	"github.com/stitts-dev/multi-builder/pkg/utils"
)

// CatalogProvider supplies catalog snapshots to the handlers.
type CatalogProvider interface {
	Snapshot(ctx context.Context) (*models.Catalog, error)
	Refresh(ctx context.Context) (*models.Catalog, error)
	Status() catalog.Status
}

type MultiHandler struct {
	catalogs CatalogProvider
	config   *config.Config
}

func NewMultiHandler(catalogs CatalogProvider, cfg *config.Config) *MultiHandler {
	return &MultiHandler{
		catalogs: catalogs,
		config:   cfg,
	}
}

// GenerateMultiRequest accepts both the legacy winAmount field and
// desiredWin.
type GenerateMultiRequest struct {
	Stake         float64  `json:"stake"`
	WinAmount     *float64 `json:"winAmount"`
	DesiredWin    *float64 `json:"desiredWin"`
	MinLegs       int      `json:"minLegs" binding:"omitempty,min=1"`
	MaxLegs       int      `json:"maxLegs" binding:"omitempty,min=1"`
	Tolerance     *float64 `json:"tolerance" binding:"omitempty,min=0"`
	ToleranceMode string   `json:"toleranceMode" binding:"omitempty,oneof=relative absolute"`
	Alternatives  int      `json:"alternatives" binding:"omitempty,min=0,max=20"`
	Sport         string   `json:"sport" binding:"omitempty,max=32"`
	PreferOver    *bool    `json:"preferOver"`
}

type LegResponse struct {
	GameID          string  `json:"gameId"`
	GameDescription string  `json:"gameDescription"`
	PlayerID        string  `json:"playerId"`
	PlayerName      string  `json:"playerName"`
	Team            string  `json:"team,omitempty"`
	Market          string  `json:"market"`
	Odds            float64 `json:"odds"`
}

type AlternativeResponse struct {
	PlayerID        string  `json:"playerId"`
	PlayerName      string  `json:"playerName"`
	Team            string  `json:"team,omitempty"`
	Market          string  `json:"market"`
	Odds            float64 `json:"odds"`
	NewMultiOdds    float64 `json:"newMultiOdds"`
	NewPotentialWin float64 `json:"newPotentialWin"`
	Deviation       float64 `json:"deviation"`
}

type CombinationResponse struct {
	Legs         []LegResponse `json:"legs"`
	AchievedOdds float64       `json:"achievedOdds"`
	PotentialWin float64       `json:"potentialWin"`
	Deviation    float64       `json:"deviation"`
	CombinedOdds float64       `json:"combinedOdds"`

	// Alternatives is keyed by leg position
	Alternatives map[string][]AlternativeResponse `json:"alternatives"`
}

type MultiResponse struct {
	SearchID       string                `json:"searchId"`
	CatalogVersion string                `json:"catalogVersion"`
	Stake          float64               `json:"stake"`
	DesiredWin     float64               `json:"desiredWin"`
	TargetOdds     float64               `json:"targetOdds"`
	MinLegs        int                   `json:"minLegs"`
	MaxLegs        int                   `json:"maxLegs"`
	Found          bool                  `json:"found"`
	Suboptimal     bool                  `json:"suboptimal"`
	Combination    *CombinationResponse  `json:"combination"`
	Combinations   []CombinationResponse `json:"combinations"`

	// PlayerAlternatives mirrors Combination.Alternatives for the best result
	PlayerAlternatives map[string][]AlternativeResponse `json:"playerAlternatives"`
}

// GenerateMulti finds the combinations closest to the requested win
func (h *MultiHandler) GenerateMulti(c *gin.Context) {
	start := time.Now()

	var body GenerateMultiRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	req, err := h.buildSearchRequest(body)
	if err != nil {
		utils.SendValidationError(c, "Invalid search request", err.Error())
		return
	}
	if err := req.Validate(h.config.SearchMaxTargetOdds); err != nil {
		utils.SendValidationError(c, "Invalid search request", err.Error())
		return
	}

	requestID := c.GetString(middleware.RequestIDKey)
	searchID := uuid.New().String()
	log := logger.WithRequestContext(requestID, searchID).WithFields(logrus.Fields{
		"stake":       req.Stake,
		"desired_win": req.DesiredWin,
		"sport":       body.Sport,
	})

	cat, err := h.catalogs.Snapshot(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("No catalog available for search")
		utils.SendServiceUnavailable(c, "Could not load betting data", err.Error())
		return
	}

	ctx := c.Request.Context()
	if h.config.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.SearchTimeout)
		defer cancel()
	}

	result, err := multi.SearchContext(ctx, cat, req, h.searchOptions(log))
	if err != nil {
		var verr *multi.ValidationError
		if errors.As(err, &verr) {
			utils.SendValidationError(c, "Invalid search request", err.Error())
			return
		}
		log.WithError(err).Error("Multi search failed")
		utils.SendError(c, http.StatusInternalServerError, utils.NewAppError(utils.ErrCodeSearch, "An internal server error occurred while generating multis", err.Error()))
		return
	}

	resp := buildMultiResponse(searchID, cat, req, result)
	meta := &utils.Meta{
		RequestID:    requestID,
		DurationMs:   time.Since(start).Milliseconds(),
		NodesVisited: result.NodesVisited,
		Suboptimal:   result.Exhausted,
	}

	if !resp.Found {
		msg := fmt.Sprintf("No combination found matching target odds of %.2f within tolerance. Try different stake/win amounts.", req.TargetOdds())
		utils.SendEmptyResult(c, resp, msg, meta)
		return
	}

	utils.SendSuccessWithMeta(c, resp, "Multi combination found with player alternatives.", meta)
}

// buildSearchRequest fills unset fields from configuration. Omitted leg
// bounds fall back to the configured defaults, with the higher leg cap for
// the combined sport.
func (h *MultiHandler) buildSearchRequest(body GenerateMultiRequest) (multi.SearchRequest, error) {
	var desired float64
	switch {
	case body.DesiredWin != nil:
		desired = *body.DesiredWin
	case body.WinAmount != nil:
		desired = *body.WinAmount
	default:
		return multi.SearchRequest{}, &multi.ValidationError{Field: "desiredWin", Reason: "is required"}
	}

	if body.Stake > 0 && desired <= body.Stake {
		return multi.SearchRequest{}, &multi.ValidationError{Field: "desiredWin", Reason: "must be greater than the stake"}
	}

	req := multi.SearchRequest{
		Stake:           body.Stake,
		DesiredWin:      desired,
		MinLegs:         body.MinLegs,
		MaxLegs:         body.MaxLegs,
		PreferOver:      h.config.SearchPreferOver,
		MaxAlternatives: body.Alternatives,
	}
	if req.MinLegs == 0 {
		req.MinLegs = h.config.SearchDefaultMinLegs
	}
	if req.MaxLegs == 0 {
		req.MaxLegs = h.config.MaxLegsForSport(body.Sport)
	}
	if body.PreferOver != nil {
		req.PreferOver = *body.PreferOver
	}

	if body.Tolerance != nil || body.ToleranceMode != "" {
		modeName := body.ToleranceMode
		if modeName == "" {
			modeName = h.config.SearchToleranceMode
		}
		mode, err := multi.ParseToleranceMode(modeName)
		if err != nil {
			return multi.SearchRequest{}, &multi.ValidationError{Field: "toleranceMode", Reason: err.Error()}
		}
		value := h.config.SearchTolerance
		if body.Tolerance != nil {
			value = *body.Tolerance
		}
		req.Tolerance = &multi.Tolerance{Mode: mode, Value: value}
	}

	return req, nil
}

func (h *MultiHandler) searchOptions(log *logrus.Entry) multi.Options {
	mode, err := multi.ParseToleranceMode(h.config.SearchToleranceMode)
	if err != nil {
		mode = multi.ToleranceRelative
	}
	return multi.Options{
		Tolerance:           multi.Tolerance{Mode: mode, Value: h.config.SearchTolerance},
		MaxNodes:            h.config.SearchMaxNodes,
		MaxResults:          h.config.SearchMaxResults,
		MaxAlternatives:     h.config.SearchMaxAlternatives,
		AlternativeOddsBand: h.config.SearchAlternativeOddsBand,
		MaxTargetOdds:       h.config.SearchMaxTargetOdds,
		Logger:              log,
	}
}

func buildMultiResponse(searchID string, cat *models.Catalog, req multi.SearchRequest, result *multi.Result) MultiResponse {
	resp := MultiResponse{
		SearchID:           searchID,
		CatalogVersion:     cat.Version,
		Stake:              req.Stake,
		DesiredWin:         req.DesiredWin,
		TargetOdds:         req.TargetOdds(),
		MinLegs:            req.MinLegs,
		MaxLegs:            req.MaxLegs,
		Found:              result.Found(),
		Suboptimal:         result.Exhausted,
		Combinations:       make([]CombinationResponse, 0, len(result.Combinations)),
		PlayerAlternatives: map[string][]AlternativeResponse{},
	}

	for _, combo := range result.Combinations {
		resp.Combinations = append(resp.Combinations, toCombinationResponse(combo))
	}
	if len(resp.Combinations) > 0 {
		best := resp.Combinations[0]
		resp.Combination = &best
		resp.PlayerAlternatives = best.Alternatives
	}

	return resp
}

func toCombinationResponse(combo multi.Combination) CombinationResponse {
	out := CombinationResponse{
		Legs:         make([]LegResponse, 0, len(combo.Legs)),
		AchievedOdds: round2(combo.CombinedOdds),
		PotentialWin: round2(combo.PotentialWin),
		Deviation:    round2(combo.Deviation),
		CombinedOdds: combo.CombinedOdds,
		Alternatives: make(map[string][]AlternativeResponse, len(combo.Alternatives)),
	}

	for _, leg := range combo.Legs {
		out.Legs = append(out.Legs, LegResponse{
			GameID:          leg.GameID,
			GameDescription: leg.GameLabel,
			PlayerID:        leg.Selection.ID,
			PlayerName:      leg.Selection.PlayerName,
			Team:            leg.Selection.Team,
			Market:          leg.Selection.Market,
			Odds:            leg.Selection.Odds,
		})
	}

	for _, set := range combo.Alternatives {
		alts := make([]AlternativeResponse, 0, len(set.Alternatives))
		for _, alt := range set.Alternatives {
			alts = append(alts, AlternativeResponse{
				PlayerID:        alt.Selection.ID,
				PlayerName:      alt.Selection.PlayerName,
				Team:            alt.Selection.Team,
				Market:          alt.Selection.Market,
				Odds:            alt.Selection.Odds,
				NewMultiOdds:    round2(alt.CombinedOdds),
				NewPotentialWin: round2(alt.PotentialWin),
				Deviation:       round2(alt.Deviation),
			})
		}
		out.Alternatives[strconv.Itoa(set.Position)] = alts
	}

	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
