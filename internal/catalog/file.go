package catalog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/multi-builder/internal/models"
	"github.com/stitts-dev/multi-builder/pkg/logger"
)

// CSV files expected in the data directory
const (
	MatchupFile = "Updated_Player_Matchup_Data.csv"
	ATSFile     = "ats_summary.csv"
	TPTFile     = "tpt_summary.csv"
)

// Markets produced by the CSV loader
const (
	MarketAnytimeTry = "ATS"
	MarketTwoPlusTry = "2+"
)

const gameIDPrefix = "NRL2024_"

// FileSource reads the round from the matchup and price CSVs in DataDir and
// falls back to a JSON fixture when the CSVs yield no games.
type FileSource struct {
	DataDir     string
	FixtureFile string
	Sport       string
	logger      *logrus.Entry
}

func NewFileSource(dataDir, fixtureFile string) *FileSource {
	return &FileSource{
		DataDir:     dataDir,
		FixtureFile: fixtureFile,
		Sport:       "nrl",
		logger:      logger.WithCatalogContext("file"),
	}
}

func (s *FileSource) Name() string {
	return "file"
}

func (s *FileSource) Load(ctx context.Context) (*models.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	games, csvErr := s.loadCSV()
	if csvErr == nil {
		cat, err := newCatalog("file:csv", games)
		if err == nil {
			s.logger.WithFields(logrus.Fields{
				"games":      len(cat.Games),
				"selections": cat.SelectionCount(),
			}).Info("Loaded catalog from CSV files")
			return cat, nil
		}
		csvErr = err
	}
	s.logger.WithError(csvErr).Warn("CSV catalog unusable, falling back to JSON fixture")

	games, err := s.loadFixture()
	if err != nil {
		return nil, fmt.Errorf("failed to load fixture: %w", err)
	}
	cat, err := newCatalog("file:fixture", games)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"games":      len(cat.Games),
		"selections": cat.SelectionCount(),
	}).Info("Loaded catalog from JSON fixture")
	return cat, nil
}

type matchupPlayer struct {
	name string
	team string
}

// loadCSV joins the matchup file with the ATS and two-plus-tries price files.
// A player missing from both price files contributes no selection.
func (s *FileSource) loadCSV() ([]models.Game, error) {
	order, matchups, err := s.loadMatchups(filepath.Join(s.DataDir, MatchupFile))
	if err != nil {
		return nil, err
	}

	ats, err := s.loadPrices(filepath.Join(s.DataDir, ATSFile), "ATS_prices")
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load ATS prices")
	}
	tpt, err := s.loadPrices(filepath.Join(s.DataDir, TPTFile), "Prices_TwoPlusTry")
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load two-plus-tries prices")
	}

	games := make([]models.Game, 0, len(order))
	for _, matchup := range order {
		game := models.Game{
			ID:          gameIDPrefix + strings.ReplaceAll(matchup, " vs ", "_"),
			Description: matchup,
			Sport:       s.Sport,
		}
		for _, p := range matchups[matchup] {
			if price, ok := ats[p.name]; ok {
				game.Selections = append(game.Selections, models.Selection{
					ID:         p.name + "_" + MarketAnytimeTry,
					PlayerName: p.name,
					Team:       p.team,
					Market:     MarketAnytimeTry,
					Odds:       price,
				})
			}
			if price, ok := tpt[p.name]; ok {
				game.Selections = append(game.Selections, models.Selection{
					ID:         p.name + "_" + MarketTwoPlusTry,
					PlayerName: p.name,
					Team:       p.team,
					Market:     MarketTwoPlusTry,
					Odds:       price,
				})
			}
		}
		if len(game.Selections) > 0 {
			games = append(games, game)
		}
	}

	return games, nil
}

func (s *FileSource) loadMatchups(path string) ([]string, map[string][]matchupPlayer, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}

	var order []string
	matchups := make(map[string][]matchupPlayer)
	for _, row := range rows {
		matchup := strings.TrimSpace(row["Matchup"])
		name := strings.TrimSpace(row["Player Name"])
		if matchup == "" || name == "" {
			continue
		}
		if _, ok := matchups[matchup]; !ok {
			order = append(order, matchup)
		}
		matchups[matchup] = append(matchups[matchup], matchupPlayer{
			name: name,
			team: strings.TrimSpace(row["Team Name"]),
		})
	}

	return order, matchups, nil
}

func (s *FileSource) loadPrices(path, column string) (map[string]float64, error) {
	rows, err := readCSV(path)
	if err != nil {
		return map[string]float64{}, err
	}

	prices := make(map[string]float64, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row["Player"])
		raw := strings.TrimSpace(row[column])
		if name == "" || raw == "" {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"player": name,
				"column": column,
				"value":  raw,
			}).Debug("Skipping unparseable price")
			continue
		}
		prices[name] = price
	}

	return prices, nil
}

func (s *FileSource) loadFixture() ([]models.Game, error) {
	if s.FixtureFile == "" {
		return nil, errors.New("no fixture file configured")
	}

	candidates := []string{s.FixtureFile}
	if !filepath.IsAbs(s.FixtureFile) {
		candidates = append(candidates, filepath.Join(s.DataDir, s.FixtureFile))
	}

	var lastErr error
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		var games []models.Game
		if err := json.Unmarshal(data, &games); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return games, nil
	}
	return nil, lastErr
}

// readCSV returns each data row keyed by its header.
func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s is empty", path)
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, v := range record {
			if i < len(header) {
				row[header[i]] = v
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
