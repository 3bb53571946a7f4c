package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stitts-dev/multi-builder/internal/models"
)

type DatabaseSourceTestSuite struct {
	suite.Suite
	db     *gorm.DB
	source *DatabaseSource
}

func (s *DatabaseSourceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	sqlDB, err := db.DB()
	require.NoError(s.T(), err)
	sqlDB.SetMaxOpenConns(1)

	s.db = db
	s.source = NewDatabaseSource(db)
	require.NoError(s.T(), s.source.Migrate())
}

func (s *DatabaseSourceTestSuite) TearDownTest() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (s *DatabaseSourceTestSuite) round() *models.Catalog {
	return &models.Catalog{Games: []models.Game{
		{
			ID:          "NRL2024_Sharks_Eels",
			Description: "Sharks vs Eels",
			Sport:       "nrl",
			Selections: []models.Selection{
				{ID: "Nicho Hynes_ATS", PlayerName: "Nicho Hynes", Market: "ATS", Odds: 4.2},
				{ID: "Maika Sivo_ATS", PlayerName: "Maika Sivo", Market: "ATS", Odds: 2.1},
			},
		},
		{
			ID:          "NRL2024_Broncos_Storm",
			Description: "Broncos vs Storm",
			Sport:       "nrl",
			Selections: []models.Selection{
				{ID: "Reece Walsh_ATS", PlayerName: "Reece Walsh", Market: "ATS", Odds: 3.5},
			},
		},
	}}
}

func (s *DatabaseSourceTestSuite) TestLoadAfterReplace() {
	ctx := context.Background()
	require.NoError(s.T(), s.source.Replace(ctx, s.round()))

	cat, err := s.source.Load(ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "database", cat.Source)
	require.Len(s.T(), cat.Games, 2)
	assert.Equal(s.T(), "NRL2024_Broncos_Storm", cat.Games[0].ID)
	assert.Equal(s.T(), 3, cat.SelectionCount())

	sharks, ok := cat.GameByID("NRL2024_Sharks_Eels")
	require.True(s.T(), ok)
	require.Len(s.T(), sharks.Selections, 2)
	assert.Equal(s.T(), "Maika Sivo_ATS", sharks.Selections[0].ID)
	assert.Equal(s.T(), 2.1, sharks.Selections[0].Odds)
	assert.Equal(s.T(), sharks.ID, sharks.Selections[0].GameID)
}

func (s *DatabaseSourceTestSuite) TestReplaceClearsPreviousRound() {
	ctx := context.Background()
	require.NoError(s.T(), s.source.Replace(ctx, s.round()))

	next := &models.Catalog{Games: []models.Game{{
		ID:          "NRL2024_Panthers_Roosters",
		Description: "Panthers vs Roosters",
		Selections:  []models.Selection{{ID: "Brian To'o_ATS", PlayerName: "Brian To'o", Market: "ATS", Odds: 2.0}},
	}}}
	require.NoError(s.T(), s.source.Replace(ctx, next))

	cat, err := s.source.Load(ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), cat.Games, 1)
	assert.Equal(s.T(), "NRL2024_Panthers_Roosters", cat.Games[0].ID)
	assert.Equal(s.T(), 1, cat.SelectionCount())
}

func (s *DatabaseSourceTestSuite) TestEmptyTables() {
	_, err := s.source.Load(context.Background())
	assert.ErrorIs(s.T(), err, ErrNoGames)
}

func TestDatabaseSourceTestSuite(t *testing.T) {
	suite.Run(t, new(DatabaseSourceTestSuite))
}
