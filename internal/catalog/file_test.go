package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeRound(t *testing.T, dir string) {
	writeFile(t, dir, MatchupFile, "Matchup,Player Name,Team Name\n"+
		"Broncos vs Storm,Reece Walsh,Broncos\n"+
		"Broncos vs Storm,Harry Grant,Storm\n"+
		"Broncos vs Storm,  ,Storm\n"+
		"Sharks vs Eels,Nicho Hynes,Sharks\n"+
		"Sharks vs Eels,Mitchell Moses,Eels\n"+
		"Knights vs Titans,Kalyn Ponga,Knights\n")
	writeFile(t, dir, ATSFile, "Player,ATS_prices\n"+
		"Reece Walsh,3.50\n"+
		"Harry Grant,6.00\n"+
		"Nicho Hynes,4.20\n"+
		"Mitchell Moses,n/a\n")
	writeFile(t, dir, TPTFile, "Player,Prices_TwoPlusTry\n"+
		"Reece Walsh,11.00\n"+
		"Mitchell Moses,19.00\n"+
		"Harry Grant,\n")
}

func TestFileSourceLoadsCSV(t *testing.T) {
	dir := t.TempDir()
	writeRound(t, dir)

	cat, err := NewFileSource(dir, "").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file:csv", cat.Source)
	assert.NotEmpty(t, cat.Version)

	// Knights vs Titans has no prices and is dropped
	require.Len(t, cat.Games, 2)

	broncos, ok := cat.GameByID("NRL2024_Broncos_Storm")
	require.True(t, ok)
	assert.Equal(t, "Broncos vs Storm", broncos.Description)
	require.Len(t, broncos.Selections, 3)
	assert.Equal(t, "Reece Walsh_ATS", broncos.Selections[0].ID)
	assert.Equal(t, MarketAnytimeTry, broncos.Selections[0].Market)
	assert.Equal(t, 3.5, broncos.Selections[0].Odds)
	assert.Equal(t, "Reece Walsh_2+", broncos.Selections[1].ID)
	assert.Equal(t, 11.0, broncos.Selections[1].Odds)
	assert.Equal(t, "Harry Grant_ATS", broncos.Selections[2].ID)
	assert.Equal(t, "Storm", broncos.Selections[2].Team)
	for _, s := range broncos.Selections {
		assert.Equal(t, broncos.ID, s.GameID)
	}

	sharks, ok := cat.GameByID("NRL2024_Sharks_Eels")
	require.True(t, ok)
	ids := []string{}
	for _, s := range sharks.Selections {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"Nicho Hynes_ATS", "Mitchell Moses_2+"}, ids)
}

func TestFileSourceVersionIsStable(t *testing.T) {
	dir := t.TempDir()
	writeRound(t, dir)
	source := NewFileSource(dir, "")

	first, err := source.Load(context.Background())
	require.NoError(t, err)
	second, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)

	writeFile(t, dir, ATSFile, "Player,ATS_prices\nReece Walsh,3.60\n")
	third, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Version, third.Version)
}

func TestFileSourceFallsBackToFixture(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fixture.json", `[
		{"gameId": "NRL2024_A_B", "gameDescription": "A vs B", "bets": [
			{"playerId": "p1_ATS", "playerName": "P1", "market": "ATS", "odds": 2.5},
			{"playerId": "p2_ATS", "playerName": "P2", "market": "ATS", "odds": 0.5}
		]},
		{"gameId": "NRL2024_C_D", "gameDescription": "C vs D", "bets": []}
	]`)

	cat, err := NewFileSource(dir, "fixture.json").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file:fixture", cat.Source)
	require.Len(t, cat.Games, 1)
	require.Len(t, cat.Games[0].Selections, 1)
	assert.Equal(t, "p1_ATS", cat.Games[0].Selections[0].ID)
	assert.Equal(t, "NRL2024_A_B", cat.Games[0].Selections[0].GameID)
}

func TestFileSourceNothingToLoad(t *testing.T) {
	_, err := NewFileSource(t.TempDir(), "missing.json").Load(context.Background())
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "empty.json", `[]`)
	_, err = NewFileSource(dir, "empty.json").Load(context.Background())
	assert.ErrorIs(t, err, ErrNoGames)
}

func TestFileSourceBundledData(t *testing.T) {
	cat, err := NewFileSource(filepath.Join("..", "..", "data"), "mock_nrl_data.json").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file:csv", cat.Source)
	assert.Len(t, cat.Games, 4)
	assert.Greater(t, cat.SelectionCount(), 40)
}
