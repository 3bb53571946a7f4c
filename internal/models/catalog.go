package models

import (
	"fmt"
	"time"
)

// Game is one fixture in the catalog. A multi may carry at most one selection
// from each game.
type Game struct {
	ID          string      `gorm:"primaryKey;size:128" json:"gameId"`
	Description string      `gorm:"not null" json:"gameDescription"`
	Sport       string      `gorm:"size:32;index" json:"sport,omitempty"`
	StartTime   *time.Time  `json:"startTime,omitempty"`
	Selections  []Selection `gorm:"foreignKey:GameID;references:ID" json:"bets"`
}

// Selection is a single priced outcome within a game, e.g. a player to score
// a try. Weight is an optional base probability used only when ordering
// alternatives.
type Selection struct {
	ID         string  `gorm:"primaryKey;size:128" json:"playerId"`
	GameID     string  `gorm:"primaryKey;size:128" json:"gameId"`
	PlayerName string  `gorm:"not null" json:"playerName"`
	Team       string  `json:"team,omitempty"`
	Market     string  `gorm:"size:32;not null" json:"market"`
	Odds       float64 `gorm:"not null" json:"odds"`
	Weight     float64 `json:"weight,omitempty"`
}

// Label is the human readable position/market label for the selection.
func (s Selection) Label() string {
	if s.Market == "" {
		return s.PlayerName
	}
	return fmt.Sprintf("%s - %s", s.PlayerName, s.Market)
}

// Catalog is an immutable snapshot of the games available for a round.
// Consumers must treat Games and their Selections as read-only.
type Catalog struct {
	Version  string    `json:"version"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loadedAt"`
	Games    []Game    `json:"games"`
}

// GameByID returns the game with the given id.
func (c *Catalog) GameByID(id string) (*Game, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Games {
		if c.Games[i].ID == id {
			return &c.Games[i], true
		}
	}
	return nil, false
}

// SelectionCount returns the total number of selections across all games.
func (c *Catalog) SelectionCount() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, g := range c.Games {
		total += len(g.Selections)
	}
	return total
}

// IsEmpty reports whether the catalog has no game with a selection.
func (c *Catalog) IsEmpty() bool {
	return c.SelectionCount() == 0
}
