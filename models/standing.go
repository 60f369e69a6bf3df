package models

// Standing is one row of a round-robin group table. Points follow the
// 3/1/0 scheme; GamesFor/GamesAgainst accumulate set games and break ties
// after head-to-head.
type Standing struct {
	TeamID       int    `json:"team_id"`
	TeamName     string `json:"team_name"`
	Played       int    `json:"played"`
	Wins         int    `json:"wins"`
	Draws        int    `json:"draws"`
	Losses       int    `json:"losses"`
	Points       int    `json:"points"`
	GamesFor     int    `json:"games_for"`
	GamesAgainst int    `json:"games_against"`
	Rank         int    `json:"rank"`
}

func (s *Standing) GameDiff() int { return s.GamesFor - s.GamesAgainst }
