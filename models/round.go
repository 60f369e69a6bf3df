package models

import "time"

// RoundStatus mirrors the ENUM in the database. The in_progress -> completed
// transition is a compare-and-swap; whichever caller wins it performs round
// advancement, everyone else no-ops.
type RoundStatus string

const (
	RoundStatusPending    RoundStatus = "pending"
	RoundStatusInProgress RoundStatus = "in_progress"
	RoundStatusCompleted  RoundStatus = "completed"
)

// BracketSide distinguishes the sub-brackets a round can belong to.
// Single elimination only uses SideMain; round robin uses SideGroup and
// SidePlayoff; double elimination uses SideWinners, SideLosers and SideFinal.
type BracketSide string

const (
	SideMain    BracketSide = "main"
	SideGroup   BracketSide = "group"
	SidePlayoff BracketSide = "playoff"
	SideWinners BracketSide = "winners"
	SideLosers  BracketSide = "losers"
	SideFinal   BracketSide = "final"
)

// Round is one stage of a division's bracket. CompletedMatches never exceeds
// ExpectedMatches; the database enforces the same invariant with a CHECK
// constraint.
type Round struct {
	ID               int         `json:"id" db:"id"`
	DivisionID       int         `json:"division_id" db:"division_id"`
	ClubID           int         `json:"club_id" db:"club_id"`
	Stage            string      `json:"stage" db:"stage"`
	Ordinal          int         `json:"ordinal" db:"ordinal"`
	Side             BracketSide `json:"side" db:"side"`
	SideOrdinal      int         `json:"side_ordinal" db:"side_ordinal"`
	ExpectedMatches  int         `json:"expected_matches" db:"expected_matches"`
	CompletedMatches int         `json:"completed_matches" db:"completed_matches"`
	Status           RoundStatus `json:"status" db:"status"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
}
