package models

import (
	"fmt"
	"time"
)

// MatchStatus mirrors the ENUM in the database. A match is created as
// scheduled (court may still be unassigned), and ends as either completed or
// walkover. Completed and walkover matches are immutable.
type MatchStatus string

const (
	MatchStatusScheduled  MatchStatus = "scheduled"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusWalkover   MatchStatus = "walkover"
)

// Final reports whether the status is terminal.
func (s MatchStatus) Final() bool {
	return s == MatchStatusCompleted || s == MatchStatusWalkover
}

// SlotKind tags the TeamSlot variant.
type SlotKind string

const (
	SlotTeam     SlotKind = "team"
	SlotWinnerOf SlotKind = "winner_of"
	SlotLoserOf  SlotKind = "loser_of"
	SlotBye      SlotKind = "bye"
)

// TeamSlot is a tagged variant: a slot either holds a concrete team, refers
// to the winner or loser of an upstream match (by bracket UID), or is a bye.
// It replaces the nullable-foreign-key-with-conventions pattern; a match can
// only be put on a court once both of its slots are SlotTeam.
type TeamSlot struct {
	Kind           SlotKind `json:"kind"`
	TeamID         int      `json:"team_id,omitempty"`
	SourceMatchUID string   `json:"source_match_uid,omitempty"`
}

func ResolvedSlot(teamID int) TeamSlot   { return TeamSlot{Kind: SlotTeam, TeamID: teamID} }
func WinnerOfSlot(uid string) TeamSlot   { return TeamSlot{Kind: SlotWinnerOf, SourceMatchUID: uid} }
func LoserOfSlot(uid string) TeamSlot    { return TeamSlot{Kind: SlotLoserOf, SourceMatchUID: uid} }
func ByeSlot() TeamSlot                  { return TeamSlot{Kind: SlotBye} }

// Resolved reports whether the slot holds a concrete team.
func (s TeamSlot) Resolved() bool { return s.Kind == SlotTeam }

func (s TeamSlot) String() string {
	switch s.Kind {
	case SlotTeam:
		return fmt.Sprintf("team %d", s.TeamID)
	case SlotWinnerOf:
		return "winner of " + s.SourceMatchUID
	case SlotLoserOf:
		return "loser of " + s.SourceMatchUID
	case SlotBye:
		return "bye"
	}
	return "unknown"
}

// SetScore is one set of a match result, from the perspective of slot 1.
type SetScore struct {
	Team1 int `json:"team1"`
	Team2 int `json:"team2"`
}

// Match is a single fixture inside a round. UID is the bracket-local
// identifier ("W2M1", "GF1", ...) used by slot references and progression
// links; it is unique per division. Court and schedule fields stay nil until
// the court scheduler claims a ledger slot for the match.
type Match struct {
	ID         int    `json:"id" db:"id"`
	RoundID    int    `json:"round_id" db:"round_id"`
	DivisionID int    `json:"division_id" db:"division_id"`
	ClubID     int    `json:"club_id" db:"club_id"`
	UID        string `json:"uid" db:"uid"`
	Number     int    `json:"number" db:"number"`

	Slot1 TeamSlot `json:"slot1"`
	Slot2 TeamSlot `json:"slot2"`

	CourtID     *int       `json:"court_id,omitempty" db:"court_id"`
	Date        *time.Time `json:"date,omitempty" db:"date"`
	StartMinute *int       `json:"start_minute,omitempty" db:"start_minute"`
	EndMinute   *int       `json:"end_minute,omitempty" db:"end_minute"`

	Status       MatchStatus `json:"status" db:"status"`
	WinnerTeamID *int        `json:"winner_team_id,omitempty" db:"winner_team_id"`
	Score        *string     `json:"score,omitempty" db:"score"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Schedulable reports whether the scheduler may assign this match to a court:
// both slots resolved, no court yet, not in a terminal state.
func (m *Match) Schedulable() bool {
	return m.CourtID == nil &&
		m.Slot1.Resolved() && m.Slot2.Resolved() &&
		!m.Status.Final()
}

// LoserTeamID returns the losing team, valid only once the match is final
// with a winner and both slots resolved.
func (m *Match) LoserTeamID() (int, bool) {
	if m.WinnerTeamID == nil || !m.Slot1.Resolved() || !m.Slot2.Resolved() {
		return 0, false
	}
	if *m.WinnerTeamID == m.Slot1.TeamID {
		return m.Slot2.TeamID, true
	}
	if *m.WinnerTeamID == m.Slot2.TeamID {
		return m.Slot1.TeamID, true
	}
	return 0, false
}

// HasTeam reports whether teamID occupies one of the resolved slots.
func (m *Match) HasTeam(teamID int) bool {
	return (m.Slot1.Resolved() && m.Slot1.TeamID == teamID) ||
		(m.Slot2.Resolved() && m.Slot2.TeamID == teamID)
}
