package models

import "time"

// TournamentFormat enumerates the bracket formats supported by the engine.
// The zero value is invalid; format switches must be exhaustive.
type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatRoundRobin        TournamentFormat = "round_robin"
	FormatDoubleElimination TournamentFormat = "double_elimination"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatSingleElimination, FormatRoundRobin, FormatDoubleElimination:
		return true
	}
	return false
}

// TournamentStatus mirrors the ENUM in the database.
type TournamentStatus string

const (
	TournamentStatusDraft     TournamentStatus = "draft"
	TournamentStatusActive    TournamentStatus = "active"
	TournamentStatusCompleted TournamentStatus = "completed"
	TournamentStatusCanceled  TournamentStatus = "canceled"
)

// Tournament is immutable after brackets are generated, except for
// administrative rescheduling. All scheduling parameters live here so the
// scheduler never needs ambient configuration.
type Tournament struct {
	ID                   int              `json:"id" db:"id"`
	ClubID               int              `json:"club_id" db:"club_id"`
	Name                 string           `json:"name" db:"name"`
	Format               TournamentFormat `json:"format" db:"format"`
	StartDate            time.Time        `json:"start_date" db:"start_date"`
	EndDate              time.Time        `json:"end_date" db:"end_date"`
	MatchDurationMinutes int              `json:"match_duration_minutes" db:"match_duration_minutes"`
	MatchesPerDay        int              `json:"matches_per_day" db:"matches_per_day"`
	Status               TournamentStatus `json:"status" db:"status"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
}

// DayCount returns the number of playable days in the tournament window,
// start and end dates inclusive.
func (t *Tournament) DayCount() int {
	days := int(t.EndDate.Sub(t.StartDate).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// DivisionStatus is the per-bracket state machine driven by the advancement
// engine: pending -> in_progress -> completed.
type DivisionStatus string

const (
	DivisionStatusPending    DivisionStatus = "pending"
	DivisionStatusInProgress DivisionStatus = "in_progress"
	DivisionStatusCompleted  DivisionStatus = "completed"
)

// Division is one (modality, category) bracket of a tournament. Divisions are
// fully independent of each other and can be processed in parallel.
type Division struct {
	ID           int    `json:"id" db:"id"`
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	ClubID       int    `json:"club_id" db:"club_id"`
	Modality     string `json:"modality" db:"modality"`
	Category     string `json:"category" db:"category"`
	// QualifierCount is how many teams advance from a round-robin group stage
	// into the playoff bracket. Zero disables playoffs.
	QualifierCount int            `json:"qualifier_count" db:"qualifier_count"`
	Status         DivisionStatus `json:"status" db:"status"`
	WinnerTeamID   *int           `json:"winner_team_id,omitempty" db:"winner_team_id"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

func (d *Division) Label() string {
	return d.Modality + " " + d.Category
}
