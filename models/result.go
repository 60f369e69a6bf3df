package models

import "time"

// SubmitterRole tells the conflict resolver how much weight a candidate
// result carries. Organizer submissions are authoritative.
type SubmitterRole string

const (
	RolePlayer    SubmitterRole = "player"
	RoleOrganizer SubmitterRole = "organizer"
)

// CandidateStatus mirrors the ENUM in the database.
type CandidateStatus string

const (
	CandidateStatusCandidate  CandidateStatus = "candidate"
	CandidateStatusConfirmed  CandidateStatus = "confirmed"
	CandidateStatusSuperseded CandidateStatus = "superseded"
)

// ResultCandidate is one submitted outcome for a match. Candidates are
// append-only; a submission never overwrites a prior one. The resolver either
// confirms one candidate or flags the match as conflicted for the organizer.
type ResultCandidate struct {
	ID           int             `json:"id" db:"id"`
	MatchID      int             `json:"match_id" db:"match_id"`
	ClubID       int             `json:"club_id" db:"club_id"`
	SubmittedBy  int             `json:"submitted_by" db:"submitted_by"`
	Role         SubmitterRole   `json:"role" db:"role"`
	WinnerTeamID int             `json:"winner_team_id" db:"winner_team_id"`
	Sets         []SetScore      `json:"sets"`
	Status       CandidateStatus `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Agrees reports whether two candidates describe the same outcome: same
// winner and identical set scores.
func (c *ResultCandidate) Agrees(o *ResultCandidate) bool {
	if c.WinnerTeamID != o.WinnerTeamID || len(c.Sets) != len(o.Sets) {
		return false
	}
	for i := range c.Sets {
		if c.Sets[i] != o.Sets[i] {
			return false
		}
	}
	return true
}
