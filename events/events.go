package events

import "time"

// Queue names. One durable queue per event type; routing key equals the
// queue name on the default exchange.
const (
	QueueMatchScheduled    = "match.scheduled"
	QueueRoundAdvanced     = "round.advanced"
	QueueConflictDetected  = "result.conflict_detected"
	QueueDivisionCompleted = "division.completed"
)

// MatchScheduled is emitted when the auto scheduler assigns a match to a
// court slot.
type MatchScheduled struct {
	ClubID       int       `json:"club_id"`
	TournamentID int       `json:"tournament_id"`
	DivisionID   int       `json:"division_id"`
	MatchID      int       `json:"match_id"`
	MatchUID     string    `json:"match_uid"`
	CourtID      int       `json:"court_id"`
	Date         string    `json:"date"`
	StartMinute  int       `json:"start_minute"`
	EndMinute    int       `json:"end_minute"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// RoundAdvanced is emitted when a round completes and the next round's
// matches have been created.
type RoundAdvanced struct {
	ClubID         int       `json:"club_id"`
	DivisionID     int       `json:"division_id"`
	CompletedRound int       `json:"completed_round_id"`
	NewMatchUIDs   []string  `json:"new_match_uids,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ConflictDetected is emitted when two self-reported results for the same
// match disagree and an organizer has to resolve them.
type ConflictDetected struct {
	ClubID     int       `json:"club_id"`
	DivisionID int       `json:"division_id"`
	MatchID    int       `json:"match_id"`
	MatchUID   string    `json:"match_uid"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DivisionCompleted is emitted when the final match of a division has been
// decided.
type DivisionCompleted struct {
	ClubID       int       `json:"club_id"`
	TournamentID int       `json:"tournament_id"`
	DivisionID   int       `json:"division_id"`
	WinnerTeamID int       `json:"winner_team_id"`
	ArchiveURL   string    `json:"archive_url,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
