package models

import "time"

// Team is a confirmed registration of a pair of players in one division.
// Registrations are created and confirmed by the external registration and
// payment services; the engine reads them exactly once at bracket generation.
type Team struct {
	ID         int       `json:"id" db:"id"`
	DivisionID int       `json:"division_id" db:"division_id"`
	ClubID     int       `json:"club_id" db:"club_id"`
	Name       string    `json:"name" db:"name"`
	Player1    string    `json:"player1" db:"player1"`
	Player2    string    `json:"player2" db:"player2"`
	Seed       *int      `json:"seed,omitempty" db:"seed"`
	Confirmed  bool      `json:"confirmed" db:"confirmed"`
	CheckedIn  bool      `json:"checked_in" db:"checked_in"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
