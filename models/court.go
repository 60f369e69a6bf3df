package models

import "time"

// Court is one physical court of a club. Position is the stable ranking the
// scheduler cycles through when assigning matches.
type Court struct {
	ID       int    `json:"id" db:"id"`
	ClubID   int    `json:"club_id" db:"club_id"`
	Name     string `json:"name" db:"name"`
	Position int    `json:"position" db:"position"`
}

// BlockOwner distinguishes who holds a court-time interval.
type BlockOwner string

const (
	BlockOwnerBooking    BlockOwner = "booking"
	BlockOwnerTournament BlockOwner = "tournament"
)

// CourtBlock is one claimed interval in the court ledger. Overlapping blocks
// on the same court and date are rejected by the database (EXCLUDE
// constraint), which makes the insert itself the atomic reservation.
type CourtBlock struct {
	ID          int        `json:"id" db:"id"`
	ClubID      int        `json:"club_id" db:"club_id"`
	CourtID     int        `json:"court_id" db:"court_id"`
	Date        time.Time  `json:"date" db:"date"`
	StartMinute int        `json:"start_minute" db:"start_minute"`
	EndMinute   int        `json:"end_minute" db:"end_minute"`
	Owner       BlockOwner `json:"owner" db:"owner"`
	OwnerRef    string     `json:"owner_ref" db:"owner_ref"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Overlaps reports whether two half-open minute intervals intersect.
func (b *CourtBlock) Overlaps(start, end int) bool {
	return b.StartMinute < end && start < b.EndMinute
}
