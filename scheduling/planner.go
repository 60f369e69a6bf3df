// Package scheduling holds the pure slot arithmetic of the court scheduler:
// mapping a match's position in the schedule order to a target day and time
// inside the tournament window. Ledger lookups and persistence live in the
// service layer.
package scheduling

// Planner derives target slots from the tournament's scheduling parameters.
// Matches are laid out in waves: up to CourtCount matches share a start time,
// and a day holds MatchesPerDay matches before spilling into the next day, so
// earlier rounds schedule earlier in the window.
type Planner struct {
	MatchesPerDay        int
	CourtCount           int
	MatchDurationMinutes int
	DayStartMinute       int
	DayEndMinute         int
	Days                 int
}

// Slot is a concrete target interval relative to the tournament start date.
type Slot struct {
	DayOffset   int
	StartMinute int
	EndMinute   int
}

// ForPosition computes the target slot for the match at the given position
// (0-based) of the schedule order. It returns false when the position falls
// beyond the tournament window.
func (p Planner) ForPosition(position int) (Slot, bool) {
	if position < 0 || p.MatchesPerDay < 1 || p.CourtCount < 1 {
		return Slot{}, false
	}
	day := position / p.MatchesPerDay
	if day >= p.Days {
		return Slot{}, false
	}
	wave := (position % p.MatchesPerDay) / p.CourtCount
	start := p.DayStartMinute + wave*p.MatchDurationMinutes
	slot := Slot{
		DayOffset:   day,
		StartMinute: start,
		EndMinute:   start + p.MatchDurationMinutes,
	}
	// MatchesPerDay may promise more matches than the day window holds; a
	// slot past closing is unplaceable, not a late-night assignment.
	if !p.Fits(slot) {
		return Slot{}, false
	}
	return slot, true
}

// Next advances a slot by one match duration within the same day. It returns
// false once the day cannot hold another full match; the scheduler then
// reports the match as unassigned rather than spilling into another day.
func (p Planner) Next(s Slot) (Slot, bool) {
	next := Slot{
		DayOffset:   s.DayOffset,
		StartMinute: s.StartMinute + p.MatchDurationMinutes,
		EndMinute:   s.EndMinute + p.MatchDurationMinutes,
	}
	if !p.Fits(next) {
		return Slot{}, false
	}
	return next, true
}

// Fits reports whether the slot lies fully inside the playable day.
func (p Planner) Fits(s Slot) bool {
	return s.StartMinute >= p.DayStartMinute && s.EndMinute <= p.DayEndMinute
}
