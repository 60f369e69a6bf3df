package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamSlotVariants(t *testing.T) {
	assert.True(t, ResolvedSlot(7).Resolved())
	assert.Equal(t, "team 7", ResolvedSlot(7).String())

	w := WinnerOfSlot("W2M1")
	assert.False(t, w.Resolved())
	assert.Equal(t, "winner of W2M1", w.String())
	assert.Equal(t, "W2M1", w.SourceMatchUID)

	l := LoserOfSlot("W1M3")
	assert.False(t, l.Resolved())
	assert.Equal(t, "loser of W1M3", l.String())

	assert.False(t, ByeSlot().Resolved())
	assert.Equal(t, "bye", ByeSlot().String())
}

func TestMatchSchedulable(t *testing.T) {
	courtID := 3
	m := Match{
		Slot1:  ResolvedSlot(1),
		Slot2:  ResolvedSlot(2),
		Status: MatchStatusScheduled,
	}
	assert.True(t, m.Schedulable())

	assigned := m
	assigned.CourtID = &courtID
	assert.False(t, assigned.Schedulable())

	pending := m
	pending.Slot2 = WinnerOfSlot("R1M2")
	assert.False(t, pending.Schedulable())

	walkover := m
	walkover.Status = MatchStatusWalkover
	assert.False(t, walkover.Schedulable())
}

func TestMatchLoserTeamID(t *testing.T) {
	w := 1
	m := Match{
		Slot1:        ResolvedSlot(1),
		Slot2:        ResolvedSlot(2),
		Status:       MatchStatusCompleted,
		WinnerTeamID: &w,
	}
	loser, ok := m.LoserTeamID()
	require.True(t, ok)
	assert.Equal(t, 2, loser)

	w2 := 2
	m.WinnerTeamID = &w2
	loser, ok = m.LoserTeamID()
	require.True(t, ok)
	assert.Equal(t, 1, loser)

	// A bye has no loser.
	bye := Match{Slot1: ResolvedSlot(1), Slot2: ByeSlot(), WinnerTeamID: &w}
	_, ok = bye.LoserTeamID()
	assert.False(t, ok)

	unplayed := Match{Slot1: ResolvedSlot(1), Slot2: ResolvedSlot(2)}
	_, ok = unplayed.LoserTeamID()
	assert.False(t, ok)
}

func TestMatchHasTeam(t *testing.T) {
	m := Match{Slot1: ResolvedSlot(4), Slot2: WinnerOfSlot("R1M1")}
	assert.True(t, m.HasTeam(4))
	assert.False(t, m.HasTeam(5))
}

func TestMatchStatusFinal(t *testing.T) {
	assert.True(t, MatchStatusCompleted.Final())
	assert.True(t, MatchStatusWalkover.Final())
	assert.False(t, MatchStatusScheduled.Final())
	assert.False(t, MatchStatusInProgress.Final())
}

func TestCourtBlockOverlaps(t *testing.T) {
	b := CourtBlock{StartMinute: 600, EndMinute: 690}
	assert.True(t, b.Overlaps(630, 720))
	assert.True(t, b.Overlaps(540, 630))
	assert.True(t, b.Overlaps(610, 680))
	// Half-open intervals: touching endpoints do not collide.
	assert.False(t, b.Overlaps(690, 780))
	assert.False(t, b.Overlaps(510, 600))
}

func TestTournamentDayCount(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, time.June, d, 0, 0, 0, 0, time.UTC)
	}
	one := Tournament{StartDate: day(6), EndDate: day(6)}
	assert.Equal(t, 1, one.DayCount())

	weekend := Tournament{StartDate: day(6), EndDate: day(7)}
	assert.Equal(t, 2, weekend.DayCount())

	inverted := Tournament{StartDate: day(7), EndDate: day(6)}
	assert.Equal(t, 1, inverted.DayCount())
}

func TestTournamentFormatValid(t *testing.T) {
	assert.True(t, FormatSingleElimination.Valid())
	assert.True(t, FormatRoundRobin.Valid())
	assert.True(t, FormatDoubleElimination.Valid())
	assert.False(t, TournamentFormat("swiss").Valid())
	assert.False(t, TournamentFormat("").Valid())
}
