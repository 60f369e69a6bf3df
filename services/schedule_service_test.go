package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubkit/tournament-engine/cache"
	"github.com/clubkit/tournament-engine/models"
)

type scheduleFixture struct {
	store *memStore
	svc   ScheduleService
}

func newScheduleFixture() *scheduleFixture {
	store := newMemStore()
	svc := NewScheduleService(
		newStubDB(),
		memTournamentRepo{store},
		memDivisionRepo{store},
		memMatchRepo{store},
		memCourtRepo{store},
		nil,
		nil,
		cache.NewRoundsCache(nil, 0),
		9, 21,
		discardLogger(),
	)
	return &scheduleFixture{store: store, svc: svc}
}

// seedSchedulable lays out an active one-day tournament with the given number
// of courts and a division holding matchCount playable matches.
func (f *scheduleFixture) seedSchedulable(courts, matchCount, matchesPerDay, days int) []*models.Match {
	start := time.Date(2026, time.June, 6, 0, 0, 0, 0, time.UTC)
	f.store.tournaments[1] = &models.Tournament{
		ID: 1, ClubID: 1, Status: models.TournamentStatusActive,
		StartDate:            start,
		EndDate:              start.AddDate(0, 0, days-1),
		MatchDurationMinutes: 60,
		MatchesPerDay:        matchesPerDay,
	}
	f.store.divisions[10] = &models.Division{ID: 10, TournamentID: 1, ClubID: 1, Status: models.DivisionStatusPending}

	for i := 1; i <= courts; i++ {
		f.store.courts = append(f.store.courts, &models.Court{ID: i, ClubID: 1, Position: i})
	}

	round := f.store.addRound(&models.Round{
		DivisionID: 10, ClubID: 1, Stage: "Group Stage", Ordinal: 1,
		Side: models.SideGroup, SideOrdinal: 1,
		ExpectedMatches: matchCount, Status: models.RoundStatusInProgress,
	})
	matches := make([]*models.Match, 0, matchCount)
	for i := 1; i <= matchCount; i++ {
		matches = append(matches, f.store.addMatch(&models.Match{
			RoundID: round.ID, DivisionID: 10, ClubID: 1,
			UID: "GM" + string(rune('0'+i)), Number: i,
			Slot1: models.ResolvedSlot(i * 2), Slot2: models.ResolvedSlot(i*2 + 1),
			Status: models.MatchStatusScheduled,
		}))
	}
	return matches
}

func TestAutoAssignPlacesMatchesInWaves(t *testing.T) {
	ctx := context.Background()
	f := newScheduleFixture()
	matches := f.seedSchedulable(2, 4, 4, 1)

	report, err := f.svc.AutoAssign(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, report.Assigned, 4)
	assert.Empty(t, report.Unassigned)

	// Two courts: the first wave shares 09:00, the second starts at 10:00.
	assert.Equal(t, 540, report.Assigned[0].StartMinute)
	assert.Equal(t, 540, report.Assigned[1].StartMinute)
	assert.Equal(t, 600, report.Assigned[2].StartMinute)
	assert.Equal(t, 600, report.Assigned[3].StartMinute)

	// Waves split across both courts, never twice on one.
	assert.NotEqual(t, report.Assigned[0].CourtID, report.Assigned[1].CourtID)
	assert.NotEqual(t, report.Assigned[2].CourtID, report.Assigned[3].CourtID)

	for _, m := range matches {
		require.NotNil(t, m.CourtID, "match %s left unassigned", m.UID)
	}

	// Each assignment claimed its ledger block.
	assert.Len(t, f.store.blocks, 4)
	for _, b := range f.store.blocks {
		assert.Equal(t, models.BlockOwnerTournament, b.Owner)
		assert.NotEmpty(t, b.OwnerRef)
	}

	// Scheduling work makes the division live.
	assert.Equal(t, models.DivisionStatusInProgress, f.store.divisions[10].Status)
}

func TestAutoAssignReportsWindowExhaustion(t *testing.T) {
	ctx := context.Background()
	f := newScheduleFixture()
	f.seedSchedulable(1, 3, 2, 1)

	report, err := f.svc.AutoAssign(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, report.Assigned, 2)
	require.Len(t, report.Unassigned, 1)
	assert.Equal(t, "tournament window exhausted", report.Unassigned[0].Reason)
}

func TestAutoAssignIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newScheduleFixture()
	f.seedSchedulable(2, 2, 4, 1)

	first, err := f.svc.AutoAssign(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, first.Assigned, 2)

	// Nothing left to place: the rerun must not move anything.
	second, err := f.svc.AutoAssign(ctx, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, second.Assigned)
	assert.Empty(t, second.Unassigned)
	assert.Len(t, f.store.blocks, 2)
}

func TestAutoAssignResumesAfterPartialRun(t *testing.T) {
	ctx := context.Background()
	f := newScheduleFixture()
	matches := f.seedSchedulable(2, 4, 4, 1)

	// Half the matches were placed by an earlier run.
	report, err := f.svc.AutoAssign(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, report.Assigned, 4)

	// A new match becomes playable afterwards (round advancement). The next
	// run resumes at position four: second day would be needed, but the
	// window has one day.
	round := f.store.rounds[matches[0].RoundID]
	round.ExpectedMatches++
	f.store.addMatch(&models.Match{
		RoundID: round.ID, DivisionID: 10, ClubID: 1, UID: "GM9", Number: 9,
		Slot1: models.ResolvedSlot(50), Slot2: models.ResolvedSlot(51),
		Status: models.MatchStatusScheduled,
	})

	second, err := f.svc.AutoAssign(ctx, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, second.Assigned)
	require.Len(t, second.Unassigned, 1)
	assert.Equal(t, "tournament window exhausted", second.Unassigned[0].Reason)
}

func TestAutoAssignKeepsTeamsOffTwoCourtsAtOnce(t *testing.T) {
	ctx := context.Background()
	f := newScheduleFixture()

	// A four-team round robin on three courts: filling a whole wave would put
	// some team on two courts at the same time, so the scheduler must hold
	// the clashing match back to a later slot.
	start := time.Date(2026, time.June, 6, 0, 0, 0, 0, time.UTC)
	f.store.tournaments[1] = &models.Tournament{
		ID: 1, ClubID: 1, Status: models.TournamentStatusActive,
		StartDate: start, EndDate: start,
		MatchDurationMinutes: 90,
		MatchesPerDay:        6,
	}
	f.store.divisions[10] = &models.Division{ID: 10, TournamentID: 1, ClubID: 1, Status: models.DivisionStatusPending}
	for i := 1; i <= 3; i++ {
		f.store.courts = append(f.store.courts, &models.Court{ID: i, ClubID: 1, Position: i})
	}
	round := f.store.addRound(&models.Round{
		DivisionID: 10, ClubID: 1, Stage: "Group Stage", Ordinal: 1,
		Side: models.SideGroup, SideOrdinal: 1,
		ExpectedMatches: 6, Status: models.RoundStatusInProgress,
	})
	pairs := [][2]int{{1, 4}, {2, 3}, {1, 3}, {4, 2}, {1, 2}, {3, 4}}
	for i, p := range pairs {
		f.store.addMatch(&models.Match{
			RoundID: round.ID, DivisionID: 10, ClubID: 1,
			UID: fmt.Sprintf("GM%d", i+1), Number: i + 1,
			Slot1: models.ResolvedSlot(p[0]), Slot2: models.ResolvedSlot(p[1]),
			Status: models.MatchStatusScheduled,
		})
	}

	report, err := f.svc.AutoAssign(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, report.Assigned, 6)
	assert.Empty(t, report.Unassigned)

	byTeam := make(map[int][]ScheduledMatch)
	for i, placed := range report.Assigned {
		byTeam[pairs[i][0]] = append(byTeam[pairs[i][0]], placed)
		byTeam[pairs[i][1]] = append(byTeam[pairs[i][1]], placed)
	}
	for team, placed := range byTeam {
		require.Len(t, placed, 3, "team %d plays three matches", team)
		for i := 0; i < len(placed); i++ {
			for j := i + 1; j < len(placed); j++ {
				overlap := placed[i].Date.Equal(placed[j].Date) &&
					placed[i].StartMinute < placed[j].EndMinute &&
					placed[j].StartMinute < placed[i].EndMinute
				assert.False(t, overlap,
					"team %d booked at [%d,%d) and [%d,%d)", team,
					placed[i].StartMinute, placed[i].EndMinute,
					placed[j].StartMinute, placed[j].EndMinute)
			}
		}
	}
}

func TestAutoAssignRequiresCourtsAndSchedulableTournament(t *testing.T) {
	ctx := context.Background()
	f := newScheduleFixture()
	f.seedSchedulable(0, 1, 4, 1)

	_, err := f.svc.AutoAssign(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrNoCourtsConfigured)

	f.store.tournaments[1].Status = models.TournamentStatusCompleted
	_, err = f.svc.AutoAssign(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrTournamentNotSchedulable)
}

func TestAutoAssignSkipsLedgerCollisions(t *testing.T) {
	ctx := context.Background()
	f := newScheduleFixture()
	f.seedSchedulable(1, 1, 4, 1)

	// A member booking already holds the opening slot on the only court; the
	// match slides to the next slot of the day.
	start := f.store.tournaments[1].StartDate
	f.store.blocks = append(f.store.blocks, &models.CourtBlock{
		ID: 99, ClubID: 1, CourtID: 1, Date: start,
		StartMinute: 540, EndMinute: 600,
		Owner: models.BlockOwnerBooking, OwnerRef: "booking-99",
	})

	report, err := f.svc.AutoAssign(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, report.Assigned, 1)
	assert.Equal(t, 600, report.Assigned[0].StartMinute)
}
