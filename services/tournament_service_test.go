package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubkit/tournament-engine/cache"
	"github.com/clubkit/tournament-engine/models"
	"github.com/clubkit/tournament-engine/repositories"
)

func newTournamentService(f *resultFixture) TournamentService {
	return NewTournamentService(
		memTournamentRepo{f.store},
		memDivisionRepo{f.store},
		memTeamRepo{f.store},
		memRoundRepo{f.store},
		memMatchRepo{f.store},
		f.results,
		cache.NewRoundsCache(nil, 0),
		discardLogger(),
	)
}

func TestGetRoundsAssemblesView(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture()
	semis, final, _, _ := f.seedSingleElim4()
	svc := newTournamentService(f)

	view, err := svc.GetRounds(ctx, 1, 1, 10)
	require.NoError(t, err)
	require.NotNil(t, view.Division)
	assert.Equal(t, 10, view.Division.ID)
	require.Len(t, view.Rounds, 2)
	assert.Equal(t, semis.ID, view.Rounds[0].Round.ID)
	assert.Len(t, view.Rounds[0].Matches, 2)
	assert.Equal(t, final.ID, view.Rounds[1].Round.ID)
	assert.Empty(t, view.Rounds[1].Matches)
	assert.Nil(t, view.Standings, "knockout divisions carry no group table")
}

func TestGetRoundsRunsGraceSweep(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture()
	_, _, sf1, _ := f.seedSingleElim4()
	svc := newTournamentService(f)

	// A sole self-report whose grace window has long passed.
	_, err := f.results.SubmitResult(ctx, 1, 11, models.UserRolePlayer, 1, sf1.ID, 1, testSets)
	require.NoError(t, err)
	for _, c := range f.store.candidates {
		c.CreatedAt = time.Now().Add(-2 * testGracePeriod)
	}

	// Reading the bracket confirms it; no background loop involved.
	view, err := svc.GetRounds(ctx, 1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, sf1.Status)
	assert.Equal(t, 1, view.Rounds[0].Round.CompletedMatches)
}

func TestGetRoundsIncludesGroupStandings(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture()
	_, matches := f.seedGroupDivision(0)
	svc := newTournamentService(f)

	winners := []int{1, 1, 2}
	for i, m := range matches {
		_, err := f.svc.FinalizeMatch(ctx, 1, m.ID, winners[i], testSets)
		require.NoError(t, err)
	}

	view, err := svc.GetRounds(ctx, 1, 1, 20)
	require.NoError(t, err)
	require.Len(t, view.Standings, 3)
	assert.Equal(t, "Alpha", view.Standings[0].TeamName)
	assert.Equal(t, 1, view.Standings[0].Rank)
	assert.Equal(t, 6, view.Standings[0].Points)
}

func TestGetTournamentRoundsCoversAllDivisions(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture()
	f.seedSingleElim4()
	f.seedGroupDivision(0)
	svc := newTournamentService(f)

	view, err := svc.GetTournamentRounds(ctx, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, view.Tournament)
	assert.Equal(t, 1, view.Tournament.ID)
	require.Len(t, view.Divisions, 2)

	byID := map[int]*RoundsView{}
	for _, d := range view.Divisions {
		byID[d.Division.ID] = d
	}
	require.Contains(t, byID, 10)
	require.Contains(t, byID, 20)
	assert.Len(t, byID[10].Rounds, 2)
	assert.NotEmpty(t, byID[20].Rounds)

	_, err = svc.GetTournamentRounds(ctx, 1, 99)
	assert.ErrorIs(t, err, repositories.ErrTournamentNotFound)
}

func TestGetRoundsRejectsForeignDivision(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture()
	f.seedSingleElim4()
	svc := newTournamentService(f)

	// Division 10 belongs to tournament 1, not 2.
	f.store.tournaments[2] = &models.Tournament{ID: 2, ClubID: 1, Status: models.TournamentStatusActive}
	_, err := svc.GetRounds(ctx, 1, 2, 10)
	assert.ErrorIs(t, err, repositories.ErrDivisionNotFound)
}

func TestListDivisions(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture()
	f.seedSingleElim4()
	svc := newTournamentService(f)

	divisions, err := svc.ListDivisions(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, divisions, 1)
	assert.Equal(t, 10, divisions[0].ID)

	_, err = svc.ListDivisions(ctx, 1, 99)
	assert.ErrorIs(t, err, repositories.ErrTournamentNotFound)
}
