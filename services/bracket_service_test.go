package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubkit/tournament-engine/cache"
	"github.com/clubkit/tournament-engine/models"
)

type bracketFixture struct {
	store *memStore
	svc   BracketService
}

func newBracketFixture() *bracketFixture {
	store := newMemStore()
	svc := NewBracketService(
		newStubDB(),
		memTournamentRepo{store},
		memDivisionRepo{store},
		memTeamRepo{store},
		memRoundRepo{store},
		memMatchRepo{store},
		cache.NewRoundsCache(nil, 0),
		discardLogger(),
	)
	return &bracketFixture{store: store, svc: svc}
}

func (f *bracketFixture) seedTournament(format models.TournamentFormat, teamCount int) {
	f.store.tournaments[1] = &models.Tournament{
		ID: 1, ClubID: 1, Format: format, Status: models.TournamentStatusDraft,
	}
	f.store.divisions[10] = &models.Division{
		ID: 10, TournamentID: 1, ClubID: 1, Modality: "Men's", Category: "A",
		Status: models.DivisionStatusPending,
	}
	teams := make([]*models.Team, 0, teamCount)
	for i := 1; i <= teamCount; i++ {
		teams = append(teams, &models.Team{
			ID: i, DivisionID: 10, ClubID: 1, Name: "Team " + string(rune('A'+i-1)), Confirmed: true,
		})
	}
	f.store.teams[10] = teams
}

func TestGenerateForTournamentSingleElimination(t *testing.T) {
	ctx := context.Background()
	f := newBracketFixture()
	f.seedTournament(models.FormatSingleElimination, 6)

	summary, err := f.svc.GenerateForTournament(ctx, 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, summary.Generated)
	assert.Empty(t, summary.Skipped)
	assert.Equal(t, 4, summary.MatchesCreated)

	// A six-team field pads to eight: three rounds, two walkover rows already
	// counted as completed in the opening round.
	rounds := f.store.roundsOf(10)
	require.Len(t, rounds, 3)
	first := rounds[0]
	assert.Equal(t, models.RoundStatusInProgress, first.Status)
	assert.Equal(t, 4, first.ExpectedMatches)
	assert.Equal(t, 2, first.CompletedMatches)
	assert.Equal(t, models.RoundStatusPending, rounds[1].Status)
	assert.Equal(t, models.RoundStatusPending, rounds[2].Status)

	walkovers := 0
	for _, m := range f.store.matchesOf(first.ID) {
		if m.Status == models.MatchStatusWalkover {
			walkovers++
			require.NotNil(t, m.WinnerTeamID)
		}
	}
	assert.Equal(t, 2, walkovers)

	// Generation activates a draft tournament.
	assert.Equal(t, models.TournamentStatusActive, f.store.tournaments[1].Status)
}

func TestGenerateForTournamentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newBracketFixture()
	f.seedTournament(models.FormatRoundRobin, 4)

	first, err := f.svc.GenerateForTournament(ctx, 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, first.Generated)
	assert.Equal(t, 6, first.MatchesCreated)

	second, err := f.svc.GenerateForTournament(ctx, 1, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, second.Generated)
	assert.Equal(t, []int{10}, second.Skipped)
	assert.Equal(t, 0, second.MatchesCreated)
	assert.Len(t, f.store.roundsOf(10), 1)
}

func TestGenerateForTournamentCategoryFilter(t *testing.T) {
	ctx := context.Background()
	f := newBracketFixture()
	f.seedTournament(models.FormatRoundRobin, 4)
	f.store.divisions[11] = &models.Division{
		ID: 11, TournamentID: 1, ClubID: 1, Modality: "Women's", Category: "B",
		Status: models.DivisionStatusPending,
	}
	f.store.teams[11] = f.store.teams[10]

	summary, err := f.svc.GenerateForTournament(ctx, 1, 1, []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, []int{11}, summary.Generated)
	assert.Empty(t, f.store.roundsOf(10))
}

func TestGenerateForTournamentRejectsFinishedTournament(t *testing.T) {
	ctx := context.Background()
	f := newBracketFixture()
	f.seedTournament(models.FormatSingleElimination, 4)
	f.store.tournaments[1].Status = models.TournamentStatusCompleted

	_, err := f.svc.GenerateForTournament(ctx, 1, 1, nil)
	assert.ErrorIs(t, err, ErrTournamentNotSchedulable)
}

func TestGenerateForTournamentRequiresConfirmedTeams(t *testing.T) {
	ctx := context.Background()
	f := newBracketFixture()
	f.seedTournament(models.FormatSingleElimination, 4)
	for _, team := range f.store.teams[10] {
		team.Confirmed = false
	}

	_, err := f.svc.GenerateForTournament(ctx, 1, 1, nil)
	assert.ErrorIs(t, err, ErrNoConfirmedTeams)
}
