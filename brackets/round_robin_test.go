package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubkit/tournament-engine/models"
)

func TestRoundRobinEveryPairOnce(t *testing.T) {
	for _, n := range []int{2, 4, 5, 7, 8} {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			gen := NewRoundRobinGenerator()
			bp, err := gen.Generate(context.Background(), GenerateParams{Teams: seededTeams(n)})
			require.NoError(t, err)
			require.Len(t, bp.Rounds, 1)

			round := bp.Rounds[0]
			assert.Equal(t, "Group Stage", round.Stage)
			assert.Equal(t, models.SideGroup, round.Side)
			assert.Equal(t, n*(n-1)/2, round.Expected)
			require.Len(t, round.Matches, n*(n-1)/2)

			seen := make(map[[2]int]bool)
			perTeam := make(map[int]int)
			for _, m := range round.Matches {
				a, b := m.Slot1.TeamID, m.Slot2.TeamID
				require.NotEqual(t, a, b)
				if a > b {
					a, b = b, a
				}
				pair := [2]int{a, b}
				assert.False(t, seen[pair], "pair %v generated twice", pair)
				seen[pair] = true
				perTeam[m.Slot1.TeamID]++
				perTeam[m.Slot2.TeamID]++
			}
			for id, count := range perTeam {
				assert.Equal(t, n-1, count, "team %d match count", id)
			}
		})
	}
}

func TestRoundRobinFourTeamRotation(t *testing.T) {
	gen := NewRoundRobinGenerator()
	bp, err := gen.Generate(context.Background(), GenerateParams{Teams: seededTeams(4)})
	require.NoError(t, err)

	round := bp.Rounds[0]
	require.Len(t, round.Matches, 6)

	// Circle method: teams pair off in three rotations of two matches each,
	// so no team appears twice inside one rotation.
	for rot := 0; rot < 3; rot++ {
		occupied := make(map[int]bool)
		for _, m := range round.Matches[rot*2 : rot*2+2] {
			for _, id := range []int{m.Slot1.TeamID, m.Slot2.TeamID} {
				assert.False(t, occupied[id], "team %d plays twice in rotation %d", id, rot)
				occupied[id] = true
			}
		}
	}

	for i, m := range round.Matches {
		assert.Equal(t, fmt.Sprintf("GM%d", i+1), m.UID)
		assert.Equal(t, i+1, m.Number)
	}
}

func TestRoundRobinRejectsSingleTeam(t *testing.T) {
	gen := NewRoundRobinGenerator()
	_, err := gen.Generate(context.Background(), GenerateParams{Teams: seededTeams(1)})
	assert.ErrorIs(t, err, ErrInsufficientTeams)
}
