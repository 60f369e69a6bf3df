package brackets

import (
	"context"
	"fmt"

	"github.com/clubkit/tournament-engine/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() Generator { return &RoundRobinGenerator{} }

func (g *RoundRobinGenerator) Name() string { return "RoundRobin" }

// Generate lays out a single "Group Stage" round in which every team plays
// every other team exactly once (n(n-1)/2 matches). Match order follows the
// circle method so no team plays twice in a row; an odd field gets a rotating
// sit-out instead of a dropped team. The playoff stage is generated later by
// the advancement engine from the final standings, never here.
func (g *RoundRobinGenerator) Generate(ctx context.Context, params GenerateParams) (*Blueprint, error) {
	teams := orderTeams(params.Teams)
	n := len(teams)
	if n < 2 {
		return nil, ErrInsufficientTeams
	}

	// Pad an odd field with a ghost entry; pairings against it are skipped.
	slots := make([]*models.Team, n)
	copy(slots, teams)
	if n%2 != 0 {
		slots = append(slots, nil)
	}

	numRounds := len(slots) - 1
	perRotation := len(slots) / 2

	round := &BlueprintRound{
		Stage:       "Group Stage",
		Ordinal:     1,
		Side:        models.SideGroup,
		SideOrdinal: 1,
		Expected:    n * (n - 1) / 2,
	}

	number := 0
	for rotation := 0; rotation < numRounds; rotation++ {
		for pair := 0; pair < perRotation; pair++ {
			i1 := circleIndex(pair, len(slots), rotation)
			i2 := circleIndex(len(slots)-1-pair, len(slots), rotation)

			t1, t2 := slots[i1], slots[i2]
			if t1 == nil || t2 == nil {
				continue
			}
			// Alternate the first-named side so home/away shares stay even.
			if pair == 0 && rotation%2 != 0 {
				t1, t2 = t2, t1
			}

			number++
			round.Matches = append(round.Matches, &BlueprintMatch{
				UID:    fmt.Sprintf("GM%d", number),
				Number: number,
				Slot1:  models.ResolvedSlot(t1.ID),
				Slot2:  models.ResolvedSlot(t2.ID),
			})
		}
	}

	if len(round.Matches) != round.Expected {
		return nil, fmt.Errorf("round robin generated %d matches, expected %d", len(round.Matches), round.Expected)
	}

	return &Blueprint{Rounds: []*BlueprintRound{round}}, nil
}

// circleIndex rotates a position according to the circle method
// (https://en.wikipedia.org/wiki/Round-robin_tournament#Circle_method);
// position 0 stays fixed while the rest rotate each round.
func circleIndex(index, length, rotation int) int {
	if index == 0 {
		return 0
	}
	index -= 1
	index -= rotation
	index += length - 1
	index %= length - 1
	index += 1
	return index
}
