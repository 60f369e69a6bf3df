package brackets

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/clubkit/tournament-engine/models"
)

type DoubleEliminationGenerator struct{}

func NewDoubleEliminationGenerator() Generator { return &DoubleEliminationGenerator{} }

func (g *DoubleEliminationGenerator) Name() string { return "DoubleElimination" }

// Generate lays out a double-elimination bracket: a winners side identical to
// a single-elimination draw, a losers side seeded progressively as teams drop
// out, and a grand final once both bracket champions are known. The bracket
// reset match is provisioned logically: the advancement engine creates it
// only if the losers-bracket champion takes the first grand final.
//
// The field must be a power of two of at least 4; byes interact with loser
// routing in ways the ledger of this format does not support, so uneven
// fields are rejected rather than silently reshaped.
func (g *DoubleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) (*Blueprint, error) {
	n := len(params.Teams)
	if n < 2 {
		return nil, ErrInsufficientTeams
	}
	if !isPowerOfTwo(n) || n < 4 {
		return nil, fmt.Errorf("%w: double elimination needs a power-of-two field of at least 4, got %d", ErrUnsupportedBracketShape, n)
	}

	winners, err := BuildElimination(params.Teams, EliminationOptions{
		UIDPrefix:   "W",
		Side:        models.SideWinners,
		StagePrefix: "Winners ",
	})
	if err != nil {
		return nil, err
	}

	k := bits.TrailingZeros(uint(n))

	// Interleave rounds chronologically: W1, then for each stage j the minor
	// losers round, the next winners round and the major losers round, and
	// the grand final last. Global ordinals follow that order.
	rounds := make([]*BlueprintRound, 0, 3*k)
	rounds = append(rounds, winners.Rounds[0])

	for j := 1; j < k; j++ {
		expected := n >> uint(j+1)
		rounds = append(rounds,
			&BlueprintRound{
				Stage:       fmt.Sprintf("Losers Round %d", 2*j-1),
				Side:        models.SideLosers,
				SideOrdinal: 2*j - 1,
				Expected:    expected,
			},
			winners.Rounds[j],
			&BlueprintRound{
				Stage:       fmt.Sprintf("Losers Round %d", 2*j),
				Side:        models.SideLosers,
				SideOrdinal: 2 * j,
				Expected:    expected,
			},
		)
	}

	rounds = append(rounds, &BlueprintRound{
		Stage:       "Grand Final",
		Side:        models.SideFinal,
		SideOrdinal: 1,
		Expected:    1,
	})

	for i, r := range rounds {
		r.Ordinal = i + 1
	}

	return &Blueprint{Rounds: rounds}, nil
}

// PairInitialLosers builds the first losers round from the completed first
// winners round: losers of adjacent fixtures meet.
func PairInitialLosers(completed []*models.Match) ([]*BlueprintMatch, error) {
	if len(completed) < 2 || len(completed)%2 != 0 {
		return nil, fmt.Errorf("cannot pair losers of %d matches", len(completed))
	}
	next := make([]*BlueprintMatch, 0, len(completed)/2)
	for i := 0; i < len(completed); i += 2 {
		l1, err := finalLoser(completed[i])
		if err != nil {
			return nil, err
		}
		l2, err := finalLoser(completed[i+1])
		if err != nil {
			return nil, err
		}
		number := i/2 + 1
		next = append(next, &BlueprintMatch{
			UID:    fmt.Sprintf("L1M%d", number),
			Number: number,
			Slot1:  models.ResolvedSlot(l1),
			Slot2:  models.ResolvedSlot(l2),
		})
	}
	return next, nil
}

// PairMajorLosers builds major losers round 2j: the loser dropping from
// winners round j+1 meets the survivor of minor losers round 2j-1. On odd
// stages the dropping losers are half-swapped so teams do not immediately
// rematch an opponent from the winners side.
func PairMajorLosers(j int, winnersRound, minorRound []*models.Match) ([]*BlueprintMatch, error) {
	if len(winnersRound) != len(minorRound) {
		return nil, fmt.Errorf("major losers round %d: %d droppers vs %d survivors", 2*j, len(winnersRound), len(minorRound))
	}
	droppers := make([]int, len(winnersRound))
	for i, m := range winnersRound {
		l, err := finalLoser(m)
		if err != nil {
			return nil, err
		}
		droppers[i] = l
	}
	if j%2 == 1 {
		swapHalves(droppers)
	}

	next := make([]*BlueprintMatch, 0, len(minorRound))
	for i, m := range minorRound {
		w, err := finalWinner(m)
		if err != nil {
			return nil, err
		}
		number := i + 1
		next = append(next, &BlueprintMatch{
			UID:    fmt.Sprintf("L%dM%d", 2*j, number),
			Number: number,
			Slot1:  models.ResolvedSlot(droppers[i]),
			Slot2:  models.ResolvedSlot(w),
		})
	}
	return next, nil
}

// GrandFinal builds the first grand final fixture. Slot 1 always holds the
// winners-bracket champion; the advancement engine relies on that to decide
// whether a bracket reset is required.
func GrandFinal(wbChampion, lbChampion int) *BlueprintMatch {
	return &BlueprintMatch{
		UID:    "GF1",
		Number: 1,
		Slot1:  models.ResolvedSlot(wbChampion),
		Slot2:  models.ResolvedSlot(lbChampion),
	}
}

// BracketReset builds the second grand final, played only when the
// losers-bracket champion won the first one and both finalists therefore
// stand at one bracket loss each.
func BracketReset(gf1 *models.Match) (*BlueprintMatch, error) {
	w, err := finalWinner(gf1)
	if err != nil {
		return nil, err
	}
	l, ok := gf1.LoserTeamID()
	if !ok {
		return nil, fmt.Errorf("grand final %s has no identifiable loser", gf1.UID)
	}
	return &BlueprintMatch{
		UID:    "GF2",
		Number: 1,
		Slot1:  models.ResolvedSlot(w),
		Slot2:  models.ResolvedSlot(l),
	}, nil
}

func finalLoser(m *models.Match) (int, error) {
	if m == nil || !m.Status.Final() {
		uid := "?"
		if m != nil {
			uid = m.UID
		}
		return 0, fmt.Errorf("match %s is not final", uid)
	}
	l, ok := m.LoserTeamID()
	if !ok {
		return 0, fmt.Errorf("match %s has no identifiable loser", m.UID)
	}
	return l, nil
}

func swapHalves(xs []int) {
	half := len(xs) / 2
	for i := 0; i < half; i++ {
		xs[i], xs[i+half] = xs[i+half], xs[i]
	}
}
