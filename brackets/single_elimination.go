package brackets

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/clubkit/tournament-engine/models"
)

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() Generator { return &SingleEliminationGenerator{} }

func (g *SingleEliminationGenerator) Name() string { return "SingleElimination" }

func (g *SingleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) (*Blueprint, error) {
	return BuildElimination(params.Teams, EliminationOptions{
		UIDPrefix:     "R",
		Side:          models.SideMain,
		OrdinalOffset: 0,
	})
}

// EliminationOptions parameterizes an elimination sub-bracket so the same
// layout serves the main draw, the winners side of a double-elimination
// bracket, and the playoff stage after a round-robin group.
type EliminationOptions struct {
	// UIDPrefix namespaces match UIDs within the division ("R" -> "R1M2").
	UIDPrefix string
	Side      models.BracketSide
	// StagePrefix is prepended to round labels ("Playoff " -> "Playoff Final").
	StagePrefix string
	// OrdinalOffset shifts global round ordinals so a sub-bracket can follow
	// earlier rounds of the division.
	OrdinalOffset int
}

// BuildElimination lays out a knockout bracket. The field is padded to the
// next power of two with byes; a bye pairing becomes a walkover row that is
// final at creation, so every round holds a uniform half of the previous
// round's fixtures and advancement never needs a special case for byes.
// Byes land on the lowest seeds, so two byes can never meet.
func BuildElimination(teams []*models.Team, opts EliminationOptions) (*Blueprint, error) {
	n := len(teams)
	if n < 2 {
		return nil, ErrInsufficientTeams
	}

	ordered := orderTeams(teams)
	size := nextPowerOfTwo(n)
	numRounds := bits.TrailingZeros(uint(size))

	slots := make([]*models.Team, size)
	for i, seed := range seedPositions(size) {
		if seed <= n {
			slots[i] = ordered[seed-1]
		}
	}

	firstRound := &BlueprintRound{
		Stage:       opts.StagePrefix + eliminationStage(size/2),
		Ordinal:     opts.OrdinalOffset + 1,
		Side:        opts.Side,
		SideOrdinal: 1,
		Expected:    size / 2,
	}
	for i := 0; i < size; i += 2 {
		number := i/2 + 1
		bm := &BlueprintMatch{
			UID:    fmt.Sprintf("%s1M%d", opts.UIDPrefix, number),
			Number: number,
		}
		t1, t2 := slots[i], slots[i+1]
		switch {
		case t1 != nil && t2 != nil:
			bm.Slot1 = models.ResolvedSlot(t1.ID)
			bm.Slot2 = models.ResolvedSlot(t2.ID)
		case t1 != nil:
			winner := t1.ID
			bm.Slot1 = models.ResolvedSlot(t1.ID)
			bm.Slot2 = models.ByeSlot()
			bm.Walkover = true
			bm.WinnerTeamID = &winner
		case t2 != nil:
			winner := t2.ID
			bm.Slot1 = models.ResolvedSlot(t2.ID)
			bm.Slot2 = models.ByeSlot()
			bm.Walkover = true
			bm.WinnerTeamID = &winner
		default:
			return nil, fmt.Errorf("%w: empty pairing at position %d", ErrUnsupportedBracketShape, i)
		}
		firstRound.Matches = append(firstRound.Matches, bm)
	}

	bp := &Blueprint{Rounds: []*BlueprintRound{firstRound}}
	for r := 2; r <= numRounds; r++ {
		expected := size >> uint(r)
		bp.Rounds = append(bp.Rounds, &BlueprintRound{
			Stage:       opts.StagePrefix + eliminationStage(expected),
			Ordinal:     opts.OrdinalOffset + r,
			Side:        opts.Side,
			SideOrdinal: r,
			Expected:    expected,
		})
	}

	return bp, nil
}

// PairWinners builds the next elimination round's matches from a completed
// round: the winner of match i fills slot i%2+1 of match i/2. The input must
// be ordered by match number and every match must be final with a winner.
func PairWinners(uidPrefix string, sideOrdinal int, completed []*models.Match) ([]*BlueprintMatch, error) {
	if len(completed) < 2 || len(completed)%2 != 0 {
		return nil, fmt.Errorf("cannot pair winners of %d matches", len(completed))
	}
	next := make([]*BlueprintMatch, 0, len(completed)/2)
	for i := 0; i < len(completed); i += 2 {
		w1, err := finalWinner(completed[i])
		if err != nil {
			return nil, err
		}
		w2, err := finalWinner(completed[i+1])
		if err != nil {
			return nil, err
		}
		number := i/2 + 1
		next = append(next, &BlueprintMatch{
			UID:    fmt.Sprintf("%s%dM%d", uidPrefix, sideOrdinal, number),
			Number: number,
			Slot1:  models.ResolvedSlot(w1),
			Slot2:  models.ResolvedSlot(w2),
		})
	}
	return next, nil
}

func finalWinner(m *models.Match) (int, error) {
	if m == nil || !m.Status.Final() || m.WinnerTeamID == nil {
		uid := "?"
		if m != nil {
			uid = m.UID
		}
		return 0, fmt.Errorf("match %s is not final with a winner", uid)
	}
	return *m.WinnerTeamID, nil
}
