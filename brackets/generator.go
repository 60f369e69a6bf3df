package brackets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/clubkit/tournament-engine/models"
)

var (
	// ErrInsufficientTeams is returned when a division has fewer than two
	// confirmed teams.
	ErrInsufficientTeams = errors.New("not enough confirmed teams to generate a bracket (minimum 2)")
	// ErrUnsupportedBracketShape is returned when the team count cannot be
	// arranged into the requested format (double elimination requires a
	// power-of-two field of at least 4).
	ErrUnsupportedBracketShape = errors.New("team count not supported by the requested bracket format")
)

// GenerateParams carries everything a generator needs to lay out a division's
// initial bracket.
type GenerateParams struct {
	Division *models.Division
	Teams    []*models.Team
}

// Generator lays out the round topology and the initial match set for one
// bracket format. Later rounds are populated by the advancement engine, never
// by the generator.
type Generator interface {
	Generate(ctx context.Context, params GenerateParams) (*Blueprint, error)
	Name() string
}

// ForFormat returns the generator for a tournament format.
func ForFormat(format models.TournamentFormat) (Generator, error) {
	switch format {
	case models.FormatSingleElimination:
		return NewSingleEliminationGenerator(), nil
	case models.FormatRoundRobin:
		return NewRoundRobinGenerator(), nil
	case models.FormatDoubleElimination:
		return NewDoubleEliminationGenerator(), nil
	}
	return nil, fmt.Errorf("unsupported tournament format %q", format)
}

// Blueprint is the generator output: every round of the bracket with its
// expected match count, and concrete matches only for the rounds that are
// playable immediately. A round is never filled before all of its
// prerequisite matches are final.
type Blueprint struct {
	Rounds []*BlueprintRound
}

type BlueprintRound struct {
	Stage       string
	Ordinal     int
	Side        models.BracketSide
	SideOrdinal int
	Expected    int
	Matches     []*BlueprintMatch
}

// BlueprintMatch is a match before persistence. Walkover rows record a bye:
// they are final at creation time and are never put on a court.
type BlueprintMatch struct {
	UID          string
	Number       int
	Slot1        models.TeamSlot
	Slot2        models.TeamSlot
	Walkover     bool
	WinnerTeamID *int
}

// MatchCount returns the number of matches currently laid out.
func (bp *Blueprint) MatchCount() int {
	n := 0
	for _, r := range bp.Rounds {
		n += len(r.Matches)
	}
	return n
}

// orderTeams returns teams in pairing order: seeded teams first (ascending
// seed), then the rest in registration order.
func orderTeams(teams []*models.Team) []*models.Team {
	ordered := make([]*models.Team, len(teams))
	copy(ordered, teams)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := ordered[i].Seed, ordered[j].Seed
		switch {
		case si != nil && sj != nil:
			return *si < *sj
		case si != nil:
			return true
		case sj != nil:
			return false
		default:
			return ordered[i].ID < ordered[j].ID
		}
	})
	return ordered
}

func nextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

// seedPositions returns the seed number occupying each bracket position for a
// field of the given power-of-two size, following the standard 1 vs N,
// 2 vs N-1 layout (1,8,4,5,2,7,3,6 for size 8).
func seedPositions(size int) []int {
	positions := []int{1}
	for len(positions) < size {
		next := make([]int, 0, len(positions)*2)
		mirror := len(positions)*2 + 1
		for _, p := range positions {
			next = append(next, p, mirror-p)
		}
		positions = next
	}
	return positions
}

// eliminationStage names a round by the number of matches it holds.
func eliminationStage(matches int) string {
	switch matches {
	case 1:
		return "Final"
	case 2:
		return "Semifinals"
	case 4:
		return "Quarterfinals"
	default:
		return fmt.Sprintf("Round of %d", matches*2)
	}
}
