package brackets

import (
	"fmt"
	"sort"

	"github.com/clubkit/tournament-engine/models"
)

const (
	pointsPerWin  = 3
	pointsPerDraw = 1
)

// ComputeStandings builds the group table for a set of finalized round-robin
// matches: 3 points per win, 1 per draw, 0 per loss. Ties are broken by
// head-to-head points among the tied teams, then game differential, then
// team name ascending as a deterministic final tiebreak. The returned rows
// are ordered and their Rank fields filled starting at 1.
func ComputeStandings(teams []*models.Team, matches []*models.Match) ([]models.Standing, error) {
	rows := make(map[int]*models.Standing, len(teams))
	for _, t := range teams {
		rows[t.ID] = &models.Standing{TeamID: t.ID, TeamName: t.Name}
	}

	for _, m := range matches {
		if !m.Status.Final() {
			continue
		}
		if !m.Slot1.Resolved() || !m.Slot2.Resolved() {
			return nil, fmt.Errorf("finalized match %s has unresolved slots", m.UID)
		}
		r1, ok1 := rows[m.Slot1.TeamID]
		r2, ok2 := rows[m.Slot2.TeamID]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("match %s references a team outside the group", m.UID)
		}

		r1.Played++
		r2.Played++

		if m.Score != nil {
			sets, err := models.ParseScore(*m.Score)
			if err != nil {
				return nil, fmt.Errorf("match %s: %w", m.UID, err)
			}
			for _, s := range sets {
				r1.GamesFor += s.Team1
				r1.GamesAgainst += s.Team2
				r2.GamesFor += s.Team2
				r2.GamesAgainst += s.Team1
			}
		}

		switch {
		case m.WinnerTeamID == nil:
			r1.Draws++
			r2.Draws++
			r1.Points += pointsPerDraw
			r2.Points += pointsPerDraw
		case *m.WinnerTeamID == r1.TeamID:
			r1.Wins++
			r2.Losses++
			r1.Points += pointsPerWin
		case *m.WinnerTeamID == r2.TeamID:
			r2.Wins++
			r1.Losses++
			r2.Points += pointsPerWin
		default:
			return nil, fmt.Errorf("match %s winner %d is not a participant", m.UID, *m.WinnerTeamID)
		}
	}

	table := make([]models.Standing, 0, len(rows))
	for _, r := range rows {
		table = append(table, *r)
	}

	sort.Slice(table, func(i, j int) bool {
		return table[i].Points > table[j].Points ||
			(table[i].Points == table[j].Points && table[i].TeamName < table[j].TeamName)
	})

	// Re-order groups of equal points by head-to-head, then game diff, then name.
	for lo := 0; lo < len(table); {
		hi := lo + 1
		for hi < len(table) && table[hi].Points == table[lo].Points {
			hi++
		}
		if hi-lo > 1 {
			sortTieGroup(table[lo:hi], matches)
		}
		lo = hi
	}

	for i := range table {
		table[i].Rank = i + 1
	}
	return table, nil
}

// sortTieGroup orders teams on equal points by their results against each
// other, falling back to overall game differential and then name.
func sortTieGroup(group []models.Standing, matches []*models.Match) {
	tied := make(map[int]bool, len(group))
	for _, s := range group {
		tied[s.TeamID] = true
	}

	h2h := make(map[int]int, len(group))
	for _, m := range matches {
		if !m.Status.Final() || !m.Slot1.Resolved() || !m.Slot2.Resolved() {
			continue
		}
		if !tied[m.Slot1.TeamID] || !tied[m.Slot2.TeamID] {
			continue
		}
		switch {
		case m.WinnerTeamID == nil:
			h2h[m.Slot1.TeamID] += pointsPerDraw
			h2h[m.Slot2.TeamID] += pointsPerDraw
		default:
			h2h[*m.WinnerTeamID] += pointsPerWin
		}
	}

	sort.SliceStable(group, func(i, j int) bool {
		if h2h[group[i].TeamID] != h2h[group[j].TeamID] {
			return h2h[group[i].TeamID] > h2h[group[j].TeamID]
		}
		if group[i].GameDiff() != group[j].GameDiff() {
			return group[i].GameDiff() > group[j].GameDiff()
		}
		return group[i].TeamName < group[j].TeamName
	})
}

// QualifierTeams maps the top-k standings rows back onto team records with
// their playoff seeds set by rank, ready for BuildElimination.
func QualifierTeams(standings []models.Standing, teams []*models.Team, k int) ([]*models.Team, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: %d playoff qualifiers", ErrInsufficientTeams, k)
	}
	if k > len(standings) {
		k = len(standings)
	}
	byID := make(map[int]*models.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}
	qualified := make([]*models.Team, 0, k)
	for _, s := range standings[:k] {
		t, ok := byID[s.TeamID]
		if !ok {
			return nil, fmt.Errorf("standings row references unknown team %d", s.TeamID)
		}
		seeded := *t
		rank := s.Rank
		seeded.Seed = &rank
		qualified = append(qualified, &seeded)
	}
	return qualified, nil
}
