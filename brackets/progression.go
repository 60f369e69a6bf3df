package brackets

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"

	"github.com/clubkit/tournament-engine/models"
)

// MatchGraph builds the directed progression graph of a division's matches:
// an edge runs from a source match to every match whose slot waits on its
// winner or loser. Duplicate UIDs and cyclic references are rejected; a cycle
// would mean a match transitively feeds itself, which can only be the result
// of external tampering.
func MatchGraph(matches []*models.Match) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for _, m := range matches {
		if err := g.AddVertex(m.UID); err != nil {
			if errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, fmt.Errorf("duplicate match uid %s", m.UID)
			}
			return nil, err
		}
	}

	for _, m := range matches {
		for _, slot := range []models.TeamSlot{m.Slot1, m.Slot2} {
			if slot.SourceMatchUID == "" {
				continue
			}
			if err := g.AddEdge(slot.SourceMatchUID, m.UID); err != nil {
				switch {
				case errors.Is(err, graph.ErrEdgeAlreadyExists):
					// Both slots may wait on the same source; harmless.
				case errors.Is(err, graph.ErrEdgeCreatesCycle):
					return nil, fmt.Errorf("progression cycle through %s and %s", slot.SourceMatchUID, m.UID)
				case errors.Is(err, graph.ErrVertexNotFound):
					return nil, fmt.Errorf("match %s waits on unknown match %s", m.UID, slot.SourceMatchUID)
				default:
					return nil, err
				}
			}
		}
	}

	return g, nil
}

// ValidateProgression checks that a division's matches form an acyclic
// progression with no dangling slot references.
func ValidateProgression(matches []*models.Match) error {
	_, err := MatchGraph(matches)
	return err
}

// ScheduleOrder returns matches in the order the court scheduler should
// consider them: a topological order of the progression graph with ties
// broken by round ordinal and match number, so earlier rounds land earlier
// in the tournament window.
func ScheduleOrder(matches []*models.Match, rounds map[int]*models.Round) ([]*models.Match, error) {
	g, err := MatchGraph(matches)
	if err != nil {
		return nil, err
	}

	byUID := make(map[string]*models.Match, len(matches))
	for _, m := range matches {
		byUID[m.UID] = m
	}

	rank := func(uid string) (int, int) {
		m := byUID[uid]
		ordinal := 0
		if r, ok := rounds[m.RoundID]; ok {
			ordinal = r.Ordinal
		}
		return ordinal, m.Number
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		ao, an := rank(a)
		bo, bn := rank(b)
		if ao != bo {
			return ao < bo
		}
		return an < bn
	})
	if err != nil {
		return nil, fmt.Errorf("progression sort: %w", err)
	}

	ordered := make([]*models.Match, 0, len(order))
	for _, uid := range order {
		ordered = append(ordered, byUID[uid])
	}
	return ordered, nil
}
