package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatScore renders set scores in the canonical "6-4 3-6 7-5" form stored
// on finalized matches.
func FormatScore(sets []SetScore) string {
	parts := make([]string, 0, len(sets))
	for _, s := range sets {
		parts = append(parts, fmt.Sprintf("%d-%d", s.Team1, s.Team2))
	}
	return strings.Join(parts, " ")
}

// ParseScore parses the canonical score form produced by FormatScore.
func ParseScore(score string) ([]SetScore, error) {
	score = strings.TrimSpace(score)
	if score == "" {
		return nil, nil
	}
	parts := strings.Fields(score)
	sets := make([]SetScore, 0, len(parts))
	for _, p := range parts {
		a, b, ok := strings.Cut(p, "-")
		if !ok {
			return nil, fmt.Errorf("invalid set score %q", p)
		}
		t1, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid set score %q: %w", p, err)
		}
		t2, err := strconv.Atoi(b)
		if err != nil {
			return nil, fmt.Errorf("invalid set score %q: %w", p, err)
		}
		if t1 < 0 || t2 < 0 {
			return nil, fmt.Errorf("negative games in set score %q", p)
		}
		sets = append(sets, SetScore{Team1: t1, Team2: t2})
	}
	return sets, nil
}
