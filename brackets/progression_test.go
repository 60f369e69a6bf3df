package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubkit/tournament-engine/models"
)

func TestValidateProgressionAcceptsKnockoutTree(t *testing.T) {
	matches := []*models.Match{
		{UID: "R1M1", Number: 1, Slot1: models.ResolvedSlot(1), Slot2: models.ResolvedSlot(2)},
		{UID: "R1M2", Number: 2, Slot1: models.ResolvedSlot(3), Slot2: models.ResolvedSlot(4)},
		{UID: "R2M1", Number: 1, Slot1: models.WinnerOfSlot("R1M1"), Slot2: models.WinnerOfSlot("R1M2")},
	}
	assert.NoError(t, ValidateProgression(matches))
}

func TestValidateProgressionRejectsCycle(t *testing.T) {
	matches := []*models.Match{
		{UID: "R1M1", Number: 1, Slot1: models.WinnerOfSlot("R2M1"), Slot2: models.ResolvedSlot(2)},
		{UID: "R2M1", Number: 1, Slot1: models.WinnerOfSlot("R1M1"), Slot2: models.ResolvedSlot(3)},
	}
	err := ValidateProgression(matches)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidateProgressionRejectsDanglingReference(t *testing.T) {
	matches := []*models.Match{
		{UID: "R2M1", Number: 1, Slot1: models.WinnerOfSlot("R1M9"), Slot2: models.ResolvedSlot(1)},
	}
	err := ValidateProgression(matches)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown match")
}

func TestValidateProgressionRejectsDuplicateUIDs(t *testing.T) {
	matches := []*models.Match{
		{UID: "R1M1", Number: 1, Slot1: models.ResolvedSlot(1), Slot2: models.ResolvedSlot(2)},
		{UID: "R1M1", Number: 2, Slot1: models.ResolvedSlot(3), Slot2: models.ResolvedSlot(4)},
	}
	err := ValidateProgression(matches)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidateProgressionAllowsBothSlotsFromSameSource(t *testing.T) {
	// Winner and loser of the same fixture feeding one match happens in the
	// grand final reset.
	matches := []*models.Match{
		{UID: "GF1", Number: 1, Slot1: models.ResolvedSlot(1), Slot2: models.ResolvedSlot(2)},
		{UID: "GF2", Number: 1, Slot1: models.WinnerOfSlot("GF1"), Slot2: models.LoserOfSlot("GF1")},
	}
	assert.NoError(t, ValidateProgression(matches))
}

func TestScheduleOrderRespectsRoundsAndDependencies(t *testing.T) {
	rounds := map[int]*models.Round{
		1: {ID: 1, Ordinal: 1},
		2: {ID: 2, Ordinal: 2},
	}
	matches := []*models.Match{
		{UID: "R2M1", RoundID: 2, Number: 1, Slot1: models.WinnerOfSlot("R1M1"), Slot2: models.WinnerOfSlot("R1M2")},
		{UID: "R1M2", RoundID: 1, Number: 2, Slot1: models.ResolvedSlot(3), Slot2: models.ResolvedSlot(4)},
		{UID: "R1M1", RoundID: 1, Number: 1, Slot1: models.ResolvedSlot(1), Slot2: models.ResolvedSlot(2)},
	}

	ordered, err := ScheduleOrder(matches, rounds)
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, "R1M1", ordered[0].UID)
	assert.Equal(t, "R1M2", ordered[1].UID)
	assert.Equal(t, "R2M1", ordered[2].UID)
}
