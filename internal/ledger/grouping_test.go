package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rail(seq int, entry, exit string, amount, balance int64) Detail {
	return Detail{
		OccurredAt:   time.Date(2025, 4, 1, 9, seq, 0, 0, time.UTC),
		EntryStation: entry,
		ExitStation:  exit,
		Amount:       amount,
		Balance:      balance,
		Seq:          seq,
	}
}

func bus(seq int, stop string, amount, balance int64) Detail {
	d := rail(seq, "", "", amount, balance)
	d.IsBus = true
	d.BusStop = stop
	return d
}

func charge(seq int, amount, balance int64) Detail {
	d := rail(seq, "", "", amount, balance)
	d.IsCharge = true
	return d
}

func groupIDs(details []Detail) []*int {
	ids := make([]*int, len(details))
	for i, d := range details {
		ids[i] = d.GroupID
	}
	return ids
}

func TestAutoGroups(t *testing.T) {
	t.Run("Continuous rail legs chain into one trip", func(t *testing.T) {
		details := []Detail{
			rail(1, "A", "B", 200, 4800),
			rail(2, "B", "C", 150, 4650),
			rail(3, "X", "Y", 300, 4350),
		}

		groups := Groups(details)

		require.Len(t, groups, 2)
		assert.Len(t, groups[0], 2)
		assert.Len(t, groups[1], 1)
	})

	t.Run("Charge breaks continuity", func(t *testing.T) {
		details := []Detail{
			rail(1, "A", "B", 200, 4800),
			charge(2, 1000, 5800),
			rail(3, "B", "C", 150, 5650),
		}

		groups := Groups(details)

		assert.Len(t, groups, 3)
	})

	t.Run("Bus legs never chain", func(t *testing.T) {
		details := []Detail{
			bus(1, "Stop 1", 210, 4790),
			bus(2, "Stop 2", 210, 4580),
		}

		groups := Groups(details)

		assert.Len(t, groups, 2)
	})
}

func TestExplicitGroupsSuppressInference(t *testing.T) {
	one, two := 1, 2
	// Continuous rail legs that WOULD auto-chain, but a manual divider
	// splits them.
	details := []Detail{
		rail(1, "A", "B", 200, 4800),
		rail(2, "B", "C", 150, 4650),
	}
	details[0].GroupID = &one
	details[1].GroupID = &two

	groups := Groups(details)

	require.Len(t, groups, 2)
}

func TestApplyDividers(t *testing.T) {
	details := []Detail{
		rail(1, "A", "B", 200, 4800),
		rail(2, "B", "C", 150, 4650),
		rail(3, "C", "D", 100, 4550),
	}

	t.Run("Single boundary assigns every row a group", func(t *testing.T) {
		updated := ApplyDividers(details, []int{0})

		require.Len(t, updated, 3)
		for _, d := range updated {
			require.NotNil(t, d.GroupID)
		}
		assert.Equal(t, 1, *updated[0].GroupID)
		assert.Equal(t, 2, *updated[1].GroupID)
		assert.Equal(t, 2, *updated[2].GroupID)
	})

	t.Run("Empty boundaries clear all group ids", func(t *testing.T) {
		updated := ApplyDividers(details, []int{1})
		cleared := ApplyDividers(updated, nil)

		for _, d := range cleared {
			assert.Nil(t, d.GroupID)
		}
	})

	t.Run("Toggle then untoggle restores the original assignment", func(t *testing.T) {
		original := groupIDs(details)

		toggled := ApplyDividers(details, []int{1})
		boundaries := DividerBoundaries(toggled)
		require.Equal(t, []int{1}, boundaries)

		// Remove the only divider again.
		restored := ApplyDividers(toggled, nil)

		assert.Equal(t, original, groupIDs(restored))
	})
}

func TestDividerBoundaries(t *testing.T) {
	t.Run("Automatic mode has no dividers", func(t *testing.T) {
		details := []Detail{
			rail(1, "A", "B", 200, 4800),
			rail(2, "X", "Y", 150, 4650),
		}

		assert.Nil(t, DividerBoundaries(details))
	})

	t.Run("Boundaries recovered from stored ids", func(t *testing.T) {
		details := ApplyDividers([]Detail{
			rail(1, "A", "B", 200, 4800),
			rail(2, "B", "C", 150, 4650),
			rail(3, "C", "D", 100, 4550),
		}, []int{0, 1})

		assert.Equal(t, []int{0, 1}, DividerBoundaries(details))
	})
}

func TestGroupSummary(t *testing.T) {
	t.Run("Multi-leg rail route", func(t *testing.T) {
		group := []Detail{
			rail(1, "A", "B", 200, 4800),
			rail(2, "B", "C", 150, 4650),
		}

		assert.Equal(t, "A - B - C", GroupSummary(group))
	})

	t.Run("Bus with unknown stop", func(t *testing.T) {
		assert.Equal(t, "Bus (??)", GroupSummary([]Detail{bus(1, "", 210, 4790)}))
	})

	t.Run("Bus with known stop", func(t *testing.T) {
		assert.Equal(t, "Bus (Central)", GroupSummary([]Detail{bus(1, "Central", 210, 4790)}))
	})

	t.Run("Charge and point phrases", func(t *testing.T) {
		assert.Equal(t, SummaryCharge, GroupSummary([]Detail{charge(1, 1000, 5800)}))

		point := rail(1, "", "", 500, 5300)
		point.IsPoint = true
		assert.Equal(t, SummaryPoint, GroupSummary([]Detail{point}))
	})
}

func TestSummary(t *testing.T) {
	details := []Detail{
		rail(1, "A", "B", 200, 4800),
		rail(2, "B", "C", 150, 4650),
		charge(3, 1000, 5650),
		bus(4, "", 210, 5440),
	}

	assert.Equal(t, "A - B - C, Charge, Bus (??)", Summary(details))
}

func TestCountUnknownBusStops(t *testing.T) {
	details := []Detail{
		bus(1, "", 210, 4790),
		bus(2, "Central", 210, 4580),
		rail(3, "A", "B", 200, 4380),
	}

	assert.Equal(t, 1, CountUnknownBusStops(details))
}
