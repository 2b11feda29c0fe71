package ledger

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(id int, income, expense, balance int64) Ledger {
	return Ledger{ID: id, Income: income, Expense: expense, Balance: balance}
}

func TestOrderByBalanceChain(t *testing.T) {
	t.Run("Recovers shuffled order", func(t *testing.T) {
		// True order: 1000 -> +500=1500 -> -200=1300 -> -300=1000.
		rows := []Ledger{
			row(3, 0, 300, 1000),
			row(1, 500, 0, 1500),
			row(2, 0, 200, 1300),
		}

		ordered := OrderByBalanceChain(1000, rows)

		require.Len(t, ordered, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{ordered[0].ID, ordered[1].ID, ordered[2].ID})
	})

	t.Run("Ties broken by insertion id", func(t *testing.T) {
		// Both rows satisfy the identity at the start (zero amounts).
		rows := []Ledger{
			row(7, 0, 0, 1000),
			row(4, 0, 0, 1000),
		}

		ordered := OrderByBalanceChain(1000, rows)

		assert.Equal(t, 4, ordered[0].ID)
		assert.Equal(t, 7, ordered[1].ID)
	})

	t.Run("Unmatched rows appended in insertion order", func(t *testing.T) {
		rows := []Ledger{
			row(2, 0, 0, 9999),
			row(1, 300, 0, 1300),
			row(3, 0, 0, 8888),
		}

		ordered := OrderByBalanceChain(1000, rows)

		require.Len(t, ordered, 3)
		assert.Equal(t, 1, ordered[0].ID)
		assert.Equal(t, 2, ordered[1].ID)
		assert.Equal(t, 3, ordered[2].ID)
	})

	t.Run("Empty input", func(t *testing.T) {
		assert.Empty(t, OrderByBalanceChain(0, nil))
	})
}

// Any order recovered from a consistent sequence must itself check out,
// no matter how the rows were stored.
func TestChainOrderSoundness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		running := int64(1000 + rng.Intn(5000))
		prev := running

		rows := make([]Ledger, 0, 8)
		for i := 1; i <= 8; i++ {
			amount := int64(rng.Intn(800))
			var income, expense int64
			if rng.Intn(2) == 0 {
				income = amount
			} else if amount > running {
				income = amount
			} else {
				expense = amount
			}
			running = running + income - expense
			rows = append(rows, row(i, income, expense, running))
		}

		rng.Shuffle(len(rows), func(i, j int) {
			rows[i], rows[j] = rows[j], rows[i]
		})

		ok, breaks := CheckConsistency(prev, rows)
		assert.True(t, ok, "trial %d reported breaks: %v", trial, breaks)
	}
}

func TestCheckConsistency(t *testing.T) {
	t.Run("Consistent chain", func(t *testing.T) {
		rows := []Ledger{
			row(1, 1000, 0, 1000),
			row(2, 300, 0, 1300),
		}

		ok, breaks := CheckConsistency(0, rows)

		assert.True(t, ok)
		assert.Empty(t, breaks)
	})

	t.Run("Single break at the mismatched row", func(t *testing.T) {
		// Balances 1000, 1300, then a zero-amount row stored as 1250.
		rows := []Ledger{
			row(1, 1000, 0, 1000),
			row(2, 300, 0, 1300),
			row(3, 0, 0, 1250),
		}

		ok, breaks := CheckConsistency(0, rows)

		assert.False(t, ok)
		require.Len(t, breaks, 1)
		assert.Equal(t, 3, breaks[0].LedgerID)
		assert.Equal(t, int64(1300), breaks[0].Expected)
		assert.Equal(t, int64(1250), breaks[0].Actual)
	})

	t.Run("Empty range is consistent", func(t *testing.T) {
		ok, breaks := CheckConsistency(500, nil)

		assert.True(t, ok)
		assert.Empty(t, breaks)
	})
}
