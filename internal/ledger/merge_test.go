package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var mergeDay = time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)

func expenseRow(id int, expense, balance int64, summary string) Ledger {
	return Ledger{
		ID:        id,
		CardID:    1,
		EntryDate: mergeDay,
		Summary:   summary,
		Expense:   expense,
		Balance:   balance,
	}
}

func TestMergeValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("Too few rows", func(t *testing.T) {
		svc := NewService(new(MockRepo))

		_, err := svc.Merge(ctx, []int{1}, "")

		assert.ErrorIs(t, err, ErrMergeTooFew)
	})

	t.Run("Different cards", func(t *testing.T) {
		repo := new(MockRepo)
		svc := NewService(repo)

		rows := []Ledger{
			{ID: 1, CardID: 1, EntryDate: mergeDay, Expense: 100, Balance: 900},
			{ID: 2, CardID: 2, EntryDate: mergeDay, Expense: 100, Balance: 800},
		}
		repo.On("GetLedgers", ctx, []int{1, 2}).Return(rows, nil)

		_, err := svc.Merge(ctx, []int{1, 2}, "")

		assert.ErrorIs(t, err, ErrMergeDifferentCards)
		repo.AssertNotCalled(t, "ApplyMerge")
	})

	t.Run("Open lending record", func(t *testing.T) {
		repo := new(MockRepo)
		svc := NewService(repo)

		rows := []Ledger{
			expenseRow(1, 100, 900, "x"),
			{ID: 2, CardID: 1, EntryDate: mergeDay, IsOpenLending: true, Balance: 900},
		}
		repo.On("GetLedgers", ctx, []int{1, 2}).Return(rows, nil)

		_, err := svc.Merge(ctx, []int{1, 2}, "")

		assert.ErrorIs(t, err, ErrMergeOpenLending)
	})

	t.Run("Mixed income and expense", func(t *testing.T) {
		repo := new(MockRepo)
		svc := NewService(repo)

		rows := []Ledger{
			{ID: 1, CardID: 1, EntryDate: mergeDay, Income: 1000, Balance: 2000},
			{ID: 2, CardID: 1, EntryDate: mergeDay, Expense: 100, Balance: 1900},
		}
		repo.On("GetLedgers", ctx, []int{1, 2}).Return(rows, nil)

		_, err := svc.Merge(ctx, []int{1, 2}, "")

		assert.ErrorIs(t, err, ErrMergeMixed)
	})

	t.Run("Zero-amount row merges with expense rows", func(t *testing.T) {
		repo := new(MockRepo)
		svc := NewService(repo)

		rows := []Ledger{
			expenseRow(1, 100, 900, "A - B"),
			expenseRow(2, 0, 900, "note only"),
		}
		repo.On("GetLedgers", ctx, []int{1, 2}).Return(rows, nil)
		repo.On("ListByCard", ctx, 1, mergeDay, mergeDay).Return(rows, nil)
		repo.On("BalanceBefore", ctx, 1, mergeDay).Return(int64(1000), nil)
		repo.On("ListDetails", ctx, 1).Return([]Detail{}, nil)
		repo.On("ListDetails", ctx, 2).Return([]Detail{}, nil)
		repo.On("ApplyMerge", ctx, mock.Anything, []int{1, 2}, mock.Anything).
			Return(&Ledger{ID: 30}, nil)

		_, err := svc.Merge(ctx, []int{1, 2}, "")

		assert.NoError(t, err)
	})

	t.Run("Not contiguous in display order", func(t *testing.T) {
		repo := new(MockRepo)
		svc := NewService(repo)

		// 1000 -> r1 900 -> r2 800 -> r3 700; selecting r1 and r3 skips r2.
		r1 := expenseRow(1, 100, 900, "a")
		r2 := expenseRow(2, 100, 800, "b")
		r3 := expenseRow(3, 100, 700, "c")

		repo.On("GetLedgers", ctx, []int{1, 3}).Return([]Ledger{r1, r3}, nil)
		repo.On("ListByCard", ctx, 1, mergeDay, mergeDay).Return([]Ledger{r1, r2, r3}, nil)
		repo.On("BalanceBefore", ctx, 1, mergeDay).Return(int64(1000), nil)

		_, err := svc.Merge(ctx, []int{1, 3}, "")

		assert.ErrorIs(t, err, ErrMergeNotContiguous)
		repo.AssertNotCalled(t, "ApplyMerge")
	})
}

func TestMergeAndUndoRoundTrip(t *testing.T) {
	ctx := context.Background()

	repo := new(MockRepo)
	svc := NewService(repo)

	r1 := expenseRow(1, 200, 800, "A - B")
	r2 := expenseRow(2, 150, 650, "B - C")
	rows := []Ledger{r1, r2}

	one := 1
	d1 := Detail{ID: 11, LedgerID: 1, Amount: 200, Balance: 800, Seq: 1, GroupID: &one}
	d2 := Detail{ID: 12, LedgerID: 2, Amount: 150, Balance: 650, Seq: 2}

	repo.On("GetLedgers", ctx, []int{1, 2}).Return(rows, nil)
	repo.On("ListByCard", ctx, 1, mergeDay, mergeDay).Return(rows, nil)
	repo.On("BalanceBefore", ctx, 1, mergeDay).Return(int64(1000), nil)
	repo.On("ListDetails", ctx, 1).Return([]Detail{d1}, nil)
	repo.On("ListDetails", ctx, 2).Return([]Detail{d2}, nil)

	var captured *MergeHistory
	repo.On("ApplyMerge", ctx, mock.AnythingOfType("*ledger.Ledger"), []int{1, 2}, mock.AnythingOfType("*ledger.MergeHistory")).
		Run(func(args mock.Arguments) {
			merged := args.Get(1).(*Ledger)
			assert.Equal(t, int64(0), merged.Income)
			assert.Equal(t, int64(350), merged.Expense)
			assert.Equal(t, int64(650), merged.Balance)
			assert.Equal(t, "A - B / B - C", merged.Summary)

			captured = args.Get(3).(*MergeHistory)
		}).
		Return(&Ledger{ID: 30, CardID: 1, Expense: 350, Balance: 650}, nil)

	merged, err := svc.Merge(ctx, []int{1, 2}, "combined trip")
	require.NoError(t, err)
	assert.Equal(t, 30, merged.ID)
	require.NotNil(t, captured)

	// The snapshot must reconstruct the pre-merge rows exactly,
	// summaries, amounts, balances and group assignments included.
	var snap Snapshot
	require.NoError(t, json.Unmarshal(captured.Snapshot, &snap))
	assert.Equal(t, rows, snap.Rows)
	assert.Equal(t, []Detail{d1, d2}, snap.Details)

	captured.ID = 77
	repo.On("GetMergeHistory", ctx, 77).Return(captured, nil)
	repo.On("ApplyUndo", ctx, captured, mock.AnythingOfType("*ledger.Snapshot")).
		Run(func(args mock.Arguments) {
			restored := args.Get(2).(*Snapshot)
			assert.Equal(t, rows, restored.Rows)
			assert.Equal(t, []Detail{d1, d2}, restored.Details)
		}).
		Return(nil)

	undone, err := svc.UndoMerge(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, rows, undone)

	repo.AssertExpectations(t)
}

func TestSplit(t *testing.T) {
	ctx := context.Background()

	t.Run("Needs at least two explicit groups", func(t *testing.T) {
		repo := new(MockRepo)
		svc := NewService(repo)

		repo.On("GetLedger", ctx, 10).Return(&Ledger{ID: 10, CardID: 1}, nil)
		repo.On("ListDetails", ctx, 10).Return([]Detail{
			rail(1, "A", "B", 200, 4800),
			rail(2, "X", "Y", 150, 4650),
		}, nil)

		_, err := svc.Split(ctx, 10)

		assert.ErrorIs(t, err, ErrSplitNeedsGroups)
		repo.AssertNotCalled(t, "ApplySplit")
	})

	t.Run("Open lending record cannot split", func(t *testing.T) {
		repo := new(MockRepo)
		svc := NewService(repo)

		repo.On("GetLedger", ctx, 10).Return(&Ledger{ID: 10, IsOpenLending: true}, nil)

		_, err := svc.Split(ctx, 10)

		assert.ErrorIs(t, err, ErrMergeOpenLending)
	})

	t.Run("One header per group with re-chained balances", func(t *testing.T) {
		repo := new(MockRepo)
		svc := NewService(repo)

		ch := charge(1, 1000, 5650)
		leg1 := rail(2, "A", "B", 200, 5450)
		leg2 := rail(3, "X", "Y", 150, 5300)
		details := ApplyDividers([]Detail{ch, leg1, leg2}, []int{0, 1})

		repo.On("GetLedger", ctx, 10).Return(&Ledger{ID: 10, CardID: 1, StaffName: "Tanaka"}, nil)
		repo.On("ListDetails", ctx, 10).Return(details, nil)
		repo.On("ApplySplit", ctx, 10, mock.AnythingOfType("[]ledger.Ledger"), mock.Anything).
			Run(func(args mock.Arguments) {
				rows := args.Get(2).([]Ledger)
				require.Len(t, rows, 3)

				assert.Equal(t, SummaryCharge, rows[0].Summary)
				assert.Equal(t, int64(1000), rows[0].Income)
				assert.Equal(t, int64(5650), rows[0].Balance)

				assert.Equal(t, "A - B", rows[1].Summary)
				assert.Equal(t, int64(200), rows[1].Expense)
				assert.Equal(t, int64(5450), rows[1].Balance)

				assert.Equal(t, "X - Y", rows[2].Summary)
				assert.Equal(t, int64(150), rows[2].Expense)
				assert.Equal(t, int64(5300), rows[2].Balance)
			}).
			Return([]Ledger{{ID: 31}, {ID: 32}, {ID: 33}}, nil)

		created, err := svc.Split(ctx, 10)

		require.NoError(t, err)
		assert.Len(t, created, 3)
		repo.AssertExpectations(t)
	})
}

func TestMergeHistories(t *testing.T) {
	ctx := context.Background()

	repo := new(MockRepo)
	svc := NewService(repo)

	histories := []MergeHistory{{ID: 2}, {ID: 1}}
	repo.On("ListMergeHistories", ctx, 1).Return(histories, nil)

	got, err := svc.MergeHistories(ctx, 1)

	require.NoError(t, err)
	assert.Equal(t, histories, got)
}
