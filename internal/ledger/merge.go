package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cardledger/internal/metrics"
)

var (
	ErrMergeTooFew         = errors.New("merge needs at least two rows")
	ErrMergeDifferentCards = errors.New("merge rows must belong to one card")
	ErrMergeOpenLending    = errors.New("cannot merge the open lending record")
	ErrMergeMixed          = errors.New("cannot merge income rows with expense rows")
	ErrMergeNotContiguous  = errors.New("merge rows must be contiguous in display order")
	ErrSplitNeedsGroups    = errors.New("split needs at least two detail groups")
)

// Merge replaces a contiguous run of same-card rows with one aggregate
// row and records a snapshot sufficient to undo it. Every precondition
// failure is a local validation error; nothing is written.
func (s *Service) Merge(ctx context.Context, ledgerIDs []int, note string) (*Ledger, error) {
	if len(ledgerIDs) < 2 {
		return nil, ErrMergeTooFew
	}

	rows, err := s.repo.GetLedgers(ctx, ledgerIDs)
	if err != nil {
		return nil, err
	}
	if len(rows) != len(ledgerIDs) {
		return nil, ErrLedgerNotFound
	}

	cardID := rows[0].CardID
	hasIncome, hasExpense := false, false
	for _, row := range rows {
		if row.CardID != cardID {
			return nil, ErrMergeDifferentCards
		}
		if row.IsOpenLending {
			return nil, ErrMergeOpenLending
		}
		if row.Income > 0 {
			hasIncome = true
		}
		if row.Expense > 0 {
			hasExpense = true
		}
	}
	// A zero-amount row is both income-only and expense-only; only a
	// genuine mix is rejected.
	if hasIncome && hasExpense {
		return nil, ErrMergeMixed
	}

	ordered, err := s.orderedRun(ctx, cardID, rows)
	if err != nil {
		return nil, err
	}
	if ordered == nil {
		return nil, ErrMergeNotContiguous
	}

	last := ordered[len(ordered)-1]
	merged := &Ledger{
		CardID:    cardID,
		EntryDate: last.EntryDate,
		Summary:   joinSummaries(ordered),
		Balance:   last.Balance,
		StaffName: last.StaffName,
		Note:      note,
	}
	for _, row := range ordered {
		merged.Income += row.Income
		merged.Expense += row.Expense
	}

	var allDetails []Detail
	for _, row := range ordered {
		details, err := s.repo.ListDetails(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		allDetails = append(allDetails, details...)
	}

	snapshot, err := json.Marshal(Snapshot{Rows: ordered, Details: allDetails})
	if err != nil {
		return nil, err
	}

	history := &MergeHistory{
		CardID:      cardID,
		Description: fmt.Sprintf("Merged %d rows: %s", len(ordered), merged.Summary),
		Snapshot:    snapshot,
	}

	created, err := s.repo.ApplyMerge(ctx, merged, ledgerIDs, history)
	if err != nil {
		return nil, err
	}

	metrics.RecordMergeOp("merge")
	return created, nil
}

// Split explodes one row into one header per detail group, each with
// its own recomputed income and expense and a balance re-chained across
// the sequence in group order.
func (s *Service) Split(ctx context.Context, ledgerID int) ([]Ledger, error) {
	row, err := s.repo.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	if row.IsOpenLending {
		return nil, ErrMergeOpenLending
	}

	details, err := s.repo.ListDetails(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	sorted := SortDetails(details)

	if !HasExplicitGroups(sorted) || countDistinctGroups(sorted) < 2 {
		return nil, ErrSplitNeedsGroups
	}

	groups := Groups(sorted)
	rows := make([]Ledger, 0, len(groups))
	for _, group := range groups {
		income, expense := int64(0), int64(0)
		for _, d := range group {
			if d.IsCharge || d.IsPoint {
				income += d.Amount
			} else {
				expense += d.Amount
			}
		}

		last := group[len(group)-1]
		rows = append(rows, Ledger{
			CardID:    row.CardID,
			EntryDate: dateOnly(last.OccurredAt),
			Summary:   GroupSummary(group),
			Income:    income,
			Expense:   expense,
			Balance:   last.Balance,
			StaffName: row.StaffName,
		})
	}

	created, err := s.repo.ApplySplit(ctx, ledgerID, rows, groups)
	if err != nil {
		return nil, err
	}

	metrics.RecordMergeOp("split")
	return created, nil
}

// UndoMerge restores a merge snapshot verbatim and consumes the history
// record. Each record can be undone exactly once; there is no redo.
func (s *Service) UndoMerge(ctx context.Context, historyID int) ([]Ledger, error) {
	history, err := s.repo.GetMergeHistory(ctx, historyID)
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(history.Snapshot, &snap); err != nil {
		return nil, err
	}

	if err := s.repo.ApplyUndo(ctx, history, &snap); err != nil {
		return nil, err
	}

	metrics.RecordMergeOp("undo")
	return snap.Rows, nil
}

// MergeHistories lists undoable merges, newest first.
func (s *Service) MergeHistories(ctx context.Context, cardID int) ([]MergeHistory, error) {
	return s.repo.ListMergeHistories(ctx, cardID)
}

// orderedRun returns the selected rows in display order when they form
// one contiguous run there, nil otherwise.
func (s *Service) orderedRun(ctx context.Context, cardID int, selected []Ledger) ([]Ledger, error) {
	from, to := selected[0].EntryDate, selected[0].EntryDate
	for _, row := range selected {
		if row.EntryDate.Before(from) {
			from = row.EntryDate
		}
		if row.EntryDate.After(to) {
			to = row.EntryDate
		}
	}

	all, err := s.DisplayList(ctx, cardID, from, to)
	if err != nil {
		return nil, err
	}

	selectedIDs := make(map[int]bool, len(selected))
	for _, row := range selected {
		selectedIDs[row.ID] = true
	}

	start := -1
	for i, row := range all {
		if selectedIDs[row.ID] {
			start = i
			break
		}
	}
	if start == -1 || start+len(selected) > len(all) {
		return nil, nil
	}

	run := make([]Ledger, 0, len(selected))
	for i := start; i < start+len(selected); i++ {
		if !selectedIDs[all[i].ID] {
			return nil, nil
		}
		run = append(run, all[i])
	}
	return run, nil
}

func countDistinctGroups(details []Detail) int {
	seen := make(map[int]bool)
	for _, d := range details {
		if d.GroupID != nil {
			seen[*d.GroupID] = true
		}
	}
	return len(seen)
}

func joinSummaries(rows []Ledger) string {
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Summary != "" {
			parts = append(parts, row.Summary)
		}
	}
	return strings.Join(parts, " / ")
}
