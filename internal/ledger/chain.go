package ledger

import "sort"

// Inconsistency is one balance-chain break: the stored balance of a row
// does not match the previous balance plus income minus expense.
type Inconsistency struct {
	LedgerID int   `json:"ledger_id"`
	Expected int64 `json:"expected"`
	Actual   int64 `json:"actual"`
}

// OrderByBalanceChain reconstructs a chronologically valid order for a
// set of same-card rows whose stored sub-day order is not trustworthy.
// Starting from the balance immediately preceding the set, it
// repeatedly picks the unplaced row whose stored balance satisfies
// balance == running + income - expense, ties broken by insertion id.
// Rows that never match are appended in insertion order so the result
// is always a permutation of the input. Read-only; never persisted.
func OrderByBalanceChain(prevBalance int64, rows []Ledger) []Ledger {
	remaining := make([]Ledger, len(rows))
	copy(remaining, rows)
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].ID < remaining[j].ID
	})

	ordered := make([]Ledger, 0, len(remaining))
	running := prevBalance

	for len(remaining) > 0 {
		matched := -1
		for i, row := range remaining {
			if row.Balance == running+row.Income-row.Expense {
				matched = i
				break
			}
		}
		if matched == -1 {
			// Broken chain: keep the rest in insertion order and let
			// the consistency checker report the breaks.
			ordered = append(ordered, remaining...)
			break
		}
		row := remaining[matched]
		ordered = append(ordered, row)
		remaining = append(remaining[:matched], remaining[matched+1:]...)
		running = row.Balance
	}

	return ordered
}

// CheckConsistency orders the rows by balance chain and reports every
// adjacent pair whose balances do not reconcile. Breaks are reported,
// never auto-corrected: the card firmware's recorded balances are the
// source of truth and silently fixing the ledger could mask a genuine
// data-entry error.
func CheckConsistency(prevBalance int64, rows []Ledger) (bool, []Inconsistency) {
	ordered := OrderByBalanceChain(prevBalance, rows)

	var breaks []Inconsistency
	running := prevBalance
	for _, row := range ordered {
		expected := running + row.Income - row.Expense
		if row.Balance != expected {
			breaks = append(breaks, Inconsistency{
				LedgerID: row.ID,
				Expected: expected,
				Actual:   row.Balance,
			})
		}
		running = row.Balance
	}

	return len(breaks) == 0, breaks
}
