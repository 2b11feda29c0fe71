package ledger

import (
	"fmt"
	"time"

	"cardledger/internal/reader"
)

// ImportResult reports what one history import did.
type ImportResult struct {
	Imported int `json:"imported"`
	Deduped  int `json:"deduped"`

	// MayHaveIncompleteHistory is set when the oldest visible onboard
	// entry does not reach back to the card's last reconciliation
	// point: the finite log buffer may have overwritten older entries.
	// Advisory only; manual CSV backfill covers the gap.
	MayHaveIncompleteHistory bool `json:"may_have_incomplete_history"`
}

// PreHistoryBalance computes the balance that existed immediately
// before the oldest transaction visible in the onboard log. Charges and
// point redemptions added their amount, ordinary usage subtracted it.
func PreHistoryBalance(oldest reader.Transaction) int64 {
	if oldest.IsCredit() {
		return oldest.BalanceAfter - oldest.Amount
	}
	return oldest.BalanceAfter + oldest.Amount
}

// dedupeKey identifies an already-imported transaction. The onboard log
// guarantees no sub-minute precision, so the timestamp is truncated to
// the minute.
func dedupeKey(at time.Time, amount, balance int64) string {
	return fmt.Sprintf("%d|%d|%d", at.Truncate(time.Minute).Unix(), amount, balance)
}

// DetailsFromHistory maps a raw onboard log (newest-first, as read off
// the card) onto new Detail rows, oldest-first, skipping transactions
// already persisted for the card. lastReconciled is the card's last
// known reconciliation point, nil on first registration.
func DetailsFromHistory(history []reader.Transaction, existing []Detail, lastReconciled *time.Time) ([]Detail, ImportResult) {
	var result ImportResult
	if len(history) == 0 {
		return nil, result
	}

	seen := make(map[string]bool, len(existing))
	maxSeq := 0
	for _, d := range existing {
		seen[dedupeKey(d.OccurredAt, d.Amount, d.Balance)] = true
		if d.Seq > maxSeq {
			maxSeq = d.Seq
		}
	}

	oldest := history[len(history)-1]
	if lastReconciled != nil {
		oldestMonth := monthStart(oldest.OccurredAt)
		if oldestMonth.After(monthStart(*lastReconciled)) {
			result.MayHaveIncompleteHistory = true
		}
	}

	var details []Detail
	seq := maxSeq
	for i := len(history) - 1; i >= 0; i-- {
		tx := history[i]
		key := dedupeKey(tx.OccurredAt, tx.Amount, tx.BalanceAfter)
		if seen[key] {
			result.Deduped++
			continue
		}
		seen[key] = true
		seq++

		details = append(details, Detail{
			OccurredAt:   tx.OccurredAt,
			EntryStation: tx.EntryStation,
			ExitStation:  tx.ExitStation,
			BusStop:      tx.BusStop,
			Amount:       tx.Amount,
			Balance:      tx.BalanceAfter,
			IsCharge:     tx.Kind == reader.KindCharge,
			IsPoint:      tx.Kind == reader.KindPoint,
			IsBus:        tx.Kind == reader.KindBus,
			Seq:          seq,
		})
		result.Imported++
	}

	return details, result
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
