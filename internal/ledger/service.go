package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardledger/internal/metrics"
	"cardledger/internal/reader"
)

var (
	ErrAlreadyLent    = errors.New("card already has an open lending record")
	ErrNotLent        = errors.New("card has no open lending record")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidDivider = errors.New("divider position out of range")
)

// SeedKind selects the summary of the registration seed row.
type SeedKind string

const (
	SeedPurchase  SeedKind = "purchase"
	SeedCarryover SeedKind = "carryover"
)

type BootstrapResult struct {
	Seeded bool         `json:"seeded"`
	Seed   *Ledger      `json:"seed,omitempty"`
	Import ImportResult `json:"import"`
}

type ReturnResult struct {
	Row    *Ledger      `json:"row"`
	Import ImportResult `json:"import"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Bootstrap seeds a freshly registered card: it synthesizes the balance
// that existed before the oldest visible onboard transaction, writes
// the seed row and chains every visible transaction onto it as details.
// With no readable balance or history there is nothing to seed; the
// registration still stands and the seed can be added manually later.
func (s *Service) Bootstrap(ctx context.Context, cardID int, kind SeedKind, carryoverMonth int, balance *int64, history []reader.Transaction, now time.Time) (*BootstrapResult, error) {
	result := &BootstrapResult{}

	var pre int64
	switch {
	case len(history) > 0:
		pre = PreHistoryBalance(history[len(history)-1])
	case balance != nil:
		pre = *balance
	default:
		return result, nil
	}

	summary := SummaryPurchase
	if kind == SeedCarryover {
		summary = CarryoverSummary(carryoverMonth)
	}

	seed := &Ledger{
		CardID:    cardID,
		EntryDate: dateOnly(now),
		Summary:   summary,
		Income:    pre,
		Balance:   pre,
	}

	details, importResult := DetailsFromHistory(history, nil, nil)
	created, err := s.repo.Bootstrap(ctx, seed, details)
	if err != nil {
		return nil, err
	}

	metrics.RecordImport(importResult.Imported, importResult.Deduped)

	result.Seeded = true
	result.Seed = created
	result.Import = importResult
	return result, nil
}

// Lend opens a loan row for the card. The stored balance anchors the
// chain at the moment the card left the station; when the balance block
// could not be read the last reconciled balance stands in.
func (s *Service) Lend(ctx context.Context, cardID, staffID int, staffName string, balance *int64, now time.Time) (*Ledger, error) {
	open, err := s.repo.OpenLendingRow(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrAlreadyLent
	}

	bal := int64(0)
	if balance != nil {
		bal = *balance
	} else {
		bal, err = s.repo.LatestBalance(ctx, cardID)
		if err != nil {
			return nil, err
		}
	}

	lentAt := now
	row := &Ledger{
		CardID:        cardID,
		LenderID:      &staffID,
		EntryDate:     dateOnly(now),
		Summary:       fmt.Sprintf("Lent to %s", staffName),
		Balance:       bal,
		StaffName:     staffName,
		LentAt:        &lentAt,
		IsOpenLending: true,
	}

	created, err := s.repo.OpenLending(ctx, row)
	if err != nil {
		return nil, err
	}

	metrics.RecordLending("lend")
	return created, nil
}

// Return completes the open loan row: it imports the onboard log read
// at hand-back (deduped against everything already persisted), renders
// the trip summary and reconciles the row against the stored balance.
func (s *Service) Return(ctx context.Context, cardID, staffID int, staffName string, balance *int64, history []reader.Transaction, now time.Time) (*ReturnResult, error) {
	open, err := s.repo.OpenLendingRow(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNotLent
	}

	existing, err := s.repo.ListDetailsByCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	lastReconciled, err := s.repo.LastDetailAt(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if lastReconciled == nil {
		lastReconciled, err = s.repo.FirstLedgerAt(ctx, cardID)
		if err != nil {
			return nil, err
		}
	}

	details, importResult := DetailsFromHistory(history, existing, lastReconciled)

	final := open.Balance
	switch {
	case balance != nil:
		final = *balance
	case len(details) > 0:
		final = details[len(details)-1].Balance
	}

	// The loan row's balance was the chain balance at lend time; the
	// net delta against it keeps the header chain reconciled even when
	// charges and trips both happened during the loan.
	delta := final - open.Balance
	open.Income, open.Expense = 0, 0
	if delta > 0 {
		open.Income = delta
	} else {
		open.Expense = -delta
	}
	open.Balance = final

	summary := Summary(details)
	if summary == "" {
		summary = "Returned (no new transactions)"
	}

	returnedAt := now
	open.ReturnerID = &staffID
	open.StaffName = staffName
	open.Summary = summary
	open.ReturnedAt = &returnedAt
	open.IsOpenLending = false

	if err := s.repo.CloseLending(ctx, open, details); err != nil {
		return nil, err
	}

	metrics.RecordLending("return")
	metrics.RecordImport(importResult.Imported, importResult.Deduped)
	if importResult.MayHaveIncompleteHistory {
		metrics.RecordIncompleteHistory()
	}

	return &ReturnResult{Row: open, Import: importResult}, nil
}

// ManualEntry inserts a hand-written ledger row, the backfill path for
// cards whose registration read failed or whose onboard log was
// truncated.
func (s *Service) ManualEntry(ctx context.Context, req ManualEntryRequest) (*Ledger, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}

	row := &Ledger{
		CardID:    req.CardID,
		EntryDate: date,
		Summary:   req.Summary,
		Income:    req.Income,
		Expense:   req.Expense,
		Balance:   req.Balance,
		Note:      req.Note,
	}
	return s.repo.CreateLedger(ctx, row)
}

// RefundEntry closes a card out: the remaining balance is paid back and
// the chain ends at zero.
func (s *Service) RefundEntry(ctx context.Context, cardID int, now time.Time) (*Ledger, error) {
	balance, err := s.repo.LatestBalance(ctx, cardID)
	if err != nil {
		return nil, err
	}

	row := &Ledger{
		CardID:    cardID,
		EntryDate: dateOnly(now),
		Summary:   SummaryRefund,
		Expense:   balance,
		Balance:   0,
	}
	return s.repo.CreateLedger(ctx, row)
}

// DisplayList returns the card's rows for the range in display order:
// per calendar day, the balance-chain order anchored on the prior day's
// final balance. Stored sub-day order is never trusted.
func (s *Service) DisplayList(ctx context.Context, cardID int, from, to time.Time) ([]Ledger, error) {
	rows, err := s.repo.ListByCard(ctx, cardID, from, to)
	if err != nil {
		return nil, err
	}

	prev, err := s.repo.BalanceBefore(ctx, cardID, from)
	if err != nil {
		return nil, err
	}

	return orderByDay(prev, rows), nil
}

// RecentPage returns one page of the card's rows, newest first. Pages
// number from 1. Rows come back in stored order; chain ordering applies
// only to the date-range view.
func (s *Service) RecentPage(ctx context.Context, cardID, page, pageSize int) ([]Ledger, error) {
	if page < 1 {
		page = 1
	}
	return s.repo.ListRecent(ctx, cardID, pageSize, (page-1)*pageSize)
}

// ConsistencyReport orders the range in display order and reports every
// balance-chain break. Breaks are advisory; nothing is corrected.
func (s *Service) ConsistencyReport(ctx context.Context, cardID int, from, to time.Time) (bool, []Inconsistency, error) {
	rows, err := s.repo.ListByCard(ctx, cardID, from, to)
	if err != nil {
		return false, nil, err
	}

	prev, err := s.repo.BalanceBefore(ctx, cardID, from)
	if err != nil {
		return false, nil, err
	}

	ordered := orderByDay(prev, rows)

	var breaks []Inconsistency
	running := prev
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

	metrics.RecordInconsistencies(len(breaks))
	return len(breaks) == 0, breaks, nil
}

// Details lists one row's detail rows in usage order, plus the number
// of bus legs still missing a stop name.
func (s *Service) Details(ctx context.Context, ledgerID int) ([]Detail, int, error) {
	details, err := s.repo.ListDetails(ctx, ledgerID)
	if err != nil {
		return nil, 0, err
	}
	sorted := SortDetails(details)
	return sorted, CountUnknownBusStops(sorted), nil
}

// ToggleDivider adds or removes the explicit trip boundary between
// sorted detail rows position and position+1, persists the resulting
// group assignment atomically and refreshes the parent summary.
func (s *Service) ToggleDivider(ctx context.Context, ledgerID, position int) ([]Detail, error) {
	row, err := s.repo.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	details, err := s.repo.ListDetails(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	sorted := SortDetails(details)

	if position < 0 || position >= len(sorted)-1 {
		return nil, ErrInvalidDivider
	}

	boundaries := DividerBoundaries(sorted)
	toggled := make([]int, 0, len(boundaries)+1)
	removed := false
	for _, b := range boundaries {
		if b == position {
			removed = true
			continue
		}
		toggled = append(toggled, b)
	}
	if !removed {
		toggled = append(toggled, position)
	}

	updated := ApplyDividers(sorted, toggled)
	if err := s.repo.ReplaceDetails(ctx, ledgerID, updated, summaryForRow(row, updated)); err != nil {
		return nil, err
	}
	return updated, nil
}

// ClearDividers removes every explicit boundary, reverting the ledger
// to automatic trip detection.
func (s *Service) ClearDividers(ctx context.Context, ledgerID int) ([]Detail, error) {
	row, err := s.repo.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	details, err := s.repo.ListDetails(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	sorted := SortDetails(details)

	updated := ApplyDividers(sorted, nil)
	if err := s.repo.ReplaceDetails(ctx, ledgerID, updated, summaryForRow(row, updated)); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) LatestBalances(ctx context.Context) ([]CardBalance, error) {
	return s.repo.LatestBalances(ctx)
}

func (s *Service) Get(ctx context.Context, id int) (*Ledger, error) {
	return s.repo.GetLedger(ctx, id)
}

// summaryForRow regenerates the display summary after a grouping
// change, but leaves rows without details (seed, manual, refund) alone.
func summaryForRow(row *Ledger, details []Detail) string {
	if len(details) == 0 {
		return row.Summary
	}
	return Summary(details)
}

// orderByDay chain-orders each calendar day's rows, carrying the
// running balance across days.
func orderByDay(prev int64, rows []Ledger) []Ledger {
	ordered := make([]Ledger, 0, len(rows))
	running := prev

	i := 0
	for i < len(rows) {
		j := i
		for j < len(rows) && sameDay(rows[j].EntryDate, rows[i].EntryDate) {
			j++
		}

		day := OrderByBalanceChain(running, rows[i:j])
		ordered = append(ordered, day...)
		if len(day) > 0 {
			running = day[len(day)-1].Balance
		}
		i = j
	}

	return ordered
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
