package ledger

import (
	"context"
	"time"
)

type Repository interface {
	CreateLedger(ctx context.Context, l *Ledger) (*Ledger, error)
	GetLedger(ctx context.Context, id int) (*Ledger, error)
	GetLedgers(ctx context.Context, ids []int) ([]Ledger, error)
	ListByCard(ctx context.Context, cardID int, from, to time.Time) ([]Ledger, error)

	// ListRecent pages through a card's rows newest first, for the
	// ledger book view that opens on the latest page.
	ListRecent(ctx context.Context, cardID, limit, offset int) ([]Ledger, error)

	// Bootstrap atomically creates the registration seed row and its
	// imported detail rows: a card is either fully registered with its
	// seed, or not at all.
	Bootstrap(ctx context.Context, seed *Ledger, details []Detail) (*Ledger, error)

	OpenLendingRow(ctx context.Context, cardID int) (*Ledger, error)
	OpenLending(ctx context.Context, l *Ledger) (*Ledger, error)
	CloseLending(ctx context.Context, l *Ledger, details []Detail) error

	LatestBalance(ctx context.Context, cardID int) (int64, error)
	BalanceBefore(ctx context.Context, cardID int, day time.Time) (int64, error)
	LatestBalances(ctx context.Context) ([]CardBalance, error)

	FirstLedgerAt(ctx context.Context, cardID int) (*time.Time, error)

	ListDetails(ctx context.Context, ledgerID int) ([]Detail, error)
	ListDetailsByCard(ctx context.Context, cardID int) ([]Detail, error)
	LastDetailAt(ctx context.Context, cardID int) (*time.Time, error)

	// ReplaceDetails swaps the full detail set of one ledger row and its
	// summary in one transaction; callers never observe a partial set.
	ReplaceDetails(ctx context.Context, ledgerID int, details []Detail, summary string) error

	ApplyMerge(ctx context.Context, merged *Ledger, replacedIDs []int, history *MergeHistory) (*Ledger, error)
	ApplySplit(ctx context.Context, originalID int, rows []Ledger, detailSets [][]Detail) ([]Ledger, error)
	ApplyUndo(ctx context.Context, history *MergeHistory, snap *Snapshot) error

	ListMergeHistories(ctx context.Context, cardID int) ([]MergeHistory, error)
	GetMergeHistory(ctx context.Context, id int) (*MergeHistory, error)
}
