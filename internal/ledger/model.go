package ledger

import "time"

// Ledger is one bookkeeping row for a card: purchase, charge carryover,
// a loan (lend/return pair on one row), refund or manual entry.
//
// Invariant: walking a card's rows in true chronological order,
// balance[i] == balance[i-1] + income[i] - expense[i]. At most one row
// per card has IsOpenLending set, exactly while the card is lent out.
type Ledger struct {
	ID            int        `db:"id" json:"id"`
	CardID        int        `db:"card_id" json:"card_id"`
	LenderID      *int       `db:"lender_id" json:"lender_id,omitempty"`
	ReturnerID    *int       `db:"returner_id" json:"returner_id,omitempty"`
	EntryDate     time.Time  `db:"entry_date" json:"entry_date"`
	Summary       string     `db:"summary" json:"summary"`
	Income        int64      `db:"income" json:"income"`
	Expense       int64      `db:"expense" json:"expense"`
	Balance       int64      `db:"balance" json:"balance"`
	StaffName     string     `db:"staff_name" json:"staff_name"`
	Note          string     `db:"note" json:"note"`
	LentAt        *time.Time `db:"lent_at" json:"lent_at,omitempty"`
	ReturnedAt    *time.Time `db:"returned_at" json:"returned_at,omitempty"`
	IsOpenLending bool       `db:"is_open_lending" json:"is_open_lending"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Detail is one raw transaction imported from the card's onboard log,
// child of a Ledger row. Rows sharing a GroupID form one logical trip
// and must be contiguous in usage-time order.
type Detail struct {
	ID           int       `db:"id" json:"id"`
	LedgerID     int       `db:"ledger_id" json:"ledger_id"`
	OccurredAt   time.Time `db:"occurred_at" json:"occurred_at"`
	EntryStation string    `db:"entry_station" json:"entry_station"`
	ExitStation  string    `db:"exit_station" json:"exit_station"`
	BusStop      string    `db:"bus_stop" json:"bus_stop"`
	Amount       int64     `db:"amount" json:"amount"`
	Balance      int64     `db:"balance" json:"balance"`
	IsCharge     bool      `db:"is_charge" json:"is_charge"`
	IsPoint      bool      `db:"is_point" json:"is_point"`
	IsBus        bool      `db:"is_bus" json:"is_bus"`
	GroupID      *int      `db:"group_id" json:"group_id,omitempty"`
	Seq          int       `db:"seq" json:"seq"`
}

// MergeHistory snapshots the rows replaced by one merge so that the
// merge can be undone. Each record is consumed exactly once; there is
// no redo.
type MergeHistory struct {
	ID             int       `db:"id" json:"id"`
	CardID         int       `db:"card_id" json:"card_id"`
	MergedLedgerID int       `db:"merged_ledger_id" json:"merged_ledger_id"`
	Description    string    `db:"description" json:"description"`
	Snapshot       []byte    `db:"snapshot" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Snapshot is the JSON payload stored in MergeHistory.Snapshot.
type Snapshot struct {
	Rows    []Ledger `json:"rows"`
	Details []Detail `json:"details"`
}

// CardBalance is one row of the latest-balance dashboard query.
type CardBalance struct {
	CardID     int    `db:"card_id" json:"card_id"`
	CardNumber string `db:"card_number" json:"card_number"`
	CardType   string `db:"card_type" json:"card_type"`
	IsLent     bool   `db:"is_lent" json:"is_lent"`
	Balance    int64  `db:"balance" json:"balance"`
}

type ManualEntryRequest struct {
	CardID  int    `json:"card_id" binding:"required"`
	Date    string `json:"date" binding:"required"` // YYYY-MM-DD
	Summary string `json:"summary" binding:"required"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
	Balance int64  `json:"balance"`
	Note    string `json:"note"`
}
