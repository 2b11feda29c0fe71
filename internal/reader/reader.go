package reader

import (
	"errors"
	"time"
)

var (
	ErrReadFailed   = errors.New("card read failed")
	ErrNoCard       = errors.New("no card on the reader")
	ErrNotConnected = errors.New("reader not connected")
)

// TransactionKind classifies one entry of a card's onboard log.
type TransactionKind string

const (
	KindRail   TransactionKind = "rail"
	KindBus    TransactionKind = "bus"
	KindCharge TransactionKind = "charge"
	KindPoint  TransactionKind = "point"
)

// Transaction is one raw record read off the card. The onboard log keeps
// them newest-first and guarantees no sub-minute timestamp precision.
type Transaction struct {
	OccurredAt   time.Time       `json:"occurred_at"`
	Kind         TransactionKind `json:"kind"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	EntryStation string          `json:"entry_station"`
	ExitStation  string          `json:"exit_station"`
	BusStop      string          `json:"bus_stop"`
}

// IsCredit reports whether the transaction increased the stored balance.
func (t Transaction) IsCredit() bool {
	return t.Kind == KindCharge || t.Kind == KindPoint
}

// Reader is the card reader capability surface. Every read may fail; the
// hardware bridge and the simulator are interchangeable behind it.
type Reader interface {
	// ReadIDm returns the hardware identifier of the card currently on
	// the reader.
	ReadIDm() (string, error)

	// ReadBalance returns the balance stored on the card. The pointer is
	// nil when the card type does not expose a balance block.
	ReadBalance(idm string) (*int64, error)

	// ReadHistory returns the onboard transaction log, newest-first. The
	// log buffer is finite; older entries may have been overwritten.
	ReadHistory(idm string) ([]Transaction, error)
}
