package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"cardledger/internal/card"
	"cardledger/internal/ledger"
	"cardledger/internal/logger"
	"cardledger/internal/metrics"
	"cardledger/internal/reader"
	"cardledger/internal/staff"
)

var ErrExternalSessionHeld = errors.New("external session already held")

type State string

const (
	WaitingForStaff State = "waiting_for_staff"
	WaitingForCard  State = "waiting_for_card"
	Processing      State = "processing"
)

type Outcome string

const (
	OutcomeStaffIdentified Outcome = "staff_identified"
	OutcomeLent            Outcome = "lent"
	OutcomeReturned        Outcome = "returned"
	OutcomeReverted        Outcome = "reverted"
	OutcomeUnknownCard     Outcome = "unknown_card"
	OutcomeStaffRequired   Outcome = "staff_required"
	OutcomeNotLendable     Outcome = "not_lendable"
	OutcomeReadError       Outcome = "read_error"
	OutcomeBusy            Outcome = "busy"
	OutcomeExternalSession Outcome = "external_session"
)

const (
	directionLend   = "lend"
	directionReturn = "return"
)

type TouchResult struct {
	Outcome   Outcome        `json:"outcome"`
	State     State          `json:"state"`
	StaffName string         `json:"staff_name,omitempty"`
	Ledger    *ledger.Ledger `json:"ledger,omitempty"`
	Imported  int            `json:"imported,omitempty"`
	Message   string         `json:"message,omitempty"`
}

type Snapshot struct {
	State           State      `json:"state"`
	StaffID         *int       `json:"staff_id,omitempty"`
	StaffName       string     `json:"staff_name,omitempty"`
	ExternalSession bool       `json:"external_session"`
	ExternalOwner   string     `json:"external_owner,omitempty"`
	LastOperation   *Operation `json:"last_operation,omitempty"`
}

// Operation is the machine's memory of the most recently completed
// lend or return. A re-touch of the same card inside the revert window
// performs the opposite direction attributed to this staff.
type Operation struct {
	CardIDm     string    `json:"card_idm"`
	CardID      int       `json:"card_id"`
	CardNumber  string    `json:"card_number"`
	Direction   string    `json:"direction"`
	StaffID     int       `json:"staff_id"`
	StaffName   string    `json:"staff_name"`
	CompletedAt time.Time `json:"completed_at"`
}

// LedgerWriter is the slice of the ledger service a touch needs.
type LedgerWriter interface {
	Lend(ctx context.Context, cardID, staffID int, staffName string, balance *int64, now time.Time) (*ledger.Ledger, error)
	Return(ctx context.Context, cardID, staffID int, staffName string, balance *int64, history []reader.Transaction, now time.Time) (*ledger.ReturnResult, error)
}

type Notifier interface {
	PublishLent(ctx context.Context, idm, cardNumber, staffName string) error
	PublishReturned(ctx context.Context, idm, cardNumber, staffName string, imported int) error
	PublishReverted(ctx context.Context, idm, cardNumber, staffName, direction string) error
	PublishUnknownCard(ctx context.Context, idm string) error
	PublishReadError(ctx context.Context, idm string, readErr error) error
	PublishIncompleteHistory(ctx context.Context, idm, cardNumber string) error
}

// Service is the touch-event state machine in front of the single
// physical reader. Processing is the mutual exclusion: while a lend or
// return is in flight, further touches are rejected, not queued.
type Service struct {
	staffRepo staff.Repository
	cardRepo  card.Repository
	ledgers   LedgerWriter
	rdr       reader.Reader
	events    Notifier

	revertWindow time.Duration
	idleTimeout  time.Duration
	now          func() time.Time

	mu            sync.Mutex
	state         State
	activeStaff   *staff.Staff
	lastActivity  time.Time
	lastOp        *Operation
	externalOwner string
}

func NewService(staffRepo staff.Repository, cardRepo card.Repository, ledgers LedgerWriter, rdr reader.Reader, events Notifier, revertWindow, idleTimeout time.Duration) *Service {
	return &Service{
		staffRepo:    staffRepo,
		cardRepo:     cardRepo,
		ledgers:      ledgers,
		rdr:          rdr,
		events:       events,
		revertWindow: revertWindow,
		idleTimeout:  idleTimeout,
		now:          time.Now,
		state:        WaitingForStaff,
	}
}

// Touch handles one card presentation. Precedence: external session,
// busy, revert window, staff identification, then lend/return.
func (s *Service) Touch(ctx context.Context, idm string) (*TouchResult, error) {
	now := s.now()

	s.mu.Lock()

	if s.externalOwner != "" {
		s.mu.Unlock()
		return s.finish(OutcomeExternalSession, "Reader is held by another workflow"), nil
	}
	if s.state == Processing {
		s.mu.Unlock()
		return s.finish(OutcomeBusy, "Another touch is being processed"), nil
	}

	s.expireIdleLocked(now)

	if op := s.lastOp; op != nil && op.CardIDm == idm && now.Sub(op.CompletedAt) <= s.revertWindow {
		s.state = Processing
		s.mu.Unlock()
		return s.revert(ctx, op, now)
	}

	member, err := s.staffRepo.FindByIDm(ctx, idm)
	if err != nil && !errors.Is(err, staff.ErrStaffNotFound) {
		s.mu.Unlock()
		return nil, err
	}
	if member != nil && !member.IsDeleted {
		s.activeStaff = member
		s.state = WaitingForCard
		s.lastActivity = now
		s.mu.Unlock()
		logger.Infof("Staff identified: %s", member.Name)
		metrics.RecordTouch(string(OutcomeStaffIdentified))
		result := s.finish(OutcomeStaffIdentified, "")
		result.StaffName = member.Name
		return result, nil
	}

	c, err := s.cardRepo.FindByIDm(ctx, idm)
	if err != nil && !errors.Is(err, card.ErrCardNotFound) {
		s.mu.Unlock()
		return nil, err
	}
	if c == nil || c.IsDeleted {
		s.mu.Unlock()
		if err := s.events.PublishUnknownCard(ctx, idm); err != nil {
			logger.Errorf("Failed to publish unknown-card event for %s: %v", idm, err)
		}
		return s.finish(OutcomeUnknownCard, "Card is not registered"), nil
	}
	if c.IsRefunded {
		s.mu.Unlock()
		return s.finish(OutcomeNotLendable, "Card has been refunded"), nil
	}

	if s.activeStaff == nil {
		s.mu.Unlock()
		return s.finish(OutcomeStaffRequired, "Touch a staff card first"), nil
	}

	operator := s.activeStaff
	s.state = Processing
	s.mu.Unlock()

	if c.IsLent {
		return s.performReturn(ctx, c, operator, now, false)
	}
	return s.performLend(ctx, c, operator, now, false)
}

// revert runs the opposite of the remembered operation, attributed to
// the remembered staff rather than whoever is currently active.
func (s *Service) revert(ctx context.Context, op *Operation, now time.Time) (*TouchResult, error) {
	c, err := s.cardRepo.FindByID(ctx, op.CardID)
	if err != nil {
		s.resetToIdle()
		return nil, err
	}

	remembered := &staff.Staff{ID: op.StaffID, Name: op.StaffName}

	var result *TouchResult
	if op.Direction == directionLend {
		result, err = s.performReturn(ctx, c, remembered, now, true)
	} else {
		result, err = s.performLend(ctx, c, remembered, now, true)
	}
	if err != nil {
		return result, err
	}

	if result.Outcome == OutcomeReverted {
		metrics.RecordRevert()
		if err := s.events.PublishReverted(ctx, c.IDm, c.CardNumber, op.StaffName, op.Direction); err != nil {
			logger.Errorf("Failed to publish revert event for %s: %v", c.IDm, err)
		}
	}
	return result, nil
}

func (s *Service) performLend(ctx context.Context, c *card.Card, operator *staff.Staff, now time.Time, isRevert bool) (*TouchResult, error) {
	// Best effort: with no readable balance block the last reconciled
	// balance anchors the row instead.
	balance, err := s.rdr.ReadBalance(c.IDm)
	if err != nil {
		logger.Errorf("Balance read failed for %s, falling back to ledger: %v", c.IDm, err)
		balance = nil
	}

	row, err := s.ledgers.Lend(ctx, c.ID, operator.ID, operator.Name, balance, now)
	if err != nil {
		s.resetToIdle()
		if errors.Is(err, ledger.ErrAlreadyLent) {
			return s.finish(OutcomeNotLendable, "Card already has an open lending record"), nil
		}
		return nil, err
	}

	s.complete(c, directionLend, operator, now)
	metrics.SetCardBalance(c.CardNumber, row.Balance)

	outcome := OutcomeLent
	if isRevert {
		outcome = OutcomeReverted
	} else {
		if err := s.events.PublishLent(ctx, c.IDm, c.CardNumber, operator.Name); err != nil {
			logger.Errorf("Failed to publish lend event for %s: %v", c.IDm, err)
		}
	}
	metrics.RecordTouch(string(outcome))

	result := s.finish(outcome, "")
	result.StaffName = operator.Name
	result.Ledger = row
	return result, nil
}

func (s *Service) performReturn(ctx context.Context, c *card.Card, operator *staff.Staff, now time.Time, isRevert bool) (*TouchResult, error) {
	history, err := s.rdr.ReadHistory(c.IDm)
	if err != nil {
		s.resetToIdle()
		if pubErr := s.events.PublishReadError(ctx, c.IDm, err); pubErr != nil {
			logger.Errorf("Failed to publish read-error event for %s: %v", c.IDm, pubErr)
		}
		metrics.RecordTouch(string(OutcomeReadError))
		return s.finish(OutcomeReadError, "Could not read the card history"), nil
	}

	balance, err := s.rdr.ReadBalance(c.IDm)
	if err != nil {
		logger.Errorf("Balance read failed for %s, reconciling from history: %v", c.IDm, err)
		balance = nil
	}

	ret, err := s.ledgers.Return(ctx, c.ID, operator.ID, operator.Name, balance, history, now)
	if err != nil {
		s.resetToIdle()
		if errors.Is(err, ledger.ErrNotLent) {
			return s.finish(OutcomeNotLendable, "Card has no open lending record"), nil
		}
		return nil, err
	}

	s.complete(c, directionReturn, operator, now)
	metrics.SetCardBalance(c.CardNumber, ret.Row.Balance)

	if ret.Import.MayHaveIncompleteHistory {
		if err := s.events.PublishIncompleteHistory(ctx, c.IDm, c.CardNumber); err != nil {
			logger.Errorf("Failed to publish incomplete-history event for %s: %v", c.IDm, err)
		}
	}

	outcome := OutcomeReturned
	if isRevert {
		outcome = OutcomeReverted
	} else {
		if err := s.events.PublishReturned(ctx, c.IDm, c.CardNumber, operator.Name, ret.Import.Imported); err != nil {
			logger.Errorf("Failed to publish return event for %s: %v", c.IDm, err)
		}
	}
	metrics.RecordTouch(string(outcome))

	result := s.finish(outcome, "")
	result.StaffName = operator.Name
	result.Ledger = ret.Row
	result.Imported = ret.Import.Imported
	return result, nil
}

// complete records the finished operation for the revert window and
// returns the machine to its initial state.
func (s *Service) complete(c *card.Card, direction string, operator *staff.Staff, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastOp = &Operation{
		CardIDm:     c.IDm,
		CardID:      c.ID,
		CardNumber:  c.CardNumber,
		Direction:   direction,
		StaffID:     operator.ID,
		StaffName:   operator.Name,
		CompletedAt: now,
	}
	s.state = WaitingForStaff
	s.activeStaff = nil
}

func (s *Service) resetToIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = WaitingForStaff
	s.activeStaff = nil
}

// AcquireExternal hands the reader to another workflow, typically the
// registration dialog. Touches are rejected until release.
func (s *Service) AcquireExternal(owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Processing {
		return ErrExternalSessionHeld
	}
	if s.externalOwner != "" && s.externalOwner != owner {
		return ErrExternalSessionHeld
	}

	s.externalOwner = owner
	s.state = WaitingForStaff
	s.activeStaff = nil
	return nil
}

func (s *Service) ReleaseExternal(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.externalOwner == owner {
		s.externalOwner = ""
	}
}

func (s *Service) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIdleLocked(s.now())

	snap := Snapshot{
		State:           s.state,
		ExternalSession: s.externalOwner != "",
		ExternalOwner:   s.externalOwner,
		LastOperation:   s.lastOp,
	}
	if s.activeStaff != nil {
		snap.StaffID = &s.activeStaff.ID
		snap.StaffName = s.activeStaff.Name
	}
	return snap
}

// expireIdleLocked lazily applies the staff inactivity timeout. No
// background timer is needed; staleness only matters when the next
// touch or status read arrives.
func (s *Service) expireIdleLocked(now time.Time) {
	if s.state == WaitingForCard && now.Sub(s.lastActivity) > s.idleTimeout {
		s.state = WaitingForStaff
		s.activeStaff = nil
	}
}

func (s *Service) finish(outcome Outcome, message string) *TouchResult {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch outcome {
	case OutcomeUnknownCard, OutcomeStaffRequired, OutcomeNotLendable, OutcomeBusy, OutcomeExternalSession:
		metrics.RecordTouch(string(outcome))
	}

	return &TouchResult{Outcome: outcome, State: state, Message: message}
}
