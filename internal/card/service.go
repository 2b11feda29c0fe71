package card

import (
	"context"
	"errors"
	"time"

	"cardledger/internal/ledger"
	"cardledger/internal/logger"
	"cardledger/internal/metrics"
	"cardledger/internal/reader"
)

var (
	// ErrCardExists rejects a duplicate registration of an active card.
	ErrCardExists = errors.New("card already registered")

	// ErrCardDeletedExists signals that the card was registered before
	// and soft-deleted; the caller should offer a restore instead.
	ErrCardDeletedExists = errors.New("card was previously registered and soft-deleted")

	ErrCardLent     = errors.New("card is currently lent out")
	ErrCardRefunded = errors.New("card has been refunded")
)

// RegisterResult reports what the registration did beyond creating the
// card row itself.
type RegisterResult struct {
	Card *Card `json:"card"`

	// ReadFailed is set when the seed balance/history could not be read
	// off the card. Registration still completes; the seed row can be
	// added manually later.
	ReadFailed bool `json:"read_failed"`

	Bootstrap *ledger.BootstrapResult `json:"bootstrap,omitempty"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	Get(ctx context.Context, id int) (*Card, error)
	List(ctx context.Context, includeDeleted bool) ([]Card, error)
	Update(ctx context.Context, id int, req UpdateCardRequest) (*Card, error)
	SoftDelete(ctx context.Context, id int) error
	Restore(ctx context.Context, id int) error
	Refund(ctx context.Context, id int) (*ledger.Ledger, error)
}

type service struct {
	repo    Repository
	ledgers *ledger.Service
	rdr     reader.Reader
	now     func() time.Time
}

func NewService(repo Repository, ledgers *ledger.Service, rdr reader.Reader) Service {
	return &service{
		repo:    repo,
		ledgers: ledgers,
		rdr:     rdr,
		now:     time.Now,
	}
}

// Register creates the card and bootstraps its ledger from a best-effort
// card read. The card row and its seed are atomic as a pair: if the
// seed write fails the card row is rolled back, but a failed card READ
// only skips the seed (it can be backfilled manually).
func (s *service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	existing, err := s.repo.FindByIDm(ctx, req.IDm)
	if err != nil && !errors.Is(err, ErrCardNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.IsDeleted {
			return nil, ErrCardDeletedExists
		}
		return nil, ErrCardExists
	}

	created, err := s.repo.Create(ctx, &Card{
		IDm:        req.IDm,
		CardType:   req.CardType,
		CardNumber: req.CardNumber,
		Note:       req.Note,
		StartPage:  req.StartPage,
	})
	if err != nil {
		return nil, err
	}

	result := &RegisterResult{Card: created}

	balance, balErr := s.rdr.ReadBalance(req.IDm)
	history, histErr := s.rdr.ReadHistory(req.IDm)
	if balErr != nil || histErr != nil {
		logger.Errorf("card read failed during registration of %s: balance=%v history=%v",
			req.IDm, balErr, histErr)
		result.ReadFailed = true
		return result, nil
	}

	kind := ledger.SeedPurchase
	if req.SeedKind == string(ledger.SeedCarryover) {
		kind = ledger.SeedCarryover
	}

	bootstrap, err := s.ledgers.Bootstrap(ctx, created.ID, kind, req.CarryoverMonth, balance, history, s.now())
	if err != nil {
		// The seed write failed: roll the registration back so no
		// partially-registered card is ever visible.
		if delErr := s.repo.HardDelete(ctx, created.ID); delErr != nil {
			logger.Errorf("failed to roll back registration of %s: %v", req.IDm, delErr)
		}
		return nil, err
	}

	result.Bootstrap = bootstrap
	return result, nil
}

func (s *service) Get(ctx context.Context, id int) (*Card, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, includeDeleted bool) ([]Card, error) {
	return s.repo.List(ctx, includeDeleted)
}

func (s *service) Update(ctx context.Context, id int, req UpdateCardRequest) (*Card, error) {
	return s.repo.Update(ctx, id, req.CardType, req.CardNumber, req.Note, req.StartPage)
}

func (s *service) SoftDelete(ctx context.Context, id int) error {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if c.IsLent {
		return ErrCardLent
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *service) Restore(ctx context.Context, id int) error {
	return s.repo.Restore(ctx, id)
}

// Refund pays the remaining balance back and permanently retires the
// card from lending. The refund ledger row ends the chain at zero.
func (s *service) Refund(ctx context.Context, id int) (*ledger.Ledger, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsLent {
		return nil, ErrCardLent
	}
	if c.IsRefunded {
		return nil, ErrCardRefunded
	}

	row, err := s.ledgers.RefundEntry(ctx, id, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkRefunded(ctx, id); err != nil {
		return nil, err
	}

	metrics.SetCardBalance(c.CardNumber, 0)
	return row, nil
}
