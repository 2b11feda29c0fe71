package card

import "context"

type Repository interface {
	Create(ctx context.Context, c *Card) (*Card, error)
	FindByID(ctx context.Context, id int) (*Card, error)
	FindByIDm(ctx context.Context, idm string) (*Card, error)
	List(ctx context.Context, includeDeleted bool) ([]Card, error)
	Update(ctx context.Context, id int, cardType, cardNumber, note string, startPage *int) (*Card, error)
	SoftDelete(ctx context.Context, id int) error
	Restore(ctx context.Context, id int) error
	MarkRefunded(ctx context.Context, id int) error

	// HardDelete exists only to compensate a registration whose seed
	// write failed; a card with any ledger history is never removed.
	HardDelete(ctx context.Context, id int) error
}
