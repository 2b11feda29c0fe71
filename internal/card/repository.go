package card

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrCardNotFound   = errors.New("card not found")
	ErrCardNotDeleted = errors.New("card is not deleted")
)

const cardColumns = `id, idm, card_type, card_number, note, is_lent, last_lender_id,
	is_refunded, is_deleted, start_page, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, c *Card) (*Card, error) {
	query := `
		INSERT INTO cards (idm, card_type, card_number, note, start_page)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + cardColumns

	var created Card
	err := r.db.GetContext(ctx, &created, query,
		c.IDm, c.CardType, c.CardNumber, c.Note, c.StartPage)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *repository) FindByID(ctx context.Context, id int) (*Card, error) {
	var c Card
	err := r.db.GetContext(ctx, &c,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindByIDm looks a card up by hardware identifier, including
// soft-deleted rows, so registration can distinguish "already active"
// from "previously deleted, restorable".
func (r *repository) FindByIDm(ctx context.Context, idm string) (*Card, error) {
	var c Card
	err := r.db.GetContext(ctx, &c,
		`SELECT `+cardColumns+` FROM cards WHERE idm = $1`, idm)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, includeDeleted bool) ([]Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE ($1 OR NOT is_deleted)
		ORDER BY card_number
	`

	cards := []Card{}
	err := r.db.SelectContext(ctx, &cards, query, includeDeleted)
	if err != nil {
		return nil, err
	}
	return cards, nil
}

func (r *repository) Update(ctx context.Context, id int, cardType, cardNumber, note string, startPage *int) (*Card, error) {
	query := `
		UPDATE cards
		SET card_type = $1, card_number = $2, note = $3, start_page = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING ` + cardColumns

	var c Card
	err := r.db.GetContext(ctx, &c, query, cardType, cardNumber, note, startPage, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) SoftDelete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cards SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND NOT is_deleted`,
		id,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, ErrCardNotFound)
}

func (r *repository) Restore(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cards SET is_deleted = FALSE, updated_at = NOW() WHERE id = $1 AND is_deleted`,
		id,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, ErrCardNotDeleted)
}

func (r *repository) MarkRefunded(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cards SET is_refunded = TRUE, updated_at = NOW() WHERE id = $1 AND NOT is_refunded`,
		id,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, ErrCardNotFound)
}

// HardDelete removes the bare card row. Only the registration rollback
// calls it; a card that has written ledger rows is soft-deleted instead.
func (r *repository) HardDelete(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	return err
}

func requireRowAffected(result sql.Result, missing error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return missing
	}
	return nil
}
