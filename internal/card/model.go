package card

import "time"

// Card is one loaned transit smart-card. The IDm burned into the chip
// is its immutable primary key. A card with ledger history is only ever
// soft-deleted; its rows must survive it. The one hard delete is the
// rollback of a registration whose seed write failed.
type Card struct {
	ID           int       `db:"id" json:"id"`
	IDm          string    `db:"idm" json:"idm"`
	CardType     string    `db:"card_type" json:"card_type"`
	CardNumber   string    `db:"card_number" json:"card_number"`
	Note         string    `db:"note" json:"note"`
	IsLent       bool      `db:"is_lent" json:"is_lent"`
	LastLenderID *int      `db:"last_lender_id" json:"last_lender_id,omitempty"`
	IsRefunded   bool      `db:"is_refunded" json:"is_refunded"`
	IsDeleted    bool      `db:"is_deleted" json:"is_deleted"`
	StartPage    *int      `db:"start_page" json:"start_page,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

type RegisterRequest struct {
	IDm        string `json:"idm" binding:"required"`
	CardType   string `json:"card_type"`
	CardNumber string `json:"card_number" binding:"required"`
	Note       string `json:"note"`
	StartPage  *int   `json:"start_page"`

	// SeedKind chooses the registration summary: "purchase" for a new
	// card, "carryover" for one migrated from a paper ledger.
	SeedKind       string `json:"seed_kind" validate:"omitempty,oneof=purchase carryover"`
	CarryoverMonth int    `json:"carryover_month" validate:"gte=0,lte=12"`
}

type UpdateCardRequest struct {
	CardType   string `json:"card_type"`
	CardNumber string `json:"card_number" binding:"required"`
	Note       string `json:"note"`
	StartPage  *int   `json:"start_page"`
}
