package staff

import "time"

// Staff is an operator who can lend or return cards by touching their
// own staff card first.
type Staff struct {
	ID        int       `db:"id" json:"id"`
	IDm       string    `db:"idm" json:"idm"`
	Name      string    `db:"name" json:"name"`
	Number    string    `db:"number" json:"number"`
	Note      string    `db:"note" json:"note"`
	IsDeleted bool      `db:"is_deleted" json:"is_deleted"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type CreateStaffRequest struct {
	IDm    string `json:"idm" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Number string `json:"number"`
	Note   string `json:"note"`
}

type UpdateStaffRequest struct {
	Name   string `json:"name" binding:"required"`
	Number string `json:"number"`
	Note   string `json:"note"`
}
