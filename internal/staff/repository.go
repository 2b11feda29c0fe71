package staff

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrStaffNotFound   = errors.New("staff not found")
	ErrStaffNotDeleted = errors.New("staff is not deleted")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, idm, name, number, note string) (*Staff, error) {
	query := `
		INSERT INTO staff (idm, name, number, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id, idm, name, number, note, is_deleted, created_at, updated_at
	`

	var s Staff
	err := r.db.GetContext(ctx, &s, query, idm, name, number, note)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *repository) FindByID(ctx context.Context, id int) (*Staff, error) {
	query := `
		SELECT id, idm, name, number, note, is_deleted, created_at, updated_at
		FROM staff
		WHERE id = $1
	`

	var s Staff
	err := r.db.GetContext(ctx, &s, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}

	return &s, nil
}

// FindByIDm looks a staff member up by hardware identifier, including
// soft-deleted rows. Callers decide how to treat deleted staff.
func (r *repository) FindByIDm(ctx context.Context, idm string) (*Staff, error) {
	query := `
		SELECT id, idm, name, number, note, is_deleted, created_at, updated_at
		FROM staff
		WHERE idm = $1
	`

	var s Staff
	err := r.db.GetContext(ctx, &s, query, idm)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}

	return &s, nil
}

func (r *repository) List(ctx context.Context, includeDeleted bool) ([]Staff, error) {
	query := `
		SELECT id, idm, name, number, note, is_deleted, created_at, updated_at
		FROM staff
		WHERE ($1 OR NOT is_deleted)
		ORDER BY number, name
	`

	staffList := []Staff{}
	err := r.db.SelectContext(ctx, &staffList, query, includeDeleted)
	if err != nil {
		return nil, err
	}

	return staffList, nil
}

func (r *repository) Update(ctx context.Context, id int, name, number, note string) (*Staff, error) {
	query := `
		UPDATE staff
		SET name = $1, number = $2, note = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING id, idm, name, number, note, is_deleted, created_at, updated_at
	`

	var s Staff
	err := r.db.GetContext(ctx, &s, query, name, number, note, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}

	return &s, nil
}

func (r *repository) SoftDelete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE staff SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND NOT is_deleted`,
		id,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStaffNotFound
	}

	return nil
}

func (r *repository) Restore(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE staff SET is_deleted = FALSE, updated_at = NOW() WHERE id = $1 AND is_deleted`,
		id,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStaffNotDeleted
	}

	return nil
}
