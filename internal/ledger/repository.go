package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrLedgerNotFound       = errors.New("ledger row not found")
	ErrMergeHistoryNotFound = errors.New("merge history not found")
)

const ledgerColumns = `id, card_id, lender_id, returner_id, entry_date, summary,
	income, expense, balance, staff_name, note, lent_at, returned_at,
	is_open_lending, created_at`

const detailColumns = `id, ledger_id, occurred_at, entry_station, exit_station,
	bus_stop, amount, balance, is_charge, is_point, is_bus, group_id, seq`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateLedger(ctx context.Context, l *Ledger) (*Ledger, error) {
	query := `
		INSERT INTO ledgers (card_id, lender_id, returner_id, entry_date, summary,
			income, expense, balance, staff_name, note, lent_at, returned_at, is_open_lending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + ledgerColumns

	var created Ledger
	err := r.db.GetContext(ctx, &created, query,
		l.CardID, l.LenderID, l.ReturnerID, l.EntryDate, l.Summary,
		l.Income, l.Expense, l.Balance, l.StaffName, l.Note,
		l.LentAt, l.ReturnedAt, l.IsOpenLending,
	)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *repository) GetLedger(ctx context.Context, id int) (*Ledger, error) {
	var l Ledger
	err := r.db.GetContext(ctx, &l,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLedgerNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *repository) GetLedgers(ctx context.Context, ids []int) ([]Ledger, error) {
	if len(ids) == 0 {
		return []Ledger{}, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+ledgerColumns+` FROM ledgers WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}

	rows := []Ledger{}
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByCard(ctx context.Context, cardID int, from, to time.Time) ([]Ledger, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledgers
		WHERE card_id = $1 AND entry_date >= $2 AND entry_date <= $3
		ORDER BY entry_date, id
	`

	rows := []Ledger{}
	err := r.db.SelectContext(ctx, &rows, query, cardID, from, to)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListRecent(ctx context.Context, cardID, limit, offset int) ([]Ledger, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledgers
		WHERE card_id = $1
		ORDER BY entry_date DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows := []Ledger{}
	err := r.db.SelectContext(ctx, &rows, query, cardID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Bootstrap(ctx context.Context, seed *Ledger, details []Detail) (*Ledger, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	created, err := insertLedgerTx(ctx, tx, seed)
	if err != nil {
		return nil, err
	}

	if err := insertDetailsTx(ctx, tx, created.ID, details); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *repository) OpenLendingRow(ctx context.Context, cardID int) (*Ledger, error) {
	var l Ledger
	err := r.db.GetContext(ctx, &l,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE card_id = $1 AND is_open_lending`, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// OpenLending inserts the loan row and flips the card's lending flag in
// one transaction, so a failed write never leaves a card half-lent.
func (r *repository) OpenLending(ctx context.Context, l *Ledger) (*Ledger, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	created, err := insertLedgerTx(ctx, tx, l)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE cards SET is_lent = TRUE, last_lender_id = $1, updated_at = NOW() WHERE id = $2`,
		l.LenderID, l.CardID,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// CloseLending completes the loan row, attaches the newly imported
// details and clears the card's lending flag in one transaction.
func (r *repository) CloseLending(ctx context.Context, l *Ledger, details []Detail) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE ledgers
		SET returner_id = $1, summary = $2, income = $3, expense = $4, balance = $5,
			staff_name = $6, returned_at = $7, is_open_lending = FALSE
		WHERE id = $8`,
		l.ReturnerID, l.Summary, l.Income, l.Expense, l.Balance,
		l.StaffName, l.ReturnedAt, l.ID,
	)
	if err != nil {
		return err
	}

	if err := insertDetailsTx(ctx, tx, l.ID, details); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE cards SET is_lent = FALSE, updated_at = NOW() WHERE id = $1`, l.CardID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) LatestBalance(ctx context.Context, cardID int) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance, `
		SELECT balance FROM ledgers
		WHERE card_id = $1
		ORDER BY entry_date DESC, id DESC
		LIMIT 1`, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// BalanceBefore returns the final balance of the last day strictly
// before day, the anchor for same-day balance-chain ordering.
func (r *repository) BalanceBefore(ctx context.Context, cardID int, day time.Time) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance, `
		SELECT balance FROM ledgers
		WHERE card_id = $1 AND entry_date < $2
		ORDER BY entry_date DESC, id DESC
		LIMIT 1`, cardID, day)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

func (r *repository) LatestBalances(ctx context.Context) ([]CardBalance, error) {
	query := `
		SELECT c.id AS card_id, c.card_number, c.card_type, c.is_lent,
			COALESCE(l.balance, 0) AS balance
		FROM cards c
		LEFT JOIN LATERAL (
			SELECT balance FROM ledgers
			WHERE card_id = c.id
			ORDER BY entry_date DESC, id DESC
			LIMIT 1
		) l ON TRUE
		WHERE NOT c.is_deleted
		ORDER BY c.card_number
	`

	balances := []CardBalance{}
	err := r.db.SelectContext(ctx, &balances, query)
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// FirstLedgerAt returns the date of the card's oldest ledger row, the
// registration point used as the reconciliation anchor before any
// details exist.
func (r *repository) FirstLedgerAt(ctx context.Context, cardID int) (*time.Time, error) {
	var at time.Time
	err := r.db.GetContext(ctx, &at, `
		SELECT entry_date FROM ledgers
		WHERE card_id = $1
		ORDER BY entry_date, id
		LIMIT 1`, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &at, nil
}

func (r *repository) ListDetails(ctx context.Context, ledgerID int) ([]Detail, error) {
	query := `
		SELECT ` + detailColumns + `
		FROM ledger_details
		WHERE ledger_id = $1
		ORDER BY occurred_at, seq
	`

	details := []Detail{}
	err := r.db.SelectContext(ctx, &details, query, ledgerID)
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (r *repository) ListDetailsByCard(ctx context.Context, cardID int) ([]Detail, error) {
	query := `
		SELECT d.id, d.ledger_id, d.occurred_at, d.entry_station, d.exit_station,
			d.bus_stop, d.amount, d.balance, d.is_charge, d.is_point, d.is_bus,
			d.group_id, d.seq
		FROM ledger_details d
		JOIN ledgers l ON l.id = d.ledger_id
		WHERE l.card_id = $1
		ORDER BY d.occurred_at, d.seq
	`

	details := []Detail{}
	err := r.db.SelectContext(ctx, &details, query, cardID)
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (r *repository) LastDetailAt(ctx context.Context, cardID int) (*time.Time, error) {
	var at time.Time
	err := r.db.GetContext(ctx, &at, `
		SELECT d.occurred_at
		FROM ledger_details d
		JOIN ledgers l ON l.id = d.ledger_id
		WHERE l.card_id = $1
		ORDER BY d.occurred_at DESC
		LIMIT 1`, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &at, nil
}

func (r *repository) ReplaceDetails(ctx context.Context, ledgerID int, details []Detail, summary string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM ledger_details WHERE ledger_id = $1`, ledgerID)
	if err != nil {
		return err
	}

	for _, d := range details {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_details (id, ledger_id, occurred_at, entry_station,
				exit_station, bus_stop, amount, balance, is_charge, is_point, is_bus,
				group_id, seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			d.ID, ledgerID, d.OccurredAt, d.EntryStation, d.ExitStation, d.BusStop,
			d.Amount, d.Balance, d.IsCharge, d.IsPoint, d.IsBus, d.GroupID, d.Seq,
		)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE ledgers SET summary = $1 WHERE id = $2`, summary, ledgerID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) ApplyMerge(ctx context.Context, merged *Ledger, replacedIDs []int, history *MergeHistory) (*Ledger, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	created, err := insertLedgerTx(ctx, tx, merged)
	if err != nil {
		return nil, err
	}

	query, args, err := sqlx.In(
		`UPDATE ledger_details SET ledger_id = ? WHERE ledger_id IN (?)`,
		created.ID, replacedIDs)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return nil, err
	}

	query, args, err = sqlx.In(`DELETE FROM ledgers WHERE id IN (?)`, replacedIDs)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO merge_histories (card_id, merged_ledger_id, description, snapshot)
		VALUES ($1, $2, $3, $4)`,
		history.CardID, created.ID, history.Description, history.Snapshot,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *repository) ApplySplit(ctx context.Context, originalID int, rows []Ledger, detailSets [][]Detail) ([]Ledger, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	created := make([]Ledger, 0, len(rows))
	for i := range rows {
		row, err := insertLedgerTx(ctx, tx, &rows[i])
		if err != nil {
			return nil, err
		}

		for _, d := range detailSets[i] {
			_, err = tx.ExecContext(ctx,
				`UPDATE ledger_details SET ledger_id = $1 WHERE id = $2`,
				row.ID, d.ID)
			if err != nil {
				return nil, err
			}
		}
		created = append(created, *row)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledgers WHERE id = $1`, originalID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// ApplyUndo restores the snapshot verbatim: original row ids and detail
// assignments come back exactly as they were, the merged row and the
// consumed history record are removed.
func (r *repository) ApplyUndo(ctx context.Context, history *MergeHistory, snap *Snapshot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM ledger_details WHERE ledger_id = $1`, history.MergedLedgerID)
	if err != nil {
		return err
	}

	for i := range snap.Rows {
		row := snap.Rows[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledgers (id, card_id, lender_id, returner_id, entry_date,
				summary, income, expense, balance, staff_name, note, lent_at,
				returned_at, is_open_lending, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			row.ID, row.CardID, row.LenderID, row.ReturnerID, row.EntryDate,
			row.Summary, row.Income, row.Expense, row.Balance, row.StaffName,
			row.Note, row.LentAt, row.ReturnedAt, row.IsOpenLending, row.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	for _, d := range snap.Details {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_details (id, ledger_id, occurred_at, entry_station,
				exit_station, bus_stop, amount, balance, is_charge, is_point, is_bus,
				group_id, seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			d.ID, d.LedgerID, d.OccurredAt, d.EntryStation, d.ExitStation, d.BusStop,
			d.Amount, d.Balance, d.IsCharge, d.IsPoint, d.IsBus, d.GroupID, d.Seq,
		)
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledgers WHERE id = $1`, history.MergedLedgerID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM merge_histories WHERE id = $1`, history.ID); err != nil {
		return err
	}

	// Explicit-id inserts bypass the serial sequences; realign them.
	if _, err := tx.ExecContext(ctx,
		`SELECT setval('ledgers_id_seq', (SELECT COALESCE(MAX(id), 1) FROM ledgers))`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`SELECT setval('ledger_details_id_seq', (SELECT COALESCE(MAX(id), 1) FROM ledger_details))`); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) ListMergeHistories(ctx context.Context, cardID int) ([]MergeHistory, error) {
	query := `
		SELECT id, card_id, merged_ledger_id, description, snapshot, created_at
		FROM merge_histories
		WHERE card_id = $1
		ORDER BY created_at DESC, id DESC
	`

	histories := []MergeHistory{}
	err := r.db.SelectContext(ctx, &histories, query, cardID)
	if err != nil {
		return nil, err
	}
	return histories, nil
}

func (r *repository) GetMergeHistory(ctx context.Context, id int) (*MergeHistory, error) {
	var h MergeHistory
	err := r.db.GetContext(ctx, &h, `
		SELECT id, card_id, merged_ledger_id, description, snapshot, created_at
		FROM merge_histories
		WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMergeHistoryNotFound
		}
		return nil, err
	}
	return &h, nil
}

func insertLedgerTx(ctx context.Context, tx *sqlx.Tx, l *Ledger) (*Ledger, error) {
	query := `
		INSERT INTO ledgers (card_id, lender_id, returner_id, entry_date, summary,
			income, expense, balance, staff_name, note, lent_at, returned_at, is_open_lending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + ledgerColumns

	var created Ledger
	err := tx.GetContext(ctx, &created, query,
		l.CardID, l.LenderID, l.ReturnerID, l.EntryDate, l.Summary,
		l.Income, l.Expense, l.Balance, l.StaffName, l.Note,
		l.LentAt, l.ReturnedAt, l.IsOpenLending,
	)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func insertDetailsTx(ctx context.Context, tx *sqlx.Tx, ledgerID int, details []Detail) error {
	for _, d := range details {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_details (ledger_id, occurred_at, entry_station,
				exit_station, bus_stop, amount, balance, is_charge, is_point, is_bus,
				group_id, seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			ledgerID, d.OccurredAt, d.EntryStation, d.ExitStation, d.BusStop,
			d.Amount, d.Balance, d.IsCharge, d.IsPoint, d.IsBus, d.GroupID, d.Seq,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
