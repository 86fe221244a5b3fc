package repository // repository for the asset loan ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pedalhouse/reservation/internal/model"
)

// LoanRepo provides data access to the loans ledger. The ledger, not
// the cached asset status, is the authority on whether an asset is
// checked out: the unique (asset_id, active_key) index guarantees at
// most one active loan per asset even when two checkouts race past the
// application-level check.
type LoanRepo struct {
	db *sql.DB
}

// NewLoanRepo returns a new LoanRepo bound to the given database.
func NewLoanRepo(db *sql.DB) *LoanRepo {
	return &LoanRepo{db: db}
}

const loanCols = `id, code, asset_id, borrower_id, loan_date, est_return_at, returned_at, status, incident_note,
	created_at, updated_at`

func scanLoan(scan func(dest ...interface{}) error) (*model.Loan, error) {
	var l model.Loan
	var est, ret sql.NullTime
	var note sql.NullString
	err := scan(
		&l.ID, &l.Code, &l.AssetID, &l.BorrowerID, &l.LoanDate, &est, &ret, &l.Status, &note,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if est.Valid {
		t := est.Time
		l.EstReturnAt = &t
	}
	if ret.Valid {
		t := ret.Time
		l.ReturnedAt = &t
	}
	if note.Valid {
		s := note.String
		l.IncidentNote = &s
	}
	return &l, nil
}

// CreateTx inserts a new loan within the caller's transaction. A
// duplicate on the active-loan index means another checkout won the
// race for this asset; it is translated to ErrAssetNotAvailable.
func (r *LoanRepo) CreateTx(ctx context.Context, tx *sql.Tx, l *model.Loan) error {
	const q = `INSERT INTO loans (code, asset_id, borrower_id, loan_date, est_return_at, status)
	           VALUES (?, ?, ?, ?, ?, ?)`
	var est interface{}
	if l.EstReturnAt != nil {
		est = l.EstReturnAt.UTC()
	}
	res, err := tx.ExecContext(ctx, q, l.Code, l.AssetID, l.BorrowerID, l.LoanDate.UTC(), est, l.Status)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrAssetNotAvailable
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	sel := `SELECT ` + loanCols + ` FROM loans WHERE id = ?`
	ll, err := scanLoan(tx.QueryRowContext(ctx, sel, l.ID).Scan)
	if err != nil {
		return err
	}
	*l = *ll
	return nil
}

// GetByID retrieves a loan by its id.
func (r *LoanRepo) GetByID(ctx context.Context, id uint64) (*model.Loan, error) {
	q := `SELECT ` + loanCols + ` FROM loans WHERE id = ?`
	l, err := scanLoan(r.db.QueryRowContext(ctx, q, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLoanNotFound
	}
	return l, err
}

// GetByIDTx retrieves a loan inside a transaction with a row lock held
// for the duration of a close/incident write.
func (r *LoanRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Loan, error) {
	q := `SELECT ` + loanCols + ` FROM loans WHERE id = ? FOR UPDATE`
	l, err := scanLoan(tx.QueryRowContext(ctx, q, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLoanNotFound
	}
	return l, err
}

// ActiveByAssetTx returns the active loan for an asset inside the
// caller's transaction, or nil when none exists. Checkout uses this as
// the ledger-side availability check backing the cached asset status.
func (r *LoanRepo) ActiveByAssetTx(ctx context.Context, tx *sql.Tx, assetID uint64) (*model.Loan, error) {
	q := `SELECT ` + loanCols + ` FROM loans WHERE asset_id = ? AND status IN (?, ?)`
	l, err := scanLoan(tx.QueryRowContext(ctx, q, assetID, model.LoanInUse, model.LoanOverdue).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// ActiveByAsset is the non-transactional variant used by display
// collaborators.
func (r *LoanRepo) ActiveByAsset(ctx context.Context, assetID uint64) (*model.Loan, error) {
	q := `SELECT ` + loanCols + ` FROM loans WHERE asset_id = ? AND status IN (?, ?)`
	l, err := scanLoan(r.db.QueryRowContext(ctx, q, assetID, model.LoanInUse, model.LoanOverdue).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// CloseTx finishes an active loan with the given terminal status and
// optional incident note. The CAS guard on the current status keeps a
// double return (or return racing an incident report) to exactly one
// winner; the loser receives ErrLoanNotActive.
func (r *LoanRepo) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, toStatus string, returnedAt time.Time, note *string) error {
	const q = `UPDATE loans
	           SET status = ?, returned_at = ?, incident_note = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND status IN (?, ?)`
	var n interface{}
	if note != nil {
		n = *note
	}
	res, err := tx.ExecContext(ctx, q, toStatus, returnedAt.UTC(), n, id, model.LoanInUse, model.LoanOverdue)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrLoanNotActive
	}
	return nil
}

// MarkOverdue flips in_use loans whose estimated return date has passed
// to overdue and returns how many were flipped. The asset stays in_use;
// only the loan status changes.
func (r *LoanRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE loans SET status = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE status = ? AND est_return_at IS NOT NULL AND est_return_at <= ?`
	res, err := r.db.ExecContext(ctx, q, model.LoanOverdue, model.LoanInUse, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByBorrower returns a borrower's loans, newest first.
func (r *LoanRepo) ListByBorrower(ctx context.Context, borrowerID uint64) ([]model.Loan, error) {
	q := `SELECT ` + loanCols + ` FROM loans WHERE borrower_id = ? ORDER BY loan_date DESC`
	rows, err := r.db.QueryContext(ctx, q, borrowerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Loan
	for rows.Next() {
		l, err := scanLoan(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	return result, rows.Err()
}

// CountActiveByBorrowerAndKindTx counts the borrower's active loans of
// a given asset kind inside the caller's transaction. The gateway uses
// it to enforce the one-concurrent-loan-per-kind rule.
func (r *LoanRepo) CountActiveByBorrowerAndKindTx(ctx context.Context, tx *sql.Tx, borrowerID uint64, kind string) (int, error) {
	const q = `SELECT COUNT(*)
	           FROM loans l
	           JOIN assets a ON a.id = l.asset_id
	           WHERE l.borrower_id = ? AND a.kind = ? AND l.status IN (?, ?)`
	var n int
	err := tx.QueryRowContext(ctx, q, borrowerID, kind, model.LoanInUse, model.LoanOverdue).Scan(&n)
	return n, err
}

// DeleteTx removes a loan row entirely. Reserved for the administrative
// override flow, which must also reset the asset status in the same
// transaction.
func (r *LoanRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `DELETE FROM loans WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLoanNotFound
	}
	return nil
}
