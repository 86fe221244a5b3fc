package repository // repository defines data access for loanable assets

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pedalhouse/reservation/internal/model"
)

// AssetRepo provides methods to work with the shared asset pool. The
// asset status column is a cached projection of the loans ledger; it is
// only ever written in the same transaction as the loan row it mirrors.
type AssetRepo struct {
	db *sql.DB
}

// NewAssetRepo constructs an AssetRepo with the given DB handle.
func NewAssetRepo(db *sql.DB) *AssetRepo {
	return &AssetRepo{db: db}
}

// DB exposes the underlying sql.DB for multi-repository transactions.
func (r *AssetRepo) DB() *sql.DB {
	return r.db
}

// Create registers a new asset. Duplicate codes are rejected with
// ErrDuplicate.
func (r *AssetRepo) Create(ctx context.Context, a *model.Asset) error {
	const q = `INSERT INTO assets (code, kind) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, q, a.Code, a.Kind)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	const sel = `SELECT id, code, kind, status, created_at, updated_at FROM assets WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, a.ID).Scan(&a.ID, &a.Code, &a.Kind, &a.Status, &a.CreatedAt, &a.UpdatedAt)
}

// GetByID retrieves an asset by its id.
func (r *AssetRepo) GetByID(ctx context.Context, id uint64) (*model.Asset, error) {
	const q = `SELECT id, code, kind, status, created_at, updated_at FROM assets WHERE id = ?`
	var a model.Asset
	err := r.db.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.Code, &a.Kind, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetByIDTx retrieves an asset inside a transaction with a row lock so
// the cached status cannot change between the availability check and
// the loan insert.
func (r *AssetRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Asset, error) {
	const q = `SELECT id, code, kind, status, created_at, updated_at FROM assets WHERE id = ? FOR UPDATE`
	var a model.Asset
	err := tx.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.Code, &a.Kind, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return &a, nil
}

// List returns assets, optionally filtered by kind and/or status.
func (r *AssetRepo) List(ctx context.Context, kind, status string) ([]model.Asset, error) {
	q := `SELECT id, code, kind, status, created_at, updated_at FROM assets WHERE 1=1`
	args := make([]interface{}, 0, 2)
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, kind)
	}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY code`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Asset
	for rows.Next() {
		var a model.Asset
		if err := rows.Scan(&a.ID, &a.Code, &a.Kind, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpdateStatusTx flips the cached asset status inside the caller's
// transaction. An optional expected status turns the write into a CAS:
// zero affected rows then reports ErrAssetNotAvailable.
func (r *AssetRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error {
	if from == "" {
		const q = `UPDATE assets SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
		_, err := tx.ExecContext(ctx, q, to, id)
		return err
	}
	const q = `UPDATE assets SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAssetNotAvailable
	}
	return nil
}
