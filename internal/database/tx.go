package database

import (
	"context"
	"database/sql"
)

// Runner executes a function inside a database transaction: commit when
// fn returns nil, rollback otherwise. Services depend on this interface
// instead of *sql.DB directly so tests can substitute a runner that
// skips the database entirely.
type Runner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// TxRunner is the production Runner backed by a *sql.DB.
type TxRunner struct {
	db *sql.DB
}

// NewTxRunner wraps a DB handle in a TxRunner.
func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

// InTx starts a transaction, runs fn, and commits it when fn succeeds.
// Any error from fn (or the commit) rolls the transaction back and is
// returned to the caller unchanged.
func (r *TxRunner) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
