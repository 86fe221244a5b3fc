package repository // repository for refresh token persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TokenRepo stores refresh tokens. Only the SHA-256 hash of the raw
// token is persisted; a stolen table row cannot be replayed.
type TokenRepo struct {
	db *sql.DB
}

// NewTokenRepo constructs a TokenRepo with the given DB handle.
func NewTokenRepo(db *sql.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// ErrTokenNotFound is returned when no live refresh token matches.
var ErrTokenNotFound = errors.New("refresh token not found")

// Store saves a refresh token hash for a user with its expiry.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, hash string, expiresAt time.Time) error {
	const q = `INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, userID, hash, expiresAt.UTC())
	return err
}

// FindUser resolves a non-expired, non-revoked token hash to its user.
func (r *TokenRepo) FindUser(ctx context.Context, hash string) (uint64, error) {
	const q = `SELECT user_id FROM refresh_tokens
	           WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > UTC_TIMESTAMP()`
	var userID uint64
	err := r.db.QueryRowContext(ctx, q, hash).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTokenNotFound
	}
	return userID, err
}

// Revoke marks a token hash as revoked. Revoking an unknown or already
// revoked token reports ErrTokenNotFound.
func (r *TokenRepo) Revoke(ctx context.Context, hash string) error {
	const q = `UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP() WHERE token_hash = ? AND revoked_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, hash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTokenNotFound
	}
	return nil
}
