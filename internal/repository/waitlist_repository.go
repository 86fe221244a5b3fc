package repository // repository for occurrence waitlists

import (
	"context"
	"database/sql"

	"github.com/pedalhouse/reservation/internal/model"
)

// WaitlistRepo provides data access to waitlist entries. The waitlist
// is the sole authority for the occurrence's waitlist_spots counter; it
// is a queue of members without seat assignments and is never derived
// from seat state.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo {
	return &WaitlistRepo{db: db}
}

// JoinTx adds a user to the occurrence's waitlist. Joining twice is
// rejected by the unique (occurrence_id, user_id) index and reported as
// ErrDuplicate.
func (r *WaitlistRepo) JoinTx(ctx context.Context, tx *sql.Tx, occurrenceID, userID uint64) error {
	const q = `INSERT INTO waitlist_entries (occurrence_id, user_id) VALUES (?, ?)`
	if _, err := tx.ExecContext(ctx, q, occurrenceID, userID); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// LeaveTx removes a user from the occurrence's waitlist and reports
// whether an entry was actually removed.
func (r *WaitlistRepo) LeaveTx(ctx context.Context, tx *sql.Tx, occurrenceID, userID uint64) (bool, error) {
	const q = `DELETE FROM waitlist_entries WHERE occurrence_id = ? AND user_id = ?`
	res, err := tx.ExecContext(ctx, q, occurrenceID, userID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CountTx returns the waitlist length for an occurrence inside the
// caller's transaction.
func (r *WaitlistRepo) CountTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (uint32, error) {
	const q = `SELECT COUNT(*) FROM waitlist_entries WHERE occurrence_id = ?`
	var n uint32
	err := tx.QueryRowContext(ctx, q, occurrenceID).Scan(&n)
	return n, err
}

// ListByOccurrence returns the waitlist in join order (oldest first).
func (r *WaitlistRepo) ListByOccurrence(ctx context.Context, occurrenceID uint64) ([]model.WaitlistEntry, error) {
	const q = `SELECT id, occurrence_id, user_id, created_at
	           FROM waitlist_entries
	           WHERE occurrence_id = ?
	           ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, occurrenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.WaitlistEntry
	for rows.Next() {
		var e model.WaitlistEntry
		if err := rows.Scan(&e.ID, &e.OccurrenceID, &e.UserID, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
