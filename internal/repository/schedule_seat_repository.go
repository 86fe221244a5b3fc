package repository // repository for per-occurrence seat inventory persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pedalhouse/reservation/internal/model"
)

// ScheduleSeatRepo encapsulates database operations for schedule_seats,
// the per-occurrence seat inventory. Every state transition is a
// compare-and-swap UPDATE whose WHERE clause names the expected current
// status: two concurrent callers racing on the same seat see exactly
// one affected row between them, which is the correctness property the
// whole booking flow rests on.
type ScheduleSeatRepo struct {
	db *sql.DB
}

// NewScheduleSeatRepo constructs a ScheduleSeatRepo given a DB handle.
func NewScheduleSeatRepo(db *sql.DB) *ScheduleSeatRepo {
	return &ScheduleSeatRepo{db: db}
}

// StatusCounts carries the per-status seat tallies for one occurrence.
type StatusCounts struct {
	Available uint32
	Reserved  uint32
	Occupied  uint32
}

// Total returns the number of schedule seats counted.
func (c StatusCounts) Total() uint32 {
	return c.Available + c.Reserved + c.Occupied
}

// CreateBulkTx inserts the materialized seat rows for an occurrence in
// one statement. All rows start available. A duplicate on the unique
// (occurrence_id, seat_id) index means another caller materialized the
// occurrence first; the whole insert is rejected and reported as
// ErrAlreadyMaterialized so no partial clone survives.
func (r *ScheduleSeatRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.ScheduleSeat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO schedule_seats (occurrence_id, seat_id, status, code, position) VALUES `
	args := make([]interface{}, 0, len(seats)*5)
	for i, ss := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, ss.OccurrenceID, ss.SeatID, ss.Status, ss.Code, ss.Position)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateKey(err) {
			return ErrAlreadyMaterialized
		}
		return err
	}
	return nil
}

// CountForOccurrenceTx returns how many schedule seats exist for an
// occurrence, with a plain read inside the transaction. Used to detect
// repeat materialization before attempting the bulk insert.
func (r *ScheduleSeatRepo) CountForOccurrenceTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM schedule_seats WHERE occurrence_id = ?`
	var n int
	err := tx.QueryRowContext(ctx, q, occurrenceID).Scan(&n)
	return n, err
}

// ReserveTx transitions a seat from available to reserved, recording
// the hold token and expiry. Exactly one of N concurrent calls on the
// same seat succeeds; the rest observe zero affected rows and receive
// ErrSeatUnavailable (or ErrSeatNotFound when the pair does not exist).
func (r *ScheduleSeatRepo) ReserveTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64, token string, expiresAt time.Time) error {
	const q = `UPDATE schedule_seats
	           SET status = ?, hold_token = ?, hold_expires_at = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE occurrence_id = ? AND seat_id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.SeatReserved, token, expiresAt.UTC(), occurrenceID, seatID, model.SeatAvailable)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.classifyMissTx(ctx, tx, occurrenceID, seatID)
	}
	return nil
}

// ConfirmTx transitions a seat from reserved to occupied and clears the
// hold. Fails with ErrSeatUnavailable when the seat is not reserved.
func (r *ScheduleSeatRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64) error {
	const q = `UPDATE schedule_seats
	           SET status = ?, hold_token = NULL, hold_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
	           WHERE occurrence_id = ? AND seat_id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.SeatOccupied, occurrenceID, seatID, model.SeatReserved)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.classifyMissTx(ctx, tx, occurrenceID, seatID)
	}
	return nil
}

// ReleaseTx transitions a reserved or occupied seat back to available.
func (r *ScheduleSeatRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64) error {
	const q = `UPDATE schedule_seats
	           SET status = ?, hold_token = NULL, hold_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
	           WHERE occurrence_id = ? AND seat_id = ? AND status IN (?, ?)`
	res, err := tx.ExecContext(ctx, q, model.SeatAvailable, occurrenceID, seatID, model.SeatReserved, model.SeatOccupied)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.classifyMissTx(ctx, tx, occurrenceID, seatID)
	}
	return nil
}

// ReleaseExpiredTx sweeps reserved seats whose hold expiry has passed
// back to available and returns how many were released. Runs inside the
// caller's transaction so the counter recompute that follows sees the
// swept state.
func (r *ScheduleSeatRepo) ReleaseExpiredTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64, now time.Time) (int64, error) {
	const q = `UPDATE schedule_seats
	           SET status = ?, hold_token = NULL, hold_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
	           WHERE occurrence_id = ? AND status = ? AND hold_expires_at IS NOT NULL AND hold_expires_at <= ?`
	res, err := tx.ExecContext(ctx, q, model.SeatAvailable, occurrenceID, model.SeatReserved, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// classifyMissTx decides why a CAS update touched no rows: the pair is
// missing (ErrSeatNotFound) or it exists in a state that does not allow
// the transition (ErrSeatUnavailable).
func (r *ScheduleSeatRepo) classifyMissTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64) error {
	const q = `SELECT id FROM schedule_seats WHERE occurrence_id = ? AND seat_id = ?`
	var id uint64
	err := tx.QueryRowContext(ctx, q, occurrenceID, seatID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSeatNotFound
	}
	if err != nil {
		return err
	}
	return ErrSeatUnavailable
}

// GetByPairTx retrieves the schedule seat for an (occurrence, seat)
// pair inside the caller's transaction.
func (r *ScheduleSeatRepo) GetByPairTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64) (*model.ScheduleSeat, error) {
	const q = `SELECT id, occurrence_id, seat_id, status, code, position, hold_token, hold_expires_at, created_at, updated_at
	           FROM schedule_seats
	           WHERE occurrence_id = ? AND seat_id = ?`
	var ss model.ScheduleSeat
	var token sql.NullString
	var expires sql.NullTime
	err := tx.QueryRowContext(ctx, q, occurrenceID, seatID).Scan(
		&ss.ID, &ss.OccurrenceID, &ss.SeatID, &ss.Status, &ss.Code, &ss.Position,
		&token, &expires, &ss.CreatedAt, &ss.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	if token.Valid {
		t := token.String
		ss.HoldToken = &t
	}
	if expires.Valid {
		e := expires.Time
		ss.HoldExpiresAt = &e
	}
	return &ss, nil
}

// CountByStatusTx tallies the occurrence's seats per status inside a
// transaction. The capacity aggregator calls this after every
// transition; the counters on the occurrence row are derived from this
// query and nothing else.
func (r *ScheduleSeatRepo) CountByStatusTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (StatusCounts, error) {
	const q = `SELECT status, COUNT(*) FROM schedule_seats WHERE occurrence_id = ? GROUP BY status`
	rows, err := tx.QueryContext(ctx, q, occurrenceID)
	if err != nil {
		return StatusCounts{}, err
	}
	defer rows.Close()
	return scanStatusCounts(rows)
}

// CountByStatus is the non-transactional variant used by read-only
// summary endpoints.
func (r *ScheduleSeatRepo) CountByStatus(ctx context.Context, occurrenceID uint64) (StatusCounts, error) {
	const q = `SELECT status, COUNT(*) FROM schedule_seats WHERE occurrence_id = ? GROUP BY status`
	rows, err := r.db.QueryContext(ctx, q, occurrenceID)
	if err != nil {
		return StatusCounts{}, err
	}
	defer rows.Close()
	return scanStatusCounts(rows)
}

func scanStatusCounts(rows *sql.Rows) (StatusCounts, error) {
	var counts StatusCounts
	for rows.Next() {
		var status string
		var n uint32
		if err := rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, err
		}
		switch status {
		case model.SeatAvailable:
			counts.Available = n
		case model.SeatReserved:
			counts.Reserved = n
		case model.SeatOccupied:
			counts.Occupied = n
		}
	}
	return counts, rows.Err()
}

// ListByOccurrence returns the full seat inventory of an occurrence in
// traversal order, for seat-map style consumers.
func (r *ScheduleSeatRepo) ListByOccurrence(ctx context.Context, occurrenceID uint64) ([]model.ScheduleSeat, error) {
	const q = `SELECT id, occurrence_id, seat_id, status, code, position, hold_token, hold_expires_at, created_at, updated_at
	           FROM schedule_seats
	           WHERE occurrence_id = ?
	           ORDER BY position`
	rows, err := r.db.QueryContext(ctx, q, occurrenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.ScheduleSeat
	for rows.Next() {
		var ss model.ScheduleSeat
		var token sql.NullString
		var expires sql.NullTime
		if err := rows.Scan(
			&ss.ID, &ss.OccurrenceID, &ss.SeatID, &ss.Status, &ss.Code, &ss.Position,
			&token, &expires, &ss.CreatedAt, &ss.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if token.Valid {
			t := token.String
			ss.HoldToken = &t
		}
		if expires.Valid {
			e := expires.Time
			ss.HoldExpiresAt = &e
		}
		result = append(result, ss)
	}
	return result, rows.Err()
}
