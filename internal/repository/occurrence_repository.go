package repository // repository defines data access for class occurrences

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pedalhouse/reservation/internal/model"
)

// OccurrenceRepo manages persistence for scheduled class occurrences.
// The three spot counters on the row are a materialized view owned by
// the capacity aggregator; only UpdateSpotsTx may write them.
type OccurrenceRepo struct {
	db *sql.DB
}

// NewOccurrenceRepo constructs an OccurrenceRepo with the given DB handle.
func NewOccurrenceRepo(db *sql.DB) *OccurrenceRepo {
	return &OccurrenceRepo{db: db}
}

// DB exposes the underlying sql.DB for multi-repository transactions.
func (r *OccurrenceRepo) DB() *sql.DB {
	return r.db
}

const occurrenceCols = `id, studio_id, class_date, starts_at, ends_at, max_capacity, status,
	available_spots, booked_spots, waitlist_spots, created_at, updated_at`

func scanOccurrence(row *sql.Row) (*model.Occurrence, error) {
	var o model.Occurrence
	err := row.Scan(
		&o.ID, &o.StudioID, &o.Date, &o.StartsAt, &o.EndsAt, &o.MaxCapacity, &o.Status,
		&o.AvailableSpots, &o.BookedSpots, &o.WaitlistSpots, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOccurrenceNotFound
		}
		return nil, err
	}
	return &o, nil
}

// CreateTx inserts a new occurrence within the given transaction and
// populates the generated ID and DB defaults on the model. The caller
// must commit or roll back.
func (r *OccurrenceRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Occurrence) error {
	const q = `INSERT INTO occurrences (studio_id, class_date, starts_at, ends_at, max_capacity)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, o.StudioID, o.Date, o.StartsAt.UTC(), o.EndsAt.UTC(), o.MaxCapacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	sel := `SELECT ` + occurrenceCols + ` FROM occurrences WHERE id = ?`
	var oo model.Occurrence
	if err := tx.QueryRowContext(ctx, sel, o.ID).Scan(
		&oo.ID, &oo.StudioID, &oo.Date, &oo.StartsAt, &oo.EndsAt, &oo.MaxCapacity, &oo.Status,
		&oo.AvailableSpots, &oo.BookedSpots, &oo.WaitlistSpots, &oo.CreatedAt, &oo.UpdatedAt,
	); err != nil {
		return err
	}
	*o = oo
	return nil
}

// GetByID retrieves an occurrence by its id.
func (r *OccurrenceRepo) GetByID(ctx context.Context, id uint64) (*model.Occurrence, error) {
	q := `SELECT ` + occurrenceCols + ` FROM occurrences WHERE id = ?`
	return scanOccurrence(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx retrieves an occurrence inside a transaction with a row
// lock, so the status and capacity checked by the gateway cannot change
// under a concurrent assignment.
func (r *OccurrenceRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Occurrence, error) {
	q := `SELECT ` + occurrenceCols + ` FROM occurrences WHERE id = ? FOR UPDATE`
	return scanOccurrence(tx.QueryRowContext(ctx, q, id))
}

// ListByStudio returns occurrences of a studio ordered by start time.
func (r *OccurrenceRepo) ListByStudio(ctx context.Context, studioID uint64) ([]model.Occurrence, error) {
	q := `SELECT ` + occurrenceCols + ` FROM occurrences WHERE studio_id = ? ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, q, studioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Occurrence
	for rows.Next() {
		var o model.Occurrence
		if err := rows.Scan(
			&o.ID, &o.StudioID, &o.Date, &o.StartsAt, &o.EndsAt, &o.MaxCapacity, &o.Status,
			&o.AvailableSpots, &o.BookedSpots, &o.WaitlistSpots, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// ListOpenIDs returns the ids of occurrences still accepting
// assignments. The background sweeper iterates this set when releasing
// expired holds.
func (r *OccurrenceRepo) ListOpenIDs(ctx context.Context) ([]uint64, error) {
	const q = `SELECT id FROM occurrences WHERE status IN (?, ?)`
	rows, err := r.db.QueryContext(ctx, q, model.OccurrenceScheduled, model.OccurrenceInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateSpotsTx writes the derived spot counters. This is the only
// write path for available_spots/booked_spots/waitlist_spots; it always
// runs in the same transaction as the seat transition that made the
// counters stale.
func (r *OccurrenceRepo) UpdateSpotsTx(ctx context.Context, tx *sql.Tx, id uint64, available, booked, waitlist uint32) error {
	const q = `UPDATE occurrences
	           SET available_spots = ?, booked_spots = ?, waitlist_spots = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, available, booked, waitlist, id)
	return err
}

// UpdateStatus moves an occurrence to the given lifecycle status.
func (r *OccurrenceRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	const q = `UPDATE occurrences SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOccurrenceNotFound
	}
	return nil
}

// RollClock advances occurrence statuses against the wall clock:
// scheduled occurrences whose start time has passed become in_progress,
// and in_progress occurrences whose end time has passed become
// completed. Returns the number of rows touched. Cancelled and
// postponed occurrences are never rolled.
func (r *OccurrenceRepo) RollClock(ctx context.Context, now time.Time) (int64, error) {
	const start = `UPDATE occurrences SET status = ?, updated_at = CURRENT_TIMESTAMP
	               WHERE status = ? AND starts_at <= ?`
	res, err := r.db.ExecContext(ctx, start, model.OccurrenceInProgress, model.OccurrenceScheduled, now.UTC())
	if err != nil {
		return 0, err
	}
	started, _ := res.RowsAffected()

	const finish = `UPDATE occurrences SET status = ?, updated_at = CURRENT_TIMESTAMP
	                WHERE status = ? AND ends_at <= ?`
	res, err = r.db.ExecContext(ctx, finish, model.OccurrenceCompleted, model.OccurrenceInProgress, now.UTC())
	if err != nil {
		return started, err
	}
	finished, _ := res.RowsAffected()
	return started + finished, nil
}
