package repository // repository defines data access for physical seats

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pedalhouse/reservation/internal/model"
)

// SeatRepo provides methods to work with the durable seat catalog of a
// studio. Seats are generated once from the studio's geometry and are
// never deleted while schedule seats reference them.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// CreateBulkIgnore inserts the given seats in a single statement,
// skipping coordinates that already exist. The unique index on
// (studio_id, row_num, col_num) makes regeneration idempotent: an
// existing seat at a coordinate is reused, never duplicated.
func (r *SeatRepo) CreateBulkIgnore(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT IGNORE INTO seats (studio_id, row_num, col_num) VALUES `
	args := make([]interface{}, 0, len(seats)*3)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, s.StudioID, s.Row, s.Col)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// GetByStudio retrieves all seats of a studio ordered by row then column.
func (r *SeatRepo) GetByStudio(ctx context.Context, studioID uint64) ([]model.Seat, error) {
	const q = `SELECT id, studio_id, row_num, col_num, is_active, created_at, updated_at
	           FROM seats
	           WHERE studio_id = ?
	           ORDER BY row_num, col_num`
	rows, err := r.db.QueryContext(ctx, q, studioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.StudioID, &s.Row, &s.Col, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetActiveByStudioTx retrieves the active seats of a studio within a
// transaction, ordered by row then column. Materialization reads
// through this method so the seat set it clones is consistent with the
// schedule seats it inserts.
func (r *SeatRepo) GetActiveByStudioTx(ctx context.Context, tx *sql.Tx, studioID uint64) ([]model.Seat, error) {
	const q = `SELECT id, studio_id, row_num, col_num, is_active, created_at, updated_at
	           FROM seats
	           WHERE studio_id = ? AND is_active = 1
	           ORDER BY row_num, col_num`
	rows, err := tx.QueryContext(ctx, q, studioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.StudioID, &s.Row, &s.Col, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetByID retrieves a seat by its id.
func (r *SeatRepo) GetByID(ctx context.Context, id uint64) (*model.Seat, error) {
	const q = `SELECT id, studio_id, row_num, col_num, is_active, created_at, updated_at
	           FROM seats WHERE id = ?`
	var s model.Seat
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.StudioID, &s.Row, &s.Col, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return &s, nil
}

// CountByStudio returns the number of seats generated for a studio.
func (r *SeatRepo) CountByStudio(ctx context.Context, studioID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM seats WHERE studio_id = ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, studioID).Scan(&n)
	return n, err
}

// SetActive toggles a seat's active flag. Inactive seats are excluded
// from future materializations but existing schedule seats are left
// untouched.
func (r *SeatRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	const q = `UPDATE seats SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSeatNotFound
	}
	return nil
}
