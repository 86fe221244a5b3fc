package repository // repository defines data access for studios

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pedalhouse/reservation/internal/model"
)

// StudioRepo provides methods to work with studios in the database.
type StudioRepo struct {
	db *sql.DB
}

// NewStudioRepo constructs a StudioRepo with the given DB handle.
func NewStudioRepo(db *sql.DB) *StudioRepo {
	return &StudioRepo{db: db}
}

// DB exposes the underlying sql.DB. It allows callers to begin
// transactions spanning multiple repositories.
func (r *StudioRepo) DB() *sql.DB {
	return r.db
}

// Create inserts a studio and populates its generated ID and default
// fields. Geometry is validated by the caller before this point.
func (r *StudioRepo) Create(ctx context.Context, s *model.Studio) error {
	const q = `INSERT INTO studios (name, row_count, col_count, addressing) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.Name, s.Rows, s.Cols, s.Addressing)
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
	s.ID = uint64(id)
	const sel = `SELECT id, name, row_count, col_count, addressing, is_active, created_at, updated_at
	             FROM studios WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, s.ID).Scan(
		&s.ID, &s.Name, &s.Rows, &s.Cols, &s.Addressing, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
}

// GetByID retrieves a studio by its id. Returns ErrStudioNotFound when
// no row matches.
func (r *StudioRepo) GetByID(ctx context.Context, id uint64) (*model.Studio, error) {
	const q = `SELECT id, name, row_count, col_count, addressing, is_active, created_at, updated_at
	           FROM studios WHERE id = ?`
	var s model.Studio
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.Name, &s.Rows, &s.Cols, &s.Addressing, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudioNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List returns all studios ordered by id.
func (r *StudioRepo) List(ctx context.Context) ([]model.Studio, error) {
	const q = `SELECT id, name, row_count, col_count, addressing, is_active, created_at, updated_at
	           FROM studios ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Studio
	for rows.Next() {
		var s model.Studio
		if err := rows.Scan(&s.ID, &s.Name, &s.Rows, &s.Cols, &s.Addressing, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// SetActive toggles the studio's active flag. Returns ErrStudioNotFound
// when the studio does not exist.
func (r *StudioRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	const q = `UPDATE studios SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudioNotFound
	}
	return nil
}
