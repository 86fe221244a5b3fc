package model

import "time"

// Seat is a durable physical position inside a studio. Exactly one row
// exists per (studio, row, col) coordinate; the database enforces the
// uniqueness. Seats are never deleted while any schedule seat still
// references them.
type Seat struct {
	ID        uint64    // seats.id
	StudioID  uint64    // seats.studio_id
	Row       uint32    // seats.row_num (1-based)
	Col       uint32    // seats.col_num (1-based)
	IsActive  bool      // seats.is_active
	CreatedAt time.Time // seats.created_at
	UpdatedAt time.Time // seats.updated_at
}
