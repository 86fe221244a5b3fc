package model

import "time"

// AddressingMode controls the order in which seat columns are traversed
// when a studio's seats are generated and when a class occurrence's
// inventory is materialized. The mode is stored on the studio and never
// changes once seats exist.
type AddressingMode string

const (
	AddressLeftToRight AddressingMode = "left_to_right" // columns ascending
	AddressRightToLeft AddressingMode = "right_to_left" // columns descending
	AddressCenter      AddressingMode = "center"        // outward from the midpoint
)

// Valid reports whether m is one of the known addressing modes.
func (m AddressingMode) Valid() bool {
	switch m {
	case AddressLeftToRight, AddressRightToLeft, AddressCenter:
		return true
	}
	return false
}

// Studio represents a physical room with a fixed grid of bookable
// positions. Rows and Cols define the geometry; the geometry is
// immutable once seats have been generated so that existing seat
// references stay valid.
type Studio struct {
	ID         uint64         // studios.id
	Name       string         // studios.name
	Rows       uint32         // studios.row_count
	Cols       uint32         // studios.col_count
	Addressing AddressingMode // studios.addressing
	IsActive   bool           // studios.is_active
	CreatedAt  time.Time      // studios.created_at
	UpdatedAt  time.Time      // studios.updated_at
}
