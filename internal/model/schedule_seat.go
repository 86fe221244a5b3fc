package model

import "time"

// Schedule seat status values. Transitions allowed:
// available → reserved → occupied, and reserved|occupied → available.
// A seat never moves from available directly to occupied; assignment
// always reserves first and confirmation completes the booking.
const (
	SeatAvailable = "available"
	SeatReserved  = "reserved"
	SeatOccupied  = "occupied"
)

// ScheduleSeat is the per-occurrence bookable projection of a physical
// seat. One row exists per (occurrence, seat) pair, created in bulk
// when the occurrence is materialized; the database enforces the
// uniqueness so a second materialization cannot duplicate rows.
//
// Position records the traversal order in which the seat was visited
// under the studio's addressing mode, so external renderers can lay
// seats out exactly as they were generated. Code is the human-readable
// identifier shown on tickets ("<occurrence>-<seat>").
//
// A reserved seat carries a hold token and an expiry; holds that pass
// their expiry are swept back to available.
type ScheduleSeat struct {
	ID            uint64     // schedule_seats.id
	OccurrenceID  uint64     // schedule_seats.occurrence_id
	SeatID        uint64     // schedule_seats.seat_id
	Status        string     // schedule_seats.status
	Code          string     // schedule_seats.code
	Position      uint32     // schedule_seats.position (1-based traversal order)
	HoldToken     *string    // schedule_seats.hold_token (nullable, set while reserved)
	HoldExpiresAt *time.Time // schedule_seats.hold_expires_at (nullable)
	CreatedAt     time.Time  // schedule_seats.created_at
	UpdatedAt     time.Time  // schedule_seats.updated_at
}
