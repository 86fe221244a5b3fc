package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/pedalhouse/reservation/internal/database"
	"github.com/pedalhouse/reservation/internal/layout"
	"github.com/pedalhouse/reservation/internal/model"
	"github.com/pedalhouse/reservation/internal/queue"
	"github.com/pedalhouse/reservation/internal/repository"
)

// studioGetter is the slice of StudioRepo the inventory needs.
type studioGetter interface {
	GetByID(ctx context.Context, id uint64) (*model.Studio, error)
}

// catalogReader is the slice of SeatRepo the inventory needs.
type catalogReader interface {
	GetActiveByStudioTx(ctx context.Context, tx *sql.Tx, studioID uint64) ([]model.Seat, error)
}

// occurrenceStore is the slice of OccurrenceRepo the inventory needs.
type occurrenceStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Occurrence, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Occurrence, error)
	ListOpenIDs(ctx context.Context) ([]uint64, error)
}

// seatInventory is the slice of ScheduleSeatRepo the inventory needs.
type seatInventory interface {
	CountForOccurrenceTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (int, error)
	CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.ScheduleSeat) error
	ReserveTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64, token string, expiresAt time.Time) error
	ConfirmTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64) error
	ReleaseTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64) error
	ReleaseExpiredTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64, now time.Time) (int64, error)
	GetByPairTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64) (*model.ScheduleSeat, error)
	CountByStatusTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (repository.StatusCounts, error)
}

// waitlistStore is the slice of WaitlistRepo the inventory needs.
type waitlistStore interface {
	JoinTx(ctx context.Context, tx *sql.Tx, occurrenceID, userID uint64) error
	LeaveTx(ctx context.Context, tx *sql.Tx, occurrenceID, userID uint64) (bool, error)
}

// bookingPublisher emits events after a booking transaction commits.
type bookingPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// amqpBookingPublisher is the production publisher.
type amqpBookingPublisher struct{}

func (amqpBookingPublisher) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	return queue.PublishBookingConfirmed(ctx, ev)
}

// Hold is the receipt returned by Assign: the token correlates the
// reservation with its later confirm/release, and ExpiresAt tells the
// client how long the seat is held.
type Hold struct {
	Token     string    `json:"hold_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Inventory owns the booking state machine for schedule seats. Every
// mutating operation sweeps expired holds, applies its transition and
// recomputes the occurrence's counters inside one transaction, so the
// counters cannot drift from the per-seat state no matter how commands
// interleave.
type Inventory struct {
	runner    database.Runner
	studios   studioGetter
	catalog   catalogReader
	occ       occurrenceStore
	seats     seatInventory
	waitlist  waitlistStore
	capacity  *Capacity
	publisher bookingPublisher
	holdTTL   time.Duration
}

// NewInventory constructs the booking engine. holdTTL bounds how long a
// reserved seat waits for confirmation before the sweep releases it.
func NewInventory(runner database.Runner, studios studioGetter, catalog catalogReader, occ occurrenceStore, seats seatInventory, waitlist waitlistStore, capacity *Capacity, holdTTL time.Duration) *Inventory {
	if runner == nil || studios == nil || catalog == nil || occ == nil || seats == nil || waitlist == nil || capacity == nil {
		panic("nil dependency passed to NewInventory")
	}
	if holdTTL <= 0 {
		holdTTL = 5 * time.Minute
	}
	return &Inventory{
		runner:    runner,
		studios:   studios,
		catalog:   catalog,
		occ:       occ,
		seats:     seats,
		waitlist:  waitlist,
		capacity:  capacity,
		publisher: amqpBookingPublisher{},
		holdTTL:   holdTTL,
	}
}

// Materialize clones the studio's active seat catalog into the
// occurrence's bookable inventory, traversing rows in the studio's
// addressing order. It must run exactly once per occurrence: a repeat
// call fails with ErrAlreadyMaterialized and creates no rows, with the
// unique (occurrence_id, seat_id) index backing the check against a
// concurrent materialization. Returns the number of seats created.
func (s *Inventory) Materialize(ctx context.Context, occurrenceID uint64) (int, error) {
	occ, err := s.occ.GetByID(ctx, occurrenceID)
	if err != nil {
		return 0, err
	}
	studio, err := s.studios.GetByID(ctx, occ.StudioID)
	if err != nil {
		return 0, err
	}

	var created int
	err = s.runner.InTx(ctx, func(tx *sql.Tx) error {
		if n, err := s.seats.CountForOccurrenceTx(ctx, tx, occurrenceID); err != nil {
			return err
		} else if n > 0 {
			return repository.ErrAlreadyMaterialized
		}

		catalog, err := s.catalog.GetActiveByStudioTx(ctx, tx, studio.ID)
		if err != nil {
			return err
		}

		// Index the catalog by coordinate, then replay the studio's
		// traversal so positions reflect the addressing mode.
		byCoord := make(map[[2]int]uint64, len(catalog))
		for _, seat := range catalog {
			byCoord[[2]int{int(seat.Row), int(seat.Col)}] = seat.ID
		}
		rows := make([]model.ScheduleSeat, 0, len(catalog))
		pos := uint32(0)
		layout.Traverse(studio.Addressing, int(studio.Rows), int(studio.Cols), func(row, col int) {
			seatID, ok := byCoord[[2]int{row, col}]
			if !ok {
				return // inactive or never-generated coordinate
			}
			pos++
			rows = append(rows, model.ScheduleSeat{
				OccurrenceID: occurrenceID,
				SeatID:       seatID,
				Status:       model.SeatAvailable,
				Code:         fmt.Sprintf("%d-%d", occurrenceID, seatID),
				Position:     pos,
			})
		})
		if err := s.seats.CreateBulkTx(ctx, tx, rows); err != nil {
			return err
		}
		created = len(rows)

		if uint32(created) > occ.MaxCapacity {
			// Excess seats stay bookable; the cap is enforced per
			// assignment. Surfaced as a warning, not an error.
			log.Printf("inventory: occurrence %d has %d seats but max_capacity %d", occurrenceID, created, occ.MaxCapacity)
		}

		_, err = s.capacity.RecomputeTx(ctx, tx, occurrenceID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// Assign reserves a specific seat for an occurrence. The occurrence row
// is locked first so the status and capacity checks hold for the whole
// transaction; then expired holds are swept, the cap is enforced
// against the fresh counts, and the seat is flipped available→reserved
// by compare-and-swap. Of N concurrent Assign calls on one seat exactly
// one succeeds; the rest get ErrSeatUnavailable.
func (s *Inventory) Assign(ctx context.Context, occurrenceID, seatID uint64) (Hold, error) {
	var hold Hold
	err := s.runner.InTx(ctx, func(tx *sql.Tx) error {
		occ, err := s.occ.GetByIDTx(ctx, tx, occurrenceID)
		if err != nil {
			return err
		}
		if !occ.AcceptsAssignments() {
			return repository.ErrOccurrenceClosed
		}
		if _, err := s.seats.ReleaseExpiredTx(ctx, tx, occurrenceID, time.Now()); err != nil {
			return err
		}
		counts, err := s.seats.CountByStatusTx(ctx, tx, occurrenceID)
		if err != nil {
			return err
		}
		if counts.Reserved+counts.Occupied >= occ.MaxCapacity {
			return repository.ErrCapacityExceeded
		}

		hold = Hold{Token: uuid.NewString(), ExpiresAt: time.Now().UTC().Add(s.holdTTL)}
		if err := s.seats.ReserveTx(ctx, tx, occurrenceID, seatID, hold.Token, hold.ExpiresAt); err != nil {
			return err
		}
		_, err = s.capacity.RecomputeTx(ctx, tx, occurrenceID)
		return err
	})
	if err != nil {
		return Hold{}, err
	}
	return hold, nil
}

// Confirm completes a reservation (reserved → occupied). Expired holds
// are swept first so a lapsed reservation cannot be confirmed. On
// success a booking.confirmed event is published best-effort after the
// transaction commits.
func (s *Inventory) Confirm(ctx context.Context, occurrenceID, seatID uint64) error {
	var ev queue.BookingConfirmedEvent
	err := s.runner.InTx(ctx, func(tx *sql.Tx) error {
		occ, err := s.occ.GetByIDTx(ctx, tx, occurrenceID)
		if err != nil {
			return err
		}
		if _, err := s.seats.ReleaseExpiredTx(ctx, tx, occurrenceID, time.Now()); err != nil {
			return err
		}
		if err := s.seats.ConfirmTx(ctx, tx, occurrenceID, seatID); err != nil {
			return err
		}
		ss, err := s.seats.GetByPairTx(ctx, tx, occurrenceID, seatID)
		if err != nil {
			return err
		}
		ev = queue.BookingConfirmedEvent{
			OccurrenceID: occurrenceID,
			SeatID:       seatID,
			SeatCode:     ss.Code,
			StudioID:     occ.StudioID,
			StartsAt:     occ.StartsAt.UTC().Format(time.RFC3339),
			ConfirmedAt:  time.Now().UTC().Format(time.RFC3339),
		}
		_, err = s.capacity.RecomputeTx(ctx, tx, occurrenceID)
		return err
	})
	if err != nil {
		return err
	}
	// Broker outages must not fail a booking that already committed.
	if err := s.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
		log.Printf("inventory: publish booking.confirmed failed: %v", err)
	}
	return nil
}

// Release frees a reserved or occupied seat back to available.
// Releasing does not promote anyone from the waitlist; promotion is a
// manual front-desk action.
func (s *Inventory) Release(ctx context.Context, occurrenceID, seatID uint64) error {
	return s.runner.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.seats.ReleaseTx(ctx, tx, occurrenceID, seatID); err != nil {
			return err
		}
		_, err := s.capacity.RecomputeTx(ctx, tx, occurrenceID)
		return err
	})
}

// ReleaseExpired sweeps expired holds of one occurrence back to
// available and recomputes its counters. Returns how many seats were
// released.
func (s *Inventory) ReleaseExpired(ctx context.Context, occurrenceID uint64, now time.Time) (int64, error) {
	var released int64
	err := s.runner.InTx(ctx, func(tx *sql.Tx) error {
		n, err := s.seats.ReleaseExpiredTx(ctx, tx, occurrenceID, now)
		if err != nil {
			return err
		}
		released = n
		if n == 0 {
			return nil // nothing changed; skip the counter write
		}
		_, err = s.capacity.RecomputeTx(ctx, tx, occurrenceID)
		return err
	})
	return released, err
}

// SweepOpen runs ReleaseExpired over every occurrence still accepting
// assignments. The background sweeper calls this on a schedule; sweep
// failures on one occurrence do not stop the rest.
func (s *Inventory) SweepOpen(ctx context.Context, now time.Time) (int64, error) {
	ids, err := s.occ.ListOpenIDs(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, id := range ids {
		n, err := s.ReleaseExpired(ctx, id, now)
		if err != nil {
			log.Printf("inventory: sweep occurrence %d: %v", id, err)
			continue
		}
		total += n
	}
	return total, nil
}

// Summary returns the occupancy view of an occurrence, served from the
// redis cache when warm and from the persisted counters otherwise.
func (s *Inventory) Summary(ctx context.Context, occurrenceID uint64) (Summary, error) {
	if sum, ok := s.capacity.CachedSummary(ctx, occurrenceID); ok {
		return sum, nil
	}
	occ, err := s.occ.GetByID(ctx, occurrenceID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{
		OccurrenceID:   occurrenceID,
		AvailableSpots: occ.AvailableSpots,
		BookedSpots:    occ.BookedSpots,
		WaitlistSpots:  occ.WaitlistSpots,
		TotalSeats:     occ.AvailableSpots + occ.BookedSpots,
	}
	s.capacity.StoreSummary(ctx, sum)
	return sum, nil
}

// JoinWaitlist queues a user on an occurrence that has no bookable
// capacity left. Joining while spots remain is rejected with
// ErrCapacityNotExhausted so the waitlist cannot shadow open seats.
func (s *Inventory) JoinWaitlist(ctx context.Context, occurrenceID, userID uint64) error {
	return s.runner.InTx(ctx, func(tx *sql.Tx) error {
		occ, err := s.occ.GetByIDTx(ctx, tx, occurrenceID)
		if err != nil {
			return err
		}
		if !occ.AcceptsAssignments() {
			return repository.ErrOccurrenceClosed
		}
		if _, err := s.seats.ReleaseExpiredTx(ctx, tx, occurrenceID, time.Now()); err != nil {
			return err
		}
		counts, err := s.seats.CountByStatusTx(ctx, tx, occurrenceID)
		if err != nil {
			return err
		}
		booked := counts.Reserved + counts.Occupied
		if counts.Available > 0 && booked < occ.MaxCapacity {
			return ErrCapacityNotExhausted
		}
		if err := s.waitlist.JoinTx(ctx, tx, occurrenceID, userID); err != nil {
			return err
		}
		_, err = s.capacity.RecomputeTx(ctx, tx, occurrenceID)
		return err
	})
}

// LeaveWaitlist removes a user from the occurrence's waitlist.
func (s *Inventory) LeaveWaitlist(ctx context.Context, occurrenceID, userID uint64) error {
	return s.runner.InTx(ctx, func(tx *sql.Tx) error {
		removed, err := s.waitlist.LeaveTx(ctx, tx, occurrenceID, userID)
		if err != nil {
			return err
		}
		if !removed {
			return nil
		}
		_, err = s.capacity.RecomputeTx(ctx, tx, occurrenceID)
		return err
	})
}
