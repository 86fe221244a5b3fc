package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedalhouse/reservation/internal/model"
	"github.com/pedalhouse/reservation/internal/queue"
	"github.com/pedalhouse/reservation/internal/repository"
)

// fakeRunner satisfies database.Runner without a database; the fakes
// below ignore the nil transaction handle.
type fakeRunner struct{}

func (fakeRunner) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type fakeStudios struct {
	byID map[uint64]*model.Studio
}

func (f *fakeStudios) GetByID(ctx context.Context, id uint64) (*model.Studio, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrStudioNotFound
	}
	return s, nil
}

type fakeCatalog struct {
	seats []model.Seat
}

func (f *fakeCatalog) GetActiveByStudioTx(ctx context.Context, tx *sql.Tx, studioID uint64) ([]model.Seat, error) {
	var out []model.Seat
	for _, s := range f.seats {
		if s.StudioID == studioID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeOccurrences struct {
	byID map[uint64]*model.Occurrence
}

func (f *fakeOccurrences) get(id uint64) (*model.Occurrence, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrOccurrenceNotFound
	}
	return o, nil
}

func (f *fakeOccurrences) GetByID(ctx context.Context, id uint64) (*model.Occurrence, error) {
	return f.get(id)
}

func (f *fakeOccurrences) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Occurrence, error) {
	return f.get(id)
}

func (f *fakeOccurrences) ListOpenIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	for id, o := range f.byID {
		if o.AcceptsAssignments() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeOccurrences) UpdateSpotsTx(ctx context.Context, tx *sql.Tx, id uint64, available, booked, waitlist uint32) error {
	o, err := f.get(id)
	if err != nil {
		return err
	}
	o.AvailableSpots = available
	o.BookedSpots = booked
	o.WaitlistSpots = waitlist
	return nil
}

// fakeSeatInventory mirrors the schedule seat table's compare-and-swap
// transitions in memory.
type fakeSeatInventory struct {
	rows map[[2]uint64]*model.ScheduleSeat // keyed by (occurrence, seat)
}

func newFakeSeatInventory() *fakeSeatInventory {
	return &fakeSeatInventory{rows: make(map[[2]uint64]*model.ScheduleSeat)}
}

func (f *fakeSeatInventory) CountForOccurrenceTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (int, error) {
	n := 0
	for k := range f.rows {
		if k[0] == occurrenceID {
			n++
		}
	}
	return n, nil
}

func (f *fakeSeatInventory) CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.ScheduleSeat) error {
	for i := range seats {
		k := [2]uint64{seats[i].OccurrenceID, seats[i].SeatID}
		if _, dup := f.rows[k]; dup {
			return repository.ErrAlreadyMaterialized
		}
		row := seats[i]
		f.rows[k] = &row
	}
	return nil
}

func (f *fakeSeatInventory) ReserveTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64, token string, expiresAt time.Time) error {
	row, ok := f.rows[[2]uint64{occurrenceID, seatID}]
	if !ok {
		return repository.ErrSeatNotFound
	}
	if row.Status != model.SeatAvailable {
		return repository.ErrSeatUnavailable
	}
	row.Status = model.SeatReserved
	row.HoldToken = &token
	exp := expiresAt
	row.HoldExpiresAt = &exp
	return nil
}

func (f *fakeSeatInventory) ConfirmTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64) error {
	row, ok := f.rows[[2]uint64{occurrenceID, seatID}]
	if !ok {
		return repository.ErrSeatNotFound
	}
	if row.Status != model.SeatReserved {
		return repository.ErrSeatUnavailable
	}
	row.Status = model.SeatOccupied
	row.HoldToken = nil
	row.HoldExpiresAt = nil
	return nil
}

func (f *fakeSeatInventory) ReleaseTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64) error {
	row, ok := f.rows[[2]uint64{occurrenceID, seatID}]
	if !ok {
		return repository.ErrSeatNotFound
	}
	if row.Status == model.SeatAvailable {
		return repository.ErrSeatUnavailable
	}
	row.Status = model.SeatAvailable
	row.HoldToken = nil
	row.HoldExpiresAt = nil
	return nil
}

func (f *fakeSeatInventory) ReleaseExpiredTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64, now time.Time) (int64, error) {
	var n int64
	for k, row := range f.rows {
		if k[0] != occurrenceID || row.Status != model.SeatReserved {
			continue
		}
		if row.HoldExpiresAt != nil && !row.HoldExpiresAt.After(now) {
			row.Status = model.SeatAvailable
			row.HoldToken = nil
			row.HoldExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeSeatInventory) GetByPairTx(ctx context.Context, tx *sql.Tx, occurrenceID, seatID uint64) (*model.ScheduleSeat, error) {
	row, ok := f.rows[[2]uint64{occurrenceID, seatID}]
	if !ok {
		return nil, repository.ErrSeatNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeSeatInventory) CountByStatusTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (repository.StatusCounts, error) {
	var counts repository.StatusCounts
	for k, row := range f.rows {
		if k[0] != occurrenceID {
			continue
		}
		switch row.Status {
		case model.SeatAvailable:
			counts.Available++
		case model.SeatReserved:
			counts.Reserved++
		case model.SeatOccupied:
			counts.Occupied++
		}
	}
	return counts, nil
}

type fakeWaitlist struct {
	members map[[2]uint64]bool // (occurrence, user)
}

func newFakeWaitlist() *fakeWaitlist {
	return &fakeWaitlist{members: make(map[[2]uint64]bool)}
}

func (f *fakeWaitlist) JoinTx(ctx context.Context, tx *sql.Tx, occurrenceID, userID uint64) error {
	k := [2]uint64{occurrenceID, userID}
	if f.members[k] {
		return repository.ErrDuplicate
	}
	f.members[k] = true
	return nil
}

func (f *fakeWaitlist) LeaveTx(ctx context.Context, tx *sql.Tx, occurrenceID, userID uint64) (bool, error) {
	k := [2]uint64{occurrenceID, userID}
	if !f.members[k] {
		return false, nil
	}
	delete(f.members, k)
	return true, nil
}

func (f *fakeWaitlist) CountTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (uint32, error) {
	var n uint32
	for k := range f.members {
		if k[0] == occurrenceID {
			n++
		}
	}
	return n, nil
}

type recordingPublisher struct {
	bookings  []queue.BookingConfirmedEvent
	incidents []queue.AssetIncidentEvent
}

func (p *recordingPublisher) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	p.bookings = append(p.bookings, ev)
	return nil
}

func (p *recordingPublisher) PublishAssetIncident(ctx context.Context, ev queue.AssetIncidentEvent) error {
	p.incidents = append(p.incidents, ev)
	return nil
}

// fixture wires an inventory over the in-memory fakes: one 2x3 studio
// with center addressing, one scheduled occurrence.
type fixture struct {
	inv      *Inventory
	seats    *fakeSeatInventory
	occ      *fakeOccurrences
	waitlist *fakeWaitlist
	pub      *recordingPublisher
	catalog  *fakeCatalog
}

func newFixture(t *testing.T, maxCapacity uint32) *fixture {
	t.Helper()
	studio := &model.Studio{ID: 1, Name: "Spin A", Rows: 2, Cols: 3, Addressing: model.AddressCenter, IsActive: true}
	occ := &model.Occurrence{
		ID:          10,
		StudioID:    1,
		StartsAt:    time.Now().Add(2 * time.Hour),
		EndsAt:      time.Now().Add(3 * time.Hour),
		MaxCapacity: maxCapacity,
		Status:      model.OccurrenceScheduled,
	}
	catalog := &fakeCatalog{}
	var seatID uint64
	for row := 1; row <= 2; row++ {
		for col := 1; col <= 3; col++ {
			seatID++
			catalog.seats = append(catalog.seats, model.Seat{
				ID: seatID, StudioID: 1, Row: uint32(row), Col: uint32(col), IsActive: true,
			})
		}
	}

	f := &fixture{
		seats:    newFakeSeatInventory(),
		occ:      &fakeOccurrences{byID: map[uint64]*model.Occurrence{occ.ID: occ}},
		waitlist: newFakeWaitlist(),
		pub:      &recordingPublisher{},
		catalog:  catalog,
	}
	capacity := NewCapacity(f.seats, f.waitlist, f.occ, nil, time.Second)
	f.inv = NewInventory(fakeRunner{}, &fakeStudios{byID: map[uint64]*model.Studio{1: studio}}, catalog, f.occ, f.seats, f.waitlist, capacity, time.Minute)
	f.inv.publisher = f.pub
	return f
}

func TestMaterializeOnce(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()

	created, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, created)

	// Positions follow the studio's center addressing within each row:
	// with 3 columns the visit order is 2, 1, 3.
	wantPos := map[uint64]uint32{
		2: 1, 1: 2, 3: 3, // row 1, seats 1..3
		5: 4, 4: 5, 6: 6, // row 2, seats 4..6
	}
	for seatID, pos := range wantPos {
		row := f.seats.rows[[2]uint64{10, seatID}]
		require.NotNil(t, row, "seat %d missing", seatID)
		assert.Equal(t, pos, row.Position, "seat %d position", seatID)
		assert.Equal(t, model.SeatAvailable, row.Status)
	}

	_, err = f.inv.Materialize(ctx, 10)
	assert.ErrorIs(t, err, repository.ErrAlreadyMaterialized)

	occ, _ := f.occ.get(10)
	assert.Equal(t, uint32(6), occ.AvailableSpots)
	assert.Equal(t, uint32(0), occ.BookedSpots)
}

func TestMaterializeSkipsInactiveSeats(t *testing.T) {
	f := newFixture(t, 6)
	f.catalog.seats[4].IsActive = false // row 2, col 2

	created, err := f.inv.Materialize(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 5, created)
	assert.Nil(t, f.seats.rows[[2]uint64{10, 5}])
}

func TestAssignSingleWinner(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	_, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)

	hold, err := f.inv.Assign(ctx, 10, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, hold.Token)
	assert.True(t, hold.ExpiresAt.After(time.Now()))

	// A second claim on the same seat loses the swap.
	_, err = f.inv.Assign(ctx, 10, 3)
	assert.ErrorIs(t, err, repository.ErrSeatUnavailable)

	// A different seat is unaffected.
	_, err = f.inv.Assign(ctx, 10, 4)
	assert.NoError(t, err)

	occ, _ := f.occ.get(10)
	assert.Equal(t, uint32(2), occ.BookedSpots)
	assert.Equal(t, uint32(4), occ.AvailableSpots)
}

func TestAssignUnknownSeat(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	_, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)

	_, err = f.inv.Assign(ctx, 10, 99)
	assert.ErrorIs(t, err, repository.ErrSeatNotFound)
}

func TestAssignClosedOccurrence(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	_, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)

	for _, status := range []string{model.OccurrenceCompleted, model.OccurrenceCancelled, model.OccurrencePostponed} {
		occ, _ := f.occ.get(10)
		occ.Status = status
		_, err = f.inv.Assign(ctx, 10, 1)
		assert.ErrorIs(t, err, repository.ErrOccurrenceClosed, "status %s", status)
	}
}

func TestAssignCapacityEnforced(t *testing.T) {
	// Cap below the seat count: two of six seats bookable.
	f := newFixture(t, 2)
	ctx := context.Background()
	_, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)

	_, err = f.inv.Assign(ctx, 10, 1)
	require.NoError(t, err)
	_, err = f.inv.Assign(ctx, 10, 2)
	require.NoError(t, err)
	_, err = f.inv.Assign(ctx, 10, 3)
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)
}

func TestConfirmPublishesAndClearsHold(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	_, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)
	_, err = f.inv.Assign(ctx, 10, 2)
	require.NoError(t, err)

	require.NoError(t, f.inv.Confirm(ctx, 10, 2))

	row := f.seats.rows[[2]uint64{10, 2}]
	assert.Equal(t, model.SeatOccupied, row.Status)
	assert.Nil(t, row.HoldToken)

	require.Len(t, f.pub.bookings, 1)
	ev := f.pub.bookings[0]
	assert.Equal(t, uint64(10), ev.OccurrenceID)
	assert.Equal(t, uint64(2), ev.SeatID)
	assert.Equal(t, "10-2", ev.SeatCode)

	// Confirming an available seat is rejected.
	err = f.inv.Confirm(ctx, 10, 3)
	assert.ErrorIs(t, err, repository.ErrSeatUnavailable)
}

func TestReleaseReopensSeat(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	_, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)
	_, err = f.inv.Assign(ctx, 10, 1)
	require.NoError(t, err)
	require.NoError(t, f.inv.Confirm(ctx, 10, 1))

	require.NoError(t, f.inv.Release(ctx, 10, 1))
	assert.Equal(t, model.SeatAvailable, f.seats.rows[[2]uint64{10, 1}].Status)

	occ, _ := f.occ.get(10)
	assert.Equal(t, uint32(0), occ.BookedSpots)
	assert.Equal(t, uint32(6), occ.AvailableSpots)

	// Released seat can be claimed again.
	_, err = f.inv.Assign(ctx, 10, 1)
	assert.NoError(t, err)
}

func TestExpiredHoldSweep(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	_, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)

	hold, err := f.inv.Assign(ctx, 10, 1)
	require.NoError(t, err)

	// Before the hold lapses the sweep is a no-op.
	n, err := f.inv.ReleaseExpired(ctx, 10, hold.ExpiresAt.Add(-time.Second))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.inv.ReleaseExpired(ctx, 10, hold.ExpiresAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, model.SeatAvailable, f.seats.rows[[2]uint64{10, 1}].Status)

	occ, _ := f.occ.get(10)
	assert.Equal(t, uint32(0), occ.BookedSpots)
}

func TestConfirmAfterHoldExpiryFails(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	_, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)

	hold, err := f.inv.Assign(ctx, 10, 1)
	require.NoError(t, err)

	// Force the hold into the past; Confirm sweeps before swapping.
	past := hold.ExpiresAt.Add(-2 * time.Minute)
	f.seats.rows[[2]uint64{10, 1}].HoldExpiresAt = &past

	err = f.inv.Confirm(ctx, 10, 1)
	assert.ErrorIs(t, err, repository.ErrSeatUnavailable)
	assert.Equal(t, model.SeatAvailable, f.seats.rows[[2]uint64{10, 1}].Status)
}

func TestWaitlistRequiresExhaustedCapacity(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	_, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)

	err = f.inv.JoinWaitlist(ctx, 10, 7)
	assert.ErrorIs(t, err, ErrCapacityNotExhausted)

	_, err = f.inv.Assign(ctx, 10, 1)
	require.NoError(t, err)
	_, err = f.inv.Assign(ctx, 10, 2)
	require.NoError(t, err)

	require.NoError(t, f.inv.JoinWaitlist(ctx, 10, 7))
	err = f.inv.JoinWaitlist(ctx, 10, 7)
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	occ, _ := f.occ.get(10)
	assert.Equal(t, uint32(1), occ.WaitlistSpots)

	require.NoError(t, f.inv.LeaveWaitlist(ctx, 10, 7))
	occ, _ = f.occ.get(10)
	assert.Zero(t, occ.WaitlistSpots)

	// Leaving twice is a silent no-op.
	require.NoError(t, f.inv.LeaveWaitlist(ctx, 10, 7))
}

func TestSummaryFromCounters(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	_, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)
	_, err = f.inv.Assign(ctx, 10, 1)
	require.NoError(t, err)

	sum, err := f.inv.Summary(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), sum.AvailableSpots)
	assert.Equal(t, uint32(1), sum.BookedSpots)
	assert.Equal(t, uint32(6), sum.TotalSeats)
}

func TestSweepOpenSkipsClosedOccurrences(t *testing.T) {
	f := newFixture(t, 6)
	ctx := context.Background()
	_, err := f.inv.Materialize(ctx, 10)
	require.NoError(t, err)

	hold, err := f.inv.Assign(ctx, 10, 1)
	require.NoError(t, err)

	occ, _ := f.occ.get(10)
	occ.Status = model.OccurrenceCancelled

	n, err := f.inv.SweepOpen(ctx, hold.ExpiresAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	occ.Status = model.OccurrenceInProgress
	n, err = f.inv.SweepOpen(ctx, hold.ExpiresAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
