package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedalhouse/reservation/internal/model"
)

func TestRecomputeCountsEveryStatus(t *testing.T) {
	seats := newFakeSeatInventory()
	waitlist := newFakeWaitlist()
	occ := &fakeOccurrences{byID: map[uint64]*model.Occurrence{
		7: {ID: 7, Status: model.OccurrenceScheduled},
	}}
	capacity := NewCapacity(seats, waitlist, occ, nil, time.Second)

	mk := func(seatID uint64, status string) {
		seats.rows[[2]uint64{7, seatID}] = &model.ScheduleSeat{
			OccurrenceID: 7, SeatID: seatID, Status: status,
		}
	}
	mk(1, model.SeatAvailable)
	mk(2, model.SeatAvailable)
	mk(3, model.SeatReserved)
	mk(4, model.SeatOccupied)
	mk(5, model.SeatOccupied)
	waitlist.members[[2]uint64{7, 50}] = true

	sum, err := capacity.RecomputeTx(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), sum.AvailableSpots)
	assert.Equal(t, uint32(3), sum.BookedSpots, "booked is reserved plus occupied")
	assert.Equal(t, uint32(1), sum.WaitlistSpots)
	assert.Equal(t, uint32(5), sum.TotalSeats)
	assert.Equal(t, sum.TotalSeats, sum.AvailableSpots+sum.BookedSpots)

	// The counters land on the occurrence row itself.
	o := occ.byID[7]
	assert.Equal(t, uint32(2), o.AvailableSpots)
	assert.Equal(t, uint32(3), o.BookedSpots)
	assert.Equal(t, uint32(1), o.WaitlistSpots)
}

func TestRecomputeEmptyOccurrence(t *testing.T) {
	seats := newFakeSeatInventory()
	waitlist := newFakeWaitlist()
	occ := &fakeOccurrences{byID: map[uint64]*model.Occurrence{
		7: {ID: 7, Status: model.OccurrenceScheduled},
	}}
	capacity := NewCapacity(seats, waitlist, occ, nil, time.Second)

	sum, err := capacity.RecomputeTx(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.Zero(t, sum.TotalSeats)
	assert.Zero(t, sum.AvailableSpots)
	assert.Zero(t, sum.BookedSpots)
	assert.Zero(t, sum.WaitlistSpots)
}
