// Package service implements the booking and loan engines on top of the
// repository layer. Each mutating operation is one transaction; the
// capacity aggregator runs inside that same transaction so the derived
// spot counters can never drift from the per-seat state.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pedalhouse/reservation/internal/repository"
)

// seatCounter is the slice of ScheduleSeatRepo the aggregator needs.
type seatCounter interface {
	CountByStatusTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (repository.StatusCounts, error)
}

// waitlistCounter is the slice of WaitlistRepo the aggregator needs.
// The waitlist table is the sole authority for waitlist_spots.
type waitlistCounter interface {
	CountTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (uint32, error)
}

// spotsWriter is the slice of OccurrenceRepo the aggregator needs.
type spotsWriter interface {
	UpdateSpotsTx(ctx context.Context, tx *sql.Tx, id uint64, available, booked, waitlist uint32) error
}

// Summary is the derived occupancy view of one occurrence.
type Summary struct {
	OccurrenceID   uint64 `json:"occurrence_id"`
	AvailableSpots uint32 `json:"available_spots"`
	BookedSpots    uint32 `json:"booked_spots"`
	WaitlistSpots  uint32 `json:"waitlist_spots"`
	TotalSeats     uint32 `json:"total_seats"`
}

// Capacity derives and persists the occupancy counters of an
// occurrence. It is a pure projection: it reads seat and waitlist
// state and writes the three counters, nothing more.
type Capacity struct {
	seats    seatCounter
	waitlist waitlistCounter
	occ      spotsWriter
	cache    *redis.Client // optional; nil disables summary caching
	cacheTTL time.Duration
}

// NewCapacity constructs the aggregator. cache may be nil.
func NewCapacity(seats seatCounter, waitlist waitlistCounter, occ spotsWriter, cache *redis.Client, cacheTTL time.Duration) *Capacity {
	if seats == nil || waitlist == nil || occ == nil {
		panic("nil store passed to NewCapacity")
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Second
	}
	return &Capacity{seats: seats, waitlist: waitlist, occ: occ, cache: cache, cacheTTL: cacheTTL}
}

// RecomputeTx recounts the occurrence's seats and waitlist and writes
// the counters, all within the caller's transaction. booked_spots is
// reserved + occupied; available + booked always equals the schedule
// seat count. The cached summary is invalidated after the write.
func (c *Capacity) RecomputeTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64) (Summary, error) {
	counts, err := c.seats.CountByStatusTx(ctx, tx, occurrenceID)
	if err != nil {
		return Summary{}, fmt.Errorf("count seats: %w", err)
	}
	waiting, err := c.waitlist.CountTx(ctx, tx, occurrenceID)
	if err != nil {
		return Summary{}, fmt.Errorf("count waitlist: %w", err)
	}
	sum := Summary{
		OccurrenceID:   occurrenceID,
		AvailableSpots: counts.Available,
		BookedSpots:    counts.Reserved + counts.Occupied,
		WaitlistSpots:  waiting,
		TotalSeats:     counts.Total(),
	}
	if err := c.occ.UpdateSpotsTx(ctx, tx, occurrenceID, sum.AvailableSpots, sum.BookedSpots, sum.WaitlistSpots); err != nil {
		return Summary{}, fmt.Errorf("write spots: %w", err)
	}
	c.invalidate(ctx, occurrenceID)
	return sum, nil
}

func summaryKey(occurrenceID uint64) string {
	return fmt.Sprintf("occupancy:%d", occurrenceID)
}

// CachedSummary returns the redis-cached summary for an occurrence, or
// ok=false on a miss or when caching is disabled.
func (c *Capacity) CachedSummary(ctx context.Context, occurrenceID uint64) (Summary, bool) {
	if c.cache == nil {
		return Summary{}, false
	}
	raw, err := c.cache.Get(ctx, summaryKey(occurrenceID)).Bytes()
	if err != nil {
		return Summary{}, false
	}
	var sum Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return Summary{}, false
	}
	return sum, true
}

// StoreSummary caches a freshly computed summary with a short TTL.
// Failures are ignored; the cache is a read optimization only.
func (c *Capacity) StoreSummary(ctx context.Context, sum Summary) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(sum)
	if err != nil {
		return
	}
	_ = c.cache.SetEx(ctx, summaryKey(sum.OccurrenceID), raw, c.cacheTTL).Err()
}

func (c *Capacity) invalidate(ctx context.Context, occurrenceID uint64) {
	if c.cache == nil {
		return
	}
	_ = c.cache.Del(ctx, summaryKey(occurrenceID)).Err()
}
