package model

import "time"

// Occurrence status values. An occurrence only accepts seat assignments
// while it is scheduled or in progress.
const (
	OccurrenceScheduled  = "scheduled"
	OccurrenceInProgress = "in_progress"
	OccurrenceCompleted  = "completed"
	OccurrenceCancelled  = "cancelled"
	OccurrencePostponed  = "postponed"
)

// Occurrence is one concrete scheduled instance of a class in a studio
// (date + start/end time). AvailableSpots, BookedSpots and WaitlistSpots
// are a materialized view over the per-seat state and the waitlist
// queue: they are recomputed inside the same transaction as every seat
// transition and must never be written by any other path.
type Occurrence struct {
	ID             uint64    // occurrences.id
	StudioID       uint64    // occurrences.studio_id
	Date           string    // occurrences.class_date ("2006-01-02")
	StartsAt       time.Time // occurrences.starts_at
	EndsAt         time.Time // occurrences.ends_at
	MaxCapacity    uint32    // occurrences.max_capacity
	Status         string    // occurrences.status
	AvailableSpots uint32    // occurrences.available_spots
	BookedSpots    uint32    // occurrences.booked_spots
	WaitlistSpots  uint32    // occurrences.waitlist_spots
	CreatedAt      time.Time // occurrences.created_at
	UpdatedAt      time.Time // occurrences.updated_at
}

// AcceptsAssignments reports whether new seat assignments may be made
// for this occurrence. Completed and cancelled occurrences are closed;
// postponed occurrences keep their inventory frozen until rescheduled.
func (o *Occurrence) AcceptsAssignments() bool {
	return o.Status == OccurrenceScheduled || o.Status == OccurrenceInProgress
}
