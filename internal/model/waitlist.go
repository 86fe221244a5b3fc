package model

import "time"

// WaitlistEntry is one member waiting for a spot on a full occurrence.
// The waitlist is a plain queue separate from seat state: an entry has
// no seat assignment, and the occurrence's waitlist_spots counter is
// derived from this table alone, never inferred from seats.
type WaitlistEntry struct {
	ID           uint64    // waitlist_entries.id
	OccurrenceID uint64    // waitlist_entries.occurrence_id
	UserID       uint64    // waitlist_entries.user_id
	CreatedAt    time.Time // waitlist_entries.created_at
}
