// Package queue defines message payloads exchanged over the message
// broker and the background consumer that processes them. The core
// publishes events after a transaction commits; notification and
// reporting collaborators consume them without querying the primary
// database.
package queue

// BookingConfirmedEvent is published when a seat assignment is
// confirmed (reserved → occupied).
type BookingConfirmedEvent struct {
	OccurrenceID uint64 `json:"occurrence_id"`
	SeatID       uint64 `json:"seat_id"`
	SeatCode     string `json:"seat_code"`
	StudioID     uint64 `json:"studio_id"`
	StartsAt     string `json:"starts_at"`
	ConfirmedAt  string `json:"confirmed_at"`
}

// AssetIncidentEvent is published when a loan closes with a lost or
// maintenance incident, so inventory staff can follow up.
type AssetIncidentEvent struct {
	LoanID     uint64 `json:"loan_id"`
	LoanCode   string `json:"loan_code"`
	AssetID    uint64 `json:"asset_id"`
	AssetCode  string `json:"asset_code"`
	Kind       string `json:"kind"` // lost | maintenance
	Reason     string `json:"reason"`
	ReportedAt string `json:"reported_at"`
}
