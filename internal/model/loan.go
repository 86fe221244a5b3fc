package model

import "time"

// Loan status values. A loan starts in_use and ends in exactly one of
// returned, lost or maintenance; overdue marks an in-flight loan that
// passed its estimated return date without closing it.
const (
	LoanInUse       = "in_use"
	LoanReturned    = "returned"
	LoanOverdue     = "overdue"
	LoanLost        = "lost"
	LoanMaintenance = "maintenance"
)

// Loan records one checkout of an asset by a borrower. For any asset at
// most one loan may be active (status in_use or overdue) at a time; the
// database backs this with a unique index over (asset_id, active_key)
// where active_key is non-null only for active loans.
type Loan struct {
	ID           uint64     // loans.id
	Code         string     // loans.code
	AssetID      uint64     // loans.asset_id
	BorrowerID   uint64     // loans.borrower_id
	LoanDate     time.Time  // loans.loan_date
	EstReturnAt  *time.Time // loans.est_return_at (nullable)
	ReturnedAt   *time.Time // loans.returned_at (nullable)
	Status       string     // loans.status
	IncidentNote *string    // loans.incident_note (nullable)
	CreatedAt    time.Time  // loans.created_at
	UpdatedAt    time.Time  // loans.updated_at
}

// Active reports whether the loan still keeps the asset checked out.
func (l *Loan) Active() bool {
	return l.Status == LoanInUse || l.Status == LoanOverdue
}
