package service

import "errors"

// Errors raised by the services themselves, on top of the repository
// sentinels they pass through.
var (
	// ErrCapacityNotExhausted rejects a waitlist join while bookable
	// spots remain.
	ErrCapacityNotExhausted = errors.New("occurrence still has open capacity")
	// ErrLoanLimitReached rejects a checkout when the borrower already
	// holds an active loan of the same asset kind.
	ErrLoanLimitReached = errors.New("borrower already has an active loan of this kind")
	// ErrInvalidIncidentKind rejects an incident report whose kind is
	// neither lost nor maintenance.
	ErrInvalidIncidentKind = errors.New("incident kind must be lost or maintenance")
	// ErrAssetNotRestockable rejects a restock of an asset that is not
	// in a terminal lost, maintenance or out_of_stock state.
	ErrAssetNotRestockable = errors.New("asset is not in a restockable state")
)
