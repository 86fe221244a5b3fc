// Package repository defines the sentinel errors shared across the data
// access layer. Handlers and services compare against these values to
// map storage outcomes onto user-facing responses: every error here is a
// local, recoverable condition the caller can retry or work around by
// choosing a different seat or asset.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrInvalidLayout is returned when a studio's geometry is unusable
	// (zero or negative rows/columns).
	ErrInvalidLayout = errors.New("invalid seat layout")

	// ErrAlreadyMaterialized is returned when seat inventory generation
	// is attempted a second time for the same occurrence.
	ErrAlreadyMaterialized = errors.New("occurrence already materialized")

	// ErrSeatNotFound is returned when a (occurrence, seat) pair or a
	// physical seat lookup yields no rows.
	ErrSeatNotFound = errors.New("seat not found")

	// ErrSeatUnavailable is returned when a seat transition is requested
	// from a state that does not permit it, including the case where a
	// concurrent caller won the race for the same seat.
	ErrSeatUnavailable = errors.New("seat unavailable")

	// ErrAssetNotFound is returned when an asset lookup yields no rows.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrAssetNotAvailable is returned when a checkout is attempted on
	// an asset that is not available or already has an active loan.
	ErrAssetNotAvailable = errors.New("asset not available")

	// ErrLoanNotFound is returned when a loan lookup yields no rows.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrLoanNotActive is returned when a return or incident is reported
	// against a loan that is no longer active.
	ErrLoanNotActive = errors.New("loan not active")

	// ErrOccurrenceNotFound is returned when an occurrence lookup yields
	// no rows.
	ErrOccurrenceNotFound = errors.New("occurrence not found")

	// ErrOccurrenceClosed is returned when a booking command targets an
	// occurrence whose status no longer accepts assignments.
	ErrOccurrenceClosed = errors.New("occurrence closed")

	// ErrCapacityExceeded is returned by the gateway when an assignment
	// would push booked spots past the occurrence's max capacity.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrStudioNotFound is returned when a studio lookup yields no rows.
	ErrStudioNotFound = errors.New("studio not found")

	// ErrUserNotFound is returned when a user lookup yields no rows.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicate is returned for unique-constraint violations that no
	// more specific sentinel covers (e.g. re-registering an email).
	ErrDuplicate = errors.New("duplicate entry")
)

const mysqlDupEntry = 1062

// isDuplicateKey reports whether err is a MySQL duplicate-entry error.
// Lost races on the unique indexes backing seat and loan invariants
// surface as 1062 and are expected; repositories translate them into
// the matching sentinel instead of leaking the driver error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDupEntry
}
