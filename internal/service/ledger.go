package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pedalhouse/reservation/internal/database"
	"github.com/pedalhouse/reservation/internal/model"
	"github.com/pedalhouse/reservation/internal/queue"
	"github.com/pedalhouse/reservation/internal/repository"
)

// assetStore is the slice of AssetRepo the ledger needs.
type assetStore interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Asset, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error
}

// loanStore is the slice of LoanRepo the ledger needs.
type loanStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, l *model.Loan) error
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Loan, error)
	ActiveByAssetTx(ctx context.Context, tx *sql.Tx, assetID uint64) (*model.Loan, error)
	ActiveByAsset(ctx context.Context, assetID uint64) (*model.Loan, error)
	CloseTx(ctx context.Context, tx *sql.Tx, id uint64, toStatus string, returnedAt time.Time, note *string) error
	CountActiveByBorrowerAndKindTx(ctx context.Context, tx *sql.Tx, borrowerID uint64, kind string) (int, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error
}

// incidentPublisher emits events after an incident transaction commits.
type incidentPublisher interface {
	PublishAssetIncident(ctx context.Context, ev queue.AssetIncidentEvent) error
}

type amqpIncidentPublisher struct{}

func (amqpIncidentPublisher) PublishAssetIncident(ctx context.Context, ev queue.AssetIncidentEvent) error {
	return queue.PublishAssetIncident(ctx, ev)
}

// Ledger tracks the checkout lifecycle of shared physical assets. Each
// mutating operation locks the asset row, moves the loan and the
// asset's cached status together in one transaction, and relies on the
// unique (asset_id, active_key) index to guarantee that no asset ever
// carries two active loans even under concurrent checkouts.
type Ledger struct {
	runner    database.Runner
	assets    assetStore
	loans     loanStore
	publisher incidentPublisher
	// maxPerKind caps how many active loans one borrower may hold per
	// asset kind. Zero disables the cap.
	maxPerKind int
}

// NewLedger constructs the loan engine.
func NewLedger(runner database.Runner, assets assetStore, loans loanStore, maxPerKind int) *Ledger {
	if runner == nil || assets == nil || loans == nil {
		panic("nil dependency passed to NewLedger")
	}
	return &Ledger{
		runner:     runner,
		assets:     assets,
		loans:      loans,
		publisher:  amqpIncidentPublisher{},
		maxPerKind: maxPerKind,
	}
}

// newLoanCode mints the ULID printed on loan receipts.
func newLoanCode(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// Checkout opens a loan for an asset. The asset row is locked for the
// whole transaction; the checkout fails with ErrAssetNotAvailable
// unless the asset's status is available and no active loan exists.
// The unique active-loan index catches the race two checkouts can still
// run into between the check and the insert.
func (s *Ledger) Checkout(ctx context.Context, assetID, borrowerID uint64, estReturnAt *time.Time) (*model.Loan, error) {
	var loan *model.Loan
	err := s.runner.InTx(ctx, func(tx *sql.Tx) error {
		asset, err := s.assets.GetByIDTx(ctx, tx, assetID)
		if err != nil {
			return err
		}
		if asset.Status != model.AssetAvailable {
			return repository.ErrAssetNotAvailable
		}
		if active, err := s.loans.ActiveByAssetTx(ctx, tx, assetID); err != nil {
			return err
		} else if active != nil {
			return repository.ErrAssetNotAvailable
		}
		if s.maxPerKind > 0 {
			n, err := s.loans.CountActiveByBorrowerAndKindTx(ctx, tx, borrowerID, asset.Kind)
			if err != nil {
				return err
			}
			if n >= s.maxPerKind {
				return ErrLoanLimitReached
			}
		}

		now := time.Now().UTC()
		loan = &model.Loan{
			Code:        newLoanCode(now),
			AssetID:     assetID,
			BorrowerID:  borrowerID,
			LoanDate:    now,
			EstReturnAt: estReturnAt,
			Status:      model.LoanInUse,
		}
		if err := s.loans.CreateTx(ctx, tx, loan); err != nil {
			return err
		}
		return s.assets.UpdateStatusTx(ctx, tx, assetID, model.AssetAvailable, model.AssetInUse)
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Return closes an active loan and puts the asset back in circulation.
// Closing is a compare-and-swap on the loan's active statuses, so a
// return racing another return (or an incident report) fails with
// ErrLoanNotActive instead of double-closing.
func (s *Ledger) Return(ctx context.Context, loanID uint64) (*model.Loan, error) {
	var loan *model.Loan
	err := s.runner.InTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loans.GetByIDTx(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if !l.Active() {
			return repository.ErrLoanNotActive
		}
		now := time.Now().UTC()
		if err := s.loans.CloseTx(ctx, tx, loanID, model.LoanReturned, now, nil); err != nil {
			return err
		}
		if err := s.assets.UpdateStatusTx(ctx, tx, l.AssetID, model.AssetInUse, model.AssetAvailable); err != nil {
			return err
		}
		l.Status = model.LoanReturned
		l.ReturnedAt = &now
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// ReportIncident closes an active loan as lost or maintenance and
// parks the asset in the matching state, so it cannot be checked out
// again until an operator restocks it. The note is required and stored
// on the loan. An asset.incident event is published best-effort after
// the transaction commits.
func (s *Ledger) ReportIncident(ctx context.Context, loanID uint64, kind, note string) (*model.Loan, error) {
	kind = strings.TrimSpace(kind)
	if kind != model.LoanLost && kind != model.LoanMaintenance {
		return nil, ErrInvalidIncidentKind
	}

	var (
		loan *model.Loan
		ev   queue.AssetIncidentEvent
	)
	err := s.runner.InTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loans.GetByIDTx(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if !l.Active() {
			return repository.ErrLoanNotActive
		}
		asset, err := s.assets.GetByIDTx(ctx, tx, l.AssetID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := s.loans.CloseTx(ctx, tx, loanID, kind, now, &note); err != nil {
			return err
		}
		// Asset status mirrors the incident kind: lost or maintenance.
		if err := s.assets.UpdateStatusTx(ctx, tx, l.AssetID, "", kind); err != nil {
			return err
		}
		l.Status = kind
		l.ReturnedAt = &now
		l.IncidentNote = &note
		loan = l
		ev = queue.AssetIncidentEvent{
			LoanID:     loanID,
			LoanCode:   l.Code,
			AssetID:    asset.ID,
			AssetCode:  asset.Code,
			Kind:       kind,
			Reason:     note,
			ReportedAt: now.Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.publisher.PublishAssetIncident(ctx, ev); err != nil {
		log.Printf("ledger: publish asset.incident failed: %v", err)
	}
	return loan, nil
}

// Restock returns a lost, maintenance or out_of_stock asset to the
// available pool. Restock refuses while an active loan exists; the loan
// must be closed (or admin-deleted) first.
func (s *Ledger) Restock(ctx context.Context, assetID uint64) error {
	return s.runner.InTx(ctx, func(tx *sql.Tx) error {
		asset, err := s.assets.GetByIDTx(ctx, tx, assetID)
		if err != nil {
			return err
		}
		switch asset.Status {
		case model.AssetLost, model.AssetMaintenance, model.AssetOutOfStock:
		default:
			return ErrAssetNotRestockable
		}
		if active, err := s.loans.ActiveByAssetTx(ctx, tx, assetID); err != nil {
			return err
		} else if active != nil {
			return repository.ErrAssetNotAvailable
		}
		return s.assets.UpdateStatusTx(ctx, tx, assetID, asset.Status, model.AssetAvailable)
	})
}

// AdminDeleteLoan hard-deletes a loan record and frees the asset. This
// is an operator escape hatch for bookkeeping mistakes, not part of the
// normal lifecycle.
func (s *Ledger) AdminDeleteLoan(ctx context.Context, loanID uint64) error {
	return s.runner.InTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loans.GetByIDTx(ctx, tx, loanID)
		if err != nil {
			return err
		}
		wasActive := l.Active()
		if err := s.loans.DeleteTx(ctx, tx, loanID); err != nil {
			return err
		}
		if wasActive {
			return s.assets.UpdateStatusTx(ctx, tx, l.AssetID, model.AssetInUse, model.AssetAvailable)
		}
		return nil
	})
}

// ActiveLoanFor returns the asset's active loan, or nil when the asset
// is not checked out.
func (s *Ledger) ActiveLoanFor(ctx context.Context, assetID uint64) (*model.Loan, error) {
	return s.loans.ActiveByAsset(ctx, assetID)
}

// MarkOverdue flips in_use loans whose estimated return date has passed
// to overdue. The background sweeper calls this on a schedule.
func (s *Ledger) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	return s.loans.MarkOverdue(ctx, now)
}
