package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedalhouse/reservation/internal/model"
	"github.com/pedalhouse/reservation/internal/repository"
)

type fakeAssets struct {
	byID map[uint64]*model.Asset
}

func (f *fakeAssets) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Asset, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrAssetNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssets) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error {
	a, ok := f.byID[id]
	if !ok {
		return repository.ErrAssetNotFound
	}
	if from != "" && a.Status != from {
		return repository.ErrAssetNotAvailable
	}
	a.Status = to
	return nil
}

// fakeLoans mirrors the loans table, including the one-active-loan-
// per-asset uniqueness the real schema enforces with an index.
type fakeLoans struct {
	nextID uint64
	byID   map[uint64]*model.Loan
}

func newFakeLoans() *fakeLoans {
	return &fakeLoans{byID: make(map[uint64]*model.Loan)}
}

func (f *fakeLoans) CreateTx(ctx context.Context, tx *sql.Tx, l *model.Loan) error {
	for _, other := range f.byID {
		if other.AssetID == l.AssetID && other.Active() {
			return repository.ErrAssetNotAvailable
		}
	}
	f.nextID++
	l.ID = f.nextID
	cp := *l
	f.byID[l.ID] = &cp
	return nil
}

func (f *fakeLoans) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Loan, error) {
	l, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrLoanNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLoans) ActiveByAssetTx(ctx context.Context, tx *sql.Tx, assetID uint64) (*model.Loan, error) {
	for _, l := range f.byID {
		if l.AssetID == assetID && l.Active() {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeLoans) ActiveByAsset(ctx context.Context, assetID uint64) (*model.Loan, error) {
	return f.ActiveByAssetTx(ctx, nil, assetID)
}

func (f *fakeLoans) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, toStatus string, returnedAt time.Time, note *string) error {
	l, ok := f.byID[id]
	if !ok || !l.Active() {
		return repository.ErrLoanNotActive
	}
	l.Status = toStatus
	at := returnedAt
	l.ReturnedAt = &at
	l.IncidentNote = note
	return nil
}

func (f *fakeLoans) CountActiveByBorrowerAndKindTx(ctx context.Context, tx *sql.Tx, borrowerID uint64, kind string) (int, error) {
	// The fakes have no asset join; tests set kinds on assets only, so
	// count every active loan of the borrower.
	n := 0
	for _, l := range f.byID {
		if l.BorrowerID == borrowerID && l.Active() {
			n++
		}
	}
	return n, nil
}

func (f *fakeLoans) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, l := range f.byID {
		if l.Status == model.LoanInUse && l.EstReturnAt != nil && l.EstReturnAt.Before(now) {
			l.Status = model.LoanOverdue
			n++
		}
	}
	return n, nil
}

func (f *fakeLoans) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, ok := f.byID[id]; !ok {
		return repository.ErrLoanNotFound
	}
	delete(f.byID, id)
	return nil
}

type ledgerFixture struct {
	ledger *Ledger
	assets *fakeAssets
	loans  *fakeLoans
	pub    *recordingPublisher
}

func newLedgerFixture(t *testing.T, maxPerKind int) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		assets: &fakeAssets{byID: map[uint64]*model.Asset{
			1: {ID: 1, Code: "SHOE-041", Kind: model.AssetKindFootwear, Status: model.AssetAvailable},
			2: {ID: 2, Code: "SHOE-042", Kind: model.AssetKindFootwear, Status: model.AssetAvailable},
			3: {ID: 3, Code: "TOWEL-007", Kind: model.AssetKindTowel, Status: model.AssetMaintenance},
		}},
		loans: newFakeLoans(),
		pub:   &recordingPublisher{},
	}
	f.ledger = NewLedger(fakeRunner{}, f.assets, f.loans, maxPerKind)
	f.ledger.publisher = f.pub
	return f
}

func TestCheckoutAndReturn(t *testing.T) {
	f := newLedgerFixture(t, 0)
	ctx := context.Background()

	due := time.Now().Add(24 * time.Hour)
	loan, err := f.ledger.Checkout(ctx, 1, 50, &due)
	require.NoError(t, err)
	assert.NotZero(t, loan.ID)
	assert.Len(t, loan.Code, 26, "loan code should be a ULID")
	assert.Equal(t, model.LoanInUse, loan.Status)
	assert.Equal(t, model.AssetInUse, f.assets.byID[1].Status)

	// The asset cannot be checked out twice while the loan is open.
	_, err = f.ledger.Checkout(ctx, 1, 51, nil)
	assert.ErrorIs(t, err, repository.ErrAssetNotAvailable)

	returned, err := f.ledger.Return(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, model.AssetAvailable, f.assets.byID[1].Status)

	// Closed loans stay closed.
	_, err = f.ledger.Return(ctx, loan.ID)
	assert.ErrorIs(t, err, repository.ErrLoanNotActive)

	// The asset is loanable again.
	_, err = f.ledger.Checkout(ctx, 1, 51, nil)
	assert.NoError(t, err)
}

func TestCheckoutUnknownAsset(t *testing.T) {
	f := newLedgerFixture(t, 0)
	_, err := f.ledger.Checkout(context.Background(), 99, 50, nil)
	assert.ErrorIs(t, err, repository.ErrAssetNotFound)
}

func TestCheckoutRespectsAssetStatus(t *testing.T) {
	f := newLedgerFixture(t, 0)
	// Asset 3 is parked in maintenance.
	_, err := f.ledger.Checkout(context.Background(), 3, 50, nil)
	assert.ErrorIs(t, err, repository.ErrAssetNotAvailable)
}

func TestCheckoutBorrowerLimit(t *testing.T) {
	f := newLedgerFixture(t, 1)
	ctx := context.Background()

	_, err := f.ledger.Checkout(ctx, 1, 50, nil)
	require.NoError(t, err)

	_, err = f.ledger.Checkout(ctx, 2, 50, nil)
	assert.ErrorIs(t, err, ErrLoanLimitReached)

	// A different borrower is unaffected.
	_, err = f.ledger.Checkout(ctx, 2, 51, nil)
	assert.NoError(t, err)
}

func TestReportIncident(t *testing.T) {
	f := newLedgerFixture(t, 0)
	ctx := context.Background()

	loan, err := f.ledger.Checkout(ctx, 1, 50, nil)
	require.NoError(t, err)

	_, err = f.ledger.ReportIncident(ctx, loan.ID, "stolen", "gone")
	assert.ErrorIs(t, err, ErrInvalidIncidentKind)

	closed, err := f.ledger.ReportIncident(ctx, loan.ID, model.LoanLost, "not returned after class")
	require.NoError(t, err)
	assert.Equal(t, model.LoanLost, closed.Status)
	require.NotNil(t, closed.IncidentNote)
	assert.Equal(t, "not returned after class", *closed.IncidentNote)
	assert.Equal(t, model.AssetLost, f.assets.byID[1].Status)

	require.Len(t, f.pub.incidents, 1)
	ev := f.pub.incidents[0]
	assert.Equal(t, loan.ID, ev.LoanID)
	assert.Equal(t, "SHOE-041", ev.AssetCode)
	assert.Equal(t, model.LoanLost, ev.Kind)

	// A lost asset cannot be checked out until restocked.
	_, err = f.ledger.Checkout(ctx, 1, 51, nil)
	assert.ErrorIs(t, err, repository.ErrAssetNotAvailable)

	require.NoError(t, f.ledger.Restock(ctx, 1))
	assert.Equal(t, model.AssetAvailable, f.assets.byID[1].Status)
	_, err = f.ledger.Checkout(ctx, 1, 51, nil)
	assert.NoError(t, err)
}

func TestRestockRejectsCirculatingAsset(t *testing.T) {
	f := newLedgerFixture(t, 0)
	ctx := context.Background()

	err := f.ledger.Restock(ctx, 1) // available
	assert.ErrorIs(t, err, ErrAssetNotRestockable)

	_, err = f.ledger.Checkout(ctx, 1, 50, nil)
	require.NoError(t, err)
	err = f.ledger.Restock(ctx, 1) // in_use
	assert.ErrorIs(t, err, ErrAssetNotRestockable)
}

func TestMarkOverdueThenReturn(t *testing.T) {
	f := newLedgerFixture(t, 0)
	ctx := context.Background()

	due := time.Now().Add(-time.Hour)
	loan, err := f.ledger.Checkout(ctx, 1, 50, &due)
	require.NoError(t, err)

	n, err := f.ledger.MarkOverdue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// An overdue loan still blocks the asset and can still be returned.
	active, err := f.ledger.ActiveLoanFor(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, model.LoanOverdue, active.Status)

	returned, err := f.ledger.Return(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, returned.Status)
	assert.Equal(t, model.AssetAvailable, f.assets.byID[1].Status)
}

func TestAdminDeleteLoanFreesAsset(t *testing.T) {
	f := newLedgerFixture(t, 0)
	ctx := context.Background()

	loan, err := f.ledger.Checkout(ctx, 1, 50, nil)
	require.NoError(t, err)

	require.NoError(t, f.ledger.AdminDeleteLoan(ctx, loan.ID))
	assert.Equal(t, model.AssetAvailable, f.assets.byID[1].Status)

	active, err := f.ledger.ActiveLoanFor(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, active)

	err = f.ledger.AdminDeleteLoan(ctx, loan.ID)
	assert.ErrorIs(t, err, repository.ErrLoanNotFound)
}
