package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedalhouse/reservation/internal/model"
	"github.com/pedalhouse/reservation/internal/repository"
)

type fakeSeatWriter struct {
	byCoord map[[2]uint32]model.Seat
	order   [][2]uint32 // insertion order of new coordinates
}

func newFakeSeatWriter() *fakeSeatWriter {
	return &fakeSeatWriter{byCoord: make(map[[2]uint32]model.Seat)}
}

func (f *fakeSeatWriter) CreateBulkIgnore(ctx context.Context, seats []model.Seat) error {
	for _, s := range seats {
		k := [2]uint32{s.Row, s.Col}
		if _, exists := f.byCoord[k]; exists {
			continue
		}
		f.byCoord[k] = s
		f.order = append(f.order, k)
	}
	return nil
}

func (f *fakeSeatWriter) CountByStudio(ctx context.Context, studioID uint64) (int, error) {
	return len(f.byCoord), nil
}

func TestGenerateIdempotent(t *testing.T) {
	studios := &fakeStudios{byID: map[uint64]*model.Studio{
		1: {ID: 1, Rows: 3, Cols: 4, Addressing: model.AddressRightToLeft, IsActive: true},
	}}
	seats := newFakeSeatWriter()
	cat := NewCatalog(studios, seats)

	total, err := cat.Generate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 12, total)

	// Row 1 visited right to left.
	assert.Equal(t, [][2]uint32{{1, 4}, {1, 3}, {1, 2}, {1, 1}}, seats.order[:4])

	// Rerunning creates nothing new.
	total, err = cat.Generate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Len(t, seats.order, 12)
}

func TestGenerateRejectsBadGeometry(t *testing.T) {
	studios := &fakeStudios{byID: map[uint64]*model.Studio{
		1: {ID: 1, Rows: 0, Cols: 4, Addressing: model.AddressCenter},
		2: {ID: 2, Rows: 2, Cols: 2, Addressing: model.AddressingMode("spiral")},
	}}
	cat := NewCatalog(studios, newFakeSeatWriter())

	_, err := cat.Generate(context.Background(), 1)
	assert.ErrorIs(t, err, repository.ErrInvalidLayout)
	_, err = cat.Generate(context.Background(), 2)
	assert.ErrorIs(t, err, repository.ErrInvalidLayout)

	_, err = cat.Generate(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrStudioNotFound)
}
