package service

import (
	"context"

	"github.com/pedalhouse/reservation/internal/layout"
	"github.com/pedalhouse/reservation/internal/model"
	"github.com/pedalhouse/reservation/internal/repository"
)

// seatWriter is the slice of SeatRepo the catalog needs.
type seatWriter interface {
	CreateBulkIgnore(ctx context.Context, seats []model.Seat) error
	CountByStudio(ctx context.Context, studioID uint64) (int, error)
}

// Catalog generates the durable seat grid of a studio.
type Catalog struct {
	studios studioGetter
	seats   seatWriter
}

func NewCatalog(studios studioGetter, seats seatWriter) *Catalog {
	if studios == nil || seats == nil {
		panic("nil store passed to NewCatalog")
	}
	return &Catalog{studios: studios, seats: seats}
}

// Generate creates one seat per (row, col) coordinate of the studio's
// grid, visiting columns in the studio's addressing order. Generation
// is idempotent: coordinates that already have a seat are skipped, so
// rerunning after a partial failure fills only the gaps and never
// duplicates. Returns the studio's total seat count after the run.
func (s *Catalog) Generate(ctx context.Context, studioID uint64) (int, error) {
	studio, err := s.studios.GetByID(ctx, studioID)
	if err != nil {
		return 0, err
	}
	if studio.Rows == 0 || studio.Cols == 0 || !studio.Addressing.Valid() {
		return 0, repository.ErrInvalidLayout
	}

	seats := make([]model.Seat, 0, int(studio.Rows)*int(studio.Cols))
	layout.Traverse(studio.Addressing, int(studio.Rows), int(studio.Cols), func(row, col int) {
		seats = append(seats, model.Seat{
			StudioID: studioID,
			Row:      uint32(row),
			Col:      uint32(col),
			IsActive: true,
		})
	})
	if err := s.seats.CreateBulkIgnore(ctx, seats); err != nil {
		return 0, err
	}
	return s.seats.CountByStudio(ctx, studioID)
}
