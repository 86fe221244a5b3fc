package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pedalhouse/reservation/internal/model"
	"github.com/pedalhouse/reservation/internal/repository"
	"github.com/pedalhouse/reservation/internal/service"
)

// StudioHandler exposes studio and seat catalog administration.
type StudioHandler struct {
	Studios *repository.StudioRepo
	Seats   *repository.SeatRepo
	Catalog *service.Catalog
}

func NewStudioHandler(studios *repository.StudioRepo, seats *repository.SeatRepo, catalog *service.Catalog) *StudioHandler {
	return &StudioHandler{Studios: studios, Seats: seats, Catalog: catalog}
}

type createStudioReq struct {
	Name       string `json:"name" validate:"required"`
	Rows       uint32 `json:"rows" validate:"required,min=1,max=100"`
	Cols       uint32 `json:"cols" validate:"required,min=1,max=100"`
	Addressing string `json:"addressing" validate:"omitempty,oneof=left_to_right right_to_left center"`
}

type studioResp struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Rows       uint32 `json:"rows"`
	Cols       uint32 `json:"cols"`
	Addressing string `json:"addressing"`
	IsActive   bool   `json:"is_active"`
}

func toStudioResp(s *model.Studio) studioResp {
	return studioResp{
		ID:         s.ID,
		Name:       s.Name,
		Rows:       s.Rows,
		Cols:       s.Cols,
		Addressing: string(s.Addressing),
		IsActive:   s.IsActive,
	}
}

// CreateStudio handles POST /v1/studios and immediately generates the
// seat grid, so a freshly created studio is bookable as soon as an
// occurrence is scheduled in it.
func (h *StudioHandler) CreateStudio(c echo.Context) error {
	var req createStudioReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	addressing := model.AddressingMode(req.Addressing)
	if addressing == "" {
		addressing = model.AddressLeftToRight
	}
	s := &model.Studio{
		Name:       strings.TrimSpace(req.Name),
		Rows:       req.Rows,
		Cols:       req.Cols,
		Addressing: addressing,
		IsActive:   true,
	}
	if err := h.Studios.Create(c.Request().Context(), s); err != nil {
		return fail(c, err)
	}
	total, err := h.Catalog.Generate(c.Request().Context(), s.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"studio": toStudioResp(s), "seats": total})
}

// GenerateSeats handles POST /v1/studios/:id/seats. Safe to call again
// after a partial failure; only missing coordinates are filled.
func (h *StudioHandler) GenerateSeats(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	total, err := h.Catalog.Generate(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"studio_id": id, "seats": total})
}

// ListStudios handles GET /v1/studios.
func (h *StudioHandler) ListStudios(c echo.Context) error {
	studios, err := h.Studios.List(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	out := make([]studioResp, 0, len(studios))
	for i := range studios {
		out = append(out, toStudioResp(&studios[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// GetStudio handles GET /v1/studios/:id and includes the seat grid
// grouped by row so clients can render the layout directly.
func (h *StudioHandler) GetStudio(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx := c.Request().Context()
	s, err := h.Studios.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	seats, err := h.Seats.GetByStudio(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	type seatResp struct {
		ID       uint64 `json:"id"`
		Row      uint32 `json:"row"`
		Col      uint32 `json:"col"`
		IsActive bool   `json:"is_active"`
	}
	grid := make(map[uint32][]seatResp, s.Rows)
	for _, seat := range seats {
		grid[seat.Row] = append(grid[seat.Row], seatResp{ID: seat.ID, Row: seat.Row, Col: seat.Col, IsActive: seat.IsActive})
	}
	return c.JSON(http.StatusOK, echo.Map{"studio": toStudioResp(s), "rows": grid})
}

// SetStudioActive handles PATCH /v1/studios/:id/active.
func (h *StudioHandler) SetStudioActive(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req struct {
		IsActive *bool `json:"is_active" validate:"required"`
	}
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "is_active is required"})
	}
	if err := h.Studios.SetActive(c.Request().Context(), id, *req.IsActive); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetSeatActive handles PATCH /v1/seats/:id/active. Deactivated seats
// are skipped by future materializations; already-materialized
// occurrences keep their inventory.
func (h *StudioHandler) SetSeatActive(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "is_active is required"})
	}
	if err := h.Seats.SetActive(c.Request().Context(), id, *req.IsActive); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
