package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pedalhouse/reservation/internal/database"
	"github.com/pedalhouse/reservation/internal/model"
	"github.com/pedalhouse/reservation/internal/repository"
	"github.com/pedalhouse/reservation/internal/service"
)

// OccurrenceHandler exposes class occurrence administration: creating
// scheduled instances, materializing their seat inventory, and moving
// them through the lifecycle.
type OccurrenceHandler struct {
	Runner      database.Runner
	Studios     *repository.StudioRepo
	Occurrences *repository.OccurrenceRepo
	Inventory   *service.Inventory
}

func NewOccurrenceHandler(runner database.Runner, studios *repository.StudioRepo, occ *repository.OccurrenceRepo, inv *service.Inventory) *OccurrenceHandler {
	return &OccurrenceHandler{Runner: runner, Studios: studios, Occurrences: occ, Inventory: inv}
}

type createOccurrenceReq struct {
	StudioID    uint64    `json:"studio_id" validate:"required"`
	Date        string    `json:"date" validate:"required,datetime=2006-01-02"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	MaxCapacity uint32    `json:"max_capacity" validate:"required,min=1"`
	Materialize bool      `json:"materialize"`
}

type occurrenceResp struct {
	ID             uint64    `json:"id"`
	StudioID       uint64    `json:"studio_id"`
	Date           string    `json:"date"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	MaxCapacity    uint32    `json:"max_capacity"`
	Status         string    `json:"status"`
	AvailableSpots uint32    `json:"available_spots"`
	BookedSpots    uint32    `json:"booked_spots"`
	WaitlistSpots  uint32    `json:"waitlist_spots"`
}

func toOccurrenceResp(o *model.Occurrence) occurrenceResp {
	return occurrenceResp{
		ID:             o.ID,
		StudioID:       o.StudioID,
		Date:           o.Date,
		StartsAt:       o.StartsAt,
		EndsAt:         o.EndsAt,
		MaxCapacity:    o.MaxCapacity,
		Status:         o.Status,
		AvailableSpots: o.AvailableSpots,
		BookedSpots:    o.BookedSpots,
		WaitlistSpots:  o.WaitlistSpots,
	}
}

// CreateOccurrence handles POST /v1/occurrences. With materialize=true
// the seat inventory is cloned right away; otherwise materialization is
// a separate call, letting the desk stage next week's schedule first.
func (h *OccurrenceHandler) CreateOccurrence(c echo.Context) error {
	var req createOccurrenceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	studio, err := h.Studios.GetByID(ctx, req.StudioID)
	if err != nil {
		return fail(c, err)
	}
	if !studio.IsActive {
		return c.JSON(http.StatusConflict, echo.Map{"error": "studio is inactive"})
	}

	o := &model.Occurrence{
		StudioID:    req.StudioID,
		Date:        req.Date,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		MaxCapacity: req.MaxCapacity,
	}
	err = h.Runner.InTx(ctx, func(tx *sql.Tx) error {
		return h.Occurrences.CreateTx(ctx, tx, o)
	})
	if err != nil {
		return fail(c, err)
	}
	if req.Materialize {
		if _, err := h.Inventory.Materialize(ctx, o.ID); err != nil {
			return fail(c, err)
		}
		if o, err = h.Occurrences.GetByID(ctx, o.ID); err != nil {
			return fail(c, err)
		}
	}
	return c.JSON(http.StatusCreated, toOccurrenceResp(o))
}

// Materialize handles POST /v1/occurrences/:id/materialize.
func (h *OccurrenceHandler) Materialize(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	created, err := h.Inventory.Materialize(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"occurrence_id": id, "seats": created})
}

// GetOccurrence handles GET /v1/occurrences/:id.
func (h *OccurrenceHandler) GetOccurrence(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	o, err := h.Occurrences.GetByID(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toOccurrenceResp(o))
}

// ListByStudio handles GET /v1/studios/:id/occurrences.
func (h *OccurrenceHandler) ListByStudio(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	occs, err := h.Occurrences.ListByStudio(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	out := make([]occurrenceResp, 0, len(occs))
	for i := range occs {
		out = append(out, toOccurrenceResp(&occs[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateStatus handles PATCH /v1/occurrences/:id/status. Moving an
// occurrence to a closed status does not touch its seats; historical
// seat state survives for reporting.
func (h *OccurrenceHandler) UpdateStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req struct {
		Status string `json:"status" validate:"required,oneof=scheduled in_progress completed cancelled postponed"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Occurrences.UpdateStatus(c.Request().Context(), id, req.Status); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Summary handles GET /v1/occurrences/:id/summary.
func (h *OccurrenceHandler) Summary(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	sum, err := h.Inventory.Summary(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}
