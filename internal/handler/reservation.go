package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pedalhouse/reservation/internal/middleware"
	"github.com/pedalhouse/reservation/internal/model"
	"github.com/pedalhouse/reservation/internal/repository"
	"github.com/pedalhouse/reservation/internal/service"
)

// ReservationHandler is the booking gateway: it accepts seat commands,
// delegates to the inventory engine and translates its errors.
type ReservationHandler struct {
	Inventory *service.Inventory
	Seats     *repository.ScheduleSeatRepo
}

func NewReservationHandler(inv *service.Inventory, seats *repository.ScheduleSeatRepo) *ReservationHandler {
	return &ReservationHandler{Inventory: inv, Seats: seats}
}

type seatCommandReq struct {
	SeatID uint64 `json:"seat_id" validate:"required"`
}

// bindSeatCommand parses the occurrence ID and seat body shared by the
// booking commands. On failure the response is already written and ok
// is false.
func (h *ReservationHandler) bindSeatCommand(c echo.Context) (occurrenceID, seatID uint64, ok bool) {
	id, valid := pathID(c, "id")
	if !valid {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
		return 0, 0, false
	}
	var req seatCommandReq
	if err := c.Bind(&req); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		return 0, 0, false
	}
	if err := c.Validate(&req); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		return 0, 0, false
	}
	return id, req.SeatID, true
}

// Assign handles POST /v1/occurrences/:id/assign. On success the seat
// is held for the caller until the returned expiry; the client must
// confirm before then or the sweep frees the seat.
func (h *ReservationHandler) Assign(c echo.Context) error {
	occurrenceID, seatID, ok := h.bindSeatCommand(c)
	if !ok {
		return nil
	}
	hold, err := h.Inventory.Assign(c.Request().Context(), occurrenceID, seatID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, hold)
}

// Confirm handles POST /v1/occurrences/:id/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	occurrenceID, seatID, ok := h.bindSeatCommand(c)
	if !ok {
		return nil
	}
	if err := h.Inventory.Confirm(c.Request().Context(), occurrenceID, seatID); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"occurrence_id": occurrenceID, "seat_id": seatID, "status": model.SeatOccupied})
}

// Release handles POST /v1/occurrences/:id/release.
func (h *ReservationHandler) Release(c echo.Context) error {
	occurrenceID, seatID, ok := h.bindSeatCommand(c)
	if !ok {
		return nil
	}
	if err := h.Inventory.Release(c.Request().Context(), occurrenceID, seatID); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"occurrence_id": occurrenceID, "seat_id": seatID, "status": model.SeatAvailable})
}

// ListSeats handles GET /v1/occurrences/:id/seats, returning the
// materialized inventory in traversal order.
func (h *ReservationHandler) ListSeats(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	seats, err := h.Seats.ListByOccurrence(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	type seatResp struct {
		SeatID   uint64 `json:"seat_id"`
		Code     string `json:"code"`
		Position uint32 `json:"position"`
		Status   string `json:"status"`
	}
	out := make([]seatResp, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatResp{SeatID: s.SeatID, Code: s.Code, Position: s.Position, Status: s.Status})
	}
	return c.JSON(http.StatusOK, out)
}

// JoinWaitlist handles POST /v1/occurrences/:id/waitlist.
func (h *ReservationHandler) JoinWaitlist(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Inventory.JoinWaitlist(c.Request().Context(), id, userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"occurrence_id": id, "user_id": userID})
}

// LeaveWaitlist handles DELETE /v1/occurrences/:id/waitlist.
func (h *ReservationHandler) LeaveWaitlist(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Inventory.LeaveWaitlist(c.Request().Context(), id, userID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
