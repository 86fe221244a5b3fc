package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pedalhouse/reservation/internal/repository"
	"github.com/pedalhouse/reservation/internal/service"
)

// fail translates domain errors into HTTP responses. Conflicting state
// transitions map to 409, exhausted capacity to 422, unknown records to
// 404; anything unclassified is a 500 with a generic body so internals
// never leak to clients.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrStudioNotFound),
		errors.Is(err, repository.ErrSeatNotFound),
		errors.Is(err, repository.ErrOccurrenceNotFound),
		errors.Is(err, repository.ErrAssetNotFound),
		errors.Is(err, repository.ErrLoanNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})

	case errors.Is(err, repository.ErrSeatUnavailable),
		errors.Is(err, repository.ErrAlreadyMaterialized),
		errors.Is(err, repository.ErrAssetNotAvailable),
		errors.Is(err, repository.ErrLoanNotActive),
		errors.Is(err, repository.ErrOccurrenceClosed),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, service.ErrLoanLimitReached),
		errors.Is(err, service.ErrAssetNotRestockable):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})

	case errors.Is(err, repository.ErrCapacityExceeded),
		errors.Is(err, service.ErrCapacityNotExhausted):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})

	case errors.Is(err, repository.ErrInvalidLayout),
		errors.Is(err, service.ErrInvalidIncidentKind):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := parseUint(c.Param(name))
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
