package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint probed by load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
