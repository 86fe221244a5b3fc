// Package router registers the API's HTTP routes and request
// validation on an echo instance.
package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/pedalhouse/reservation/internal/config"
	"github.com/pedalhouse/reservation/internal/handler"
	"github.com/pedalhouse/reservation/internal/middleware"
	"github.com/pedalhouse/reservation/internal/model"
)

// requestValidator adapts go-playground/validator to echo's Validator
// interface so handlers can call c.Validate on bound DTOs.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Studio      *handler.StudioHandler
	Occurrence  *handler.OccurrenceHandler
	Reservation *handler.ReservationHandler
	Loan        *handler.LoanHandler
}

// Register wires validation, rate limiting and all routes. Booking and
// loan commands require authentication; provisioning is admin-only;
// browsing the schedule is public.
func Register(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.Validator = &requestValidator{validate: validator.New()}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	e.GET("/healthz", handler.Health)

	// Session endpoints.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	// Public browsing: studios, schedules and live occupancy.
	e.GET("/v1/studios", h.Studio.ListStudios)
	e.GET("/v1/studios/:id", h.Studio.GetStudio)
	e.GET("/v1/studios/:id/occurrences", h.Occurrence.ListByStudio)
	e.GET("/v1/occurrences/:id", h.Occurrence.GetOccurrence)
	e.GET("/v1/occurrences/:id/seats", h.Reservation.ListSeats)
	e.GET("/v1/occurrences/:id/summary", h.Occurrence.Summary)

	// Any authenticated user.
	member := e.Group("/v1")
	member.Use(middleware.JWTAuth(cfg.JWTSecret))
	member.Use(middleware.RequireRole(model.RoleAdmin, model.RoleMember))
	member.GET("/me", h.Auth.Me)
	member.POST("/occurrences/:id/assign", h.Reservation.Assign)
	member.POST("/occurrences/:id/confirm", h.Reservation.Confirm)
	member.POST("/occurrences/:id/release", h.Reservation.Release)
	member.POST("/occurrences/:id/waitlist", h.Reservation.JoinWaitlist)
	member.DELETE("/occurrences/:id/waitlist", h.Reservation.LeaveWaitlist)
	member.GET("/assets", h.Loan.ListAssets)
	member.POST("/assets/:id/checkout", h.Loan.Checkout)
	member.POST("/loans/:id/return", h.Loan.Return)
	member.POST("/loans/:id/incident", h.Loan.ReportIncident)
	member.GET("/loans", h.Loan.MyLoans)

	// Provisioning and overrides.
	admin := e.Group("/v1")
	admin.Use(middleware.JWTAuth(cfg.JWTSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/studios", h.Studio.CreateStudio)
	admin.POST("/studios/:id/seats", h.Studio.GenerateSeats)
	admin.PATCH("/studios/:id/active", h.Studio.SetStudioActive)
	admin.PATCH("/seats/:id/active", h.Studio.SetSeatActive)
	admin.POST("/occurrences", h.Occurrence.CreateOccurrence)
	admin.POST("/occurrences/:id/materialize", h.Occurrence.Materialize)
	admin.PATCH("/occurrences/:id/status", h.Occurrence.UpdateStatus)
	admin.POST("/assets", h.Loan.CreateAsset)
	admin.POST("/assets/:id/restock", h.Loan.Restock)
	admin.GET("/assets/:id/loan", h.Loan.ActiveLoan)
	admin.DELETE("/loans/:id", h.Loan.DeleteLoan)
}
