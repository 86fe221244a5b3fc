package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pedalhouse/reservation/internal/middleware"
	"github.com/pedalhouse/reservation/internal/model"
	"github.com/pedalhouse/reservation/internal/repository"
	"github.com/pedalhouse/reservation/internal/service"
)

// LoanHandler exposes the asset loan ledger.
type LoanHandler struct {
	Ledger *service.Ledger
	Assets *repository.AssetRepo
	Loans  *repository.LoanRepo
}

func NewLoanHandler(ledger *service.Ledger, assets *repository.AssetRepo, loans *repository.LoanRepo) *LoanHandler {
	return &LoanHandler{Ledger: ledger, Assets: assets, Loans: loans}
}

type loanResp struct {
	ID           uint64     `json:"id"`
	Code         string     `json:"code"`
	AssetID      uint64     `json:"asset_id"`
	BorrowerID   uint64     `json:"borrower_id"`
	LoanDate     time.Time  `json:"loan_date"`
	EstReturnAt  *time.Time `json:"est_return_at,omitempty"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
	Status       string     `json:"status"`
	IncidentNote *string    `json:"incident_note,omitempty"`
}

func toLoanResp(l *model.Loan) loanResp {
	return loanResp{
		ID:           l.ID,
		Code:         l.Code,
		AssetID:      l.AssetID,
		BorrowerID:   l.BorrowerID,
		LoanDate:     l.LoanDate,
		EstReturnAt:  l.EstReturnAt,
		ReturnedAt:   l.ReturnedAt,
		Status:       l.Status,
		IncidentNote: l.IncidentNote,
	}
}

// CreateAsset handles POST /v1/assets.
func (h *LoanHandler) CreateAsset(c echo.Context) error {
	var req struct {
		Code string `json:"code" validate:"required"`
		Kind string `json:"kind" validate:"required,oneof=footwear towel"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	a := &model.Asset{
		Code:   strings.TrimSpace(req.Code),
		Kind:   req.Kind,
		Status: model.AssetAvailable,
	}
	if err := h.Assets.Create(c.Request().Context(), a); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// ListAssets handles GET /v1/assets with optional kind and status
// query filters.
func (h *LoanHandler) ListAssets(c echo.Context) error {
	assets, err := h.Assets.List(c.Request().Context(), c.QueryParam("kind"), c.QueryParam("status"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, assets)
}

// Checkout handles POST /v1/assets/:id/checkout. Admins may check an
// asset out on behalf of another member via borrower_id; members always
// borrow for themselves.
func (h *LoanHandler) Checkout(c echo.Context) error {
	assetID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req struct {
		BorrowerID  uint64     `json:"borrower_id"`
		EstReturnAt *time.Time `json:"est_return_at"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	borrowerID := middleware.CurrentUserID(c)
	if role, _ := c.Get("role").(string); role == model.RoleAdmin && req.BorrowerID != 0 {
		borrowerID = req.BorrowerID
	}
	if borrowerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loan, err := h.Ledger.Checkout(c.Request().Context(), assetID, borrowerID, req.EstReturnAt)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toLoanResp(loan))
}

// Return handles POST /v1/loans/:id/return.
func (h *LoanHandler) Return(c echo.Context) error {
	loanID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	loan, err := h.Ledger.Return(c.Request().Context(), loanID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toLoanResp(loan))
}

// ReportIncident handles POST /v1/loans/:id/incident.
func (h *LoanHandler) ReportIncident(c echo.Context) error {
	loanID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req struct {
		Kind string `json:"kind" validate:"required,oneof=lost maintenance"`
		Note string `json:"note" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	loan, err := h.Ledger.ReportIncident(c.Request().Context(), loanID, req.Kind, strings.TrimSpace(req.Note))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toLoanResp(loan))
}

// Restock handles POST /v1/assets/:id/restock.
func (h *LoanHandler) Restock(c echo.Context) error {
	assetID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Ledger.Restock(c.Request().Context(), assetID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ActiveLoan handles GET /v1/assets/:id/loan, the front desk's "who has
// this" lookup.
func (h *LoanHandler) ActiveLoan(c echo.Context) error {
	assetID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	loan, err := h.Ledger.ActiveLoanFor(c.Request().Context(), assetID)
	if err != nil {
		return fail(c, err)
	}
	if loan == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active loan"})
	}
	return c.JSON(http.StatusOK, toLoanResp(loan))
}

// MyLoans handles GET /v1/loans, listing the caller's loan history.
func (h *LoanHandler) MyLoans(c echo.Context) error {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loans, err := h.Loans.ListByBorrower(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	out := make([]loanResp, 0, len(loans))
	for i := range loans {
		out = append(out, toLoanResp(&loans[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// DeleteLoan handles DELETE /v1/loans/:id, the admin-only escape hatch.
func (h *LoanHandler) DeleteLoan(c echo.Context) error {
	loanID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Ledger.AdminDeleteLoan(c.Request().Context(), loanID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
