package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pedalhouse/reservation/internal/config"
	"github.com/pedalhouse/reservation/internal/middleware"
	"github.com/pedalhouse/reservation/internal/model"
	"github.com/pedalhouse/reservation/internal/repository"
	"github.com/pedalhouse/reservation/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN MEMBER"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register handles POST /v1/auth/register. New accounts default to the
// MEMBER role; creating an ADMIN requires an explicit role in the body
// and is expected to be done through the ops tooling only.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	role := req.Role
	if role == "" {
		role = model.RoleMember
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, err)
	}
	u := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         role,
	}
	if err := h.Users.Create(c.Request().Context(), u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return fail(c, err)
	}
	return h.issueTokens(c, u, http.StatusCreated)
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	u, err := h.Users.GetByEmail(c.Request().Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return fail(c, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issueTokens(c, u, http.StatusOK)
}

// Refresh handles POST /v1/auth/refresh: it rotates the refresh token
// and issues a fresh access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	hash := utils.HashRefreshRaw(req.RefreshToken)
	userID, err := h.Tokens.FindUser(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		return fail(c, err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	// Rotation: the presented token is revoked before its replacement
	// is issued, so a replayed token fails.
	if err := h.Tokens.Revoke(ctx, hash); err != nil {
		return fail(c, err)
	}
	return h.issueTokens(c, u, http.StatusOK)
}

// Logout handles POST /v1/auth/logout: it revokes the presented
// refresh token. Access tokens simply expire.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token is required"})
	}
	err := h.Tokens.Revoke(c.Request().Context(), utils.HashRefreshRaw(req.RefreshToken))
	if err != nil && !errors.Is(err, repository.ErrTokenNotFound) {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /v1/me.
func (h *AuthHandler) Me(c echo.Context) error {
	id := middleware.CurrentUserID(c)
	if id == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.Users.GetByID(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
}

func (h *AuthHandler) issueTokens(c echo.Context, u *model.User, status int) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Tokens.Store(c.Request().Context(), u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return fail(c, err)
	}
	return c.JSON(status, authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}
