package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/auth"
)

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (auth.Result, error)
	Login(ctx context.Context, email, password string) (auth.Result, error)
	Refresh(ctx context.Context, rawRefresh string) (auth.Result, error)
	Logout(ctx context.Context, rawRefresh string) error
	Me(ctx context.Context, userID string) (user.Summary, error)
}

type AuthHandler struct {
	svc          AuthService
	log          *slog.Logger
	secureCookie bool
}

func NewAuthHandler(svc AuthService, log *slog.Logger, secureCookie bool) *AuthHandler {
	return &AuthHandler{svc: svc, log: log, secureCookie: secureCookie}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required,max=100"`
}

// LoginRequest carries no format rules beyond presence: a malformed email or an
// overlong password fails as invalid_credentials, like any other mismatch.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  user.Summary `json:"user"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	res, err := h.svc.Register(cctx, req.Email, req.Password, req.Name)
	if err != nil {
		RespondServiceError(ctx, h.log, err, "Registration failed")
		return
	}

	h.respondSession(ctx, res)
}

// POST /api/auth/login
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	res, err := h.svc.Login(cctx, req.Email, req.Password)
	if err != nil {
		RespondServiceError(ctx, h.log, err, "Login failed")
		return
	}

	h.respondSession(ctx, res)
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		RespondUnauthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	res, err := h.svc.Refresh(cctx, raw)
	if err != nil {
		h.clearRefreshCookie(ctx)
		RespondServiceError(ctx, h.log, err, "Could not refresh session")
		return
	}

	h.respondSession(ctx, res)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)
	if err == nil && raw != "" {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.svc.Logout(cctx, raw); err != nil {
			// the cookie is cleared regardless; the session simply expires server-side
			h.log.WarnContext(ctx.Request.Context(), "logout revoke failed", "err", err)
		}
	}

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// GET /api/auth/me
func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "missing_token", "Missing bearer token")
		return
	}

	summary, err := h.svc.Me(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondServiceError(ctx, h.log, err, "Could not load user")
		return
	}

	ctx.JSON(http.StatusOK, summary)
}

func (h *AuthHandler) respondSession(ctx *gin.Context, res auth.Result) {
	h.setRefreshCookie(ctx, res.RefreshToken, res.RefreshExpiresAt)

	ctx.JSON(http.StatusOK, AuthResponse{
		Token: res.AccessToken,
		User:  res.User,
	})
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, raw, maxAge, refreshCookiePath, "", h.secureCookie, true)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", h.secureCookie, true)
}
