package middlewares

import (
	"errors"
	"net/http"

	"github.com/geocoder89/storefront/internal/actorctx"
	"github.com/geocoder89/storefront/internal/auth"
	"github.com/gin-gonic/gin"
)

// Authenticator is satisfied by *auth.Gateway; tests fake it.
type Authenticator interface {
	Authenticate(authorizationHeader string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	authn Authenticator
}

func NewAuthMiddleware(authn Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authn: authn}
}

// RequireAuth answers 401 when no bearer token is present and 403 when the
// token does not verify.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.authn.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				abortWithError(c, http.StatusUnauthorized, "missing_token", "Missing bearer token")
				return
			}
			abortWithError(c, http.StatusForbidden, "invalid_token", "Invalid or expired token")
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, claims.Role)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	id := c.GetString(CtxUserID)
	return id, id != ""
}

func RoleFromContext(c *gin.Context) (string, bool) {
	role := c.GetString(CtxRole)
	return role, role != ""
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": c.GetString(CtxRequestID),
		},
	})
}
