package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/medconsult-api/internal/apperrors"
	"github.com/harentsoaR/medconsult-api/internal/models"
)

const principalKey = "principal"

// Authenticator resolves a bearer token into the acting principal.
type Authenticator interface {
	Authenticate(token string) (models.Principal, error)
}

func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Authorization header required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			abort(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Invalid authorization header")
			return
		}
		principal, err := auth.Authenticate(strings.TrimSpace(tokenString))
		if err != nil {
			abort(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Invalid token")
			return
		}

		// Set user info in the context for handlers to use
		c.Set(principalKey, principal)
		c.Set("userID", principal.ID)
		c.Set("userRole", string(principal.Role))

		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "User not authenticated")
			return
		}
		if principal.Role != role {
			abort(c, http.StatusForbidden, apperrors.CodeForbidden, "Permission denied.")
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

func abort(c *gin.Context, status int, code apperrors.Code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}
