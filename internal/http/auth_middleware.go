package http

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authkeeper/internal/domain"
	"authkeeper/internal/service"
)

const authUserKey = "auth_user"

// Authenticator resuelve un access token a la identidad del usuario.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (domain.UserView, error)
}

// AuthMiddleware exige un access token valido (cookie o Bearer) y adjunta la identidad.
func AuthMiddleware(logger *zap.Logger, auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request.Context(), accessTokenFromRequest(c))
		if err != nil {
			writeError(c, logger, "authenticate", err)
			return
		}

		c.Request = c.Request.WithContext(service.ContextWithUser(c.Request.Context(), user))
		c.Set(authUserKey, user)
		c.Next()
	}
}

// accessTokenFromRequest prioriza la cookie sobre el header Authorization.
func accessTokenFromRequest(c *gin.Context) string {
	if token, err := c.Cookie(accessTokenCookie); err == nil && strings.TrimSpace(token) != "" {
		return token
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return ""
}

// GetAuthUser obtiene la identidad adjuntada por AuthMiddleware.
func GetAuthUser(c *gin.Context) (domain.UserView, bool) {
	if val, ok := c.Get(authUserKey); ok {
		if user, ok := val.(domain.UserView); ok {
			return user, true
		}
	}
	return service.UserFromContext(c.Request.Context())
}
