package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig agrupa las opciones del router que dependen del entorno.
type RouterConfig struct {
	CORSOrigins []string
}

// NewRouter configura el router de Gin con middlewares y rutas de autenticacion.
func NewRouter(
	logger *zap.Logger,
	cfg RouterConfig,
	userH *UserHandler,
	healthH *HealthHandler,
	guard gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(corsMiddleware(cfg.CORSOrigins))
	}

	api := r.Group("/api/v1")
	api.GET("/healthcheck", healthH.Check)

	users := api.Group("/users")
	users.POST("/register", userH.Register)
	users.POST("/login", userH.Login)
	users.POST("/refresh-token", userH.RefreshToken)
	users.GET("/verify-email/:verificationToken", userH.VerifyEmail)
	users.POST("/forgot-password", userH.ForgotPassword)
	users.POST("/reset-password/:resetToken", userH.ResetPassword)

	secured := users.Group("", guard)
	secured.POST("/logout", userH.Logout)
	secured.POST("/resend-email-verification", userH.ResendEmailVerification)
	secured.GET("/current-user", userH.CurrentUser)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	return cors.New(cfg)
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
