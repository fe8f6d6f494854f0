package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authkeeper/internal/service"
)

const (
	codeInvalidInput          = "INVALID_INPUT"
	codeTokenInvalidOrExpired = "TOKEN_INVALID_OR_EXPIRED"
	codeUnauthorized          = "UNAUTHORIZED"
	codeNotFound              = "NOT_FOUND"
	codeConflict              = "CONFLICT"
	codeRateLimited           = "RATE_LIMITED"
	codeInternal              = "INTERNAL_ERROR"
)

// classify traduce un error de servicio a status HTTP y codigo estable.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, codeInvalidInput
	case errors.Is(err, service.ErrTokenInvalidOrExpired):
		return http.StatusBadRequest, codeTokenInvalidOrExpired
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, codeConflict
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, codeRateLimited
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func errorMessage(err error) string {
	var svcErr *service.Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return err.Error()
}

// writeError responde con {"error","code"}. Los errores no clasificados solo se loguean.
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error", "code": code})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorMessage(err), "code": code})
}

func writeBindError(c *gin.Context, logger *zap.Logger, op string, err error) {
	logger.Warn("invalid "+op+" request", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request", "code": codeInvalidInput})
}
