package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authkeeper/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger   *zap.Logger
	users    *service.UserService
	sessions *service.SessionService
	resets   *service.PasswordResetService
	cookies  CookieConfig
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(
	logger *zap.Logger,
	users *service.UserService,
	sessions *service.SessionService,
	resets *service.PasswordResetService,
	cookies CookieConfig,
) *UserHandler {
	return &UserHandler{
		logger:   logger,
		users:    users,
		sessions: sessions,
		resets:   resets,
		cookies:  cookies,
	}
}

// Register maneja POST /users/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		FullName string `json:"full_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, "register", err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		writeError(c, h.logger, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login maneja POST /users/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, "login", err)
		return
	}

	res, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "login", err)
		return
	}

	h.cookies.setTokens(c, res.Tokens)
	c.JSON(http.StatusOK, gin.H{
		"user":          res.User,
		"access_token":  res.Tokens.AccessToken,
		"refresh_token": res.Tokens.RefreshToken,
		"expires_in":    res.Tokens.ExpiresIn,
	})
}

// Logout maneja POST /users/logout.
func (h *UserHandler) Logout(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		writeError(c, h.logger, "logout", service.ErrUnauthorized)
		return
	}
	if err := h.sessions.Logout(c.Request.Context(), user.ID); err != nil {
		writeError(c, h.logger, "logout", err)
		return
	}

	h.cookies.clear(c)
	c.JSON(http.StatusOK, gin.H{"message": "user logged out"})
}

// RefreshToken maneja POST /users/refresh-token. Lee la cookie y, si falta, el body.
func (h *UserHandler) RefreshToken(c *gin.Context) {
	incoming, _ := c.Cookie(refreshTokenCookie)
	if strings.TrimSpace(incoming) == "" {
		var req struct {
			RefreshToken      string `json:"refresh_token"`
			RefreshTokenCamel string `json:"refreshToken"`
		}
		// Body opcional; un body vacio deja ambos campos en blanco.
		_ = c.ShouldBindJSON(&req)
		incoming = req.RefreshToken
		if incoming == "" {
			incoming = req.RefreshTokenCamel
		}
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), incoming)
	if err != nil {
		if status, _ := classify(err); status == http.StatusInternalServerError {
			writeError(c, h.logger, "refresh token", err)
			return
		}
		writeError(c, h.logger, "refresh token", &service.Error{Kind: service.ErrUnauthorized, Message: errorMessage(err)})
		return
	}

	h.cookies.setTokens(c, pair)
	c.JSON(http.StatusOK, pair)
}

// VerifyEmail maneja GET /users/verify-email/:verificationToken.
func (h *UserHandler) VerifyEmail(c *gin.Context) {
	user, err := h.users.VerifyEmail(c.Request.Context(), c.Param("verificationToken"))
	if err != nil {
		writeError(c, h.logger, "verify email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_email_verified": user.IsEmailVerified})
}

// ResendEmailVerification maneja POST /users/resend-email-verification.
func (h *UserHandler) ResendEmailVerification(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		writeError(c, h.logger, "resend email verification", service.ErrUnauthorized)
		return
	}
	if err := h.users.ResendVerification(c.Request.Context(), user.ID); err != nil {
		writeError(c, h.logger, "resend email verification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification mail has been sent"})
}

// ForgotPassword maneja POST /users/forgot-password.
func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, "forgot password", err)
		return
	}
	if err := h.resets.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, "forgot password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset mail has been sent"})
}

// ResetPassword maneja POST /users/reset-password/:resetToken.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req struct {
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, "reset password", err)
		return
	}
	if err := h.resets.ResetPassword(c.Request.Context(), c.Param("resetToken"), req.NewPassword); err != nil {
		writeError(c, h.logger, "reset password", err)
		return
	}
	h.cookies.clear(c)
	c.JSON(http.StatusOK, gin.H{"message": "password reset successfully"})
}

// CurrentUser maneja GET /users/current-user.
func (h *UserHandler) CurrentUser(c *gin.Context) {
	auth, ok := GetAuthUser(c)
	if !ok {
		writeError(c, h.logger, "current user", service.ErrUnauthorized)
		return
	}
	user, err := h.users.CurrentUser(c.Request.Context(), auth.ID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(c, h.logger, "current user", &service.Error{Kind: service.ErrUnauthorized, Message: "invalid access token"})
			return
		}
		writeError(c, h.logger, "current user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
