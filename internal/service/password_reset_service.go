package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"authkeeper/internal/email"
	"authkeeper/internal/repository"
)

// PasswordResetService emite y consume tokens de reseteo de contraseña.
type PasswordResetService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	hasher      PasswordHasher
	emailSender email.Sender
	limiter     EmailRateLimiter
	links       Links
	now         func() time.Time
}

func NewPasswordResetService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	emailSender email.Sender,
	limiter EmailRateLimiter,
	links Links,
) *PasswordResetService {
	if hasher == nil {
		hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	if limiter == nil {
		limiter = NewEmailRateLimiter(10*time.Minute, 3)
	}
	return &PasswordResetService{
		logger:      logger,
		users:       users,
		hasher:      hasher,
		emailSender: emailSender,
		limiter:     limiter,
		links:       links,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *PasswordResetService) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeIdentity(emailAddr)
	if emailAddr == "" {
		return newError(ErrInvalidInput, "email is required")
	}
	if !s.limiter.Allow("reset:" + emailAddr) {
		return newError(ErrRateLimited, "too many password reset emails, try again later")
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newError(ErrInvalidInput, "user with this email does not exist")
		}
		return err
	}

	token, err := IssueTemporaryToken(s.now())
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	if err := s.users.SetForgotPasswordToken(ctx, user.ID, token.Hash, token.ExpiresAt); err != nil {
		return err
	}

	msg, err := email.PasswordResetMessage(user.Email, user.Username, email.JoinLink(s.links.ResetPasswordBase, token.Plaintext))
	deliver(ctx, s.logger, s.emailSender, msg, err)
	return nil
}

// ResetPassword consume el token de reseteo, fija la nueva contraseña y cierra la sesion activa.
// El token se comprueba antes de hashear la nueva contraseña.
func (s *PasswordResetService) ResetPassword(ctx context.Context, plaintext, newPassword string) error {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return newError(ErrInvalidInput, "password reset token is required")
	}
	if newPassword == "" {
		return newError(ErrInvalidInput, "new password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	tokenHash := HashTemporaryToken(plaintext)
	if _, err := s.users.GetByForgotPasswordToken(ctx, tokenHash, s.now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newError(ErrTokenInvalidOrExpired, "invalid or expired password reset token")
		}
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	// El consumo sigue siendo atomico: si otra peticion gano, no hay fila.
	if _, err := s.users.ConsumeForgotPasswordToken(ctx, tokenHash, passwordHash, s.now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newError(ErrTokenInvalidOrExpired, "invalid or expired password reset token")
		}
		return err
	}
	return nil
}
