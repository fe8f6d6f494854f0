package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"authkeeper/internal/domain"
	"authkeeper/internal/email"
	"authkeeper/internal/repository"
)

// Links define las bases de los enlaces que se envian por correo.
type Links struct {
	VerifyEmailBase   string
	ResetPasswordBase string
}

// UserService coordina registro y verificacion de email.
type UserService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	hasher      PasswordHasher
	emailSender email.Sender
	limiter     EmailRateLimiter
	links       Links
	now         func() time.Time
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	emailSender email.Sender,
	limiter EmailRateLimiter,
	links Links,
) *UserService {
	if hasher == nil {
		hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	if limiter == nil {
		limiter = NewEmailRateLimiter(10*time.Minute, 3)
	}
	return &UserService{
		logger:      logger,
		users:       users,
		hasher:      hasher,
		emailSender: emailSender,
		limiter:     limiter,
		links:       links,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.UserView, error) {
	username := normalizeIdentity(input.Username)
	emailAddr := normalizeIdentity(input.Email)
	if username == "" || emailAddr == "" || input.Password == "" {
		return domain.UserView{}, newError(ErrInvalidInput, "all fields are required")
	}
	if err := validateUsername(username); err != nil {
		return domain.UserView{}, err
	}
	if err := validatePassword(input.Password); err != nil {
		return domain.UserView{}, err
	}

	// Camino rapido; el indice unico resuelve las carreras.
	if _, err := s.users.GetByUsernameOrEmail(ctx, username, emailAddr); err == nil {
		return domain.UserView{}, newError(ErrConflict, "username or email already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.UserView{}, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.UserView{}, err
	}

	now := s.now()
	token, err := IssueTemporaryToken(now)
	if err != nil {
		return domain.UserView{}, fmt.Errorf("issue verification token: %w", err)
	}

	user := domain.User{
		ID:                           uuid.NewString(),
		Username:                     username,
		Email:                        emailAddr,
		FullName:                     strings.TrimSpace(input.FullName),
		AvatarURL:                    domain.DefaultAvatarURL,
		Role:                         domain.RoleUser,
		PasswordHash:                 passwordHash,
		IsEmailVerified:              false,
		EmailVerificationToken:       token.Hash,
		EmailVerificationTokenExpiry: &token.ExpiresAt,
		CreatedAt:                    now,
		UpdatedAt:                    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.UserView{}, newError(ErrConflict, "username or email already exists")
		}
		return domain.UserView{}, err
	}

	s.sendVerification(ctx, user, token.Plaintext)
	return user.View(), nil
}

// VerifyEmail consume el token de verificacion; un token ajeno o vencido no se distingue.
func (s *UserService) VerifyEmail(ctx context.Context, plaintext string) (domain.UserView, error) {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return domain.UserView{}, newError(ErrInvalidInput, "email verification token is required")
	}

	user, err := s.users.ConsumeEmailVerificationToken(ctx, HashTemporaryToken(plaintext), s.now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserView{}, newError(ErrTokenInvalidOrExpired, "invalid or expired email verification token")
		}
		return domain.UserView{}, err
	}
	return user.View(), nil
}

// ResendVerification reemplaza cualquier token pendiente y reenvia el correo.
func (s *UserService) ResendVerification(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newError(ErrNotFound, "user not found")
		}
		return err
	}
	if user.IsEmailVerified {
		return newError(ErrInvalidInput, "email is already verified")
	}
	if !s.limiter.Allow("verify:" + user.Email) {
		return newError(ErrRateLimited, "too many verification emails, try again later")
	}

	token, err := IssueTemporaryToken(s.now())
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}
	if err := s.users.SetEmailVerificationToken(ctx, user.ID, token.Hash, token.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newError(ErrNotFound, "user not found")
		}
		return err
	}

	s.sendVerification(ctx, user, token.Plaintext)
	return nil
}

// CurrentUser devuelve la vista redactada del usuario autenticado.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (domain.UserView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserView{}, newError(ErrNotFound, "user not found")
		}
		return domain.UserView{}, err
	}
	return user.View(), nil
}

func (s *UserService) sendVerification(ctx context.Context, user domain.User, plaintext string) {
	msg, err := email.VerificationMessage(user.Email, user.Username, email.JoinLink(s.links.VerifyEmailBase, plaintext))
	deliver(ctx, s.logger, s.emailSender, msg, err)
}

// deliver envia el correo sin propagar fallos: el envio es best-effort.
func deliver(ctx context.Context, logger *zap.Logger, sender email.Sender, msg email.Message, buildErr error) {
	if buildErr != nil {
		logger.Warn("render email failed", zap.Error(buildErr), zap.String("email", msg.To))
		return
	}
	if sender == nil {
		logger.Warn("email sender not configured", zap.String("email", msg.To), zap.String("subject", msg.Subject))
		return
	}
	if err := sender.Send(ctx, msg); err != nil {
		logger.Warn("send email failed", zap.Error(err), zap.String("email", msg.To), zap.String("subject", msg.Subject))
	}
}

func normalizeIdentity(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
