package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"authkeeper/internal/domain"
	"authkeeper/internal/repository"
)

// SessionService maneja login, logout y rotacion del refresh token.
// Cada usuario tiene un unico slot de refresh: un login nuevo desplaza al anterior.
type SessionService struct {
	logger *zap.Logger
	users  repository.UserRepository
	hasher PasswordHasher
	tokens *JWTService
}

func NewSessionService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, tokens *JWTService) *SessionService {
	if hasher == nil {
		hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	return &SessionService{
		logger: logger,
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

type LoginResult struct {
	User   domain.UserView
	Tokens domain.TokenPair
}

func (s *SessionService) Login(ctx context.Context, emailAddr, password string) (LoginResult, error) {
	emailAddr = normalizeIdentity(emailAddr)
	if emailAddr == "" {
		return LoginResult{}, newError(ErrInvalidInput, "email is required")
	}
	if password == "" {
		return LoginResult{}, newError(ErrInvalidInput, "password is required")
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, newError(ErrNotFound, "user does not exist")
		}
		return LoginResult{}, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		return LoginResult{}, newError(ErrUnauthorized, "invalid user credentials")
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.users.UpdateRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return LoginResult{}, err
	}

	user.RefreshToken = pair.RefreshToken
	return LoginResult{User: user.View(), Tokens: pair}, nil
}

// Logout vacia el slot de refresh; repetirlo no tiene efecto adicional.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if err := s.users.UpdateRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newError(ErrNotFound, "user not found")
		}
		return err
	}
	return nil
}

// Refresh valida el refresh token contra el slot guardado y lo rota.
func (s *SessionService) Refresh(ctx context.Context, incoming string) (domain.TokenPair, error) {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" {
		return domain.TokenPair{}, newError(ErrUnauthorized, "unauthorized access - no refresh token provided")
	}

	claims, err := s.tokens.ParseRefreshToken(incoming)
	if err != nil {
		return domain.TokenPair{}, newError(ErrUnauthorized, "unauthorized access - invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenPair{}, newError(ErrNotFound, "user not found")
		}
		return domain.TokenPair{}, err
	}

	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(incoming), []byte(user.RefreshToken)) != 1 {
		s.logger.Info("refresh token does not match session slot", zap.String("user_id", user.ID))
		return domain.TokenPair{}, newError(ErrUnauthorized, "unauthorized access - invalid refresh token")
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.users.RotateRefreshToken(ctx, user.ID, incoming, pair.RefreshToken); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Otro refresh concurrente gano el slot.
			return domain.TokenPair{}, newError(ErrUnauthorized, "unauthorized access - invalid refresh token")
		}
		return domain.TokenPair{}, err
	}
	return pair, nil
}

// Authenticate resuelve un access token a la vista redactada del usuario. No escribe.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (domain.UserView, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return domain.UserView{}, newError(ErrUnauthorized, "unauthorized, token not found")
	}

	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return domain.UserView{}, newError(ErrUnauthorized, "unauthorized, token not valid")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserView{}, newError(ErrUnauthorized, "invalid access token")
		}
		return domain.UserView{}, err
	}
	return user.View(), nil
}
