package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authkeeper/internal/domain"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// JWTService emite y valida access y refresh tokens, cada clase con su propio secreto.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// AccessClaims lleva la identidad suficiente para autorizar sin ir a la base.
type AccessClaims struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims solo lleva el sujeto y un jti.
type RefreshClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewJWTService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, issuer string) *JWTService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "authkeeper"
	}
	return &JWTService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *JWTService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *JWTService) IssueAccessToken(user domain.User) (string, error) {
	if len(s.accessSecret) == 0 {
		return "", ErrJWTInvalid
	}
	now := s.now()
	claims := AccessClaims{
		Email:     user.Email,
		Username:  user.Username,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

func (s *JWTService) IssueRefreshToken(user domain.User) (string, error) {
	if len(s.refreshSecret) == 0 {
		return "", ErrJWTInvalid
	}
	now := s.now()
	claims := RefreshClaims{
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

// GeneratePair emite un access y un refresh token para el usuario.
func (s *JWTService) GeneratePair(user domain.User) (domain.TokenPair, error) {
	access, err := s.IssueAccessToken(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *JWTService) ParseAccessToken(token string) (AccessClaims, error) {
	var claims AccessClaims
	if err := s.parse(token, s.accessSecret, &claims); err != nil {
		return AccessClaims{}, err
	}
	if claims.TokenType != tokenTypeAccess || !s.isValidRegistered(claims.RegisteredClaims) {
		return AccessClaims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) ParseRefreshToken(token string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := s.parse(token, s.refreshSecret, &claims); err != nil {
		return RefreshClaims{}, err
	}
	if claims.TokenType != tokenTypeRefresh || !s.isValidRegistered(claims.RegisteredClaims) {
		return RefreshClaims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, secret []byte, claims jwt.Claims) error {
	if len(secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return ErrJWTInvalid
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrJWTExpired
		}
		return ErrJWTInvalid
	}
	return nil
}

func (s *JWTService) isValidRegistered(claims jwt.RegisteredClaims) bool {
	if strings.TrimSpace(claims.Subject) == "" {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
