package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"authkeeper/internal/domain"
)

var _ UserRepository = (*MemoryUserRepository)(nil)

// MemoryUserRepository implementa UserRepository en memoria con la misma semantica
// de unicidad y consumo que la version Postgres.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domain.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryUserRepository) GetByUsernameOrEmail(_ context.Context, username, email string) (domain.User, error) {
	return r.find(func(u domain.User) bool {
		return strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email)
	})
}

func (r *MemoryUserRepository) UpdateRefreshToken(_ context.Context, id, token string) error {
	return r.update(id, func(u *domain.User) bool {
		u.RefreshToken = token
		return true
	})
}

func (r *MemoryUserRepository) RotateRefreshToken(_ context.Context, id, current, next string) error {
	return r.update(id, func(u *domain.User) bool {
		if u.RefreshToken == "" || u.RefreshToken != current {
			return false
		}
		u.RefreshToken = next
		return true
	})
}

func (r *MemoryUserRepository) SetEmailVerificationToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	return r.update(id, func(u *domain.User) bool {
		u.EmailVerificationToken = tokenHash
		u.EmailVerificationTokenExpiry = &expiresAt
		return true
	})
}

func (r *MemoryUserRepository) ConsumeEmailVerificationToken(_ context.Context, tokenHash string, now time.Time) (domain.User, error) {
	return r.consume(func(u *domain.User) bool {
		if !tokenMatches(u.EmailVerificationToken, u.EmailVerificationTokenExpiry, tokenHash, now) {
			return false
		}
		u.IsEmailVerified = true
		u.EmailVerificationToken = ""
		u.EmailVerificationTokenExpiry = nil
		return true
	})
}

func (r *MemoryUserRepository) SetForgotPasswordToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	return r.update(id, func(u *domain.User) bool {
		u.ForgotPasswordToken = tokenHash
		u.ForgotPasswordTokenExpiry = &expiresAt
		return true
	})
}

func (r *MemoryUserRepository) GetByForgotPasswordToken(_ context.Context, tokenHash string, now time.Time) (domain.User, error) {
	return r.find(func(u domain.User) bool {
		return tokenMatches(u.ForgotPasswordToken, u.ForgotPasswordTokenExpiry, tokenHash, now)
	})
}

func (r *MemoryUserRepository) ConsumeForgotPasswordToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (domain.User, error) {
	return r.consume(func(u *domain.User) bool {
		if !tokenMatches(u.ForgotPasswordToken, u.ForgotPasswordTokenExpiry, tokenHash, now) {
			return false
		}
		u.PasswordHash = passwordHash
		u.ForgotPasswordToken = ""
		u.ForgotPasswordTokenExpiry = nil
		u.RefreshToken = ""
		return true
	})
}

func tokenMatches(stored string, expiry *time.Time, tokenHash string, now time.Time) bool {
	return stored != "" && stored == tokenHash && expiry != nil && expiry.After(now)
}

func (r *MemoryUserRepository) find(match func(domain.User) bool) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *MemoryUserRepository) update(id string, apply func(*domain.User) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !apply(&u) {
		return pgx.ErrNoRows
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepository) consume(apply func(*domain.User) bool) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if apply(&u) {
			u.UpdatedAt = time.Now().UTC()
			r.users[id] = u
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}
