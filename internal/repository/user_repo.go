package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"authkeeper/internal/domain"
)

// ErrDuplicate indica que username o email ya existen.
var ErrDuplicate = errors.New("username or email already exists")

// UserRepository define el contrato de persistencia para usuarios.
// Las busquedas sin resultado devuelven pgx.ErrNoRows.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (domain.User, error)

	// UpdateRefreshToken sobrescribe el slot de sesion; "" lo limpia.
	UpdateRefreshToken(ctx context.Context, id, token string) error
	// RotateRefreshToken reemplaza el slot solo si aun contiene current.
	RotateRefreshToken(ctx context.Context, id, current, next string) error

	SetEmailVerificationToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	// ConsumeEmailVerificationToken marca el email como verificado y limpia el token en una sola escritura.
	ConsumeEmailVerificationToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error)

	SetForgotPasswordToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	// GetByForgotPasswordToken busca sin consumir; solo un token vigente coincide.
	GetByForgotPasswordToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error)
	// ConsumeForgotPasswordToken fija el nuevo hash, limpia el token de reset y la sesion.
	ConsumeForgotPasswordToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (domain.User, error)
}

// pgxPool es el subconjunto de pgxpool.Pool que usa el repositorio.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ UserRepository = (*PgUserRepository)(nil)

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool pgxPool
}

func NewPgUserRepository(pool pgxPool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `
	id, username, email, full_name, avatar_url, role, password_hash, is_email_verified,
	COALESCE(refresh_token, ''),
	COALESCE(email_verification_token, ''), email_verification_token_expiry,
	COALESCE(forgot_password_token, ''), forgot_password_token_expiry,
	created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.AvatarURL,
		&u.Role,
		&u.PasswordHash,
		&u.IsEmailVerified,
		&u.RefreshToken,
		&u.EmailVerificationToken,
		&u.EmailVerificationTokenExpiry,
		&u.ForgotPasswordToken,
		&u.ForgotPasswordTokenExpiry,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (
			id, username, email, full_name, avatar_url, role, password_hash, is_email_verified,
			email_verification_token, email_verification_token_expiry, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.AvatarURL,
		user.Role,
		user.PasswordHash,
		user.IsEmailVerified,
		user.EmailVerificationToken,
		user.EmailVerificationTokenExpiry,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicate
		}
		return oops.With("operation", "create user").Wrap(err)
	}
	return nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.queryOne(ctx, "get user by id", query, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return r.queryOne(ctx, "get user by email", query, email)
}

func (r *PgUserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2) LIMIT 1`
	return r.queryOne(ctx, "get user by username or email", query, username, email)
}

func (r *PgUserRepository) UpdateRefreshToken(ctx context.Context, id, token string) error {
	const query = `UPDATE users SET refresh_token = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "update refresh token", query, id, token)
}

func (r *PgUserRepository) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	const query = `
		UPDATE users SET refresh_token = $3, updated_at = NOW()
		WHERE id = $1 AND refresh_token = $2
	`
	return r.execOne(ctx, "rotate refresh token", query, id, current, next)
}

func (r *PgUserRepository) SetEmailVerificationToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET email_verification_token = $2, email_verification_token_expiry = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, "set email verification token", query, id, tokenHash, expiresAt)
}

func (r *PgUserRepository) ConsumeEmailVerificationToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
	query := `
		UPDATE users
		SET is_email_verified = TRUE,
			email_verification_token = NULL,
			email_verification_token_expiry = NULL,
			updated_at = NOW()
		WHERE email_verification_token = $1 AND email_verification_token_expiry > $2
		RETURNING ` + userColumns
	return r.queryOne(ctx, "consume email verification token", query, tokenHash, now)
}

func (r *PgUserRepository) SetForgotPasswordToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET forgot_password_token = $2, forgot_password_token_expiry = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, "set forgot password token", query, id, tokenHash, expiresAt)
}

func (r *PgUserRepository) GetByForgotPasswordToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE forgot_password_token = $1 AND forgot_password_token_expiry > $2`
	return r.queryOne(ctx, "get user by forgot password token", query, tokenHash, now)
}

func (r *PgUserRepository) ConsumeForgotPasswordToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (domain.User, error) {
	query := `
		UPDATE users
		SET password_hash = $3,
			forgot_password_token = NULL,
			forgot_password_token_expiry = NULL,
			refresh_token = NULL,
			updated_at = NOW()
		WHERE forgot_password_token = $1 AND forgot_password_token_expiry > $2
		RETURNING ` + userColumns
	return r.queryOne(ctx, "consume forgot password token", query, tokenHash, now, passwordHash)
}

func (r *PgUserRepository) queryOne(ctx context.Context, op, query string, args ...any) (domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, pgx.ErrNoRows
		}
		return domain.User{}, oops.With("operation", op).Wrap(err)
	}
	return u, nil
}

// execOne ejecuta un UPDATE que debe afectar exactamente una fila.
func (r *PgUserRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return oops.With("operation", op).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
