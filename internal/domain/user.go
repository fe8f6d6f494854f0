package domain

import "time"

const (
	RoleUser         = "user"
	DefaultAvatarURL = "https://www.gravatar.com/avatar/00000000000000000000000000000000?d=mp&f=y"
)

// User es el registro de identidad persistido. Los campos de secretos nunca se serializan.
type User struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"full_name,omitempty"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	Role            string `json:"role"`
	PasswordHash    string `json:"-"`
	IsEmailVerified bool   `json:"is_email_verified"`
	// RefreshToken es el unico slot de sesion; vacio equivale a NULL.
	RefreshToken                 string     `json:"-"`
	EmailVerificationToken       string     `json:"-"`
	EmailVerificationTokenExpiry *time.Time `json:"-"`
	ForgotPasswordToken          string     `json:"-"`
	ForgotPasswordTokenExpiry    *time.Time `json:"-"`
	CreatedAt                    time.Time  `json:"created_at"`
	UpdatedAt                    time.Time  `json:"updated_at"`
}

// UserView es la proyeccion redactada que sale hacia clientes.
type UserView struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	FullName        string    `json:"full_name,omitempty"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// View devuelve la proyeccion sin password, refresh token ni tokens pendientes.
func (u User) View() UserView {
	return UserView{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		FullName:        u.FullName,
		AvatarURL:       u.AvatarURL,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// TokenPair agrupa los tokens emitidos en login y refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}
