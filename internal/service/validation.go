package service

import "unicode/utf8"

const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 6
	// bcrypt solo acepta hasta 72 bytes.
	MaxPasswordBytes = 72
)

// validateUsername espera el valor ya normalizado.
func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return newError(ErrInvalidInput, "username must be between 3 and 30 characters long")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return newError(ErrInvalidInput, "password must be at least 6 characters long")
	}
	if len(password) > MaxPasswordBytes {
		return newError(ErrInvalidInput, "password must be at most 72 bytes long")
	}
	return nil
}
