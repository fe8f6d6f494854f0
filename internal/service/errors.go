package service

import "errors"

// Errores de dominio; la capa HTTP los traduce a codigos de estado con errors.Is.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrTokenInvalidOrExpired = errors.New("token invalid or expired")
	ErrRateLimited           = errors.New("rate limited")
)

// Error acompaña la categoria con un mensaje apto para el cliente.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}
