package service

import (
	"context"

	"authkeeper/internal/domain"
)

type identityKey struct{}

// ContextWithUser adjunta la identidad autenticada al contexto de la peticion.
func ContextWithUser(ctx context.Context, user domain.UserView) context.Context {
	return context.WithValue(ctx, identityKey{}, user)
}

// UserFromContext recupera la identidad adjuntada por el guard de acceso.
func UserFromContext(ctx context.Context) (domain.UserView, bool) {
	user, ok := ctx.Value(identityKey{}).(domain.UserView)
	return user, ok
}
