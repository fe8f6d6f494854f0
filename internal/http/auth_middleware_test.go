package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authkeeper/internal/domain"
	"authkeeper/internal/service"
)

type stubAuthenticator struct {
	users    map[string]domain.UserView
	lastSeen string
	err      error
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (domain.UserView, error) {
	s.lastSeen = token
	if s.err != nil {
		return domain.UserView{}, s.err
	}
	user, ok := s.users[token]
	if !ok {
		return domain.UserView{}, &service.Error{Kind: service.ErrUnauthorized, Message: "unauthorized, token not valid"}
	}
	return user, nil
}

func setupGuardedRouter(auth Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(zap.NewNop(), auth), func(c *gin.Context) {
		user, ok := GetAuthUser(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		fromCtx, ok := service.UserFromContext(c.Request.Context())
		if !ok || fromCtx.ID != user.ID {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	return r
}

func TestAuthMiddleware_AllowsBearerToken(t *testing.T) {
	auth := &stubAuthenticator{users: map[string]domain.UserView{"good": {ID: "u1"}}}
	r := setupGuardedRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_CookieTakesPrecedence(t *testing.T) {
	auth := &stubAuthenticator{users: map[string]domain.UserView{"from-cookie": {ID: "u1"}}}
	r := setupGuardedRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || auth.lastSeen != "from-cookie" {
		t.Fatalf("expected cookie token to win, got %d with %q", rec.Code, auth.lastSeen)
	}
}

func TestAuthMiddleware_RejectsMissingOrInvalidToken(t *testing.T) {
	auth := &stubAuthenticator{users: map[string]domain.UserView{}}
	r := setupGuardedRouter(auth)

	for _, header := range []string{"", "Bearer nope", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %q, got %d", header, rec.Code)
		}
	}
}

func TestAuthMiddleware_InternalFailure(t *testing.T) {
	auth := &stubAuthenticator{err: errors.New("db down")}
	r := setupGuardedRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
