package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"authkeeper/internal/email"
	"authkeeper/internal/repository"
)

const (
	testVerifyBase = "http://localhost:8080/api/v1/users/verify-email"
	testResetBase  = "http://localhost:5173/reset-password"
)

type mockEmailSender struct {
	mu       sync.Mutex
	messages []email.Message
	err      error
}

func (m *mockEmailSender) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *mockEmailSender) last(t *testing.T) email.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		t.Fatalf("expected an email to be sent")
	}
	return m.messages[len(m.messages)-1]
}

func (m *mockEmailSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// tokenFromLink extrae el token plano del enlace en el cuerpo de texto.
func tokenFromLink(t *testing.T, msg email.Message, base string) string {
	t.Helper()
	idx := strings.Index(msg.Text, base+"/")
	if idx < 0 {
		t.Fatalf("link with base %q not found in %q", base, msg.Text)
	}
	rest := msg.Text[idx+len(base)+1:]
	if end := strings.IndexAny(rest, "\r\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

type testDeps struct {
	repo     *repository.MemoryUserRepository
	sender   *mockEmailSender
	hasher   PasswordHasher
	users    *UserService
	sessions *SessionService
	resets   *PasswordResetService
	tokens   *JWTService
}

func newTestDeps() testDeps {
	repo := repository.NewMemoryUserRepository()
	sender := &mockEmailSender{}
	hasher := NewBcryptHasher(bcrypt.MinCost)
	links := Links{VerifyEmailBase: testVerifyBase, ResetPasswordBase: testResetBase}
	tokens := newTestJWTService()
	return testDeps{
		repo:     repo,
		sender:   sender,
		hasher:   hasher,
		tokens:   tokens,
		users:    NewUserService(zap.NewNop(), repo, hasher, sender, NewEmailRateLimiter(time.Minute, 100), links),
		sessions: NewSessionService(zap.NewNop(), repo, hasher, tokens),
		resets:   NewPasswordResetService(zap.NewNop(), repo, hasher, sender, NewEmailRateLimiter(time.Minute, 100), links),
	}
}

func registerAlice(t *testing.T, d testDeps) string {
	t.Helper()
	view, err := d.users.Register(context.Background(), RegisterInput{
		Username: "Alice",
		Email:    " Alice@Example.com ",
		Password: "p@ssw0rd",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return view.ID
}

func TestUserService_Register(t *testing.T) {
	d := newTestDeps()
	ctx := context.Background()

	view, err := d.users.Register(ctx, RegisterInput{Username: "Alice", Email: "Alice@Example.com", Password: "p@ssw0rd", FullName: " Alice A "})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if view.ID == "" || view.Username != "alice" || view.Email != "alice@example.com" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.IsEmailVerified || view.Role != "user" || view.FullName != "Alice A" {
		t.Fatalf("unexpected defaults: %+v", view)
	}

	stored, err := d.repo.GetByID(ctx, view.ID)
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if stored.PasswordHash == "p@ssw0rd" {
		t.Fatalf("password stored in plaintext")
	}
	if ok, _ := d.hasher.Verify("p@ssw0rd", stored.PasswordHash); !ok {
		t.Fatalf("stored hash does not verify")
	}
	if stored.EmailVerificationToken == "" || stored.EmailVerificationTokenExpiry == nil {
		t.Fatalf("expected pending verification token")
	}

	msg := d.sender.last(t)
	if msg.To != "alice@example.com" || msg.Subject != email.SubjectEmailVerification {
		t.Fatalf("unexpected email: %+v", msg)
	}
	plaintext := tokenFromLink(t, msg, testVerifyBase)
	if plaintext == stored.EmailVerificationToken {
		t.Fatalf("stored value must be the digest, not the plaintext")
	}
	if HashTemporaryToken(plaintext) != stored.EmailVerificationToken {
		t.Fatalf("stored digest does not match emailed token")
	}
}

func TestUserService_RegisterValidation(t *testing.T) {
	d := newTestDeps()
	cases := []RegisterInput{
		{Username: "", Email: "a@example.com", Password: "x"},
		{Username: "a", Email: "  ", Password: "x"},
		{Username: "a", Email: "a@example.com", Password: ""},
	}
	for _, in := range cases {
		if _, err := d.users.Register(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", in, err)
		}
	}
	if d.sender.count() != 0 {
		t.Fatalf("no email expected on validation errors")
	}
}

func TestUserService_RegisterConflict(t *testing.T) {
	d := newTestDeps()
	ctx := context.Background()
	registerAlice(t, d)

	_, err := d.users.Register(ctx, RegisterInput{Username: "ALICE", Email: "other@example.com", Password: "secret1"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on username, got %v", err)
	}
	_, err = d.users.Register(ctx, RegisterInput{Username: "bob", Email: "alice@EXAMPLE.com", Password: "secret1"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on email, got %v", err)
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Message == "" {
		t.Fatalf("expected client message, got %v", err)
	}
}

func TestUserService_RegisterConcurrent(t *testing.T) {
	d := newTestDeps()
	const workers = 8

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = d.users.Register(context.Background(), RegisterInput{Username: "race", Email: "race@example.com", Password: "secret1"})
		}(i)
	}
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || conflicts != workers-1 {
		t.Fatalf("expected one winner, got succeeded=%d conflicts=%d", succeeded, conflicts)
	}
}

func TestUserService_RegisterEmailFailureIsSwallowed(t *testing.T) {
	d := newTestDeps()
	d.sender.err = errors.New("smtp down")
	if _, err := d.users.Register(context.Background(), RegisterInput{Username: "ann", Email: "a@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("expected registration to succeed despite email failure, got %v", err)
	}
}

func TestUserService_VerifyEmail(t *testing.T) {
	d := newTestDeps()
	ctx := context.Background()
	id := registerAlice(t, d)
	plaintext := tokenFromLink(t, d.sender.last(t), testVerifyBase)

	view, err := d.users.VerifyEmail(ctx, plaintext)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if view.ID != id || !view.IsEmailVerified {
		t.Fatalf("unexpected view: %+v", view)
	}

	stored, _ := d.repo.GetByID(ctx, id)
	if stored.EmailVerificationToken != "" || stored.EmailVerificationTokenExpiry != nil {
		t.Fatalf("expected token cleared after use")
	}

	if _, err := d.users.VerifyEmail(ctx, plaintext); !errors.Is(err, ErrTokenInvalidOrExpired) {
		t.Fatalf("expected reuse rejected, got %v", err)
	}
	if _, err := d.users.VerifyEmail(ctx, "deadbeef"); !errors.Is(err, ErrTokenInvalidOrExpired) {
		t.Fatalf("expected unknown token rejected, got %v", err)
	}
	if _, err := d.users.VerifyEmail(ctx, " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected empty token rejected, got %v", err)
	}
}

func TestUserService_VerifyEmailExpired(t *testing.T) {
	d := newTestDeps()
	registerAlice(t, d)
	plaintext := tokenFromLink(t, d.sender.last(t), testVerifyBase)

	d.users.now = func() time.Time { return time.Now().UTC().Add(TemporaryTokenTTL + time.Minute) }
	if _, err := d.users.VerifyEmail(context.Background(), plaintext); !errors.Is(err, ErrTokenInvalidOrExpired) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestUserService_ResendVerification(t *testing.T) {
	d := newTestDeps()
	ctx := context.Background()
	id := registerAlice(t, d)
	first := tokenFromLink(t, d.sender.last(t), testVerifyBase)

	if err := d.users.ResendVerification(ctx, id); err != nil {
		t.Fatalf("resend: %v", err)
	}
	second := tokenFromLink(t, d.sender.last(t), testVerifyBase)
	if first == second {
		t.Fatalf("expected a fresh token")
	}

	if _, err := d.users.VerifyEmail(ctx, first); !errors.Is(err, ErrTokenInvalidOrExpired) {
		t.Fatalf("expected superseded token rejected, got %v", err)
	}
	if _, err := d.users.VerifyEmail(ctx, second); err != nil {
		t.Fatalf("verify with new token: %v", err)
	}

	if err := d.users.ResendVerification(ctx, id); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected already verified rejection, got %v", err)
	}
	if err := d.users.ResendVerification(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserService_ResendVerificationRateLimited(t *testing.T) {
	d := newTestDeps()
	d.users.limiter = NewEmailRateLimiter(time.Minute, 1)
	id := registerAlice(t, d)

	if err := d.users.ResendVerification(context.Background(), id); err != nil {
		t.Fatalf("first resend: %v", err)
	}
	if err := d.users.ResendVerification(context.Background(), id); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
}

func TestUserService_CurrentUser(t *testing.T) {
	d := newTestDeps()
	id := registerAlice(t, d)

	view, err := d.users.CurrentUser(context.Background(), id)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if view.Email != "alice@example.com" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if _, err := d.users.CurrentUser(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserService_RegisterLengthLimits(t *testing.T) {
	d := newTestDeps()
	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "short username", in: RegisterInput{Username: "x", Email: "x@example.com", Password: "secret1"}},
		{name: "long username", in: RegisterInput{Username: strings.Repeat("u", MaxUsernameLength+1), Email: "u@example.com", Password: "secret1"}},
		{name: "short password", in: RegisterInput{Username: "ann", Email: "ann@example.com", Password: "a"}},
		{name: "password over bcrypt limit", in: RegisterInput{Username: "ann", Email: "ann@example.com", Password: strings.Repeat("p", 80)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.users.Register(context.Background(), tt.in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}

	// Los limites son inclusivos.
	edge := RegisterInput{Username: strings.Repeat("u", MaxUsernameLength), Email: "edge@example.com", Password: strings.Repeat("p", MaxPasswordBytes)}
	if _, err := d.users.Register(context.Background(), edge); err != nil {
		t.Fatalf("expected boundary values accepted, got %v", err)
	}
	if _, err := d.users.Register(context.Background(), RegisterInput{Username: "bob", Email: "bob@example.com", Password: "123456"}); err != nil {
		t.Fatalf("expected six character password accepted, got %v", err)
	}
}
