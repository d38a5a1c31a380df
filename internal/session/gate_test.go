package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/StudentGarage/StudentGarage/internal/account"
	"github.com/StudentGarage/StudentGarage/internal/common/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:    "unit-test-secret",
		Issuer:       "garage-service",
		Audience:     "garage-clients",
		TokenTTLMins: 30,
	}
}

func newTestGate(t *testing.T) (*Gate, *account.Service) {
	t.Helper()
	accounts := account.NewService(account.NewMemoryRepo(), nil, "open-sesame", nil)
	return NewGate(accounts, NewMemoryRegistry(), testAuthConfig(), nil), accounts
}

func TestSignUpReturnsLiveSession(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	sess, err := g.SignUp(ctx, account.RegisterInput{Email: "alex@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if sess.Token == "" || sess.TokenID == "" {
		t.Fatalf("expected issued token, got %+v", sess)
	}
	if sess.State != StatusAuthenticated {
		t.Fatalf("expected authenticated state, got %s", sess.State)
	}
	if len(sess.Roles) != 1 || sess.Roles[0] != "user" {
		t.Fatalf("expected plain user roles, got %v", sess.Roles)
	}
	if g.RevocationChecker()(ctx, sess.TokenID) {
		t.Fatalf("fresh token must not be revoked")
	}
}

func TestSignUpAdminIntent(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	sess, err := g.SignUp(ctx, account.RegisterInput{
		Email:       "boss@example.com",
		Password:    "correct-horse",
		AdminIntent: true,
		AdminSecret: "open-sesame",
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	hasAdmin := false
	for _, r := range sess.Roles {
		if r == "admin" {
			hasAdmin = true
		}
	}
	if !hasAdmin {
		t.Fatalf("expected admin role, got %v", sess.Roles)
	}

	// 口令错：既不建号也不发令牌
	_, err = g.SignUp(ctx, account.RegisterInput{
		Email:       "mallory@example.com",
		Password:    "correct-horse",
		AdminIntent: true,
		AdminSecret: "wrong",
	})
	if !errors.Is(err, account.ErrInvalidAdminSecret) {
		t.Fatalf("expected ErrInvalidAdminSecret, got %v", err)
	}
	if _, err := g.SignIn(ctx, "mallory@example.com", "correct-horse"); !errors.Is(err, account.ErrInvalidCredentials) {
		t.Fatalf("rejected registration must not create an account, got %v", err)
	}
}

func TestSignInAfterSignUp(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	if _, err := g.SignUp(ctx, account.RegisterInput{Email: "alex@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	sess, err := g.SignIn(ctx, "alex@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.State != StatusAuthenticated {
		t.Fatalf("expected authenticated state, got %s", sess.State)
	}

	if _, err := g.SignIn(ctx, "alex@example.com", "wrong-password"); !errors.Is(err, account.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := g.SignIn(ctx, "nobody@example.com", "correct-horse"); !errors.Is(err, account.ErrInvalidCredentials) {
		t.Fatalf("unknown email must yield the same error, got %v", err)
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	sess, err := g.SignUp(ctx, account.RegisterInput{Email: "alex@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if err := g.SignOut(ctx, sess.TokenID, sess.ExpiresAt); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if !g.RevocationChecker()(ctx, sess.TokenID) {
		t.Fatalf("token must be revoked after sign-out")
	}

	// 重复登出是 no-op
	if err := g.SignOut(ctx, sess.TokenID, sess.ExpiresAt); err != nil {
		t.Fatalf("second SignOut must be a no-op, got %v", err)
	}

	// 登出不影响重新登录拿新令牌
	fresh, err := g.SignIn(ctx, "alex@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("SignIn after SignOut: %v", err)
	}
	if fresh.TokenID == sess.TokenID {
		t.Fatalf("re-login must issue a new token id")
	}
	if g.RevocationChecker()(ctx, fresh.TokenID) {
		t.Fatalf("fresh token must not be revoked")
	}
}

func TestAuthorize(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	sess, err := g.SignUp(ctx, account.RegisterInput{Email: "alex@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	view, err := g.Authorize(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if view.AccountID != sess.AccountID || view.TokenID != sess.TokenID {
		t.Fatalf("authorized view mismatch: %+v vs %+v", view, sess)
	}
	if view.State != StatusAuthenticated {
		t.Fatalf("expected authenticated state, got %s", view.State)
	}

	if _, err := g.Authorize(ctx, "not-a-token"); err == nil {
		t.Fatalf("garbage token must not authorize")
	}

	// 登出后同一令牌不得再通过
	if err := g.SignOut(ctx, sess.TokenID, sess.ExpiresAt); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := g.Authorize(ctx, sess.Token); err == nil {
		t.Fatalf("revoked token must not authorize")
	}
}

func TestTransitionRules(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusAnonymous, StatusAuthenticated, true},
		{StatusAuthenticated, StatusAnonymous, true},
		{StatusAnonymous, StatusAnonymous, true},
		{StatusAuthenticated, StatusAuthenticated, true},
		{Status("expired"), StatusAuthenticated, false},
		{StatusAnonymous, Status("expired"), false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestMemoryRegistryExpiry(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	if err := r.Revoke(ctx, "jti-1", 20*time.Millisecond); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if revoked, _ := r.IsRevoked(ctx, "jti-1"); !revoked {
		t.Fatalf("expected revoked within ttl")
	}
	time.Sleep(30 * time.Millisecond)
	if revoked, _ := r.IsRevoked(ctx, "jti-1"); revoked {
		t.Fatalf("revocation record must lapse with the token")
	}

	// 过期令牌无需入表
	if err := r.Revoke(ctx, "jti-2", -time.Minute); err != nil {
		t.Fatalf("Revoke expired: %v", err)
	}
	if revoked, _ := r.IsRevoked(ctx, "jti-2"); revoked {
		t.Fatalf("expired token must not be recorded")
	}
}

type failingRegistry struct{}

func (failingRegistry) Revoke(context.Context, string, time.Duration) error {
	return errors.New("registry down")
}
func (failingRegistry) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("registry down")
}

func TestRevocationCheckerFailsClosed(t *testing.T) {
	accounts := account.NewService(account.NewMemoryRepo(), nil, "", nil)
	g := NewGate(accounts, failingRegistry{}, testAuthConfig(), nil)

	if !g.RevocationChecker()(context.Background(), "any-jti") {
		t.Fatalf("registry failure must be treated as revoked")
	}
}
