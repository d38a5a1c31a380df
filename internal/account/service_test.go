package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	done chan string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{done: make(chan string, 8)}
}

func (m *fakeMailer) SendVerification(ctx context.Context, email string) error {
	m.mu.Lock()
	m.sent = append(m.sent, email)
	m.mu.Unlock()
	m.done <- email
	return nil
}

func newTestService(mailer Mailer, adminSecret string) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	return NewService(repo, mailer, adminSecret, nil), repo
}

func TestRegisterAdminWrongSecretCreatesNothing(t *testing.T) {
	svc, repo := newTestService(nil, "right-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{
		Email:       "boss@example.com",
		Password:    "longenough",
		AdminIntent: true,
		AdminSecret: "x",
	})
	if !errors.Is(err, ErrInvalidAdminSecret) {
		t.Fatalf("expected ErrInvalidAdminSecret, got %v", err)
	}

	total, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no accounts created, got %d", total)
	}
}

func TestRegisterAdminEmptyConfiguredSecretFailsClosed(t *testing.T) {
	svc, _ := newTestService(nil, "")
	_, err := svc.Register(context.Background(), RegisterInput{
		Email:       "boss@example.com",
		Password:    "longenough",
		AdminIntent: true,
		AdminSecret: "",
	})
	if !errors.Is(err, ErrInvalidAdminSecret) {
		t.Fatalf("expected fail closed with empty configured secret, got %v", err)
	}
}

func TestRegisterAdminFlagOnlyWithSecret(t *testing.T) {
	svc, _ := newTestService(nil, "right-secret")
	ctx := context.Background()

	admin, err := svc.Register(ctx, RegisterInput{
		Email:       "boss@example.com",
		Password:    "longenough",
		AdminIntent: true,
		AdminSecret: "right-secret",
	})
	if err != nil {
		t.Fatalf("Register admin: %v", err)
	}
	if ok, _ := svc.IsAdmin(ctx, admin.ID); !ok {
		t.Fatalf("expected admin grant for %s", admin.ID)
	}

	plain, err := svc.Register(ctx, RegisterInput{
		Email:    "user@example.com",
		Password: "longenough",
	})
	if err != nil {
		t.Fatalf("Register user: %v", err)
	}
	if ok, _ := svc.IsAdmin(ctx, plain.ID); ok {
		t.Fatalf("expected no admin grant without intent")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(nil, "")
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "longenough"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "longenough"})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(nil, "")
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "longenough"}); err == nil {
		t.Fatalf("expected malformed email to fail")
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "short"}); err == nil {
		t.Fatalf("expected short password to fail")
	}
}

func TestAuthenticateOpaqueFailure(t *testing.T) {
	svc, _ := newTestService(nil, "")
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "longenough"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "a@example.com", "longenough"); err != nil {
		t.Fatalf("expected authenticate ok: %v", err)
	}

	// 未知邮箱和错误口令必须返回同一个错误
	_, errUnknown := svc.Authenticate(ctx, "nobody@example.com", "longenough")
	_, errWrongPw := svc.Authenticate(ctx, "a@example.com", "wrong-password")
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrongPw, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", errUnknown, errWrongPw)
	}
}

func TestRegisterTriggersVerificationMail(t *testing.T) {
	mailer := newFakeMailer()
	svc, _ := newTestService(mailer, "")

	if _, err := svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "longenough"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	select {
	case got := <-mailer.done:
		if got != "a@example.com" {
			t.Fatalf("verification mail to wrong address: %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected verification mail to be sent")
	}
}

func TestEnsureAdminIdempotent(t *testing.T) {
	svc, _ := newTestService(nil, "")
	ctx := context.Background()

	a1, created, err := svc.EnsureAdmin(ctx, "ops@example.com", "longenough")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if !created {
		t.Fatalf("expected first call to create the account")
	}

	a2, created, err := svc.EnsureAdmin(ctx, "ops@example.com", "ignored-pw")
	if err != nil {
		t.Fatalf("EnsureAdmin second: %v", err)
	}
	if created {
		t.Fatalf("expected second call to be a no-op create")
	}
	if a1.ID != a2.ID {
		t.Fatalf("expected same account, got %s / %s", a1.ID, a2.ID)
	}
	if ok, _ := svc.IsAdmin(ctx, a2.ID); !ok {
		t.Fatalf("expected admin grant")
	}
}
