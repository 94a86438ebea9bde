package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestService(ttl time.Duration) *Service {
	return New(NewMemAccounts(), NewMemSessions(), ttl)
}

func TestSignupAndLogin(t *testing.T) {
	svc := newTestService(time.Hour)
	ctx := context.Background()

	a, err := svc.Signup(ctx, "alice", "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if a.AgentToken == "" {
		t.Fatal("signup must issue an agent token")
	}
	if string(a.PasswordHash) == "s3cret" {
		t.Fatal("password must not be stored in the clear")
	}

	if _, err := svc.Signup(ctx, "alice", "", "other"); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("duplicate signup: expected ErrAccountExists, got %v", err)
	}

	tok, err := svc.Login(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	id, err := svc.ResolveSession(ctx, tok)
	if err != nil || id != a.ID {
		t.Fatalf("resolve session: id=%d err=%v", id, err)
	}

	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bad password: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "s3cret"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown user: expected ErrUnauthorized, got %v", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc := newTestService(time.Hour)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "bob", "", "pw"); err != nil {
		t.Fatal(err)
	}
	tok, err := svc.Login(ctx, "bob", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Logout(ctx, tok); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ResolveSession(ctx, tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	svc := newTestService(time.Millisecond)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "carol", "", "pw"); err != nil {
		t.Fatal(err)
	}
	tok, err := svc.Login(ctx, "carol", "pw")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := svc.ResolveSession(ctx, tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected expired session to be rejected, got %v", err)
	}
}

func TestResolveRequestPrefersAgentToken(t *testing.T) {
	svc := newTestService(time.Hour)
	ctx := context.Background()

	a, err := svc.Signup(ctx, "dave", "", "pw")
	if err != nil {
		t.Fatal(err)
	}
	sess, err := svc.Login(ctx, "dave", "pw")
	if err != nil {
		t.Fatal(err)
	}

	// только заголовок
	r := httptest.NewRequest(http.MethodPost, "/agent/heartbeat", nil)
	r.Header.Set(AgentTokenHeader, a.AgentToken)
	if id, err := svc.ResolveRequest(ctx, r); err != nil || id != a.ID {
		t.Fatalf("token auth: id=%d err=%v", id, err)
	}

	// только cookie
	r = httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: sess})
	if id, err := svc.ResolveRequest(ctx, r); err != nil || id != a.ID {
		t.Fatalf("cookie auth: id=%d err=%v", id, err)
	}

	// неизвестный токен не падает в cookie-ветку
	r = httptest.NewRequest(http.MethodPost, "/agent/heartbeat", nil)
	r.Header.Set(AgentTokenHeader, "bogus")
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: sess})
	if _, err := svc.ResolveRequest(ctx, r); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bogus token must win over valid cookie, got %v", err)
	}

	// ни того, ни другого
	r = httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	if _, err := svc.ResolveRequest(ctx, r); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous request: expected ErrUnauthorized, got %v", err)
	}
}

func TestPasswordHashRoundtrip(t *testing.T) {
	h1, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if string(h1) == string(h2) {
		t.Fatal("hashes must be salted")
	}
	if !VerifyPassword(h1, "correct horse") {
		t.Fatal("valid password rejected")
	}
	if VerifyPassword(h1, "battery staple") {
		t.Fatal("invalid password accepted")
	}
	if VerifyPassword([]byte("short"), "correct horse") {
		t.Fatal("truncated hash must not verify")
	}
}
