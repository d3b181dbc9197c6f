package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-app/gatehouse/internal/auth"
	"github.com/gatehouse-app/gatehouse/internal/identity"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/view"
	_ "github.com/gatehouse-app/gatehouse/testing"
)

const rolesClaim = "http://localhost:8080/claims/roles"

func newHandler(t *testing.T, devPassword string) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(devPassword), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	service := auth.NewService(nil, "dev@example.com", string(hashed), rolesClaim)
	handler := auth.NewHandler(nil, nil, service, templates, sessionManager, csrfManager)
	return handler, sessionManager
}

func sessionRequest(t *testing.T, sm *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	return req.WithContext(ctx), sess
}

func TestLoginPageOffersDevFallback(t *testing.T) {
	handler, sm := newHandler(t, "correct-horse")

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req, _ = sessionRequest(t, sm, req)

	res := httptest.NewRecorder()
	handler.ShowLoginForTest(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "/auth/dev-login") {
		t.Fatalf("expected dev login form without OIDC configured")
	}
}

func TestDevLoginInvalidCredentials(t *testing.T) {
	handler, sm := newHandler(t, "correct-horse")

	form := url.Values{"email": {"dev@example.com"}, "password": {"wrong-password"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/dev-login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req, _ = sessionRequest(t, sm, req)

	res := httptest.NewRecorder()
	handler.HandleDevLoginForTest(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid email or password") {
		t.Fatalf("expected credential error in body")
	}
}

func TestDevLoginGrantsAdminIdentity(t *testing.T) {
	handler, sm := newHandler(t, "correct-horse")

	form := url.Values{"email": {"dev@example.com"}, "password": {"correct-horse"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/dev-login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req, sess := sessionRequest(t, sm, req)

	res := httptest.NewRecorder()
	handler.HandleDevLoginForTest(res, req)

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", res.Code)
	}
	resolver := identity.NewResolver(rolesClaim)
	id := resolver.Resolve(sess)
	if id == nil {
		t.Fatal("expected logged-in identity in session")
	}
	if !id.HasRole(identity.RoleAdmin) {
		t.Fatalf("expected admin role, got %v", id.Roles)
	}
	if !id.EmailVerified {
		t.Fatal("dev identity should be verified")
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	handler, sm := newHandler(t, "correct-horse")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req, sess := sessionRequest(t, sm, req)
	sess.SetIdentity(shared.StoredIdentity{Email: "dev@example.com"})

	res := httptest.NewRecorder()
	handler.HandleLogoutForTest(res, req)

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", res.Code)
	}
	if err := sm.Commit(context.Background(), res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	var cleared bool
	for _, c := range res.Result().Cookies() {
		if c.Name == sm.CookieName() && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected session cookie to be cleared")
	}
}
