package access_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-app/gatehouse/internal/access"
	"github.com/gatehouse-app/gatehouse/internal/identity"
	"github.com/gatehouse-app/gatehouse/internal/pages"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/view"
	_ "github.com/gatehouse-app/gatehouse/testing"
)

const rolesClaim = "http://localhost:8080/claims/roles"

func newGuard(t *testing.T) (access.Guard, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	guard := access.Guard{
		Store:     access.NewStore(nil, nil, time.Minute),
		Resolver:  identity.NewResolver(rolesClaim),
		Templates: templates,
		CSRF:      shared.NewCSRFManager("csrfsecret"),
	}
	return guard, sessionManager
}

func guardedRequest(t *testing.T, sm *shared.SessionManager, target string, stored *shared.StoredIdentity) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if stored != nil {
		sess.SetIdentity(*stored)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestGuardDeniesAnonymous(t *testing.T) {
	guard, sm := newGuard(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run on denial")
	})
	req := guardedRequest(t, sm, pages.UserAdminPath, nil)
	res := httptest.NewRecorder()
	guard.Require(pages.UserAdminPath)(next).ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "permission to access this page") {
		t.Fatal("expected denial page")
	}
	if !strings.Contains(body, "Not Authenticated") {
		t.Fatal("expected anonymous reason")
	}
}

func TestGuardDeniesMissingRole(t *testing.T) {
	guard, sm := newGuard(t)

	stored := &shared.StoredIdentity{
		Email:         "user@example.com",
		EmailVerified: true,
		Claims:        map[string]any{rolesClaim: []string{identity.RoleUsers}},
	}
	req := guardedRequest(t, sm, pages.UserAdminPath, stored)
	res := httptest.NewRecorder()
	guard.Require(pages.UserAdminPath)(http.NewServeMux()).ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Your roles: users") {
		t.Fatalf("expected role listing in denial, body: %s", res.Body.String())
	}
}

func TestGuardDenialPageCarriesCSRFToken(t *testing.T) {
	guard, sm := newGuard(t)

	stored := &shared.StoredIdentity{
		Email:         "user@example.com",
		EmailVerified: true,
		Claims:        map[string]any{rolesClaim: []string{identity.RoleUsers}},
	}
	req := httptest.NewRequest(http.MethodGet, pages.UserAdminPath, nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.SetIdentity(*stored)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	guard.Require(pages.UserAdminPath)(http.NewServeMux()).ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	token := sess.Get(shared.CSRFSessionKey)
	if token == "" {
		t.Fatal("expected a csrf token issued for the blocked page")
	}
	if !strings.Contains(res.Body.String(), `name="csrf_token" value="`+token+`"`) {
		t.Fatal("expected the logout form to carry the session csrf token")
	}
	if err := guard.CSRF.VerifyToken(req.Context(), sess, token); err != nil {
		t.Fatalf("rendered token must verify: %v", err)
	}
}

func TestGuardPassesAdminWithContext(t *testing.T) {
	guard, sm := newGuard(t)

	var gotIdentity *identity.Identity
	var gotDoc access.Document
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = identity.FromContext(r.Context())
		gotDoc, _ = guard.DocumentFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	stored := &shared.StoredIdentity{
		Email:         "admin@example.com",
		EmailVerified: true,
		Claims:        map[string]any{rolesClaim: []string{identity.RoleAdmin}},
	}
	req := guardedRequest(t, sm, pages.UserAdminPath, stored)
	res := httptest.NewRecorder()
	guard.Require(pages.UserAdminPath)(next).ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if gotIdentity == nil || gotIdentity.Email != "admin@example.com" {
		t.Fatalf("expected identity in context, got %+v", gotIdentity)
	}
	if gotDoc.Rule(pages.UserAdminPath).Kind != access.RuleRoleRestricted {
		t.Fatal("expected loaded document in context")
	}
}

func TestGuardRequiresVerifiedEmail(t *testing.T) {
	guard, sm := newGuard(t)

	stored := &shared.StoredIdentity{
		Email:         "new@example.com",
		EmailVerified: false,
		Claims:        map[string]any{rolesClaim: []string{identity.RoleUsers}},
	}
	req := guardedRequest(t, sm, pages.StateScenariosPath, stored)
	res := httptest.NewRecorder()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run before verification")
	})
	guard.Require(pages.StateScenariosPath)(next).ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "verify your email") {
		t.Fatal("expected verification page")
	}
	if !strings.Contains(body, "new@example.com") {
		t.Fatal("expected the unverified address on the page")
	}
}

func TestGuardAllowsPublicPageAnonymously(t *testing.T) {
	guard, sm := newGuard(t)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if identity.FromContext(r.Context()) != nil {
			t.Fatal("anonymous request should carry no identity")
		}
	})
	req := guardedRequest(t, sm, pages.HomePath, nil)
	res := httptest.NewRecorder()
	guard.Require(pages.HomePath)(next).ServeHTTP(res, req)

	if !called {
		t.Fatal("public page must pass anonymous requests through")
	}
}
