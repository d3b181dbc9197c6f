package site_test

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

	"github.com/gatehouse-app/gatehouse/internal/access"
	"github.com/gatehouse-app/gatehouse/internal/identity"
	"github.com/gatehouse-app/gatehouse/internal/pages"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/site"
	"github.com/gatehouse-app/gatehouse/internal/view"
	_ "github.com/gatehouse-app/gatehouse/testing"
)

func newHandler(t *testing.T) (*site.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	store := access.NewStore(nil, nil, time.Minute)
	guard := access.Guard{Store: store, Templates: templates}
	return site.NewHandler(nil, guard, templates, csrfManager), sessionManager
}

func siteRequest(t *testing.T, sm *shared.SessionManager, method, target string, form url.Values, id *identity.Identity) (*http.Request, *shared.Session) {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	if id != nil {
		ctx = identity.ContextWith(ctx, id)
	}
	return req.WithContext(ctx), sess
}

func TestHomeAnonymous(t *testing.T) {
	handler, sm := newHandler(t)

	req, _ := siteRequest(t, sm, http.MethodGet, pages.HomePath, nil, nil)
	res := httptest.NewRecorder()
	handler.Home(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "This page is public") {
		t.Fatal("expected anonymous greeting")
	}
	if !strings.Contains(body, "Log in") {
		t.Fatal("expected login control for anonymous visitors")
	}
}

func TestHomeAuthenticated(t *testing.T) {
	handler, sm := newHandler(t)

	id := &identity.Identity{Email: "dev@example.com", EmailVerified: true, Roles: []string{identity.RoleUsers}}
	req, _ := siteRequest(t, sm, http.MethodGet, pages.HomePath, nil, id)
	res := httptest.NewRecorder()
	handler.Home(res, req)

	body := res.Body.String()
	if !strings.Contains(body, "dev@example.com") {
		t.Fatal("expected email in greeting")
	}
	if !strings.Contains(body, "users") {
		t.Fatal("expected roles in greeting")
	}
}

func TestStateScenariosCounter(t *testing.T) {
	handler, sm := newHandler(t)
	id := &identity.Identity{Email: "dev@example.com", EmailVerified: true}

	req, sess := siteRequest(t, sm, http.MethodGet, pages.StateScenariosPath, nil, id)
	res := httptest.NewRecorder()
	handler.StateScenarios(res, req)
	if !strings.Contains(res.Body.String(), "<strong>0</strong>") {
		t.Fatal("expected counter to start at zero")
	}

	for i := 0; i < 2; i++ {
		form := url.Values{"action": {"increment"}}
		postReq := httptest.NewRequest(http.MethodPost, pages.StateScenariosPath, strings.NewReader(form.Encode()))
		postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		postCtx := shared.ContextWithSession(postReq.Context(), sess)
		postRes := httptest.NewRecorder()
		handler.StateScenariosSubmit(postRes, postReq.WithContext(postCtx))
		if postRes.Code != http.StatusSeeOther {
			t.Fatalf("expected redirect, got %d", postRes.Code)
		}
	}

	res = httptest.NewRecorder()
	handler.StateScenarios(res, req)
	if !strings.Contains(res.Body.String(), "<strong>2</strong>") {
		t.Fatalf("expected counter at two, body: %s", res.Body.String())
	}

	form := url.Values{"action": {"reset"}}
	postReq := httptest.NewRequest(http.MethodPost, pages.StateScenariosPath, strings.NewReader(form.Encode()))
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	postRes := httptest.NewRecorder()
	handler.StateScenariosSubmit(postRes, postReq.WithContext(shared.ContextWithSession(postReq.Context(), sess)))

	res = httptest.NewRecorder()
	handler.StateScenarios(res, req)
	if !strings.Contains(res.Body.String(), "<strong>0</strong>") {
		t.Fatal("expected counter reset to zero")
	}
}
