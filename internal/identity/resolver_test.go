package identity

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-app/gatehouse/internal/shared"
	_ "github.com/gatehouse-app/gatehouse/testing"
)

func newSession(t *testing.T) *shared.Session {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest("GET", "/", nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess
}

func TestRolesClaimNamespace(t *testing.T) {
	cases := []struct {
		redirect string
		want     string
	}{
		{"https://app.example.com/auth/callback", "https://app.example.com/claims/roles"},
		{"https://app.example.com/", "https://app.example.com/claims/roles"},
		{"", "http://localhost:8080/claims/roles"},
	}
	for _, tc := range cases {
		if got := RolesClaimNamespace(tc.redirect); got != tc.want {
			t.Fatalf("RolesClaimNamespace(%q) = %q, want %q", tc.redirect, got, tc.want)
		}
	}
}

func TestResolveAnonymous(t *testing.T) {
	resolver := NewResolver("https://app.example.com/claims/roles")

	if id := resolver.Resolve(nil); id != nil {
		t.Fatalf("expected nil identity for nil session, got %+v", id)
	}

	sess := newSession(t)
	if id := resolver.Resolve(sess); id != nil {
		t.Fatalf("expected nil identity for empty session, got %+v", id)
	}

	// An identity payload without an email fails closed.
	sess.SetIdentity(shared.StoredIdentity{Subject: "auth0|123"})
	if id := resolver.Resolve(sess); id != nil {
		t.Fatalf("expected nil identity without email, got %+v", id)
	}
}

func TestResolveRolesClaim(t *testing.T) {
	const claim = "https://app.example.com/claims/roles"
	resolver := NewResolver(claim)

	sess := newSession(t)
	sess.SetIdentity(shared.StoredIdentity{
		Email:         "ops@example.com",
		EmailVerified: true,
		Claims: map[string]any{
			claim: []any{"admin", "users"},
		},
	})

	id := resolver.Resolve(sess)
	if id == nil {
		t.Fatal("expected identity")
	}
	if id.Email != "ops@example.com" || !id.EmailVerified {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if !id.HasRole(RoleAdmin) || !id.HasRole(RoleUsers) {
		t.Fatalf("expected both roles, got %v", id.Roles)
	}
}

func TestResolveMissingOrMalformedClaim(t *testing.T) {
	const claim = "https://app.example.com/claims/roles"
	resolver := NewResolver(claim)

	sess := newSession(t)
	sess.SetIdentity(shared.StoredIdentity{Email: "user@example.com"})
	if id := resolver.Resolve(sess); id == nil || len(id.Roles) != 0 {
		t.Fatalf("expected empty roles for absent claim, got %+v", id)
	}

	sess.SetIdentity(shared.StoredIdentity{
		Email:  "user@example.com",
		Claims: map[string]any{claim: "admin"},
	})
	if id := resolver.Resolve(sess); id == nil || len(id.Roles) != 0 {
		t.Fatalf("expected empty roles for malformed claim, got %+v", id)
	}
}

func TestHasAnyRole(t *testing.T) {
	id := &Identity{Email: "a@b.c", Roles: []string{"users"}}
	if !id.HasAnyRole([]string{"admin", "users"}) {
		t.Fatal("expected match on users")
	}
	if id.HasAnyRole([]string{"admin"}) {
		t.Fatal("did not expect admin")
	}
	var anon *Identity
	if anon.HasAnyRole([]string{"admin"}) {
		t.Fatal("nil identity must not match")
	}
}
