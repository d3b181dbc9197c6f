package identity

import (
	"strings"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// DefaultBaseURL is used for the roles claim namespace when no redirect
// base is configured, matching local development.
const DefaultBaseURL = "http://localhost:8080"

// RolesClaimNamespace derives the namespaced claim key carrying role
// assignments from the configured OAuth redirect URL. The identity
// provider's post-login action writes roles under this exact key.
func RolesClaimNamespace(redirectURL string) string {
	base := strings.TrimSuffix(redirectURL, "/auth/callback")
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/claims/roles"
}

// Resolver normalizes the session's stored identity payload into an
// Identity value. Any shape mismatch resolves to anonymous rather than
// an error.
type Resolver struct {
	rolesClaim string
}

// NewResolver constructs a Resolver with an explicit roles claim key.
func NewResolver(rolesClaim string) *Resolver {
	if rolesClaim == "" {
		rolesClaim = RolesClaimNamespace("")
	}
	return &Resolver{rolesClaim: rolesClaim}
}

// RolesClaim returns the configured claim key.
func (r *Resolver) RolesClaim() string {
	return r.rolesClaim
}

// Resolve returns the current identity, or nil when the session carries
// no logged-in user. It never fails: missing or malformed claims
// degrade to an empty role set, a missing email to anonymous.
func (r *Resolver) Resolve(sess *shared.Session) *Identity {
	if sess == nil {
		return nil
	}
	stored := sess.Identity()
	if stored == nil || stored.Email == "" {
		return nil
	}
	return &Identity{
		Email:         stored.Email,
		EmailVerified: stored.EmailVerified,
		Roles:         r.extractRoles(stored.Claims),
	}
}

func (r *Resolver) extractRoles(claims map[string]any) []string {
	if claims == nil {
		return nil
	}
	raw, ok := claims[r.rolesClaim]
	if !ok {
		return nil
	}
	switch values := raw.(type) {
	case []string:
		return append([]string(nil), values...)
	case []any:
		roles := make([]string, 0, len(values))
		for _, v := range values {
			if s, ok := v.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
		return roles
	default:
		return nil
	}
}
