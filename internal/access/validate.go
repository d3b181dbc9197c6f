package access

import (
	"fmt"

	"github.com/gatehouse-app/gatehouse/internal/identity"
	"github.com/gatehouse-app/gatehouse/internal/pages"
)

// ValidateDocument enforces the invariants an edited document must hold
// before it may be saved. All violations are collected and returned
// together, never just the first:
//
//   - the default landing page must remain publicly accessible
//   - the user admin page must never be public and must stay reachable
//     by the admin role
func ValidateDocument(doc Document) []error {
	var errs []error

	landing := pages.DefaultLanding()
	if doc.Rule(landing.Path).Kind != RulePublic {
		errs = append(errs, fmt.Errorf("%s page must remain public", landing.Title))
	}

	if admin, ok := pages.Find(pages.UserAdminPath); ok {
		rule := doc.Rule(admin.Path)
		if rule.Kind == RulePublic {
			errs = append(errs, fmt.Errorf("%s page cannot be made public", admin.Title))
		} else if rule.Kind != RuleRoleRestricted || !containsRole(rule.Roles, identity.RoleAdmin) {
			errs = append(errs, fmt.Errorf("%s page must be accessible by the %q role", admin.Title, identity.RoleAdmin))
		}
	}

	return errs
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
