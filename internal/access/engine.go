package access

import (
	"fmt"
	"strings"

	"github.com/gatehouse-app/gatehouse/internal/identity"
)

// CanAccess decides whether id may open the page at path under doc. It
// is deterministic, total and performs no I/O. Evaluation order, first
// match wins:
//
//  1. an explicit public rule allows everyone, anonymous included
//  2. anonymous callers are denied everything else
//  3. an authenticated rule allows any logged-in identity
//  4. an unspecified rule defers to the document default; only a deny
//     default rejects an authenticated identity
//  5. a role-restricted rule requires at least one matching role; an
//     empty role list is equivalent to authenticated
func CanAccess(path string, id *identity.Identity, doc Document) bool {
	rule := doc.Rule(path)

	if rule.Kind == RulePublic {
		return true
	}
	if id == nil {
		return false
	}
	switch rule.Kind {
	case RuleAuthenticated:
		return true
	case RuleUnspecified:
		return doc.DefaultAccess != DefaultDeny
	case RuleRoleRestricted:
		if len(rule.Roles) == 0 {
			return true
		}
		return id.HasAnyRole(rule.Roles)
	default:
		return false
	}
}

// Decision is the outcome of the page guard. NeedsVerification is an
// independent second gate: access was granted, but the identity's email
// is unverified and the page's rule is not explicitly public.
type Decision struct {
	Granted           bool
	NeedsVerification bool
	Reason            string
}

// Check layers the guard semantics over CanAccess. Callers branch on
// the returned Decision; nothing here halts execution.
func Check(path string, id *identity.Identity, doc Document) Decision {
	if !CanAccess(path, id, doc) {
		return Decision{Granted: false, Reason: denialReason(id)}
	}
	d := Decision{Granted: true}
	if id != nil && !id.EmailVerified && doc.Rule(path).Kind != RulePublic {
		d.NeedsVerification = true
	}
	return d
}

func denialReason(id *identity.Identity) string {
	if id == nil {
		return "Authentication: Not Authenticated. Your roles: None."
	}
	roles := "None"
	if len(id.Roles) > 0 {
		roles = strings.Join(id.Roles, ", ")
	}
	return fmt.Sprintf("Authentication: Authenticated. Your roles: %s.", roles)
}
