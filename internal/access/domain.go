// Package access implements page-level role-based access control: the
// policy document, the decision engine, its persisted store, and the
// navigation filter built on top of them.
package access

import (
	"encoding/json"

	"github.com/gatehouse-app/gatehouse/internal/identity"
	"github.com/gatehouse-app/gatehouse/internal/pages"
)

// SettingKey is the app_settings row holding the serialized document.
const SettingKey = "page_access"

// SettingDescription annotates the app_settings row.
const SettingDescription = "Page access control configuration"

// DefaultAccess is the fallback applied to pages without an explicit rule.
type DefaultAccess string

// Default access levels.
const (
	DefaultPublic        DefaultAccess = "public"
	DefaultAuthenticated DefaultAccess = "authenticated"
	DefaultDeny          DefaultAccess = "deny"
)

// Valid reports whether the value is a known default access level.
func (d DefaultAccess) Valid() bool {
	switch d {
	case DefaultPublic, DefaultAuthenticated, DefaultDeny:
		return true
	}
	return false
}

// RuleKind enumerates the access rule variants.
type RuleKind int

// Rule variants, from least to most restrictive.
const (
	RuleUnspecified RuleKind = iota
	RulePublic
	RuleAuthenticated
	RuleRoleRestricted
)

// Rule is the access rule for a single page. A RuleRoleRestricted rule
// with an empty role list behaves exactly like RuleAuthenticated.
type Rule struct {
	Kind  RuleKind
	Roles []string
}

// Convenience constructors.

func Public() Rule        { return Rule{Kind: RulePublic} }
func Authenticated() Rule { return Rule{Kind: RuleAuthenticated} }
func Unspecified() Rule   { return Rule{Kind: RuleUnspecified} }

func RoleRestricted(roles ...string) Rule {
	return Rule{Kind: RuleRoleRestricted, Roles: roles}
}

type ruleJSON struct {
	Access string    `json:"access,omitempty"`
	Roles  *[]string `json:"roles,omitempty"`
}

// MarshalJSON renders the rule in the persisted wire shape:
// {"access":"public"}, {"access":"authenticated"}, {"roles":[...]} or
// {} for an unspecified rule.
func (r Rule) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RulePublic:
		return json.Marshal(ruleJSON{Access: "public"})
	case RuleAuthenticated:
		return json.Marshal(ruleJSON{Access: "authenticated"})
	case RuleRoleRestricted:
		roles := r.Roles
		if roles == nil {
			roles = []string{}
		}
		return json.Marshal(ruleJSON{Roles: &roles})
	default:
		return []byte("{}"), nil
	}
}

// UnmarshalJSON accepts the persisted wire shape. Unknown access values
// degrade to an unspecified rule rather than failing the whole document.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Access == "public":
		*r = Public()
	case raw.Access == "authenticated":
		*r = Authenticated()
	case raw.Roles != nil:
		*r = RoleRestricted(*raw.Roles...)
	default:
		*r = Unspecified()
	}
	return nil
}

// Document is the whole page-access configuration. Saves always replace
// the entire document; there is no partial update.
type Document struct {
	Version       string          `json:"version"`
	DefaultAccess DefaultAccess   `json:"default_access"`
	Pages         map[string]Rule `json:"pages"`
}

// Rule returns the rule configured for path. Paths absent from the
// document, including stale entries for pages that no longer exist,
// resolve to an unspecified rule.
func (d Document) Rule(path string) Rule {
	if d.Pages == nil {
		return Unspecified()
	}
	return d.Pages[path]
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := Document{Version: d.Version, DefaultAccess: d.DefaultAccess}
	if d.Pages != nil {
		out.Pages = make(map[string]Rule, len(d.Pages))
		for k, v := range d.Pages {
			rule := v
			if v.Roles != nil {
				rule.Roles = append([]string(nil), v.Roles...)
			}
			out.Pages[k] = rule
		}
	}
	return out
}

// DefaultDocument is the hard-coded minimal configuration used until an
// administrator saves one: public landing page, admin-only user admin,
// everything else deferring to the authenticated default.
func DefaultDocument() Document {
	return Document{
		Version:       "1.0",
		DefaultAccess: DefaultAuthenticated,
		Pages: map[string]Rule{
			pages.HomePath:           Public(),
			pages.StateScenariosPath: Authenticated(),
			pages.UserAdminPath:      RoleRestricted(identity.RoleAdmin),
		},
	}
}
