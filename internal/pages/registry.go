// Package pages holds the static registry of every page the
// application can expose. Both the navigation and the admin console's
// access table are keyed by this one list.
package pages

// Page describes a single navigable page.
type Page struct {
	Path    string
	Title   string
	Icon    string
	Default bool
}

// Well-known paths referenced by access validation.
const (
	HomePath           = "/"
	StateScenariosPath = "/state-scenarios"
	UserAdminPath      = "/user-admin"
)

var registry = []Page{
	{Path: HomePath, Title: "Home", Icon: "🏠", Default: true},
	{Path: StateScenariosPath, Title: "State Scenarios", Icon: "🔁"},
	{Path: UserAdminPath, Title: "User Admin", Icon: "🔐"},
}

// All returns every registered page in navigation order.
func All() []Page {
	out := make([]Page, len(registry))
	copy(out, registry)
	return out
}

// Find returns the page registered under path.
func Find(path string) (Page, bool) {
	for _, p := range registry {
		if p.Path == path {
			return p, true
		}
	}
	return Page{}, false
}

// DefaultLanding returns the page marked as the default landing page.
// The registry always carries exactly one.
func DefaultLanding() Page {
	for _, p := range registry {
		if p.Default {
			return p
		}
	}
	return registry[0]
}
