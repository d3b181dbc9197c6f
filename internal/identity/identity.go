package identity

// Role names known to the application. The admin console renders one
// toggle per entry, in this order.
const (
	RoleAdmin = "admin"
	RoleUsers = "users"
)

// AvailableRoles lists every role the identity provider may assert.
func AvailableRoles() []string {
	return []string{RoleAdmin, RoleUsers}
}

// Identity is the normalized authenticated user for one request. It is
// rebuilt from the session on every render and never persisted.
type Identity struct {
	Email         string
	EmailVerified bool
	Roles         []string
}

// HasRole reports whether the identity holds the named role.
func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity holds at least one of the
// given roles.
func (id *Identity) HasAnyRole(roles []string) bool {
	if id == nil {
		return false
	}
	for _, r := range roles {
		if id.HasRole(r) {
			return true
		}
	}
	return false
}
