// Package users keeps a local mirror of the identity provider's user
// directory. The mirror is refreshed by a background sync job so that
// reporting and auditing keep working when the provider is unreachable.
package users

import "time"

// User is one mirrored directory entry.
type User struct {
	ExternalID    string
	Email         string
	Name          string
	EmailVerified bool
	Invited       bool
	Roles         []string
	LastLogin     *time.Time
	SyncedAt      time.Time
}
