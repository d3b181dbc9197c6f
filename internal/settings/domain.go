// Package settings persists application-wide configuration values as
// key/value rows in the app_settings table.
package settings

import "time"

// Setting is one app_settings row. Value is an opaque serialized
// payload owned by the subsystem that writes the key.
type Setting struct {
	ID          int64
	Key         string
	Value       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
