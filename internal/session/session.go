package session

import "time"

// Session is the authenticated standing of one client: identity, role and
// restriction claims, the upstream bearer credential, and activity timestamps.
type Session struct {
	// ID is the token identifier (jti). Invalidation is keyed on it.
	ID string
	// UserID is the opaque account identifier (subject).
	UserID string
	Email  string
	Name   string
	// Admin grants access to the admin surface.
	Admin bool
	// Restricted confines the session to a small public allowlist.
	Restricted bool
	// APIToken is the opaque bearer credential forwarded to the resource APIs.
	APIToken string

	IssuedAt     time.Time
	LastActivity time.Time
}
