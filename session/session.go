// Package session owns the authenticated-identity grant: the Session value,
// its persistence through a securestore.Store, and change notification to
// observers.
package session

import "time"

// Session is an authenticated identity grant issued by the platform after a
// successful token exchange. Token and SignatureSecret are opaque secrets and
// are never logged.
type Session struct {
	UserID          string     // Platform user identifier
	Token           string     // Credential presented on API calls
	SignatureSecret string     // Key used to sign outgoing requests
	ProviderID      string     // Login provider that produced the session
	IssuedAt        time.Time  // When the grant was materialized
	ExpiresAt       *time.Time // nil for non-expiring sessions
}

// Valid reports whether the session carries every required field and has not
// expired. A Session that fails Valid is never persisted or exposed.
func (s Session) Valid() bool {
	return s.ValidAt(time.Now())
}

// ValidAt is Valid against an explicit clock.
func (s Session) ValidAt(now time.Time) bool {
	if s.UserID == "" || s.Token == "" || s.SignatureSecret == "" {
		return false
	}
	if s.IssuedAt.IsZero() {
		return false
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return false
	}
	return true
}
