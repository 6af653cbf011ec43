package session

import "errors"

var (
	// ErrInvalidSession is returned by SetSession for a session failing the
	// full-validity invariant.
	ErrInvalidSession = errors.New("session is missing required fields or expired")

	// ErrLoadCorrupted is returned when a stored session blob cannot be
	// decoded into a fully valid Session. Deliberately distinct from "no
	// session" so storage corruption is never masked as a logout.
	ErrLoadCorrupted = errors.New("stored session is corrupted")
)

// Invalidation reasons reported to observers.
const (
	ReasonExpired = "expired"
	ReasonRevoked = "revoked"
	ReasonLogout  = "logout"
)
