package flow

import "errors"

var (
	// ErrAlreadyInProgress rejects a re-entrant login attempt on a surface
	// whose flow is still non-terminal. Attempts are refused, never queued.
	ErrAlreadyInProgress = errors.New("login already in progress")

	// ErrProvider wraps a provider-reported authorization failure.
	ErrProvider = errors.New("provider authorization failed")

	// ErrExchange wraps a token exchange failure, including the platform's
	// provider-session-expired condition.
	ErrExchange = errors.New("token exchange failed")

	// ErrPersistence wraps a session persistence failure. A materialized but
	// unpersisted session is never exposed as active.
	ErrPersistence = errors.New("session persistence failed")

	// ErrTimeout ends a flow whose configured deadline passed.
	ErrTimeout = errors.New("login flow timed out")

	// ErrCancelled ends a flow on user-initiated abort.
	ErrCancelled = errors.New("login cancelled")

	// ErrNotSelectable rejects SelectProvider outside the selection state or
	// for a provider that was not offered.
	ErrNotSelectable = errors.New("provider cannot be selected in current state")
)

// UserMessage maps a terminal flow error to a human-readable message,
// distinct from raw protocol codes so hosts can show it directly.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrCancelled):
		return "Login was cancelled."
	case errors.Is(err, ErrTimeout):
		return "Login timed out. Please try again."
	case errors.Is(err, ErrProvider):
		return "We couldn't sign you in with the selected provider."
	case errors.Is(err, ErrExchange):
		return "Signing you in failed. Please try again."
	case errors.Is(err, ErrPersistence):
		return "Your login couldn't be saved on this device."
	default:
		return "Login failed. Please try again."
	}
}
