// Package provider defines the login-provider capability contract and the
// registry that maps stable provider identifiers to implementations. A
// provider performs external authorization (web flow, native SDK, or browser
// redirect) and yields a normalized result the token exchange consumes.
package provider

import (
	"context"
	"time"
)

// Result is the normalized outcome of a successful external authorization.
type Result struct {
	ProviderID     string
	ExternalToken  string     // Token issued by the external identity source
	ExternalUserID string     // The user's identifier at that source
	GrantedScopes  []string   // Scopes the user actually granted
	ExpiresAt      *time.Time // nil when the external grant does not expire
}

// Provider is one login mechanism. BeginAuthorization blocks until the
// external interaction completes, honouring ctx cancellation; Cancel aborts
// any in-flight authorization from another goroutine. Once cancelled, a
// provider must stop producing side effects.
type Provider interface {
	ID() string
	BeginAuthorization(ctx context.Context) (Result, error)
	Cancel()
}
