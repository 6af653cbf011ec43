// Package api is the network boundary to the identity platform: the token
// exchange that turns a provider result into platform credentials, and the
// signed request relay used by the web bridge. The wire format beyond these
// calls is not this package's concern.
package api

import (
	"context"

	"github.com/denis-mitin/go-identity-sdk/provider"
	"github.com/denis-mitin/go-identity-sdk/session"
)

// Client is the platform call surface. All calls are context-bound; transient
// failures surface as ErrBackendUnavailable and Exchange is idempotent-safe
// to retry on them.
type Client interface {
	// Exchange converts an external authorization result into platform
	// credentials. A remote "provider session expired" condition surfaces as
	// a typed *Error with CodeProviderSessionExpired.
	Exchange(ctx context.Context, res provider.Result) (*session.Session, error)

	// Send relays an API call signed with the active session's signature
	// secret.
	Send(ctx context.Context, method string, params map[string]any) (map[string]any, error)

	// SendOAuth relays an API call authenticated by the bare session token,
	// without request signing.
	SendOAuth(ctx context.Context, method string, params map[string]any) (map[string]any, error)
}
