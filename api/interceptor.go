package api

import (
	"context"

	"github.com/denis-mitin/go-identity-sdk/provider"
	"github.com/denis-mitin/go-identity-sdk/session"
)

var _ Client = (*Interceptor)(nil)

// Interceptor wraps a Client and watches every response for a
// platform-reported session invalidation. Each detection invokes
// session.Manager.Invalidate exactly once with the mapped reason; the error
// still propagates to the caller unchanged.
type Interceptor struct {
	next     Client
	sessions *session.Manager
}

// NewInterceptor wraps next with invalidation detection.
func NewInterceptor(next Client, sessions *session.Manager) *Interceptor {
	return &Interceptor{next: next, sessions: sessions}
}

func (i *Interceptor) Exchange(ctx context.Context, res provider.Result) (*session.Session, error) {
	s, err := i.next.Exchange(ctx, res)
	i.inspect(ctx, err)
	return s, err
}

func (i *Interceptor) Send(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	result, err := i.next.Send(ctx, method, params)
	i.inspect(ctx, err)
	return result, err
}

func (i *Interceptor) SendOAuth(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	result, err := i.next.SendOAuth(ctx, method, params)
	i.inspect(ctx, err)
	return result, err
}

func (i *Interceptor) inspect(ctx context.Context, err error) {
	if err == nil || !IsSessionInvalidation(err) {
		return
	}
	reason := session.ReasonRevoked
	if Code(err) == CodeInvalidSessionToken {
		reason = session.ReasonExpired
	}
	i.sessions.Invalidate(ctx, reason)
}
