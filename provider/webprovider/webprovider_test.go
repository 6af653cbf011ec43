package webprovider_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/denis-mitin/go-identity-sdk/provider"
	"github.com/denis-mitin/go-identity-sdk/provider/webprovider"
)

// fakeSurface scripts the web view: it records the presented URL and answers
// with canned redirect values, or blocks until cancelled.
type fakeSurface struct {
	values url.Values
	err    error
	block  bool

	mu        sync.Mutex
	loginURL  string
	dismissed int
}

func (f *fakeSurface) Present(ctx context.Context, loginURL string) (url.Values, error) {
	f.mu.Lock()
	f.loginURL = loginURL
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.values, f.err
}

func (f *fakeSurface) Dismiss() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed++
}

func loginToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return token
}

func TestLoginURLTargetsHostedLoginPage(t *testing.T) {
	surface := &fakeSurface{values: url.Values{"access_token": {"tok"}}}
	p := webprovider.New(surface, "api-key-1", "us1.gigya.com")

	_, err := p.BeginAuthorization(context.Background())
	require.NoError(t, err)

	parsed, err := url.Parse(surface.loginURL)
	require.NoError(t, err)
	require.Equal(t, "https", parsed.Scheme)
	require.Equal(t, "accounts.us1.gigya.com", parsed.Host)
	require.Equal(t, "/login.mobile", parsed.Path)
	require.Equal(t, "api-key-1", parsed.Query().Get("apiKey"))
	require.Equal(t, "token", parsed.Query().Get("response_type"))
	require.Equal(t, "gsapi://login_result", parsed.Query().Get("redirect_uri"))
}

func TestRedirectIsNormalizedIntoResult(t *testing.T) {
	surface := &fakeSurface{values: url.Values{
		"access_token":   {"tok-abc"},
		"granted_scopes": {"profile,email"},
		"expires_in":     {"3600"},
		"login_token":    {loginToken(t, "ext-user-1")},
	}}
	p := webprovider.New(surface, "api-key-1", "us1.gigya.com")

	res, err := p.BeginAuthorization(context.Background())
	require.NoError(t, err)
	require.Equal(t, "site", res.ProviderID)
	require.Equal(t, "tok-abc", res.ExternalToken)
	require.Equal(t, "ext-user-1", res.ExternalUserID)
	require.Equal(t, []string{"profile", "email"}, res.GrantedScopes)
	require.NotNil(t, res.ExpiresAt)
	require.WithinDuration(t, time.Now().Add(time.Hour), *res.ExpiresAt, 5*time.Second)
}

func TestUserBackingOutIsCancellation(t *testing.T) {
	surface := &fakeSurface{values: url.Values{"canceled": {"1"}}}
	p := webprovider.New(surface, "api-key-1", "us1.gigya.com")

	_, err := p.BeginAuthorization(context.Background())
	require.ErrorIs(t, err, provider.ErrCancelled)
}

func TestLoginPageErrorIsSurfaced(t *testing.T) {
	surface := &fakeSurface{values: url.Values{
		"error":             {"invalid_request"},
		"error_description": {"bad api key"},
	}}
	p := webprovider.New(surface, "api-key-1", "us1.gigya.com")

	_, err := p.BeginAuthorization(context.Background())
	require.ErrorContains(t, err, "invalid_request")
}

func TestRedirectWithoutTokenIsRejected(t *testing.T) {
	surface := &fakeSurface{values: url.Values{}}
	p := webprovider.New(surface, "api-key-1", "us1.gigya.com")

	_, err := p.BeginAuthorization(context.Background())
	require.Error(t, err)
}

func TestCancelAbortsPresentationAndDismisses(t *testing.T) {
	surface := &fakeSurface{block: true}
	p := webprovider.New(surface, "api-key-1", "us1.gigya.com", webprovider.WithID("web"))
	require.Equal(t, "web", p.ID())

	errc := make(chan error, 1)
	go func() {
		_, err := p.BeginAuthorization(context.Background())
		errc <- err
	}()

	require.Eventually(t, func() bool {
		surface.mu.Lock()
		defer surface.mu.Unlock()
		return surface.loginURL != ""
	}, 2*time.Second, 5*time.Millisecond)

	p.Cancel()
	require.ErrorIs(t, <-errc, provider.ErrCancelled)

	surface.mu.Lock()
	defer surface.mu.Unlock()
	require.Equal(t, 1, surface.dismissed)
}
