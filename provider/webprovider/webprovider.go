// Package webprovider implements the first-party web login flow: the host
// presents a hosted login page in an embedded web view and hands back the
// redirect parameters the page terminates with.
package webprovider

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/denis-mitin/go-identity-sdk/provider"
)

// DefaultProviderID identifies the first-party web flow in the registry.
const DefaultProviderID = "site"

// redirectScheme terminates the hosted login page.
const redirectScheme = "gsapi"

// Surface is the embedded web view boundary. Present blocks until the login
// page redirects to the terminating scheme and returns the redirect's query
// parameters; Dismiss tears the view down early.
type Surface interface {
	Present(ctx context.Context, loginURL string) (url.Values, error)
	Dismiss()
}

var _ provider.Provider = (*Provider)(nil)

// Provider drives the first-party web login flow.
type Provider struct {
	id      string
	apiKey  string
	domain  string
	surface Surface

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Option configures a Provider.
type Option func(*Provider)

// WithID overrides the registry identifier.
func WithID(id string) Option {
	return func(p *Provider) { p.id = id }
}

// New creates the web flow provider. domain is the identity platform's API
// domain (for example "us1.gigya.com").
func New(surface Surface, apiKey, domain string, options ...Option) *Provider {
	p := &Provider{
		id:      DefaultProviderID,
		apiKey:  apiKey,
		domain:  domain,
		surface: surface,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *Provider) ID() string { return p.id }

// BeginAuthorization presents the hosted login page and normalizes the
// redirect it terminates with.
func (p *Provider) BeginAuthorization(ctx context.Context) (provider.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
	}()

	values, err := p.surface.Present(ctx, p.loginURL())
	if err != nil {
		if ctx.Err() != nil {
			return provider.Result{}, provider.ErrCancelled
		}
		return provider.Result{}, errors.Wrap(err, "webprovider: present login page")
	}
	return p.parseRedirect(values)
}

// Cancel aborts an in-flight authorization and dismisses the web view.
func (p *Provider) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.surface.Dismiss()
}

func (p *Provider) loginURL() string {
	q := url.Values{}
	q.Set("apiKey", p.apiKey)
	q.Set("response_type", "token")
	q.Set("redirect_uri", redirectScheme+"://login_result")
	u := url.URL{
		Scheme:   "https",
		Host:     "accounts." + p.domain,
		Path:     "/login.mobile",
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (p *Provider) parseRedirect(values url.Values) (provider.Result, error) {
	if values.Get("canceled") == "1" {
		return provider.Result{}, provider.ErrCancelled
	}
	if errCode := values.Get("error"); errCode != "" {
		return provider.Result{}, errors.Errorf("webprovider: login page error %s: %s",
			errCode, values.Get("error_description"))
	}

	token := values.Get("access_token")
	if token == "" {
		return provider.Result{}, errors.New("webprovider: redirect missing access_token")
	}

	res := provider.Result{
		ProviderID:    p.id,
		ExternalToken: token,
	}
	if scopes := values.Get("granted_scopes"); scopes != "" {
		res.GrantedScopes = strings.Split(scopes, ",")
	}
	if expiresIn := values.Get("expires_in"); expiresIn != "" {
		if secs, err := strconv.ParseInt(expiresIn, 10, 64); err == nil && secs > 0 {
			exp := time.Now().Add(time.Duration(secs) * time.Second)
			res.ExpiresAt = &exp
		}
	}

	// The login token is a JWT whose subject identifies the user. Signature
	// verification happens platform-side during the token exchange; here the
	// claims are only informational.
	if loginToken := values.Get("login_token"); loginToken != "" {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(loginToken, claims); err == nil {
			if sub, err := claims.GetSubject(); err == nil {
				res.ExternalUserID = sub
			}
		}
	}
	return res, nil
}
