// Package redirectprovider implements the browser-redirect login flow on the
// standard OAuth2 authorization-code grant with OIDC ID-token verification.
// The host supplies the browser boundary; this package owns state and nonce
// handling, the code exchange, and claim validation.
package redirectprovider

import (
	"context"
	"net/url"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/denis-mitin/go-identity-sdk/provider"
)

// Opener is the system browser boundary. Open launches the authorization URL
// and blocks until the external user agent redirects back, returning the
// redirect's query parameters.
type Opener interface {
	Open(ctx context.Context, authURL string) (url.Values, error)
}

var _ provider.Provider = (*Provider)(nil)

// Provider drives one OAuth2/OIDC identity source through the system browser.
type Provider struct {
	id       string
	cfg      oauth2.Config
	verifier *oidc.IDTokenVerifier
	opener   Opener

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a redirect provider. verifier must be configured for cfg's
// client ID; id is the registry identifier (for example "googleplus").
func New(id string, cfg oauth2.Config, verifier *oidc.IDTokenVerifier, opener Opener) *Provider {
	return &Provider{id: id, cfg: cfg, verifier: verifier, opener: opener}
}

func (p *Provider) ID() string { return p.id }

// BeginAuthorization launches the browser flow and exchanges the returned
// authorization code, verifying the ID token's signature and nonce.
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

	state := uuid.NewString()
	nonce := uuid.NewString()
	authURL := p.cfg.AuthCodeURL(state, oidc.Nonce(nonce))

	values, err := p.opener.Open(ctx, authURL)
	if err != nil {
		if ctx.Err() != nil {
			return provider.Result{}, provider.ErrCancelled
		}
		return provider.Result{}, errors.Wrapf(err, "redirectprovider %s: open browser", p.id)
	}

	if errParam := values.Get("error"); errParam != "" {
		if errParam == "access_denied" {
			return provider.Result{}, provider.ErrCancelled
		}
		return provider.Result{}, errors.Errorf("redirectprovider %s: authorization failed: %s - %s",
			p.id, errParam, values.Get("error_description"))
	}
	if values.Get("state") != state {
		return provider.Result{}, errors.Errorf("redirectprovider %s: state mismatch", p.id)
	}
	code := values.Get("code")
	if code == "" {
		return provider.Result{}, errors.Errorf("redirectprovider %s: redirect missing code", p.id)
	}

	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return provider.Result{}, provider.ErrCancelled
		}
		return provider.Result{}, errors.Wrapf(err, "redirectprovider %s: code exchange", p.id)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return provider.Result{}, errors.Errorf("redirectprovider %s: no ID token in response", p.id)
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return provider.Result{}, errors.Wrapf(err, "redirectprovider %s: verify ID token", p.id)
	}
	if idToken.Nonce != nonce {
		return provider.Result{}, errors.Errorf("redirectprovider %s: nonce mismatch", p.id)
	}

	res := provider.Result{
		ProviderID:     p.id,
		ExternalToken:  token.AccessToken,
		ExternalUserID: idToken.Subject,
		GrantedScopes:  p.cfg.Scopes,
	}
	if !token.Expiry.IsZero() {
		exp := token.Expiry
		res.ExpiresAt = &exp
	}
	return res, nil
}

// Cancel aborts an in-flight browser authorization.
func (p *Provider) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
