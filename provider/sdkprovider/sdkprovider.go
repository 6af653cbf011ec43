// Package sdkprovider adapts a third-party native SDK (Facebook, Google,
// Twitter and the like) to the provider capability contract. Only the SDK's
// capability surface is consumed: authorize, fetch identity, revoke.
package sdkprovider

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/denis-mitin/go-identity-sdk/provider"
)

// Grant is the raw outcome of a native SDK authorization.
type Grant struct {
	AccessToken   string
	UserID        string // May be empty; Identity fills it in then
	GrantedScopes []string
	ExpiresAt     time.Time // Zero when the grant does not expire
}

// SDK is the capability surface of a native social SDK. Authorize blocks
// until the SDK's own UI completes; Cancel aborts it. Implementations return
// provider.ErrCancelled when the user backs out.
type SDK interface {
	Authorize(ctx context.Context, scopes []string) (Grant, error)
	Identity(ctx context.Context, grant Grant) (string, error)
	Revoke(ctx context.Context) error
	Cancel()
}

var _ provider.Provider = (*Provider)(nil)

// Provider wraps one native SDK as a login provider.
type Provider struct {
	id     string
	sdk    SDK
	scopes []string
}

// New creates a provider with the registry identifier id (for example
// "facebook") requesting the given scopes on authorization.
func New(id string, sdk SDK, scopes []string) *Provider {
	return &Provider{id: id, sdk: sdk, scopes: scopes}
}

func (p *Provider) ID() string { return p.id }

// BeginAuthorization runs the SDK's authorization and normalizes its grant.
func (p *Provider) BeginAuthorization(ctx context.Context) (provider.Result, error) {
	grant, err := p.sdk.Authorize(ctx, p.scopes)
	if err != nil {
		if errors.Is(err, provider.ErrCancelled) || ctx.Err() != nil {
			return provider.Result{}, provider.ErrCancelled
		}
		return provider.Result{}, errors.Wrapf(err, "sdkprovider %s: authorize", p.id)
	}

	if grant.UserID == "" {
		grant.UserID, err = p.sdk.Identity(ctx, grant)
		if err != nil {
			return provider.Result{}, errors.Wrapf(err, "sdkprovider %s: fetch identity", p.id)
		}
	}

	res := provider.Result{
		ProviderID:     p.id,
		ExternalToken:  grant.AccessToken,
		ExternalUserID: grant.UserID,
		GrantedScopes:  grant.GrantedScopes,
	}
	if !grant.ExpiresAt.IsZero() {
		exp := grant.ExpiresAt
		res.ExpiresAt = &exp
	}
	return res, nil
}

// Cancel aborts an in-flight SDK authorization.
func (p *Provider) Cancel() { p.sdk.Cancel() }

// Revoke tears down the SDK's cached external session, used on logout so a
// later login re-prompts the user.
func (p *Provider) Revoke(ctx context.Context) error {
	return errors.Wrapf(p.sdk.Revoke(ctx), "sdkprovider %s: revoke", p.id)
}
