package sdkprovider_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/denis-mitin/go-identity-sdk/provider"
	"github.com/denis-mitin/go-identity-sdk/provider/sdkprovider"
)

// fakeSDK scripts the native SDK boundary.
type fakeSDK struct {
	grant        sdkprovider.Grant
	authorizeErr error
	identity     string
	identityErr  error
	revokeErr    error

	authorizedScopes []string
	identityCalls    int
	revokeCalls      int
	cancelCalls      int
}

func (f *fakeSDK) Authorize(_ context.Context, scopes []string) (sdkprovider.Grant, error) {
	f.authorizedScopes = scopes
	return f.grant, f.authorizeErr
}

func (f *fakeSDK) Identity(context.Context, sdkprovider.Grant) (string, error) {
	f.identityCalls++
	return f.identity, f.identityErr
}

func (f *fakeSDK) Revoke(context.Context) error {
	f.revokeCalls++
	return f.revokeErr
}

func (f *fakeSDK) Cancel() { f.cancelCalls++ }

func TestGrantIsNormalizedIntoResult(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	sdk := &fakeSDK{grant: sdkprovider.Grant{
		AccessToken:   "fb-token",
		UserID:        "fb-user",
		GrantedScopes: []string{"public_profile"},
		ExpiresAt:     expiry,
	}}
	p := sdkprovider.New("facebook", sdk, []string{"public_profile", "email"})
	require.Equal(t, "facebook", p.ID())

	res, err := p.BeginAuthorization(context.Background())
	require.NoError(t, err)
	require.Equal(t, "facebook", res.ProviderID)
	require.Equal(t, "fb-token", res.ExternalToken)
	require.Equal(t, "fb-user", res.ExternalUserID)
	require.Equal(t, []string{"public_profile"}, res.GrantedScopes)
	require.NotNil(t, res.ExpiresAt)
	require.True(t, res.ExpiresAt.Equal(expiry))

	require.Equal(t, []string{"public_profile", "email"}, sdk.authorizedScopes)
	require.Zero(t, sdk.identityCalls)
}

func TestMissingUserIDIsFetchedFromIdentity(t *testing.T) {
	sdk := &fakeSDK{
		grant:    sdkprovider.Grant{AccessToken: "g-token"},
		identity: "g-user",
	}
	p := sdkprovider.New("googleplus", sdk, nil)

	res, err := p.BeginAuthorization(context.Background())
	require.NoError(t, err)
	require.Equal(t, "g-user", res.ExternalUserID)
	require.Equal(t, 1, sdk.identityCalls)
}

func TestIdentityFailureFailsAuthorization(t *testing.T) {
	sdk := &fakeSDK{
		grant:       sdkprovider.Grant{AccessToken: "g-token"},
		identityErr: errors.New("identity endpoint down"),
	}
	p := sdkprovider.New("googleplus", sdk, nil)

	_, err := p.BeginAuthorization(context.Background())
	require.ErrorContains(t, err, "fetch identity")
}

func TestUserBackingOutOfSDKIsCancellation(t *testing.T) {
	sdk := &fakeSDK{authorizeErr: provider.ErrCancelled}
	p := sdkprovider.New("facebook", sdk, nil)

	_, err := p.BeginAuthorization(context.Background())
	require.ErrorIs(t, err, provider.ErrCancelled)
}

func TestCancelReachesTheSDK(t *testing.T) {
	sdk := &fakeSDK{}
	p := sdkprovider.New("facebook", sdk, nil)

	p.Cancel()
	require.Equal(t, 1, sdk.cancelCalls)
}

func TestRevokePassesThrough(t *testing.T) {
	sdk := &fakeSDK{}
	p := sdkprovider.New("facebook", sdk, nil)

	require.NoError(t, p.Revoke(context.Background()))
	require.Equal(t, 1, sdk.revokeCalls)

	sdk.revokeErr = errors.New("network down")
	require.ErrorContains(t, p.Revoke(context.Background()), "revoke")
}
