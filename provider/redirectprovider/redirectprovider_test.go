package redirectprovider_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/denis-mitin/go-identity-sdk/provider"
	"github.com/denis-mitin/go-identity-sdk/provider/redirectprovider"
)

const (
	testIssuer   = "https://issuer.example.com"
	testClientID = "client-1"
)

// scriptedOpener answers the browser launch with redirect values built from
// the authorization URL it was handed.
type scriptedOpener struct {
	answer func(authURL *url.URL) url.Values
	err    error
}

func (o *scriptedOpener) Open(_ context.Context, authURL string) (url.Values, error) {
	if o.err != nil {
		return nil, o.err
	}
	parsed, err := url.Parse(authURL)
	if err != nil {
		return nil, err
	}
	return o.answer(parsed), nil
}

// oidcFixture runs a token endpoint that answers with an RS256-signed ID
// token carrying the nonce the opener observed.
type oidcFixture struct {
	key      *rsa.PrivateKey
	server   *httptest.Server
	cfg      oauth2.Config
	verifier *oidc.IDTokenVerifier

	subject string
	nonce   string
}

func newOIDCFixture(t *testing.T) *oidcFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &oidcFixture{key: key, subject: "ext-user-1"}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss":   testIssuer,
			"aud":   testClientID,
			"sub":   f.subject,
			"exp":   time.Now().Add(time.Hour).Unix(),
			"iat":   time.Now().Unix(),
			"nonce": f.nonce,
		}).SignedString(f.key)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "oidc-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}))
	t.Cleanup(f.server.Close)

	f.cfg = oauth2.Config{
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURL:  "gsapi://login_result",
		Scopes:       []string{"openid", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  f.server.URL + "/auth",
			TokenURL: f.server.URL + "/token",
		},
	}
	f.verifier = oidc.NewVerifier(testIssuer, &oidc.StaticKeySet{
		PublicKeys: []crypto.PublicKey{&key.PublicKey},
	}, &oidc.Config{ClientID: testClientID})
	return f
}

// echoOpener plays the role of a well-behaved authorization server: it echoes
// the state back and records the nonce for the token endpoint.
func (f *oidcFixture) echoOpener() *scriptedOpener {
	return &scriptedOpener{answer: func(authURL *url.URL) url.Values {
		f.nonce = authURL.Query().Get("nonce")
		return url.Values{
			"state": {authURL.Query().Get("state")},
			"code":  {"auth-code-1"},
		}
	}}
}

func TestCodeFlowVerifiesIDTokenAndBuildsResult(t *testing.T) {
	f := newOIDCFixture(t)
	p := redirectprovider.New("googleplus", f.cfg, f.verifier, f.echoOpener())
	require.Equal(t, "googleplus", p.ID())

	res, err := p.BeginAuthorization(context.Background())
	require.NoError(t, err)
	require.Equal(t, "googleplus", res.ProviderID)
	require.Equal(t, "oidc-access-token", res.ExternalToken)
	require.Equal(t, "ext-user-1", res.ExternalUserID)
	require.Equal(t, []string{"openid", "profile"}, res.GrantedScopes)
	require.NotNil(t, res.ExpiresAt)
}

func TestAccessDeniedIsCancellation(t *testing.T) {
	f := newOIDCFixture(t)
	opener := &scriptedOpener{answer: func(*url.URL) url.Values {
		return url.Values{"error": {"access_denied"}}
	}}
	p := redirectprovider.New("googleplus", f.cfg, f.verifier, opener)

	_, err := p.BeginAuthorization(context.Background())
	require.ErrorIs(t, err, provider.ErrCancelled)
}

func TestStateMismatchIsRejected(t *testing.T) {
	f := newOIDCFixture(t)
	opener := &scriptedOpener{answer: func(*url.URL) url.Values {
		return url.Values{"state": {"forged"}, "code": {"auth-code-1"}}
	}}
	p := redirectprovider.New("googleplus", f.cfg, f.verifier, opener)

	_, err := p.BeginAuthorization(context.Background())
	require.ErrorContains(t, err, "state mismatch")
}

func TestRedirectWithoutCodeIsRejected(t *testing.T) {
	f := newOIDCFixture(t)
	opener := &scriptedOpener{answer: func(authURL *url.URL) url.Values {
		return url.Values{"state": {authURL.Query().Get("state")}}
	}}
	p := redirectprovider.New("googleplus", f.cfg, f.verifier, opener)

	_, err := p.BeginAuthorization(context.Background())
	require.ErrorContains(t, err, "missing code")
}

func TestNonceMismatchIsRejected(t *testing.T) {
	f := newOIDCFixture(t)
	opener := &scriptedOpener{answer: func(authURL *url.URL) url.Values {
		f.nonce = "replayed-nonce"
		return url.Values{
			"state": {authURL.Query().Get("state")},
			"code":  {"auth-code-1"},
		}
	}}
	p := redirectprovider.New("googleplus", f.cfg, f.verifier, opener)

	_, err := p.BeginAuthorization(context.Background())
	require.ErrorContains(t, err, "nonce mismatch")
}
