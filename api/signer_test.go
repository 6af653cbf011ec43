package api_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/denis-mitin/go-identity-sdk/api"
)

func TestSignRequestKnownVector(t *testing.T) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("nonce", "abc")
	params.Set("oauth_token", "tok123")
	params.Set("timestamp", "1700000000")

	// secret bytes "topsecretkey0123", base64-encoded as the platform hands
	// it out.
	sig, err := api.SignRequest("POST", "https://socialize.us1.gigya.com/socialize.getUserInfo", params, "dG9wc2VjcmV0a2V5MDEyMw==")
	require.NoError(t, err)
	require.Equal(t, "gNJb8fL6BkiQCZmsabl4UwMua8c=", sig)
}

func TestSignRequestIsOrderIndependent(t *testing.T) {
	secret := "dG9wc2VjcmV0a2V5MDEyMw=="
	reqURL := "https://socialize.us1.gigya.com/socialize.getUserInfo"

	a := url.Values{}
	a.Set("zeta", "1")
	a.Set("alpha", "2")

	b := url.Values{}
	b.Set("alpha", "2")
	b.Set("zeta", "1")

	sigA, err := api.SignRequest("post", reqURL, a, secret)
	require.NoError(t, err)
	sigB, err := api.SignRequest("POST", reqURL, b, secret)
	require.NoError(t, err)
	require.Equal(t, sigA, sigB)
}

func TestSignRequestRejectsBadSecret(t *testing.T) {
	_, err := api.SignRequest("POST", "https://socialize.us1.gigya.com/socialize.getUserInfo", url.Values{}, "%%%not-base64%%%")
	require.Error(t, err)
}
