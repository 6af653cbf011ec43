package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// SignRequest computes the platform's OAuth1-style request signature:
// base64(HMAC-SHA1(secret, method&urlencode(requestURL)&urlencode(sortedParams)))
// with the signature secret itself base64-encoded. The signing scheme is
// fixed by the platform, so this is raw HMAC rather than any token format.
func SignRequest(httpMethod, requestURL string, params url.Values, base64Secret string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return "", errors.Wrap(err, "api: decode signature secret")
	}

	base := strings.ToUpper(httpMethod) +
		"&" + url.QueryEscape(requestURL) +
		"&" + url.QueryEscape(normalizedParams(params))

	mac := hmac.New(sha1.New, secret)
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// normalizedParams renders params as key=value pairs joined by "&", sorted by
// key, with values percent-encoded.
func normalizedParams(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+url.QueryEscape(params.Get(k)))
	}
	return strings.Join(pairs, "&")
}
