package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/denis-mitin/go-identity-sdk/internal/utils"
	"github.com/denis-mitin/go-identity-sdk/provider"
	"github.com/denis-mitin/go-identity-sdk/session"
)

const exchangeMethod = "socialize.notifyLogin"

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks to the identity platform over HTTPS. API methods are
// namespaced ("socialize.getUserInfo") and each namespace maps to its own
// host under the configured API domain.
type HTTPClient struct {
	apiKey   string
	domain   string
	sessions *session.Manager
	httpDo   *http.Client
	nowFunc  func() time.Time
	log      zerolog.Logger
	retries  int
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.httpDo = c }
}

// WithRetries sets how many times Exchange re-attempts after a transient
// backend failure.
func WithRetries(n int) HTTPOption {
	return func(h *HTTPClient) { h.retries = n }
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) HTTPOption {
	return func(h *HTTPClient) { h.nowFunc = now }
}

// WithLogger sets the client's logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) HTTPOption {
	return func(h *HTTPClient) { h.log = log.With().Str("component", "api").Logger() }
}

// NewHTTPClient creates a platform client. A missing API key is refused up
// front with CodeMissingAPIKey rather than on the first call.
func NewHTTPClient(apiKey, domain string, sessions *session.Manager, options ...HTTPOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, NewError(CodeMissingAPIKey, "api key is required")
	}
	if domain == "" {
		return nil, errors.New("api: domain is required")
	}

	h := &HTTPClient{
		apiKey:   apiKey,
		domain:   domain,
		sessions: sessions,
		httpDo:   &http.Client{Timeout: 30 * time.Second},
		nowFunc:  time.Now,
		log:      zerolog.Nop(),
		retries:  2,
	}
	for _, opt := range options {
		opt(h)
	}
	return h, nil
}

// Send relays a signed API call using the active session's credentials.
func (h *HTTPClient) Send(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	endpoint, err := h.endpoint(method)
	if err != nil {
		return nil, err
	}

	form := toForm(params)
	form.Set("format", "json")

	current, err := h.sessions.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		form.Set("oauth_token", current.Token)
		form.Set("timestamp", strconv.FormatInt(h.nowFunc().Unix(), 10))
		form.Set("nonce", uuid.NewString())
		sig, err := SignRequest(http.MethodPost, endpoint, form, current.SignatureSecret)
		if err != nil {
			return nil, err
		}
		form.Set("sig", sig)
	} else {
		form.Set("apiKey", h.apiKey)
	}

	raw, err := h.call(ctx, method, endpoint, form)
	if err != nil {
		return nil, err
	}
	return decodeMap(raw)
}

// SendOAuth relays an API call carrying the bare session token.
func (h *HTTPClient) SendOAuth(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	endpoint, err := h.endpoint(method)
	if err != nil {
		return nil, err
	}

	current, err := h.sessions.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNoSession
	}

	form := toForm(params)
	form.Set("format", "json")
	form.Set("oauth_token", current.Token)

	raw, err := h.call(ctx, method, endpoint, form)
	if err != nil {
		return nil, err
	}
	return decodeMap(raw)
}

// exchangeResponse is the platform's answer to a login notification.
type exchangeResponse struct {
	UID         string `json:"UID"`
	SessionInfo struct {
		SessionToken  string `json:"sessionToken"`
		SessionSecret string `json:"sessionSecret"`
	} `json:"sessionInfo"`
	ExpiresIn int64 `json:"expires_in"`
}

// Exchange converts a provider result into a platform session. Transient
// backend failures are retried; the call is idempotent platform-side.
func (h *HTTPClient) Exchange(ctx context.Context, res provider.Result) (*session.Session, error) {
	endpoint, err := h.endpoint(exchangeMethod)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("format", "json")
	form.Set("apiKey", h.apiKey)
	form.Set("provider", res.ProviderID)
	form.Set("authToken", res.ExternalToken)
	if res.ExternalUserID != "" {
		form.Set("providerUID", res.ExternalUserID)
	}

	var raw []byte
	for attempt := 0; ; attempt++ {
		raw, err = h.call(ctx, exchangeMethod, endpoint, form)
		if err == nil || !errors.Is(err, ErrBackendUnavailable) || attempt >= h.retries {
			break
		}
		h.log.Warn().Int("attempt", attempt+1).Msg("exchange retry after transient failure")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}
	if err != nil {
		return nil, err
	}

	var resp exchangeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "api: decode exchange response")
	}

	s := &session.Session{
		UserID:          resp.UID,
		Token:           resp.SessionInfo.SessionToken,
		SignatureSecret: resp.SessionInfo.SessionSecret,
		ProviderID:      res.ProviderID,
		IssuedAt:        h.nowFunc(),
	}
	if resp.ExpiresIn > 0 {
		s.ExpiresAt = utils.Ptr(h.nowFunc().Add(time.Duration(resp.ExpiresIn) * time.Second))
	}
	return s, nil
}

// endpoint maps a namespaced method to its request URL.
func (h *HTTPClient) endpoint(method string) (string, error) {
	namespace, _, found := strings.Cut(method, ".")
	if !found || namespace == "" {
		return "", NewError(CodeInvalidMethod, fmt.Sprintf("invalid api method %q", method))
	}
	return "https://" + namespace + "." + h.domain + "/" + method, nil
}

// apiResponse is the envelope every platform response carries.
type apiResponse struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (h *HTTPClient) call(ctx context.Context, method, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "api: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.httpDo.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrBackendUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, errors.Wrapf(ErrBackendUnavailable, "status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(ErrBackendUnavailable, err.Error())
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrapf(err, "api: decode %s response", method)
	}
	if envelope.ErrorCode != 0 {
		h.log.Debug().Str("method", method).Int("errorCode", envelope.ErrorCode).Msg("platform call failed")
		return nil, NewError(envelope.ErrorCode, envelope.ErrorMessage)
	}
	return raw, nil
}

func decodeMap(raw []byte) (map[string]any, error) {
	result := map[string]any{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "api: decode response")
	}
	return result, nil
}

func toForm(params map[string]any) url.Values {
	form := url.Values{}
	for k, v := range params {
		switch value := v.(type) {
		case string:
			form.Set(k, value)
		case bool:
			form.Set(k, strconv.FormatBool(value))
		case float64:
			form.Set(k, strconv.FormatFloat(value, 'f', -1, 64))
		case int:
			form.Set(k, strconv.Itoa(value))
		default:
			if raw, err := json.Marshal(v); err == nil {
				form.Set(k, string(raw))
			}
		}
	}
	return form
}
