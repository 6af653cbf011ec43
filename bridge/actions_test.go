package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/denis-mitin/go-identity-sdk/api"
	"github.com/denis-mitin/go-identity-sdk/api/apifakes"
	"github.com/denis-mitin/go-identity-sdk/bridge"
	"github.com/denis-mitin/go-identity-sdk/ids"
	"github.com/denis-mitin/go-identity-sdk/securestore/memstore"
	"github.com/denis-mitin/go-identity-sdk/session"
)

type actionFixture struct {
	script   *fakeScript
	d        *bridge.Dispatcher
	sessions *session.Manager
	client   *apifakes.FakeClient
}

func newActionFixture(t *testing.T, options ...func(*bridge.ActionConfig)) *actionFixture {
	t.Helper()
	store := memstore.New()
	f := &actionFixture{
		script:   &fakeScript{},
		sessions: session.NewManager(store),
		client:   apifakes.NewFakeClient(),
	}
	f.d = bridge.NewDispatcher(f.script)
	t.Cleanup(f.d.Close)

	cfg := bridge.ActionConfig{
		Sessions: f.sessions,
		Client:   f.client,
		IDs:      ids.NewStore(store, "com.identity.sdk.ids"),
	}
	for _, opt := range options {
		opt(&cfg)
	}
	require.NoError(t, bridge.RegisterStandardActions(f.d, cfg))
	return f
}

func (f *actionFixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.sessions.SetSession(context.Background(), session.Session{
		UserID:          "u1",
		Token:           "tok123",
		SignatureSecret: "c2VjcmV0",
		IssuedAt:        time.Now(),
	}))
}

func TestRegisterStandardActionsRequiresCollaborators(t *testing.T) {
	d := bridge.NewDispatcher(&fakeScript{})
	defer d.Close()

	err := bridge.RegisterStandardActions(d, bridge.ActionConfig{})
	require.Error(t, err)
}

func TestIsSessionValidReflectsSessionState(t *testing.T) {
	f := newActionFixture(t)

	f.d.HandleMessage(context.Background(), envelope("is_session_valid", "cb-1", ""))
	responses := f.script.waitResponses(t, 1)
	require.Equal(t, false, responses[0].Result["valid"])

	f.login(t)
	f.d.HandleMessage(context.Background(), envelope("is_session_valid", "cb-2", ""))
	responses = f.script.waitResponses(t, 2)
	require.Equal(t, true, responses[1].Result["valid"])
}

func TestSendRequestRelaysMethodAndParams(t *testing.T) {
	f := newActionFixture(t)
	f.client.SendResult = map[string]any{"errorCode": float64(0), "firstName": "Ada"}

	f.d.HandleMessage(context.Background(), envelope("send_request", "cb-1", `{"method":"socialize.getUserInfo","params":{"include":"profile"}}`))

	responses := f.script.waitResponses(t, 1)
	require.Nil(t, responses[0].Error)
	require.Equal(t, "Ada", responses[0].Result["firstName"])

	calls := f.client.SendCalls()
	require.Len(t, calls, 1)
	require.Equal(t, "socialize.getUserInfo", calls[0].Method)
	require.Equal(t, "profile", calls[0].Params["include"])
	require.False(t, calls[0].OAuth)
}

func TestSendRequestWithoutMethodIsRejected(t *testing.T) {
	f := newActionFixture(t)

	f.d.HandleMessage(context.Background(), envelope("send_request", "cb-1", `{"params":{}}`))

	responses := f.script.waitResponses(t, 1)
	require.Equal(t, api.CodeInvalidParameters, responses[0].Error.Code)
	require.Empty(t, f.client.SendCalls())
}

func TestSendOAuthRequestUsesOAuthRelay(t *testing.T) {
	f := newActionFixture(t)
	f.client.SendResult = map[string]any{}

	f.d.HandleMessage(context.Background(), envelope("send_oauth_request", "cb-1", `{"method":"accounts.getAccountInfo"}`))

	f.script.waitResponses(t, 1)
	calls := f.client.SendCalls()
	require.Len(t, calls, 1)
	require.True(t, calls[0].OAuth)
}

func TestRelayErrorReachesScriptWithPlatformCode(t *testing.T) {
	f := newActionFixture(t)
	f.client.SendErr = api.NewError(api.CodeInvalidSessionToken, "invalid session token")

	f.d.HandleMessage(context.Background(), envelope("send_request", "cb-1", `{"method":"socialize.getUserInfo"}`))

	responses := f.script.waitResponses(t, 1)
	require.Equal(t, api.CodeInvalidSessionToken, responses[0].Error.Code)
}

func TestGetIDsIsStableAcrossCalls(t *testing.T) {
	f := newActionFixture(t)
	f.login(t)

	f.d.HandleMessage(context.Background(), envelope("get_ids", "cb-1", ""))
	f.d.HandleMessage(context.Background(), envelope("get_ids", "cb-2", ""))

	responses := f.script.waitResponses(t, 2)
	first, second := responses[0], responses[1]
	require.NotEmpty(t, first.Result["ucid"])
	require.NotEmpty(t, first.Result["gmid"])
	require.Equal(t, first.Result["ucid"], second.Result["ucid"])
	require.Equal(t, first.Result["gmid"], second.Result["gmid"])
	require.Equal(t, "u1", first.Result["uid"])
}

func TestPluginEventsReachTheHost(t *testing.T) {
	var events []string
	f := newActionFixture(t, func(cfg *bridge.ActionConfig) {
		cfg.PluginEvents = func(event string, _ map[string]any) {
			events = append(events, event)
		}
	})

	f.d.HandleMessage(context.Background(), envelope("on_plugin_event", "cb-1", `{"eventName":"screenChanged","screen":"login"}`))
	f.script.waitResponses(t, 1)

	f.d.HandleMessage(context.Background(), envelope("on_custom_event", "cb-2", `{"eventName":"consentGiven"}`))
	f.script.waitResponses(t, 2)

	require.Equal(t, []string{"screenChanged", "consentGiven"}, events)
}

func TestClearSessionActionLogsOut(t *testing.T) {
	f := newActionFixture(t)
	f.login(t)

	f.d.HandleMessage(context.Background(), envelope("clear_session", "cb-1", ""))
	responses := f.script.waitResponses(t, 1)
	require.Nil(t, responses[0].Error)

	current, err := f.sessions.CurrentSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, current)
}

func TestNamespaceSubscriptionReceivesSessionEvents(t *testing.T) {
	f := newActionFixture(t)

	f.d.HandleMessage(context.Background(), envelope("register_for_namespace_events", "cb-1", `{"namespace":"accounts"}`))
	f.script.waitResponses(t, 1)

	f.login(t)
	require.NoError(t, f.sessions.ClearSession(context.Background()))

	events := f.script.Events()
	require.Len(t, events, 2)
	require.Equal(t, bridge.Action("accounts.login"), events[0].Action)
	require.Equal(t, "u1", events[0].Params["uid"])
	require.Equal(t, bridge.Action("accounts.logout"), events[1].Action)
}

func TestInvalidationEventCarriesReason(t *testing.T) {
	f := newActionFixture(t)

	f.d.HandleMessage(context.Background(), envelope("register_for_namespace_events", "cb-1", `{"namespace":"accounts"}`))
	f.script.waitResponses(t, 1)

	f.sessions.Invalidate(context.Background(), session.ReasonRevoked)

	events := f.script.Events()
	require.Len(t, events, 1)
	require.Equal(t, bridge.Action("accounts.logout"), events[0].Action)
	require.Equal(t, session.ReasonRevoked, events[0].Params["reason"])
}
