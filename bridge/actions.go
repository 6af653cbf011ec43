package bridge

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/denis-mitin/go-identity-sdk/api"
	"github.com/denis-mitin/go-identity-sdk/ids"
	"github.com/denis-mitin/go-identity-sdk/session"
)

// PluginEventFunc receives plugin and custom events originating in the script
// context, so the host can surface them (progress, screen changes, errors).
type PluginEventFunc func(event string, params map[string]any)

// ActionConfig bundles the collaborators the standard actions need.
type ActionConfig struct {
	Sessions *session.Manager
	Client   api.Client
	IDs      *ids.Store
	// PluginEvents may be nil when the host does not care about plugin
	// traffic; the actions still acknowledge.
	PluginEvents PluginEventFunc
	Log          zerolog.Logger
}

// RegisterStandardActions installs the supported action set on d and wires
// session changes through to namespace-subscribed script contexts. The action
// set is closed: nothing outside it ever dispatches.
func RegisterStandardActions(d *Dispatcher, cfg ActionConfig) error {
	if cfg.Sessions == nil {
		return errors.New("bridge: session manager is required")
	}
	if cfg.Client == nil {
		return errors.New("bridge: api client is required")
	}
	if cfg.IDs == nil {
		return errors.New("bridge: identifier store is required")
	}

	d.Register(ActionIsSessionValid, nil, func(ctx context.Context, _ map[string]any) (map[string]any, error) {
		current, err := cfg.Sessions.CurrentSession(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"valid": current != nil}, nil
	})

	d.Register(ActionSendRequest, requireString("method"), func(ctx context.Context, params map[string]any) (map[string]any, error) {
		method, callParams := splitRelayParams(params)
		return cfg.Client.Send(ctx, method, callParams)
	})

	d.Register(ActionSendOAuthRequest, requireString("method"), func(ctx context.Context, params map[string]any) (map[string]any, error) {
		method, callParams := splitRelayParams(params)
		return cfg.Client.SendOAuth(ctx, method, callParams)
	})

	d.Register(ActionGetIDs, nil, func(ctx context.Context, _ map[string]any) (map[string]any, error) {
		ucid, err := cfg.IDs.UCID(ctx)
		if err != nil {
			return nil, err
		}
		gmid, err := cfg.IDs.GMID(ctx)
		if err != nil {
			return nil, err
		}
		result := map[string]any{"ucid": ucid, "gmid": gmid}
		if current, err := cfg.Sessions.CurrentSession(ctx); err == nil && current != nil {
			result["uid"] = current.UserID
		}
		return result, nil
	})

	d.Register(ActionOnPluginEvent, requireString("eventName"), pluginEventHandler(cfg.PluginEvents))
	d.Register(ActionOnCustomEvent, requireString("eventName"), pluginEventHandler(cfg.PluginEvents))

	d.Register(ActionRegisterForNamespaceEvents, requireString("namespace"), func(_ context.Context, params map[string]any) (map[string]any, error) {
		namespace, _ := params["namespace"].(string)
		d.RegisterNamespace(namespace)
		return map[string]any{}, nil
	})

	d.Register(ActionOnJSLog, requireString("log"), func(_ context.Context, params map[string]any) (map[string]any, error) {
		message, _ := params["log"].(string)
		level, _ := params["logLevel"].(string)
		cfg.Log.Info().Str("jsLevel", level).Msg(message)
		return map[string]any{}, nil
	})

	d.Register(ActionClearSession, nil, func(ctx context.Context, _ map[string]any) (map[string]any, error) {
		if err := cfg.Sessions.ClearSession(ctx); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	})

	cfg.Sessions.Subscribe(func(change session.Change) {
		emitSessionEvent(d, change)
	})
	return nil
}

// emitSessionEvent fans a session change out to every subscribed namespace.
func emitSessionEvent(d *Dispatcher, change session.Change) {
	name := "logout"
	params := map[string]any{}
	switch change.Kind {
	case session.ChangeSet:
		name = "login"
		if change.Session != nil {
			params["uid"] = change.Session.UserID
		}
	case session.ChangeInvalidated:
		params["reason"] = change.Reason
	}

	for _, ns := range d.Namespaces() {
		event := Event{Action: Action(ns + "." + name), Params: params}
		d.Emit(event)
	}
}

func pluginEventHandler(fn PluginEventFunc) Handler {
	return func(_ context.Context, params map[string]any) (map[string]any, error) {
		if fn != nil {
			event, _ := params["eventName"].(string)
			fn(event, params)
		}
		return map[string]any{}, nil
	}
}

// splitRelayParams separates the relayed method name from the call's own
// parameters.
func splitRelayParams(params map[string]any) (string, map[string]any) {
	method, _ := params["method"].(string)
	callParams, _ := params["params"].(map[string]any)
	return method, callParams
}

// requireString validates that key is present and a non-empty string.
func requireString(key string) ParamCheck {
	return func(params map[string]any) error {
		value, ok := params[key].(string)
		if !ok || value == "" {
			return errors.Wrapf(ErrInvalidParameters, "missing %q", key)
		}
		return nil
	}
}
