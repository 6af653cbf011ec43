// Package bridge is the RPC channel between a sandboxed script execution
// context (an embedded web view running the platform's web SDK) and native
// code. It validates untrusted incoming envelopes, dispatches them to an
// allow-listed set of action handlers, and guarantees every request callback
// is resolved exactly once.
package bridge

// Action identifies one allow-listed bridge operation. The identifiers are a
// compatibility surface shared with the script side and must not be renamed.
type Action string

const (
	ActionIsSessionValid             Action = "is_session_valid"
	ActionSendRequest                Action = "send_request"
	ActionSendOAuthRequest           Action = "send_oauth_request"
	ActionGetIDs                     Action = "get_ids"
	ActionOnPluginEvent              Action = "on_plugin_event"
	ActionOnCustomEvent              Action = "on_custom_event"
	ActionRegisterForNamespaceEvents Action = "register_for_namespace_events"
	ActionOnJSLog                    Action = "on_js_log"
	ActionClearSession               Action = "clear_session"
)

// Message is a request envelope arriving from the script context.
type Message struct {
	Action     Action         `json:"action"`
	CallbackID string         `json:"callbackId"`
	Params     map[string]any `json:"parameters"`
}

// ErrorPayload is the error half of a response envelope.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response answers exactly one Message, addressed by its callback ID. Either
// Result or Error is set, never both.
type Response struct {
	CallbackID string         `json:"callbackId"`
	Result     map[string]any `json:"result,omitempty"`
	Error      *ErrorPayload  `json:"error,omitempty"`
}

// Event is an unsolicited envelope pushed into the script context; it has no
// callback correlation.
type Event struct {
	Action Action         `json:"action"`
	Params map[string]any `json:"parameters,omitempty"`
}
