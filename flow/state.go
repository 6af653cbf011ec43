package flow

// State is one step of the login state machine.
type State int

const (
	StateIdle State = iota
	StateProviderSelectionPending
	StateAuthorizingExternally
	StateExchangingToken
	StateSessionMaterializing
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProviderSelectionPending:
		return "provider_selection_pending"
	case StateAuthorizingExternally:
		return "authorizing_externally"
	case StateExchangingToken:
		return "exchanging_token"
	case StateSessionMaterializing:
		return "session_materializing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends the flow.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
