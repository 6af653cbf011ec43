package bridge

import (
	"errors"

	"github.com/denis-mitin/go-identity-sdk/api"
)

var (
	// ErrUnsupportedAction rejects any action outside the allow-list, even
	// when syntactically well-formed.
	ErrUnsupportedAction = errors.New("unsupported bridge action")

	// ErrInvalidParameters rejects parameters that do not match the action's
	// expected shape.
	ErrInvalidParameters = errors.New("invalid bridge parameters")

	// ErrCancelled resolves callbacks left outstanding when the owning
	// context is torn down or a call's deadline passes.
	ErrCancelled = errors.New("bridge call cancelled")

	// ErrCallPending rejects a request reusing the callback ID of a call
	// that has not settled yet, so no ID ever has two resolutions in flight.
	ErrCallPending = errors.New("call with this callbackId still pending")
)

// errorPayload converts a handler failure into the wire error shape. Typed
// platform errors keep their code; everything else maps to a coarse class.
func errorPayload(err error) *ErrorPayload {
	var pe *api.Error
	if errors.As(err, &pe) {
		return &ErrorPayload{Code: pe.Code, Message: pe.Message}
	}
	switch {
	case errors.Is(err, ErrUnsupportedAction):
		return &ErrorPayload{Code: api.CodeInvalidMethod, Message: err.Error()}
	case errors.Is(err, ErrInvalidParameters):
		return &ErrorPayload{Code: api.CodeInvalidParameters, Message: err.Error()}
	case errors.Is(err, ErrCallPending):
		return &ErrorPayload{Code: api.CodePendingCall, Message: err.Error()}
	case errors.Is(err, ErrCancelled):
		return &ErrorPayload{Code: api.CodeOperationCancelled, Message: err.Error()}
	default:
		return &ErrorPayload{Code: api.CodeGeneralServerError, Message: err.Error()}
	}
}
