package provider

import "errors"

var (
	// ErrCancelled reports a user-initiated abort of the external
	// authorization, distinct from an authorization failure.
	ErrCancelled = errors.New("authorization cancelled")

	// ErrUnknownProvider is returned by Registry.Resolve for an
	// unregistered identifier.
	ErrUnknownProvider = errors.New("unknown provider")
)
