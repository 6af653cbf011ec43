package securestore

import "errors"

var (
	// ErrNotFound is returned by Get/Update/Delete on an absent record.
	// Callers treat it as "no secret", not as a failure.
	ErrNotFound = errors.New("secure record not found")

	// ErrDuplicate is returned by Put when a record already exists under the
	// same (name, scope).
	ErrDuplicate = errors.New("secure record already exists")

	// ErrPresenceDenied is returned when the user cancels or fails the
	// presence challenge. Distinct from ErrNotFound so callers can tell
	// "no secret" from "secret exists but locked".
	ErrPresenceDenied = errors.New("user presence challenge denied")

	// ErrBackendUnavailable is returned on transient backend failures.
	// Callers may retry.
	ErrBackendUnavailable = errors.New("secure storage backend unavailable")
)
