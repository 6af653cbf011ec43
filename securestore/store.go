// Package securestore defines the on-device secret persistence boundary used
// by the session layer. Implementations keep opaque byte blobs addressed by an
// (attribute name, service scope) pair and may gate reads behind a
// user-presence challenge (biometric or passcode).
package securestore

import "context"

// PresenceRequirement controls whether a record is gated behind a
// user-presence challenge.
type PresenceRequirement int

const (
	// PresenceNone never challenges the user.
	PresenceNone PresenceRequirement = iota
	// PresencePreferred attempts a challenge when the record was sealed with
	// one, but a record written without a successful challenge stays readable.
	// The policy is fixed at write time, not renegotiated per read.
	PresencePreferred
	// PresenceRequired refuses Get/Update until a challenge succeeds.
	PresenceRequired
)

func (p PresenceRequirement) String() string {
	switch p {
	case PresencePreferred:
		return "preferred"
	case PresenceRequired:
		return "required"
	default:
		return "none"
	}
}

// Challenger performs a user-presence challenge, returning nil on success and
// ErrPresenceDenied when the user cancels or fails the prompt. A nil
// Challenger on a store means no challenge can ever succeed; records written
// with PresenceRequired become unreadable on such a store.
type Challenger func(ctx context.Context, prompt string) error

// Store persists opaque secrets. Writes are durable before the call returns.
// Implementations serialize concurrent operations on the same
// (name, scope) key.
type Store interface {
	// Put creates a new record. Fails with ErrDuplicate if a record already
	// exists under (name, scope); callers must Update instead.
	Put(ctx context.Context, name, scope string, data []byte, presence PresenceRequirement) error

	// Get returns the record's payload, running a presence challenge first
	// when the record's policy demands one. Fails with ErrNotFound when
	// absent and ErrPresenceDenied when the challenge is refused.
	Get(ctx context.Context, name, scope, prompt string) ([]byte, error)

	// Update replaces the payload of an existing record, keeping its
	// presence policy. Fails with ErrNotFound when absent.
	Update(ctx context.Context, name, scope string, data []byte, prompt string) error

	// Delete removes a record. Fails with ErrNotFound when absent.
	Delete(ctx context.Context, name, scope string) error
}
