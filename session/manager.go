package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/denis-mitin/go-identity-sdk/securestore"
)

// Default storage coordinates for the active session blob. The legacy names
// match the flat record layout older SDK versions wrote, so an upgrade can
// read it once and migrate.
const (
	DefaultAttribute       = "session"
	DefaultScope           = "com.identity.sdk"
	DefaultLegacyAttribute = "StoredSession"
	DefaultLegacyAPIKey    = "StoredSessionAPIKey"
	DefaultLegacyScope     = "com.identity.sdk.defaults"
)

// ChangeKind classifies a session change event.
type ChangeKind int

const (
	// ChangeSet is published after a session is persisted and becomes current.
	ChangeSet ChangeKind = iota
	// ChangeCleared is published after an explicit clear or logout.
	ChangeCleared
	// ChangeInvalidated is published when the platform reported the session
	// expired or revoked; Reason carries the detail.
	ChangeInvalidated
)

// Change is delivered to listeners on every session transition.
type Change struct {
	Kind    ChangeKind
	Reason  string   // set for ChangeInvalidated
	Session *Session // set for ChangeSet, nil otherwise
}

// Listener receives session changes. Listeners are invoked in subscription
// order; a panicking listener does not prevent delivery to the rest.
type Listener func(Change)

// Manager owns the current Session value. All reads and writes of the shared
// session go through it; mutation replaces the whole value atomically.
type Manager struct {
	store    securestore.Store
	presence securestore.PresenceRequirement
	prompt   string

	attribute string
	scope     string

	legacyAttribute string
	legacyAPIKey    string
	legacyScope     string

	clearOnInvalidate bool
	nowFunc           func() time.Time
	log               zerolog.Logger

	mu        sync.Mutex
	current   *Session
	loaded    bool
	listeners []Listener

	// writeMu makes each mutation one critical section: store write,
	// in-memory update, and publish commit in the same order, so the current
	// session never diverges from the durable record.
	writeMu sync.Mutex

	// deliverMu serializes delivery rounds so no two overlap.
	deliverMu sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPresence sets the presence requirement used when the session record is
// first written.
func WithPresence(p securestore.PresenceRequirement) ManagerOption {
	return func(m *Manager) { m.presence = p }
}

// WithPrompt sets the text shown by a presence challenge.
func WithPrompt(prompt string) ManagerOption {
	return func(m *Manager) { m.prompt = prompt }
}

// WithStorageKeys overrides the attribute and scope of the session record.
func WithStorageKeys(attribute, scope string) ManagerOption {
	return func(m *Manager) {
		m.attribute = attribute
		m.scope = scope
	}
}

// WithClearOnInvalidate makes Invalidate also delete the stored record.
// Off by default: a platform-reported invalidation only empties the in-memory
// session and reports a reason.
func WithClearOnInvalidate(clear bool) ManagerOption {
	return func(m *Manager) { m.clearOnInvalidate = clear }
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.nowFunc = now }
}

// WithLogger sets the manager's logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log.With().Str("component", "session").Logger() }
}

// NewManager creates a Manager over the given store.
func NewManager(store securestore.Store, options ...ManagerOption) *Manager {
	m := &Manager{
		store:           store,
		prompt:          "Unlock your session",
		attribute:       DefaultAttribute,
		scope:           DefaultScope,
		legacyAttribute: DefaultLegacyAttribute,
		legacyAPIKey:    DefaultLegacyAPIKey,
		legacyScope:     DefaultLegacyScope,
		nowFunc:         time.Now,
		log:             zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Subscribe registers a listener for session changes. Delivery order is
// subscription order.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// SetSession validates, persists, then publishes a new session. The session
// never becomes current unless persistence succeeded.
func (m *Manager) SetSession(ctx context.Context, s Session) error {
	if !s.ValidAt(m.nowFunc()) {
		return ErrInvalidSession
	}

	raw, err := encode(s)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.persist(ctx, raw); err != nil {
		return errors.Wrap(err, "session: persist")
	}

	m.mu.Lock()
	copied := s
	m.current = &copied
	m.loaded = true
	m.mu.Unlock()

	m.log.Info().Str("userId", s.UserID).Str("provider", s.ProviderID).Msg("session set")
	m.publish(Change{Kind: ChangeSet, Session: &copied})
	return nil
}

// CurrentSession returns the active session, loading it from the store at
// most once per process lifetime. Absence is (nil, nil); a locked record
// surfaces securestore.ErrPresenceDenied; a corrupt record surfaces
// ErrLoadCorrupted rather than masquerading as a logout.
func (m *Manager) CurrentSession(ctx context.Context) (*Session, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	s := m.current
	if s != nil && !s.ValidAt(m.nowFunc()) {
		// Expired since it was loaded or set.
		m.current = nil
		m.mu.Unlock()
		m.log.Info().Str("userId", s.UserID).Msg("session expired")
		m.publish(Change{Kind: ChangeInvalidated, Reason: ReasonExpired})
		return nil, nil
	}
	m.mu.Unlock()

	if s == nil {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

// ClearSession deletes the stored session and publishes an empty state.
// Clearing an already-empty session is not an error.
func (m *Manager) ClearSession(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	err := m.store.Delete(ctx, m.attribute, m.scope)
	if errors.Is(err, securestore.ErrNotFound) {
		err = nil
	}

	m.mu.Lock()
	m.current = nil
	m.loaded = true
	m.mu.Unlock()

	m.log.Info().Msg("session cleared")
	m.publish(Change{Kind: ChangeCleared})
	if err != nil {
		return errors.Wrap(err, "session: clear")
	}
	return nil
}

// Invalidate reports a platform-side session invalidation: the in-memory
// session becomes empty and listeners get the reason. The stored record is
// only removed when WithClearOnInvalidate was configured.
func (m *Manager) Invalidate(ctx context.Context, reason string) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	m.current = nil
	m.loaded = true
	m.mu.Unlock()

	if m.clearOnInvalidate {
		if err := m.store.Delete(ctx, m.attribute, m.scope); err != nil && !errors.Is(err, securestore.ErrNotFound) {
			m.log.Warn().Err(err).Msg("failed to delete invalidated session record")
		}
	}

	m.log.Info().Str("reason", reason).Msg("session invalidated")
	m.publish(Change{Kind: ChangeInvalidated, Reason: reason})
}

// persist writes the blob, creating the record on first use. Callers hold
// writeMu, so the not-found fallback cannot race a concurrent first write
// into a duplicate.
func (m *Manager) persist(ctx context.Context, raw []byte) error {
	err := m.store.Update(ctx, m.attribute, m.scope, raw, m.prompt)
	if errors.Is(err, securestore.ErrNotFound) {
		return m.store.Put(ctx, m.attribute, m.scope, raw, m.presence)
	}
	return err
}

// ensureLoaded runs the one-time lazy load. It shares writeMu with the
// mutation paths so a legacy-migration write cannot interleave with a
// concurrent SetSession.
func (m *Manager) ensureLoaded(ctx context.Context) error {
	m.mu.Lock()
	loaded := m.loaded
	m.mu.Unlock()
	if loaded {
		return nil
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}
	return m.loadLocked(ctx)
}

// loadLocked performs the lazy load. Caller holds writeMu and m.mu.
func (m *Manager) loadLocked(ctx context.Context) error {
	raw, err := m.store.Get(ctx, m.attribute, m.scope, m.prompt)
	switch {
	case err == nil:
		s, decodeErr := decode(raw)
		if decodeErr != nil {
			return decodeErr
		}
		m.current = &s
		m.loaded = true
		return nil
	case errors.Is(err, securestore.ErrNotFound):
		s, migrateErr := m.migrateLegacy(ctx)
		if migrateErr != nil {
			return migrateErr
		}
		m.current = s
		m.loaded = true
		return nil
	case errors.Is(err, securestore.ErrPresenceDenied):
		// Session exists but is locked; do not cache, a later call may
		// succeed once the user passes the challenge.
		return err
	default:
		return errors.Wrap(err, "session: load")
	}
}

// publish delivers a change to all listeners, serialized and in subscription
// order. A panicking listener is isolated and logged.
func (m *Manager) publish(change Change) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Warn().Interface("panic", r).Msg("session listener panicked")
				}
			}()
			l(change)
		}()
	}
}
