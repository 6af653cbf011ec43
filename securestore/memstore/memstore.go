// Package memstore is an in-memory securestore.Store. It backs tests and
// short-lived hosts that do not need secrets to survive the process.
package memstore

import (
	"context"
	"sync"

	"github.com/denis-mitin/go-identity-sdk/securestore"
)

var _ securestore.Store = (*Store)(nil)

type record struct {
	data     []byte
	presence securestore.PresenceRequirement
	// sealed is true when the record was written under a successful
	// challenge; PresencePreferred only re-challenges sealed records.
	sealed bool
}

// Store is a thread-safe in-memory implementation of securestore.Store.
type Store struct {
	mu         sync.RWMutex
	records    map[string]*record
	challenger securestore.Challenger
}

// Option configures a Store.
type Option func(*Store)

// WithChallenger installs the user-presence challenger. Without one, records
// written with PresenceRequired are unreadable.
func WithChallenger(c securestore.Challenger) Option {
	return func(s *Store) { s.challenger = c }
}

// New creates an empty in-memory store.
func New(options ...Option) *Store {
	s := &Store{records: make(map[string]*record)}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func key(name, scope string) string { return scope + "/" + name }

func (s *Store) Put(ctx context.Context, name, scope string, data []byte, presence securestore.PresenceRequirement) error {
	sealed := false
	if presence != securestore.PresenceNone && s.challenger != nil {
		err := s.challenger(ctx, "")
		switch {
		case err == nil:
			sealed = true
		case presence == securestore.PresenceRequired:
			return securestore.ErrPresenceDenied
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(name, scope)
	if _, exists := s.records[k]; exists {
		return securestore.ErrDuplicate
	}
	s.records[k] = &record{
		data:     append([]byte(nil), data...),
		presence: presence,
		sealed:   sealed,
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name, scope, prompt string) ([]byte, error) {
	s.mu.RLock()
	rec, exists := s.records[key(name, scope)]
	s.mu.RUnlock()
	if !exists {
		return nil, securestore.ErrNotFound
	}

	// The challenge may block on the user, so it runs unlocked; presence and
	// sealed are fixed at Put time. The payload copy re-acquires the lock
	// because Update replaces it.
	if err := s.challenge(ctx, rec, prompt); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), rec.data...), nil
}

func (s *Store) Update(ctx context.Context, name, scope string, data []byte, prompt string) error {
	s.mu.Lock()
	rec, exists := s.records[key(name, scope)]
	s.mu.Unlock()
	if !exists {
		return securestore.ErrNotFound
	}

	if err := s.challenge(ctx, rec, prompt); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec.data = append([]byte(nil), data...)
	return nil
}

func (s *Store) Delete(_ context.Context, name, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(name, scope)
	if _, exists := s.records[k]; !exists {
		return securestore.ErrNotFound
	}
	delete(s.records, k)
	return nil
}

// challenge applies the record's write-time presence policy.
func (s *Store) challenge(ctx context.Context, rec *record, prompt string) error {
	switch rec.presence {
	case securestore.PresenceRequired:
		if s.challenger == nil {
			return securestore.ErrPresenceDenied
		}
		if err := s.challenger(ctx, prompt); err != nil {
			return securestore.ErrPresenceDenied
		}
	case securestore.PresencePreferred:
		if rec.sealed && s.challenger != nil {
			if err := s.challenger(ctx, prompt); err != nil {
				return securestore.ErrPresenceDenied
			}
		}
	}
	return nil
}
