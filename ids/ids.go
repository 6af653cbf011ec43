// Package ids manages the device/user correlation identifiers (ucid, gmid)
// the platform expects on calls and the web bridge exposes through get_ids.
// They are not secrets, but they live in the secure store so every persisted
// SDK artifact shares one storage boundary.
package ids

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/denis-mitin/go-identity-sdk/securestore"
)

const (
	attrUCID = "ucid"
	attrGMID = "gmid"
)

// Store lazily creates and caches the correlation identifiers.
type Store struct {
	secure securestore.Store
	scope  string

	mu     sync.Mutex
	cached map[string]string
}

// NewStore creates an identifier store persisting under scope.
func NewStore(secure securestore.Store, scope string) *Store {
	return &Store{secure: secure, scope: scope, cached: make(map[string]string)}
}

// UCID returns the user correlation identifier, minting one on first use.
func (s *Store) UCID(ctx context.Context) (string, error) {
	return s.getOrCreate(ctx, attrUCID)
}

// GMID returns the device correlation identifier, minting one on first use.
func (s *Store) GMID(ctx context.Context) (string, error) {
	return s.getOrCreate(ctx, attrGMID)
}

func (s *Store) getOrCreate(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.cached[name]; ok {
		return id, nil
	}

	raw, err := s.secure.Get(ctx, name, s.scope, "")
	switch {
	case err == nil:
		s.cached[name] = string(raw)
		return string(raw), nil
	case errors.Is(err, securestore.ErrNotFound):
		id := uuid.NewString()
		if err := s.secure.Put(ctx, name, s.scope, []byte(id), securestore.PresenceNone); err != nil {
			return "", errors.Wrapf(err, "ids: persist %s", name)
		}
		s.cached[name] = id
		return id, nil
	default:
		return "", errors.Wrapf(err, "ids: load %s", name)
	}
}
