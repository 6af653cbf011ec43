// Package redisstore is a Redis-backed securestore.Store for hosts that run
// the SDK server-side, where several processes share one credential vault.
package redisstore

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/denis-mitin/go-identity-sdk/securestore"
)

var _ securestore.Store = (*Store)(nil)

type record struct {
	Data     []byte                          `json:"data"`
	Presence securestore.PresenceRequirement `json:"presence"`
	Sealed   bool                            `json:"sealedWithChallenge"`
}

// Store persists records as JSON values under "securestore:{scope}:{name}".
type Store struct {
	client     redis.UniversalClient
	keyPrefix  string
	challenger securestore.Challenger
}

// Option configures a Store.
type Option func(*Store)

// WithChallenger installs the user-presence challenger.
func WithChallenger(c securestore.Challenger) Option {
	return func(s *Store) { s.challenger = c }
}

// WithKeyPrefix overrides the default "securestore" key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a store over an existing Redis client.
func New(client redis.UniversalClient, options ...Option) *Store {
	s := &Store{client: client, keyPrefix: "securestore"}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) key(name, scope string) string {
	return s.keyPrefix + ":" + scope + ":" + name
}

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

	raw, err := json.Marshal(record{Data: data, Presence: presence, Sealed: sealed})
	if err != nil {
		return errors.Wrap(err, "redisstore: encode record")
	}

	created, err := s.client.SetNX(ctx, s.key(name, scope), raw, 0).Result()
	if err != nil {
		return errors.Wrap(securestore.ErrBackendUnavailable, err.Error())
	}
	if !created {
		return securestore.ErrDuplicate
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name, scope, prompt string) ([]byte, error) {
	rec, err := s.read(ctx, name, scope)
	if err != nil {
		return nil, err
	}
	if err := s.challenge(ctx, rec, prompt); err != nil {
		return nil, err
	}
	return rec.Data, nil
}

func (s *Store) Update(ctx context.Context, name, scope string, data []byte, prompt string) error {
	rec, err := s.read(ctx, name, scope)
	if err != nil {
		return err
	}
	if err := s.challenge(ctx, rec, prompt); err != nil {
		return err
	}

	rec.Data = data
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "redisstore: encode record")
	}
	// XX keeps Update from resurrecting a record deleted in between.
	set, err := s.client.SetXX(ctx, s.key(name, scope), raw, 0).Result()
	if err != nil {
		return errors.Wrap(securestore.ErrBackendUnavailable, err.Error())
	}
	if !set {
		return securestore.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name, scope string) error {
	removed, err := s.client.Del(ctx, s.key(name, scope)).Result()
	if err != nil {
		return errors.Wrap(securestore.ErrBackendUnavailable, err.Error())
	}
	if removed == 0 {
		return securestore.ErrNotFound
	}
	return nil
}

func (s *Store) read(ctx context.Context, name, scope string) (*record, error) {
	raw, err := s.client.Get(ctx, s.key(name, scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, securestore.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(securestore.ErrBackendUnavailable, err.Error())
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Wrap(err, "redisstore: corrupt record")
	}
	return &rec, nil
}

func (s *Store) challenge(ctx context.Context, rec *record, prompt string) error {
	switch rec.Presence {
	case securestore.PresenceRequired:
		if s.challenger == nil {
			return securestore.ErrPresenceDenied
		}
		if err := s.challenger(ctx, prompt); err != nil {
			return securestore.ErrPresenceDenied
		}
	case securestore.PresencePreferred:
		if rec.Sealed && s.challenger != nil {
			if err := s.challenger(ctx, prompt); err != nil {
				return securestore.ErrPresenceDenied
			}
		}
	}
	return nil
}
