// Package filestore is a file-backed securestore.Store. Each record is sealed
// with NaCl secretbox under a key derived from a host-supplied device secret,
// so payloads at rest are opaque even outside a platform keychain.
package filestore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"github.com/denis-mitin/go-identity-sdk/securestore"
)

const saltFile = ".salt"

var _ securestore.Store = (*Store)(nil)

// envelope is the on-disk record layout.
type envelope struct {
	Presence securestore.PresenceRequirement `json:"presence"`
	Sealed   bool                            `json:"sealedWithChallenge"`
	Nonce    []byte                          `json:"nonce"`
	Box      []byte                          `json:"box"`
}

// Store keeps one sealed file per (name, scope) under dir.
type Store struct {
	dir        string
	key        [32]byte
	mu         sync.Mutex
	challenger securestore.Challenger
}

// Option configures a Store.
type Option func(*Store)

// WithChallenger installs the user-presence challenger.
func WithChallenger(c securestore.Challenger) Option {
	return func(s *Store) { s.challenger = c }
}

// New opens (or initializes) a store under dir. The sealing key is derived
// from deviceSecret with scrypt; the derivation salt is created once and kept
// alongside the records.
func New(dir string, deviceSecret []byte, options ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "filestore: create dir")
	}

	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFile))
	if err != nil {
		return nil, err
	}

	derived, err := scrypt.Key(deviceSecret, salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, errors.Wrap(err, "filestore: derive key")
	}

	s := &Store{dir: dir}
	copy(s.key[:], derived)
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) == 32 {
		return salt, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "filestore: read salt")
	}

	salt = make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "filestore: generate salt")
	}
	if err := writeDurable(path, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func (s *Store) path(name, scope string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + name))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+".rec")
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

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(name, scope)
	if _, err := os.Stat(path); err == nil {
		return securestore.ErrDuplicate
	}
	return s.write(path, data, presence, sealed)
}

func (s *Store) Get(ctx context.Context, name, scope, prompt string) ([]byte, error) {
	s.mu.Lock()
	env, err := s.read(s.path(name, scope))
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := s.challenge(ctx, env, prompt); err != nil {
		return nil, err
	}
	return s.open(env)
}

func (s *Store) Update(ctx context.Context, name, scope string, data []byte, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(name, scope)
	env, err := s.read(path)
	if err != nil {
		return err
	}
	if err := s.challenge(ctx, env, prompt); err != nil {
		return err
	}
	return s.write(path, data, env.Presence, env.Sealed)
}

func (s *Store) Delete(_ context.Context, name, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(name, scope))
	if os.IsNotExist(err) {
		return securestore.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(securestore.ErrBackendUnavailable, err.Error())
	}
	return nil
}

func (s *Store) read(path string) (*envelope, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, securestore.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(securestore.ErrBackendUnavailable, err.Error())
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "filestore: corrupt record envelope")
	}
	return &env, nil
}

func (s *Store) open(env *envelope) ([]byte, error) {
	if len(env.Nonce) != 24 {
		return nil, errors.New("filestore: corrupt record nonce")
	}
	var nonce [24]byte
	copy(nonce[:], env.Nonce)

	data, ok := secretbox.Open(nil, env.Box, &nonce, &s.key)
	if !ok {
		return nil, errors.New("filestore: record failed authentication")
	}
	return data, nil
}

func (s *Store) write(path string, data []byte, presence securestore.PresenceRequirement, sealed bool) error {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Wrap(err, "filestore: generate nonce")
	}

	env := envelope{
		Presence: presence,
		Sealed:   sealed,
		Nonce:    nonce[:],
		Box:      secretbox.Seal(nil, data, &nonce, &s.key),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "filestore: encode record")
	}
	return writeDurable(path, raw)
}

// writeDurable writes via a temp file, syncs, then renames so a crash never
// leaves a half-written record under the real name.
func writeDurable(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrap(securestore.ErrBackendUnavailable, err.Error())
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(securestore.ErrBackendUnavailable, err.Error())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(securestore.ErrBackendUnavailable, err.Error())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(securestore.ErrBackendUnavailable, err.Error())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(securestore.ErrBackendUnavailable, err.Error())
	}
	return nil
}

func (s *Store) challenge(ctx context.Context, env *envelope, prompt string) error {
	switch env.Presence {
	case securestore.PresenceRequired:
		if s.challenger == nil {
			return securestore.ErrPresenceDenied
		}
		if err := s.challenger(ctx, prompt); err != nil {
			return securestore.ErrPresenceDenied
		}
	case securestore.PresencePreferred:
		if env.Sealed && s.challenger != nil {
			if err := s.challenger(ctx, prompt); err != nil {
				return securestore.ErrPresenceDenied
			}
		}
	}
	return nil
}
