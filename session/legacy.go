package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/denis-mitin/go-identity-sdk/securestore"
)

// legacyRecord is the flat layout older SDK versions persisted under the
// fixed legacy attribute name.
type legacyRecord struct {
	AuthToken  string `json:"authToken"`
	Secret     string `json:"secret"`
	UID        string `json:"UID"`
	Timestamp  int64  `json:"timestamp"`
	Expiration *int64 `json:"expiration,omitempty"`
}

// migrateLegacy performs the one-time read-and-upgrade of the legacy session
// record. The legacy record (and its API-key sibling) is deleted only after
// the new record is durably written, so a failed migration loses nothing.
// Returns (nil, nil) when no legacy record exists.
func (m *Manager) migrateLegacy(ctx context.Context) (*Session, error) {
	raw, err := m.store.Get(ctx, m.legacyAttribute, m.legacyScope, m.prompt)
	switch {
	case errors.Is(err, securestore.ErrNotFound):
		return nil, nil
	case errors.Is(err, securestore.ErrPresenceDenied):
		return nil, err
	case err != nil:
		return nil, errors.Wrap(err, "session: read legacy record")
	}

	var rec legacyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Wrap(ErrLoadCorrupted, "legacy record: "+err.Error())
	}
	if rec.AuthToken == "" || rec.Secret == "" || rec.UID == "" {
		return nil, errors.Wrap(ErrLoadCorrupted, "legacy record incomplete")
	}

	s := Session{
		UserID:          rec.UID,
		Token:           rec.AuthToken,
		SignatureSecret: rec.Secret,
		IssuedAt:        time.Unix(rec.Timestamp, 0),
	}
	if rec.Timestamp == 0 {
		s.IssuedAt = m.nowFunc()
	}
	if rec.Expiration != nil {
		exp := time.Unix(*rec.Expiration, 0)
		s.ExpiresAt = &exp
	}

	encoded, err := encode(s)
	if err != nil {
		return nil, err
	}
	if err := m.persist(ctx, encoded); err != nil {
		return nil, errors.Wrap(err, "session: write migrated record")
	}

	// New record is durable; the legacy records can go. Failures here are
	// logged but not fatal, the migrated record already wins on next load.
	if err := m.store.Delete(ctx, m.legacyAttribute, m.legacyScope); err != nil && !errors.Is(err, securestore.ErrNotFound) {
		m.log.Warn().Err(err).Msg("failed to delete legacy session record")
	}
	if err := m.store.Delete(ctx, m.legacyAPIKey, m.legacyScope); err != nil && !errors.Is(err, securestore.ErrNotFound) {
		m.log.Warn().Err(err).Msg("failed to delete legacy api key record")
	}

	m.log.Info().Str("userId", s.UserID).Msg("migrated legacy session record")
	return &s, nil
}
