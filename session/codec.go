package session

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// persisted is the current on-store layout of a Session.
type persisted struct {
	UserID          string `json:"userId"`
	Token           string `json:"token"`
	SignatureSecret string `json:"signatureSecret"`
	ProviderID      string `json:"providerId,omitempty"`
	IssuedAt        int64  `json:"issuedAt"`
	ExpiresAt       *int64 `json:"expiresAt,omitempty"`
}

// encode serializes a Session for storage.
func encode(s Session) ([]byte, error) {
	p := persisted{
		UserID:          s.UserID,
		Token:           s.Token,
		SignatureSecret: s.SignatureSecret,
		ProviderID:      s.ProviderID,
		IssuedAt:        s.IssuedAt.Unix(),
	}
	if s.ExpiresAt != nil {
		exp := s.ExpiresAt.Unix()
		p.ExpiresAt = &exp
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "session: encode")
	}
	return raw, nil
}

// decode parses a stored blob. A blob that parses but yields a structurally
// incomplete Session is reported as ErrLoadCorrupted; expiry is judged by the
// caller, not here.
func decode(raw []byte) (Session, error) {
	var p persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		return Session{}, errors.Wrap(ErrLoadCorrupted, err.Error())
	}

	s := Session{
		UserID:          p.UserID,
		Token:           p.Token,
		SignatureSecret: p.SignatureSecret,
		ProviderID:      p.ProviderID,
		IssuedAt:        time.Unix(p.IssuedAt, 0),
	}
	if p.ExpiresAt != nil {
		exp := time.Unix(*p.ExpiresAt, 0)
		s.ExpiresAt = &exp
	}

	if s.UserID == "" || s.Token == "" || s.SignatureSecret == "" || p.IssuedAt == 0 {
		return Session{}, errors.Wrap(ErrLoadCorrupted, "incomplete session record")
	}
	return s, nil
}
