package auth

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"
)

const (
	accountSecretKey  = "account"
	sessionsSecretKey = "sessions"
)

// CredentialStore persists the OAuth account and the authentication session
// in a SecretStore. The account and the session live under separate keys so
// that token refreshes can rewrite the account without touching the session
// record.
//
// The session slot is stored as a JSON array even though at most one session
// exists at a time; this keeps the persisted shape stable if multi-account
// support is ever added.
type CredentialStore struct {
	secrets SecretStore
}

// NewCredentialStore creates a credential store backed by the given secrets.
func NewCredentialStore(secrets SecretStore) *CredentialStore {
	return &CredentialStore{secrets: secrets}
}

// Account loads the persisted OAuth account. The second return value reports
// whether an account was present.
func (s *CredentialStore) Account() (*OAuthAccount, bool, error) {
	raw, present, err := s.secrets.Get(accountSecretKey)
	if err != nil {
		return nil, false, fmt.Errorf("read account secret: %w", err)
	}
	if !present || raw == "" {
		return nil, false, nil
	}
	var account OAuthAccount
	if err := json.Unmarshal([]byte(raw), &account); err != nil {
		return nil, false, fmt.Errorf("decode account secret: %w", err)
	}
	return &account, true, nil
}

// SetAccount persists the OAuth account, replacing any previous value.
func (s *CredentialStore) SetAccount(account *OAuthAccount) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encode account secret: %w", err)
	}
	if err := s.secrets.Set(accountSecretKey, string(data)); err != nil {
		return fmt.Errorf("write account secret: %w", err)
	}
	return nil
}

// ClearAccount removes the persisted OAuth account.
func (s *CredentialStore) ClearAccount() error {
	if err := s.secrets.Delete(accountSecretKey); err != nil {
		return fmt.Errorf("delete account secret: %w", err)
	}
	return nil
}

// Session loads the persisted authentication session, if any.
func (s *CredentialStore) Session() (*Session, bool, error) {
	raw, present, err := s.secrets.Get(sessionsSecretKey)
	if err != nil {
		return nil, false, fmt.Errorf("read sessions secret: %w", err)
	}
	if !present || raw == "" {
		return nil, false, nil
	}
	var sessions []Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, false, fmt.Errorf("decode sessions secret: %w", err)
	}
	if len(sessions) == 0 {
		return nil, false, nil
	}
	session := sessions[0]
	return &session, true, nil
}

// SetSession persists the authentication session, replacing any previous one.
func (s *CredentialStore) SetSession(session *Session) error {
	data, err := json.Marshal([]Session{*session})
	if err != nil {
		return fmt.Errorf("encode sessions secret: %w", err)
	}
	if err := s.secrets.Set(sessionsSecretKey, string(data)); err != nil {
		return fmt.Errorf("write sessions secret: %w", err)
	}
	return nil
}

// ClearSession removes the persisted authentication session.
func (s *CredentialStore) ClearSession() error {
	if err := s.secrets.Delete(sessionsSecretKey); err != nil {
		return fmt.Errorf("delete sessions secret: %w", err)
	}
	return nil
}

// UpdateSessionAccessToken rewrites only the access token of the persisted
// session, keeping the rest of the record byte-for-byte intact. It is a no-op
// when no session is stored.
func (s *CredentialStore) UpdateSessionAccessToken(token string) error {
	raw, present, err := s.secrets.Get(sessionsSecretKey)
	if err != nil {
		return fmt.Errorf("read sessions secret: %w", err)
	}
	if !present || raw == "" {
		return nil
	}
	updated, err := sjson.SetBytes([]byte(raw), "0.accessToken", token)
	if err != nil {
		return fmt.Errorf("update session access token: %w", err)
	}
	if err := s.secrets.Set(sessionsSecretKey, string(updated)); err != nil {
		return fmt.Errorf("write sessions secret: %w", err)
	}
	return nil
}
