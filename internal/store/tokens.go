package store

import (
	"encoding/json"
	"os"

	"github.com/securevault/secureserver/internal/crypto"
	"github.com/securevault/secureserver/internal/logging"
)

// Token is one persisted bearer-token record. ID is the HMAC of the
// plaintext token; the plaintext itself is never stored.
type Token struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Exp       int64  `json:"exp"`
	AuthTime  int64  `json:"auth_time"`
	SessionID string `json:"session_id"`
	CSRF      string `json:"csrf"`
	SafeLog   string `json:"safe_log"`
}

// LoadTokens decrypts the tokens file. The file is a raw
// nonce ‖ AES-GCM(json) blob under the token key; GCM authentication stands
// in for the container signature used elsewhere.
func (s *Store) LoadTokens() ([]*Token, error) {
	s.tokensMu.Lock()
	defer s.tokensMu.Unlock()
	return s.loadTokensLocked()
}

func (s *Store) loadTokensLocked() ([]*Token, error) {
	raw, err := os.ReadFile(s.tokensPath())
	if os.IsNotExist(err) {
		if werr := s.saveTokensLocked(nil); werr != nil {
			return nil, werr
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	plaintext, err := crypto.DecryptRaw(s.keys.Token, raw)
	if err != nil {
		s.log.Error("corrupted encrypted file", logging.File(s.tokensPath()), logging.Error(err))
		if s.replaceCorrupted {
			s.log.Warn("resetting encrypted file", logging.File(s.tokensPath()))
			if werr := s.saveTokensLocked(nil); werr != nil {
				return nil, werr
			}
			return nil, nil
		}
		return nil, err
	}

	var tokens []*Token
	if err := json.Unmarshal(plaintext, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// SaveTokens encrypts and atomically replaces the tokens file.
func (s *Store) SaveTokens(tokens []*Token) error {
	s.tokensMu.Lock()
	defer s.tokensMu.Unlock()
	return s.saveTokensLocked(tokens)
}

func (s *Store) saveTokensLocked(tokens []*Token) error {
	if tokens == nil {
		tokens = []*Token{}
	}
	plaintext, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	sealed, err := crypto.EncryptRaw(s.keys.Token, plaintext)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.tokensPath(), sealed)
}

// UpdateTokens applies fn to the token list under the file lock. Issue,
// validate-with-purge and revoke all use it so concurrent handlers cannot
// interleave read-modify-write cycles.
func (s *Store) UpdateTokens(fn func(tokens []*Token) ([]*Token, error)) error {
	s.tokensMu.Lock()
	defer s.tokensMu.Unlock()

	tokens, err := s.loadTokensLocked()
	if err != nil {
		return err
	}
	next, err := fn(tokens)
	if err != nil {
		return err
	}
	return s.saveTokensLocked(next)
}
