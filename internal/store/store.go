// Package store implements the encrypted-at-rest persistence of users,
// bearer tokens and failed login attempts. Users and attempts live inside
// signed JSON containers sealed with AES-256-GCM under the system key; the
// tokens file is a raw nonce-prefixed AEAD blob under its own key. All
// writes are whole-file replacements via rename-from-temp, serialized by a
// per-file mutex.
package store

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/securevault/secureserver/internal/config"
)

// File names inside the data directory. The layout is the storage contract.
const (
	usersFileName    = "users.json"
	tokensFileName   = "tokens.json"
	attemptsFileName = "failed_attempts.json"
)

// Store owns the three data files.
type Store struct {
	dir  string
	keys config.Keys
	// replaceCorrupted resets a file that fails decryption or integrity
	// checking instead of failing the call. Debug aid only.
	replaceCorrupted bool
	log              *slog.Logger

	usersMu    sync.Mutex
	tokensMu   sync.Mutex
	attemptsMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithReplaceCorrupted enables the reset-on-corruption policy.
func WithReplaceCorrupted(enabled bool) Option {
	return func(s *Store) { s.replaceCorrupted = enabled }
}

// WithLogger sets the logger for integrity and reset events.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, keys config.Keys, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	s := &Store{
		dir:  dir,
		keys: keys,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) usersPath() string    { return filepath.Join(s.dir, usersFileName) }
func (s *Store) tokensPath() string   { return filepath.Join(s.dir, tokensFileName) }
func (s *Store) attemptsPath() string { return filepath.Join(s.dir, attemptsFileName) }

// writeFileAtomic replaces path in one step so readers never observe a
// partially written file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
