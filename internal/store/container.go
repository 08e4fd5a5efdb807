package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/securevault/secureserver/internal/crypto"
	"github.com/securevault/secureserver/internal/logging"
)

// ErrIntegrity is returned when a container signature does not match its
// payload. Callers treat this as fatal unless the reset policy is enabled.
var ErrIntegrity = errors.New("data integrity violation detected")

// container is the signed envelope stored inside each encrypted file.
type container struct {
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// canonicalJSON serializes v deterministically: two-space indentation with
// object keys sorted. Signatures are computed over this form so that field
// ordering in memory never affects verification.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	// encoding/json sorts map keys, which yields the canonical ordering.
	return json.MarshalIndent(generic, "", "  ")
}

// loadContainer decrypts and verifies one container file. emptyData is the
// canonical empty payload ("[]" or "{}") used when the file is missing or
// reset.
func (s *Store) loadContainer(path string, emptyData []byte) (json.RawMessage, error) {
	enc, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if s.replaceCorrupted {
			s.log.Warn("encrypted file missing, creating fresh", logging.File(path))
			if werr := s.writeContainer(path, emptyData); werr != nil {
				return nil, werr
			}
		}
		return emptyData, nil
	}
	if err != nil {
		return nil, err
	}

	plaintext, err := crypto.Decrypt(s.keys.System, string(enc))
	if err != nil {
		return s.handleCorrupted(path, emptyData, err)
	}

	var c container
	if err := json.Unmarshal(plaintext, &c); err != nil {
		return s.handleCorrupted(path, emptyData, err)
	}
	if c.Data == nil || c.Signature == "" {
		return s.handleCorrupted(path, emptyData, errors.New("missing required keys in container"))
	}

	canonical, err := canonicalJSON(c.Data)
	if err != nil {
		return nil, err
	}
	want := crypto.SignHex(s.keys.Integrity, canonical)
	if !crypto.EqualConstantTime(c.Signature, want) {
		s.log.Error("CRITICAL: file integrity check failed", logging.File(path))
		if s.replaceCorrupted {
			s.log.Warn("resetting encrypted file due to integrity error", logging.File(path))
			if werr := s.writeContainer(path, emptyData); werr != nil {
				return nil, werr
			}
			return emptyData, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrIntegrity, path)
	}

	return c.Data, nil
}

// writeContainer signs data, seals the container and replaces the file.
func (s *Store) writeContainer(path string, data json.RawMessage) error {
	canonical, err := canonicalJSON(data)
	if err != nil {
		return err
	}
	c := container{
		Data:      data,
		Signature: crypto.SignHex(s.keys.Integrity, canonical),
	}
	plaintext, err := json.Marshal(c)
	if err != nil {
		return err
	}
	sealed, err := crypto.Encrypt(s.keys.System, plaintext)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, []byte(sealed))
}

func (s *Store) handleCorrupted(path string, emptyData []byte, cause error) (json.RawMessage, error) {
	s.log.Error("corrupted encrypted file", logging.File(path), logging.Error(cause))
	if s.replaceCorrupted {
		s.log.Warn("resetting encrypted file", logging.File(path))
		if err := s.writeContainer(path, emptyData); err != nil {
			return nil, err
		}
		return emptyData, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrIntegrity, path)
}
