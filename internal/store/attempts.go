package store

import "encoding/json"

// FailedAttempts maps a username to the Unix timestamps of its recent
// failed logins. Entries outside the lockout window are pruned by the login
// state machine on every read.
type FailedAttempts map[string][]int64

// LoadFailedAttempts decrypts and verifies the failed-attempts file.
func (s *Store) LoadFailedAttempts() (FailedAttempts, error) {
	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()

	data, err := s.loadContainer(s.attemptsPath(), json.RawMessage("{}"))
	if err != nil {
		return nil, err
	}
	attempts := FailedAttempts{}
	if err := json.Unmarshal(data, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

// SaveFailedAttempts signs, encrypts and atomically replaces the file.
func (s *Store) SaveFailedAttempts(attempts FailedAttempts) error {
	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()
	return s.saveAttemptsLocked(attempts)
}

func (s *Store) saveAttemptsLocked(attempts FailedAttempts) error {
	if attempts == nil {
		attempts = FailedAttempts{}
	}
	data, err := json.Marshal(attempts)
	if err != nil {
		return err
	}
	return s.writeContainer(s.attemptsPath(), data)
}

// UpdateAttempts applies fn to the attempts map under the file lock,
// persisting only when fn reports a change. The lockout pruning and failure
// recording of the login path both go through here.
func (s *Store) UpdateAttempts(fn func(attempts FailedAttempts) (changed bool, err error)) error {
	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()

	data, err := s.loadContainer(s.attemptsPath(), json.RawMessage("{}"))
	if err != nil {
		return err
	}
	attempts := FailedAttempts{}
	if err := json.Unmarshal(data, &attempts); err != nil {
		return err
	}
	changed, err := fn(attempts)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.saveAttemptsLocked(attempts)
}
