package store

import (
	"encoding/json"
	"errors"
	"maps"
)

// TemplateUsername is the reserved account cloned on every signup. It can
// never authenticate and is hidden from user-facing enumeration.
const TemplateUsername = "template"

// ErrUserNotFound is returned by lookups that require an existing user.
var ErrUserNotFound = errors.New("user not found")

// User is the durable account record. Extension fields created by the admin
// surface live in Extra as tagged scalars.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Salt     string `json:"salt"`

	TwoFASecret        string `json:"2fa_secret,omitempty"`
	TwoFAEnabled       bool   `json:"2fa_enabled"`
	TwoFASetupComplete bool   `json:"2fa_setup_complete"`

	Freeze   bool `json:"freeze"`
	Admin    bool `json:"admin"`
	DevAdmin bool `json:"dev_admin"`
	RootAuth bool `json:"root_auth"`
	Root     bool `json:"root,omitempty"`

	Vault                 string `json:"vault,omitempty"`
	VaultMasterKeyWrapped string `json:"vault_master_key_wrapped,omitempty"`

	FirstName              string `json:"first_name,omitempty"`
	LastName               string `json:"last_name,omitempty"`
	Email                  string `json:"email,omitempty"`
	Phone                  string `json:"phone,omitempty"`
	PreferredContactMethod string `json:"preferred_contact_method,omitempty"`

	Extra map[string]Value `json:"extra,omitempty"`
}

// Clone returns a deep copy, used when stamping new accounts from the
// template user.
func (u *User) Clone() *User {
	c := *u
	if u.Extra != nil {
		c.Extra = maps.Clone(u.Extra)
	}
	return &c
}

// LoadUsers decrypts and verifies the users file. A missing file yields an
// empty set.
func (s *Store) LoadUsers() ([]*User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	return s.loadUsersLocked()
}

func (s *Store) loadUsersLocked() ([]*User, error) {
	data, err := s.loadContainer(s.usersPath(), json.RawMessage("[]"))
	if err != nil {
		return nil, err
	}
	var users []*User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SaveUsers signs, encrypts and atomically replaces the users file.
func (s *Store) SaveUsers(users []*User) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	return s.saveUsersLocked(users)
}

func (s *Store) saveUsersLocked(users []*User) error {
	if users == nil {
		users = []*User{}
	}
	data, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return s.writeContainer(s.usersPath(), data)
}

// UpdateUsers applies fn to the user set under the file lock, persisting
// only when fn returns a non-nil slice. Login, signup, admin mutations and
// password change all go through here so successive writes for one user
// observe each other.
func (s *Store) UpdateUsers(fn func(users []*User) ([]*User, error)) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := s.loadUsersLocked()
	if err != nil {
		return err
	}
	next, err := fn(users)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	return s.saveUsersLocked(next)
}

// FindUserByID returns the user with the given id, or nil.
func FindUserByID(users []*User, id string) *User {
	for _, u := range users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// FindUserByUsername returns the user with the given username, or nil.
// Usernames are case-sensitive.
func FindUserByUsername(users []*User, username string) *User {
	for _, u := range users {
		if u.Username == username {
			return u
		}
	}
	return nil
}
