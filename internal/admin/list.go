package admin

import (
	"context"
	"time"

	"github.com/securevault/secureserver/internal/store"
)

// UserSummary is the redacted projection served by list-users and
// get_all_users. No credential or vault material leaves the store.
type UserSummary struct {
	ID                     string `json:"id"`
	Username               string `json:"username"`
	Name                   string `json:"name,omitempty"`
	Email                  string `json:"email,omitempty"`
	Phone                  string `json:"phone,omitempty"`
	PreferredContactMethod string `json:"preferred_contact_method,omitempty"`
	Admin                  bool   `json:"admin"`
	DevAdmin               bool   `json:"dev_admin"`
	RootAuth               bool   `json:"root_auth"`
	TwoFAEnabled           bool   `json:"2fa_enabled"`
	Freeze                 bool   `json:"freeze"`
	VaultSize              int    `json:"vault_size"`
	FailedAttempts         int    `json:"failed_attempts"`
}

// SessionSummary joins a persisted token to its user for list-sessions.
type SessionSummary struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	AuthTime string `json:"auth_time"`
	Expires  string `json:"expires"`
}

// AttemptRecord is one flattened failed-login entry for list-attempts.
type AttemptRecord struct {
	Username string `json:"username"`
	Time     string `json:"time"`
}

// ListUsers returns the redacted user projection. The template account is
// hidden.
func (s *Service) ListUsers(ctx context.Context, sessionToken string) ([]UserSummary, error) {
	if _, _, err := s.AuthenticateSession(ctx, sessionToken); err != nil {
		return nil, err
	}
	users, err := s.store.LoadUsers()
	if err != nil {
		return nil, err
	}
	attempts, err := s.store.LoadFailedAttempts()
	if err != nil {
		return nil, err
	}

	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		if u.Username == store.TemplateUsername {
			continue
		}
		out = append(out, UserSummary{
			ID:                     u.ID,
			Username:               u.Username,
			Name:                   joinName(u.FirstName, u.LastName),
			Email:                  u.Email,
			Phone:                  u.Phone,
			PreferredContactMethod: u.PreferredContactMethod,
			Admin:                  u.Admin,
			DevAdmin:               u.DevAdmin,
			RootAuth:               u.RootAuth,
			TwoFAEnabled:           u.TwoFAEnabled,
			Freeze:                 u.Freeze,
			VaultSize:              len(u.Vault),
			FailedAttempts:         len(attempts[u.Username]),
		})
	}
	return out, nil
}

// ListSessions returns every live token joined to its user.
func (s *Service) ListSessions(ctx context.Context, sessionToken string) ([]SessionSummary, error) {
	if _, _, err := s.AuthenticateSession(ctx, sessionToken); err != nil {
		return nil, err
	}
	tokens, err := s.store.LoadTokens()
	if err != nil {
		return nil, err
	}
	users, err := s.store.LoadUsers()
	if err != nil {
		return nil, err
	}

	out := make([]SessionSummary, 0, len(tokens))
	for _, t := range tokens {
		username := "(deleted)"
		if u := store.FindUserByID(users, t.UserID); u != nil {
			username = u.Username
		}
		out = append(out, SessionSummary{
			Token:    t.SafeLog,
			UserID:   t.UserID,
			Username: username,
			AuthTime: humanTime(t.AuthTime),
			Expires:  humanTime(t.Exp),
		})
	}
	return out, nil
}

// ListAttempts returns the failure log flattened to one record per attempt.
func (s *Service) ListAttempts(ctx context.Context, sessionToken string) ([]AttemptRecord, error) {
	if _, _, err := s.AuthenticateSession(ctx, sessionToken); err != nil {
		return nil, err
	}
	attempts, err := s.store.LoadFailedAttempts()
	if err != nil {
		return nil, err
	}

	var out []AttemptRecord
	for username, times := range attempts {
		for _, ts := range times {
			out = append(out, AttemptRecord{Username: username, Time: humanTime(ts)})
		}
	}
	return out, nil
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

func humanTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04:05 MST")
}
