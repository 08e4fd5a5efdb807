package admin

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/securevault/secureserver/internal/auth"
	"github.com/securevault/secureserver/internal/crypto"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/store"
)

// CreateUser clones the template account and overlays the given key/value
// pairs using the relaxed coercion rules. Keys naming a known profile field
// set that field; everything else lands in the extension map.
func (s *Service) CreateUser(ctx context.Context, sessionToken, username, password string, overrides map[string]string) (*store.User, error) {
	caller, _, err := s.AuthenticateSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	if username == store.TemplateUsername {
		return nil, auth.ErrUsernameTaken
	}

	hash, err := crypto.HashPassword(ctx, password)
	if err != nil {
		return nil, err
	}
	salt, err := crypto.RandomHex(16)
	if err != nil {
		return nil, err
	}
	secret, err := crypto.RandomBase32()
	if err != nil {
		return nil, err
	}

	var created *store.User
	err = s.store.UpdateUsers(func(users []*store.User) ([]*store.User, error) {
		if store.FindUserByUsername(users, username) != nil {
			return nil, auth.ErrUsernameTaken
		}
		template := store.FindUserByUsername(users, store.TemplateUsername)
		if template == nil {
			return nil, store.ErrUserNotFound
		}

		user := template.Clone()
		user.ID = uuid.NewString()
		user.Username = username
		user.Password = hash
		user.Salt = salt
		user.TwoFASecret = secret
		user.TwoFASetupComplete = false

		for key, raw := range overrides {
			applyOverride(user, key, raw)
		}

		created = user
		return append(users, user), nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("admin created user",
		logging.Username(caller.Username),
		logging.UserID(created.ID),
	)
	return created, nil
}

// applyOverride routes one key/value pair onto the user record. String
// fields take the raw input, so numeric-looking values like phone numbers
// survive; flag fields and extension values go through the coercion rules.
func applyOverride(user *store.User, key, raw string) {
	value := store.ParseValue(raw)

	switch key {
	case "first_name":
		user.FirstName = strings.TrimSpace(raw)
	case "last_name":
		user.LastName = strings.TrimSpace(raw)
	case "email":
		user.Email = strings.TrimSpace(raw)
	case "phone":
		user.Phone = strings.TrimSpace(raw)
	case "preferred_contact_method":
		user.PreferredContactMethod = strings.TrimSpace(raw)
	case "admin":
		user.Admin = value.Kind() == store.KindBool && value.Bool()
	case "dev_admin":
		user.DevAdmin = value.Kind() == store.KindBool && value.Bool()
	case "freeze":
		user.Freeze = value.Kind() == store.KindBool && value.Bool()
	case "2fa_enabled":
		user.TwoFAEnabled = value.Kind() == store.KindBool && value.Bool()
	default:
		if user.Extra == nil {
			user.Extra = make(map[string]store.Value)
		}
		user.Extra[key] = value
	}
}
