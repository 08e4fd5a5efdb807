package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/securevault/secureserver/internal/crypto"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/store"
)

// SignupRequest carries the caller-supplied fields of a registration.
// Profile fields are honored only when the corresponding collection flag is
// enabled in configuration.
type SignupRequest struct {
	Username               string
	Password               string
	FirstName              string
	LastName               string
	Email                  string
	Phone                  string
	PreferredContactMethod string
}

// Signup registers a new account by deep-copying the template user and
// overlaying the request.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*store.User, error) {
	if err := ValidateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if req.Username == store.TemplateUsername {
		return nil, ErrUsernameTaken
	}

	hash, err := crypto.HashPassword(ctx, req.Password)
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
		if store.FindUserByUsername(users, req.Username) != nil {
			return nil, ErrUsernameTaken
		}
		template := store.FindUserByUsername(users, store.TemplateUsername)
		if template == nil {
			return nil, store.ErrUserNotFound
		}

		user := template.Clone()
		user.ID = uuid.NewString()
		user.Username = req.Username
		user.Password = hash
		user.Salt = salt
		user.TwoFASecret = secret
		user.TwoFAEnabled = s.cfg.DefaultUser2FA
		user.TwoFASetupComplete = false

		if s.cfg.TakeFullName {
			user.FirstName = req.FirstName
			user.LastName = req.LastName
		}
		if s.cfg.TakeEmail {
			user.Email = req.Email
		}
		if s.cfg.TakePhone {
			user.Phone = req.Phone
		}
		if s.cfg.CollectsContact() && req.PreferredContactMethod != "" {
			user.PreferredContactMethod = req.PreferredContactMethod
		}

		created = user
		return append(users, user), nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("account created", logging.Username(created.Username), logging.UserID(created.ID))
	return created, nil
}

// EnsureTemplateUser creates the reserved template account at startup if it
// is missing. Its password is random and never disclosed, so the account
// cannot authenticate.
func (s *Service) EnsureTemplateUser(ctx context.Context) error {
	randomPassword, err := crypto.RandomHex(36)
	if err != nil {
		return err
	}
	hash, err := crypto.HashPassword(ctx, randomPassword)
	if err != nil {
		return err
	}
	salt, err := crypto.RandomHex(16)
	if err != nil {
		return err
	}

	return s.store.UpdateUsers(func(users []*store.User) ([]*store.User, error) {
		if len(users) == 0 {
			// Bootstrap of the first developer admin has not happened yet;
			// the template is created on the first start after it.
			return nil, nil
		}
		if store.FindUserByUsername(users, store.TemplateUsername) != nil {
			return nil, nil
		}

		secret, err := crypto.RandomBase32()
		if err != nil {
			return nil, err
		}
		template := &store.User{
			ID:           uuid.NewString(),
			Username:     store.TemplateUsername,
			Password:     hash,
			Salt:         salt,
			TwoFASecret:  secret,
			TwoFAEnabled: s.cfg.Enable2FA && (s.cfg.DefaultUser2FA || s.cfg.Require2FA),
		}
		if s.cfg.TakeFullName {
			template.FirstName = "first"
			template.LastName = "last"
		}
		if s.cfg.TakeEmail {
			template.Email = s.cfg.TemplateUserEmail
			template.PreferredContactMethod = "email"
		}
		if s.cfg.TakePhone {
			template.Phone = s.cfg.TemplateUserPhone
			template.PreferredContactMethod = "sms"
		}
		s.log.Info("created template user", logging.UserID(template.ID))
		return append(users, template), nil
	})
}
