package admin

import (
	"context"
	"fmt"

	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/store"
)

// Actions accepted by UserAction.
const (
	ActionFreeze         = "freeze"
	ActionUnfreeze       = "unfreeze"
	ActionClearAttempts  = "clear_attempts"
	ActionPromoteApp     = "promote_app_admin"
	ActionDemoteApp      = "demote_app_admin"
	ActionPromoteDev     = "promote_dev_admin"
	ActionDemoteDev      = "demote_dev_admin"
	ActionGrantRootAuth  = "grant_root_auth"
	ActionRevokeRootAuth = "revoke_root_auth"
)

// LogoutUser revokes every token of the target user.
func (s *Service) LogoutUser(ctx context.Context, sessionToken, userID string) error {
	caller, _, err := s.AuthenticateSession(ctx, sessionToken)
	if err != nil {
		return err
	}
	if err := s.tokens.RemoveAll(userID); err != nil {
		return err
	}
	s.log.Info("admin revoked user tokens",
		logging.Username(caller.Username),
		logging.UserID(userID),
	)
	return nil
}

// LogoutSelf revokes the calling session's token only.
func (s *Service) LogoutSelf(ctx context.Context, sessionToken string) error {
	caller, entry, err := s.AuthenticateSession(ctx, sessionToken)
	if err != nil {
		return err
	}
	if err := s.tokens.RemoveByDigest(entry.ID); err != nil {
		return err
	}
	s.log.Info("admin logged out", logging.Username(caller.Username))
	return nil
}

// LogoutAll revokes every token in the system, the caller's included.
func (s *Service) LogoutAll(ctx context.Context, sessionToken string) error {
	caller, _, err := s.AuthenticateSession(ctx, sessionToken)
	if err != nil {
		return err
	}
	if err := s.store.SaveTokens(nil); err != nil {
		return err
	}
	s.log.Warn("admin revoked all tokens", logging.Username(caller.Username))
	return nil
}

// ClearAllAttempts empties the failed-attempts log.
func (s *Service) ClearAllAttempts(ctx context.Context, sessionToken string) error {
	caller, _, err := s.AuthenticateSession(ctx, sessionToken)
	if err != nil {
		return err
	}
	if err := s.store.SaveFailedAttempts(nil); err != nil {
		return err
	}
	s.log.Info("admin cleared failed attempts", logging.Username(caller.Username))
	return nil
}

// UserAction applies one named mutation to the target user. Unknown verbs
// are logged and rejected.
func (s *Service) UserAction(ctx context.Context, sessionToken, action, userID string) error {
	caller, _, err := s.AuthenticateSession(ctx, sessionToken)
	if err != nil {
		return err
	}

	if action == ActionClearAttempts {
		return s.clearUserAttempts(caller, userID)
	}

	err = s.store.UpdateUsers(func(users []*store.User) ([]*store.User, error) {
		target := store.FindUserByID(users, userID)
		if target == nil {
			return nil, store.ErrUserNotFound
		}
		switch action {
		case ActionFreeze:
			target.Freeze = true
		case ActionUnfreeze:
			target.Freeze = false
		case ActionPromoteApp:
			target.Admin = true
		case ActionDemoteApp:
			target.Admin = false
		case ActionPromoteDev:
			target.DevAdmin = true
		case ActionDemoteDev:
			target.DevAdmin = false
		case ActionGrantRootAuth:
			target.RootAuth = true
		case ActionRevokeRootAuth:
			target.RootAuth = false
		default:
			s.log.Warn("unknown admin action",
				logging.Username(caller.Username),
				logging.Action(action),
			)
			return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
		}
		return users, nil
	})
	if err != nil {
		return err
	}

	// A freeze must also end the user's live sessions.
	if action == ActionFreeze {
		if err := s.tokens.RemoveAll(userID); err != nil {
			return err
		}
	}

	s.log.Info("admin user action",
		logging.Username(caller.Username),
		logging.Action(action),
		logging.UserID(userID),
	)
	return nil
}

func (s *Service) clearUserAttempts(caller *store.User, userID string) error {
	users, err := s.store.LoadUsers()
	if err != nil {
		return err
	}
	target := store.FindUserByID(users, userID)
	if target == nil {
		return store.ErrUserNotFound
	}

	err = s.store.UpdateAttempts(func(attempts store.FailedAttempts) (bool, error) {
		if _, ok := attempts[target.Username]; !ok {
			return false, nil
		}
		delete(attempts, target.Username)
		return true, nil
	})
	if err != nil {
		return err
	}
	s.log.Info("admin cleared user attempts",
		logging.Username(caller.Username),
		logging.UserID(userID),
	)
	return nil
}
