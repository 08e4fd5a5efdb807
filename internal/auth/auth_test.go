package auth_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securevault/secureserver/internal/auth"
	"github.com/securevault/secureserver/internal/config"
	"github.com/securevault/secureserver/internal/crypto"
	"github.com/securevault/secureserver/internal/session"
	"github.com/securevault/secureserver/internal/store"
	"github.com/securevault/secureserver/internal/token"
)

const (
	testPassword = "CorrectHorseBattery9!"
	newPassword  = "FreshStableDonkey42$"
)

func testKeys() config.Keys {
	return config.Keys{
		System:        bytes.Repeat([]byte{0x01}, 32),
		Integrity:     []byte("integrity-key-for-tests-32-bytes"),
		Encapsulation: []byte("encapsulation-key-for-tests-32by"),
		Token:         bytes.Repeat([]byte{0x02}, 32),
	}
}

func testConfig() config.Config {
	return config.Config{
		AppName:               "SecureServer",
		MaxLoginFailures:      5,
		LockoutLoginWindowSec: 900,
		PWChangeAuthWindowSec: 120,
		TokenAgeSec:           900,
		TakeFullName:          true,
		Keys:                  testKeys(),
	}
}

type fixture struct {
	store    *store.Store
	sessions *session.Store
	engine   *token.Engine
	svc      *auth.Service
	cfg      config.Config
	clock    *time.Time
}

func newFixture(t *testing.T, mutate func(cfg *config.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	now := time.Now()
	f := &fixture{cfg: cfg, clock: &now}
	tick := func() time.Time { return *f.clock }

	st, err := store.New(t.TempDir(), cfg.Keys)
	require.NoError(t, err)
	f.store = st
	f.sessions = session.New(session.WithClock(tick))
	f.engine = token.NewEngine(st, f.sessions, cfg.Keys, token.WithClock(tick))
	f.svc = auth.NewService(st, f.engine, cfg, auth.WithClock(tick))
	return f
}

func (f *fixture) advance(d time.Duration) {
	next := f.clock.Add(d)
	f.clock = &next
}

// seedUser writes a user with a real password verifier straight to the store,
// bypassing signup.
func seedUser(t *testing.T, f *fixture, username, password string, mutate func(u *store.User)) *store.User {
	t.Helper()

	ctx := context.Background()
	hash, err := crypto.HashPassword(ctx, password)
	require.NoError(t, err)
	salt, err := crypto.RandomHex(16)
	require.NoError(t, err)

	u := &store.User{
		ID:       uuid.NewString(),
		Username: username,
		Password: hash,
		Salt:     salt,
	}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, f.store.UpdateUsers(func(users []*store.User) ([]*store.User, error) {
		return append(users, u), nil
	}))
	return u
}

// grantFor issues real credentials and resolves them into a Grant.
func grantFor(t *testing.T, f *fixture, userID, password string) *token.Grant {
	t.Helper()

	ctx := context.Background()
	creds, err := f.engine.Issue(ctx, userID, password, time.Hour)
	require.NoError(t, err)

	_, entry, err := f.engine.Validate(ctx, creds.Token)
	require.NoError(t, err)
	require.NotNil(t, entry)

	users, err := f.store.LoadUsers()
	require.NoError(t, err)
	user := store.FindUserByID(users, userID)
	require.NotNil(t, user)

	secret, ok := f.sessions.Get(entry.SessionID)
	require.True(t, ok)
	return &token.Grant{User: user, Token: entry, LoginSecret: secret}
}

func TestLoginBootstrap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("first login creates the developer admin", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, func(cfg *config.Config) { cfg.Enable2FA = true })

		res, err := f.svc.Login(ctx, auth.SurfaceAdmin, "alice", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeTOTPSetup, res.Code)
		assert.Contains(t, res.Payload, "otpauth://totp/SecureServerAdmin:alice")

		users, err := f.store.LoadUsers()
		require.NoError(t, err)
		require.Len(t, users, 1)
		admin := users[0]
		assert.True(t, admin.Root)
		assert.True(t, admin.DevAdmin)
		assert.True(t, admin.RootAuth)
		assert.True(t, admin.TwoFAEnabled)
		assert.False(t, admin.TwoFASetupComplete)
	})

	t.Run("setup completes with a valid code", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, func(cfg *config.Config) { cfg.Enable2FA = true })

		_, err := f.svc.Login(ctx, auth.SurfaceAdmin, "alice", testPassword, "")
		require.NoError(t, err)

		users, err := f.store.LoadUsers()
		require.NoError(t, err)
		code, err := crypto.TOTPCode(users[0].TwoFASecret, *f.clock)
		require.NoError(t, err)

		res, err := f.svc.Login(ctx, auth.SurfaceAdmin, "alice", testPassword, code)
		require.NoError(t, err)
		assert.Equal(t, auth.CodeRootSuccess, res.Code)
		require.NotEmpty(t, res.Credentials.Token)

		user, _, err := f.engine.Validate(ctx, res.Credentials.Token)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.True(t, user.TwoFASetupComplete)
	})

	t.Run("root cannot use the public surface", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)

		_, err := f.svc.Login(ctx, auth.SurfaceAdmin, "alice", testPassword, "")
		require.NoError(t, err)

		res, err := f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeBadCredentials, res.Code)
	})
}

func TestLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("success on public surface", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		u := seedUser(t, f, "alice", testPassword, nil)

		res, err := f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeSuccess, res.Code)
		assert.Equal(t, u.ID, res.User.ID)
		assert.NotEmpty(t, res.Credentials.Token)
		assert.NotEmpty(t, res.Credentials.AuthKey)
		assert.NotEmpty(t, res.Credentials.CSRF)
	})

	t.Run("wrong password records a failure", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedUser(t, f, "alice", testPassword, nil)

		res, err := f.svc.Login(ctx, auth.SurfacePublic, "alice", "WrongHorseBattery1!", "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeBadCredentials, res.Code)

		attempts, err := f.store.LoadFailedAttempts()
		require.NoError(t, err)
		assert.Len(t, attempts["alice"], 1)
	})

	t.Run("unknown username is indistinguishable", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedUser(t, f, "alice", testPassword, nil)

		res, err := f.svc.Login(ctx, auth.SurfacePublic, "nobody", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeBadCredentials, res.Code)
	})

	t.Run("oversized credentials rejected before hashing", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedUser(t, f, "alice", testPassword, nil)

		res, err := f.svc.Login(ctx, auth.SurfacePublic, strings.Repeat("a", 33), testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeBadCredentials, res.Code)

		res, err = f.svc.Login(ctx, auth.SurfacePublic, "alice", strings.Repeat("A1a!", 19), "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeBadCredentials, res.Code)

		// No account can hold such credentials, so no failure is recorded.
		attempts, err := f.store.LoadFailedAttempts()
		require.NoError(t, err)
		assert.Empty(t, attempts)
	})

	t.Run("frozen account", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedUser(t, f, "alice", testPassword, func(u *store.User) { u.Freeze = true })

		res, err := f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeFrozen, res.Code)
	})

	t.Run("admin surface requires dev_admin", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedUser(t, f, "alice", testPassword, nil)

		res, err := f.svc.Login(ctx, auth.SurfaceAdmin, "alice", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeBadCredentials, res.Code)
	})

	t.Run("root_auth yields the root success code", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedUser(t, f, "alice", testPassword, func(u *store.User) {
			u.DevAdmin = true
			u.RootAuth = true
		})

		res, err := f.svc.Login(ctx, auth.SurfaceAdmin, "alice", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeRootSuccess, res.Code)
	})
}

func TestLoginLockout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, nil)
	seedUser(t, f, "alice", testPassword, nil)

	for i := 0; i < 5; i++ {
		res, err := f.svc.Login(ctx, auth.SurfacePublic, "alice", "WrongHorseBattery1!", "")
		require.NoError(t, err)
		require.Equal(t, auth.CodeBadCredentials, res.Code, "attempt %d", i+1)
	}

	f.advance(time.Minute)

	res, err := f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, "")
	require.NoError(t, err)
	assert.Equal(t, auth.CodeLocked, res.Code)
	assert.Equal(t, "Try again in 14 minutes", res.Payload)

	// The attempts age out of the window and the correct password works again.
	f.advance(15 * time.Minute)

	res, err = f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, "")
	require.NoError(t, err)
	assert.Equal(t, auth.CodeSuccess, res.Code)

	attempts, err := f.store.LoadFailedAttempts()
	require.NoError(t, err)
	assert.Empty(t, attempts["alice"])
}

func TestLoginTwoFactor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("setup phase serves the provisioning uri", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, func(cfg *config.Config) { cfg.Enable2FA = true })
		seedUser(t, f, "alice", testPassword, func(u *store.User) {
			u.TwoFAEnabled = true
		})

		res, err := f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeTOTPSetup, res.Code)
		assert.Contains(t, res.Payload, "otpauth://totp/SecureServer:alice")
	})

	t.Run("verification phase", func(t *testing.T) {
		t.Parallel()

		secret, err := crypto.RandomBase32()
		require.NoError(t, err)

		f := newFixture(t, func(cfg *config.Config) { cfg.Enable2FA = true })
		seedUser(t, f, "alice", testPassword, func(u *store.User) {
			u.TwoFAEnabled = true
			u.TwoFASecret = secret
			u.TwoFASetupComplete = true
		})

		res, err := f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeTOTPRequired, res.Code)

		res, err = f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, "000000")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeTOTPInvalid, res.Code)

		code, err := crypto.TOTPCode(secret, *f.clock)
		require.NoError(t, err)
		res, err = f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, code)
		require.NoError(t, err)
		assert.Equal(t, auth.CodeSuccess, res.Code)
	})

	t.Run("require flag gates users without 2fa", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, func(cfg *config.Config) {
			cfg.Enable2FA = true
			cfg.Require2FA = true
		})
		seedUser(t, f, "alice", testPassword, nil)

		res, err := f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeTOTPSetup, res.Code)
	})

	t.Run("disabled server flag skips the gate", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedUser(t, f, "alice", testPassword, func(u *store.User) {
			u.TwoFAEnabled = true
		})

		res, err := f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeSuccess, res.Code)
	})
}

func TestSignup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seedTemplate := func(t *testing.T, f *fixture) {
		t.Helper()
		seedUser(t, f, store.TemplateUsername, testPassword, func(u *store.User) {
			u.FirstName = "first"
			u.LastName = "last"
		})
	}

	t.Run("clones the template", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedTemplate(t, f)

		created, err := f.svc.Signup(ctx, auth.SignupRequest{
			Username:  "bob",
			Password:  testPassword,
			FirstName: "Bob",
			LastName:  "Builder",
		})
		require.NoError(t, err)
		assert.Equal(t, "bob", created.Username)
		assert.Equal(t, "Bob", created.FirstName)
		assert.NotEmpty(t, created.Salt)

		res, err := f.svc.Login(ctx, auth.SurfacePublic, "bob", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeSuccess, res.Code)
	})

	t.Run("duplicate username", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedTemplate(t, f)
		seedUser(t, f, "bob", testPassword, nil)

		_, err := f.svc.Signup(ctx, auth.SignupRequest{Username: "bob", Password: testPassword})
		assert.ErrorIs(t, err, auth.ErrUsernameTaken)
	})

	t.Run("template name is reserved", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedTemplate(t, f)

		_, err := f.svc.Signup(ctx, auth.SignupRequest{
			Username: store.TemplateUsername,
			Password: testPassword,
		})
		assert.ErrorIs(t, err, auth.ErrUsernameTaken)
	})

	t.Run("missing template", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedUser(t, f, "alice", testPassword, nil)

		_, err := f.svc.Signup(ctx, auth.SignupRequest{Username: "bob", Password: testPassword})
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)

		_, err := f.svc.Signup(ctx, auth.SignupRequest{Username: "ab", Password: testPassword})
		assert.ErrorIs(t, err, auth.ErrInvalidUsername)

		_, err = f.svc.Signup(ctx, auth.SignupRequest{Username: "has space", Password: testPassword})
		assert.ErrorIs(t, err, auth.ErrInvalidUsername)

		_, err = f.svc.Signup(ctx, auth.SignupRequest{Username: "bob", Password: "short1!"})
		assert.ErrorIs(t, err, auth.ErrInvalidPassword)

		_, err = f.svc.Signup(ctx, auth.SignupRequest{Username: "bob", Password: "alllowercase111111"})
		assert.ErrorIs(t, err, auth.ErrInvalidPassword)
	})

	t.Run("contact fields honor collection flags", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, func(cfg *config.Config) {
			cfg.TakeEmail = true
		})
		seedTemplate(t, f)

		created, err := f.svc.Signup(ctx, auth.SignupRequest{
			Username:               "bob",
			Password:               testPassword,
			Email:                  "bob@example.com",
			Phone:                  "+15551234",
			PreferredContactMethod: "email",
		})
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", created.Email)
		assert.Empty(t, created.Phone)
		assert.Equal(t, "email", created.PreferredContactMethod)
	})
}

func TestEnsureTemplateUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("skipped before bootstrap", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		require.NoError(t, f.svc.EnsureTemplateUser(ctx))

		users, err := f.store.LoadUsers()
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("created after bootstrap", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		seedUser(t, f, "alice", testPassword, func(u *store.User) { u.Root = true })

		require.NoError(t, f.svc.EnsureTemplateUser(ctx))

		users, err := f.store.LoadUsers()
		require.NoError(t, err)
		require.Len(t, users, 2)
		template := store.FindUserByUsername(users, store.TemplateUsername)
		require.NotNil(t, template)
		assert.Equal(t, "first", template.FirstName)
		assert.False(t, template.TwoFAEnabled)

		// Second run is a no-op.
		require.NoError(t, f.svc.EnsureTemplateUser(ctx))
		users, err = f.store.LoadUsers()
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("stale authentication rejected", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		u := seedUser(t, f, "alice", testPassword, nil)
		grant := grantFor(t, f, u.ID, testPassword)

		f.advance(3 * time.Minute)

		err := f.svc.ChangePassword(ctx, grant, testPassword, newPassword)
		assert.ErrorIs(t, err, auth.ErrStaleAuth)
	})

	t.Run("wrong current password", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		u := seedUser(t, f, "alice", testPassword, nil)
		grant := grantFor(t, f, u.ID, testPassword)

		err := f.svc.ChangePassword(ctx, grant, "WrongHorseBattery1!", newPassword)
		assert.ErrorIs(t, err, auth.ErrBadCredentials)
	})

	t.Run("weak new password", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		u := seedUser(t, f, "alice", testPassword, nil)
		grant := grantFor(t, f, u.ID, testPassword)

		err := f.svc.ChangePassword(ctx, grant, testPassword, "weak")
		assert.ErrorIs(t, err, auth.ErrInvalidPassword)
	})

	t.Run("rewraps the vault and revokes sessions", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		u := seedUser(t, f, "alice", testPassword, nil)
		grant := grantFor(t, f, u.ID, testPassword)

		require.NoError(t, f.svc.SetVault(ctx, grant, "my deepest secret"))
		grant = grantFor(t, f, u.ID, testPassword)

		require.NoError(t, f.svc.ChangePassword(ctx, grant, testPassword, newPassword))

		// Every outstanding token is revoked.
		tokens, err := f.store.LoadTokens()
		require.NoError(t, err)
		assert.Empty(t, tokens)

		// The old password no longer authenticates, the new one does, and the
		// vault body survived the rewrap.
		res, err := f.svc.Login(ctx, auth.SurfacePublic, "alice", testPassword, "")
		require.NoError(t, err)
		assert.Equal(t, auth.CodeBadCredentials, res.Code)

		fresh := grantFor(t, f, u.ID, newPassword)
		assert.Equal(t, "my deepest secret", f.svc.ReadVault(ctx, fresh))
	})
}

func TestTwoFactorToggles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("enable rotates the secret", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, func(cfg *config.Config) { cfg.Enable2FA = true })
		u := seedUser(t, f, "alice", testPassword, func(u *store.User) {
			u.TwoFASecret = "OLDSECRET"
		})

		require.NoError(t, f.svc.Enable2FA(ctx, u.ID))

		users, err := f.store.LoadUsers()
		require.NoError(t, err)
		got := store.FindUserByID(users, u.ID)
		assert.True(t, got.TwoFAEnabled)
		assert.False(t, got.TwoFASetupComplete)
		assert.NotEqual(t, "OLDSECRET", got.TwoFASecret)
	})

	t.Run("enable twice conflicts", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, func(cfg *config.Config) { cfg.Enable2FA = true })
		u := seedUser(t, f, "alice", testPassword, func(u *store.User) {
			u.TwoFAEnabled = true
		})

		assert.ErrorIs(t, f.svc.Enable2FA(ctx, u.ID), auth.Err2FAAlreadyEnabled)
	})

	t.Run("enable unavailable when server disables 2fa", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		u := seedUser(t, f, "alice", testPassword, nil)

		assert.ErrorIs(t, f.svc.Enable2FA(ctx, u.ID), auth.Err2FAUnavailable)
	})

	t.Run("disable clears the secret", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, func(cfg *config.Config) { cfg.Enable2FA = true })
		u := seedUser(t, f, "alice", testPassword, func(u *store.User) {
			u.TwoFAEnabled = true
			u.TwoFASecret = "SECRET"
			u.TwoFASetupComplete = true
		})

		require.NoError(t, f.svc.Disable2FA(ctx, u.ID))

		users, err := f.store.LoadUsers()
		require.NoError(t, err)
		got := store.FindUserByID(users, u.ID)
		assert.False(t, got.TwoFAEnabled)
		assert.Empty(t, got.TwoFASecret)
	})

	t.Run("disable blocked when 2fa is mandatory", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, func(cfg *config.Config) {
			cfg.Enable2FA = true
			cfg.Require2FA = true
		})
		u := seedUser(t, f, "alice", testPassword, func(u *store.User) {
			u.TwoFAEnabled = true
		})

		assert.ErrorIs(t, f.svc.Disable2FA(ctx, u.ID), auth.Err2FAUnavailable)
	})

	t.Run("disable without 2fa on", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, func(cfg *config.Config) { cfg.Enable2FA = true })
		u := seedUser(t, f, "alice", testPassword, nil)

		assert.ErrorIs(t, f.svc.Disable2FA(ctx, u.ID), auth.Err2FANotEnabled)
	})
}

func TestVaultOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("write then read", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		u := seedUser(t, f, "alice", testPassword, nil)
		grant := grantFor(t, f, u.ID, testPassword)

		require.NoError(t, f.svc.SetVault(ctx, grant, "hello world"))

		users, err := f.store.LoadUsers()
		require.NoError(t, err)
		stored := store.FindUserByID(users, u.ID)
		assert.NotEmpty(t, stored.Vault)
		assert.NotContains(t, stored.Vault, "hello world")
		assert.NotEmpty(t, stored.VaultMasterKeyWrapped)

		grant = grantFor(t, f, u.ID, testPassword)
		assert.Equal(t, "hello world", f.svc.ReadVault(ctx, grant))
	})

	t.Run("overwrite reuses the master key", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		u := seedUser(t, f, "alice", testPassword, nil)

		grant := grantFor(t, f, u.ID, testPassword)
		require.NoError(t, f.svc.SetVault(ctx, grant, "first"))

		users, err := f.store.LoadUsers()
		require.NoError(t, err)
		firstWrap := store.FindUserByID(users, u.ID).VaultMasterKeyWrapped

		grant = grantFor(t, f, u.ID, testPassword)
		require.NoError(t, f.svc.SetVault(ctx, grant, "second"))

		users, err = f.store.LoadUsers()
		require.NoError(t, err)
		assert.Equal(t, firstWrap, store.FindUserByID(users, u.ID).VaultMasterKeyWrapped)

		grant = grantFor(t, f, u.ID, testPassword)
		assert.Equal(t, "second", f.svc.ReadVault(ctx, grant))
	})

	t.Run("corrupted wrap fails closed", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		u := seedUser(t, f, "alice", testPassword, nil)
		grant := grantFor(t, f, u.ID, testPassword)
		require.NoError(t, f.svc.SetVault(ctx, grant, "body"))

		require.NoError(t, f.store.UpdateUsers(func(users []*store.User) ([]*store.User, error) {
			other, err := crypto.Encrypt(bytes.Repeat([]byte{0x0a}, 32), []byte("not the key"))
			if err != nil {
				return nil, err
			}
			store.FindUserByID(users, u.ID).VaultMasterKeyWrapped = other
			return users, nil
		}))

		grant = grantFor(t, f, u.ID, testPassword)
		err := f.svc.SetVault(ctx, grant, "new body")
		assert.ErrorIs(t, err, auth.ErrVaultKeyUnavailable)
		assert.Contains(t, f.svc.ReadVault(ctx, grant), "[Error decrypting vault:")
	})

	t.Run("missing wrap reads as marker", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		u := seedUser(t, f, "alice", testPassword, func(u *store.User) {
			u.Vault = "orphaned-ciphertext"
		})
		grant := grantFor(t, f, u.ID, testPassword)

		assert.Equal(t, "[No vault key configured]", f.svc.ReadVault(ctx, grant))
	})

	t.Run("empty vault reads empty", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		u := seedUser(t, f, "alice", testPassword, nil)
		grant := grantFor(t, f, u.ID, testPassword)

		assert.Empty(t, f.svc.ReadVault(ctx, grant))
	})
}

func TestAllUsers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	seedUser(t, f, store.TemplateUsername, testPassword, nil)
	seedUser(t, f, "alice", testPassword, func(u *store.User) {
		u.FirstName = "Alice"
		u.LastName = "Smith"
		u.Admin = true
		u.Vault = "xxxx"
	})
	seedUser(t, f, "bob", testPassword, nil)

	users, err := f.svc.AllUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "Alice Smith", users[0].Name)
	assert.True(t, users[0].Admin)
	assert.Equal(t, 4, users[0].VaultSize)
	assert.Equal(t, "bob", users[1].Username)
	assert.Empty(t, users[1].Name)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	u := seedUser(t, f, "alice", testPassword, nil)
	grant := grantFor(t, f, u.ID, testPassword)

	require.NoError(t, f.svc.Logout(grant))

	tokens, err := f.store.LoadTokens()
	require.NoError(t, err)
	assert.Empty(t, tokens)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestCodeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code auth.Code
		want string
	}{
		{auth.CodeRootSuccess, "root_success"},
		{auth.CodeSuccess, "success"},
		{auth.CodeBadCredentials, "bad_credentials"},
		{auth.CodeTOTPRequired, "totp_required"},
		{auth.CodeTOTPInvalid, "totp_invalid"},
		{auth.CodeTOTPSetup, "totp_setup"},
		{auth.CodeLocked, "locked"},
		{auth.CodeFrozen, "frozen"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, fmt.Sprint(tt.code))
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	valid := []string{testPassword, "Another$Pass1word", "Zz9!" + strings.Repeat("a", 10)}
	for _, p := range valid {
		assert.NoError(t, auth.ValidatePassword(p), p)
	}

	invalid := []string{
		"Short1!",
		"nouppercase1!aaaa",
		"NOLOWERCASE1!AAAA",
		"NoDigitsHere!!aaa",
		"NoPunctuation1234",
		"Way" + strings.Repeat("x", 80) + "1!",
	}
	for _, p := range invalid {
		assert.ErrorIs(t, auth.ValidatePassword(p), auth.ErrInvalidPassword, p)
	}
}
