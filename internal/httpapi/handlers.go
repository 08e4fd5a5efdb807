package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/securevault/secureserver/internal/auth"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/token"
	"github.com/securevault/secureserver/internal/vault"
)

// maxRequestBody bounds every JSON request body well above the vault cap.
const maxRequestBody = 256 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		fail(w, "Invalid request body.")
		return false
	}
	return true
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username               string `json:"username"`
		Password               string `json:"password"`
		FirstName              string `json:"first_name"`
		LastName               string `json:"last_name"`
		Email                  string `json:"email"`
		Phone                  string `json:"phone"`
		PreferredContactMethod string `json:"preferred_contact_method"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	_, err := h.accounts.Signup(r.Context(), auth.SignupRequest{
		Username:               req.Username,
		Password:               req.Password,
		FirstName:              req.FirstName,
		LastName:               req.LastName,
		Email:                  req.Email,
		Phone:                  req.Phone,
		PreferredContactMethod: req.PreferredContactMethod,
	})
	if err != nil {
		h.failWith(w, err, "signup failed")
		return
	}

	if h.metrics != nil {
		h.metrics.Signup()
	}
	ok(w, "User successfully created.", nil)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		TOTPCode string `json:"totp_code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.accounts.Login(r.Context(), auth.SurfacePublic, req.Username, req.Password, req.TOTPCode)
	if err != nil {
		h.log.Error("login failure", logging.Error(err))
		fail(w, "Login failed due to server error.")
		return
	}
	if h.metrics != nil {
		h.metrics.LoginOutcome(res.Code.String())
	}

	switch res.Code {
	case auth.CodeRootSuccess, auth.CodeSuccess:
		h.setAuthCookies(w, res.Credentials)
		ok(w, "Successfully logged in.", nil)
	case auth.CodeBadCredentials:
		fail(w, "Credentials do not match.")
	case auth.CodeTOTPRequired:
		ok(w, "Enter your 2FA code to continue.", payload{"require2FA": true})
	case auth.CodeTOTPInvalid:
		fail(w, "Invalid 2FA code.")
	case auth.CodeTOTPSetup:
		ok(w, "Scan this QR code with your authenticator app to enable 2FA.", payload{
			"require2FA": true,
			"qr_data":    res.Payload,
		})
	case auth.CodeLocked:
		fail(w, "Account temporarily locked. "+res.Payload+".")
	case auth.CodeFrozen:
		h.clearAuthCookies(w)
		fail(w, "Your account is disabled.")
	default:
		fail(w, genericFailure)
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request, grant *token.Grant) {
	if err := h.accounts.Logout(grant); err != nil {
		h.log.Error("logout failure", logging.Error(err))
		fail(w, "Error during logout.")
		return
	}
	h.clearAuthCookies(w)
	ok(w, "Logged out successfully.", nil)
}

func (h *Handler) handleEnable2FA(w http.ResponseWriter, r *http.Request, grant *token.Grant) {
	if err := h.accounts.Enable2FA(r.Context(), grant.User.ID); err != nil {
		h.failWith(w, err, "enable 2fa failed")
		return
	}
	ok(w, "2FA turned on, you will be prompted to activate it the next time you log in.", nil)
}

func (h *Handler) handleDisable2FA(w http.ResponseWriter, r *http.Request, grant *token.Grant) {
	if err := h.accounts.Disable2FA(r.Context(), grant.User.ID); err != nil {
		h.failWith(w, err, "disable 2fa failed")
		return
	}
	ok(w, "2FA disabled.", nil)
}

func (h *Handler) handleSetVault(w http.ResponseWriter, r *http.Request, grant *token.Grant) {
	var req struct {
		Data string `json:"data"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.accounts.SetVault(r.Context(), grant, req.Data); err != nil {
		switch {
		case errors.Is(err, vault.ErrBodyTooLarge):
			fail(w, "Vault data too large.")
		case errors.Is(err, auth.ErrVaultKeyUnavailable):
			fail(w, "Failed to decrypt vault key.")
		default:
			h.failWith(w, err, "vault write failed")
		}
		return
	}

	if h.metrics != nil {
		h.metrics.VaultWrite()
	}
	ok(w, "Vault successfully updated and encrypted.", nil)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request, grant *token.Grant) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.accounts.ChangePassword(r.Context(), grant, req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrStaleAuth):
		writeJSON(w, http.StatusOK, payload{
			"success":        false,
			"message":        "Please re-authenticate to change your password.",
			"requires_login": true,
		})
		return
	case errors.Is(err, auth.ErrBadCredentials):
		fail(w, "Incorrect current password.")
		return
	default:
		h.failWith(w, err, "password change failed")
		return
	}

	if h.metrics != nil {
		h.metrics.PasswordChange()
	}
	h.clearAuthCookies(w)
	ok(w, "Password successfully changed. All sessions logged out.", nil)
}

func (h *Handler) handlePersonalInfo(w http.ResponseWriter, r *http.Request, grant *token.Grant) {
	information := payload{
		"username":   grant.User.Username,
		"first_name": grant.User.FirstName,
		"last_name":  grant.User.LastName,
		"vault":      h.accounts.ReadVault(r.Context(), grant),
	}
	ok(w, "Personal information served.", payload{"information": information})
}

func (h *Handler) handleAllUsers(w http.ResponseWriter, r *http.Request, grant *token.Grant) {
	users, err := h.accounts.AllUsers()
	if err != nil {
		h.failWith(w, err, "user listing failed")
		return
	}
	h.log.Info("served all user data",
		logging.Username(grant.User.Username),
		logging.Action("get_all_users"),
	)
	ok(w, "All safe user data has been served.", payload{"users": users})
}

// failWith maps an error to its client-facing message when it has one,
// otherwise logs it and serves the generic failure.
func (h *Handler) failWith(w http.ResponseWriter, err error, logMsg string) {
	if msg := clientError(err); msg != "" {
		fail(w, msg)
		return
	}
	h.log.Error(logMsg, logging.Error(err))
	fail(w, genericFailure)
}
