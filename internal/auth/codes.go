// Package auth implements account lifecycle and the login protocol: the
// result-coded login state machine with lockout and TOTP phases, signup from
// the template account, the password-change protocol with vault key rewrap,
// and bootstrap of the initial developer admin.
package auth

// Code is the integer result of a login attempt. The values are part of the
// client contract and must not be renumbered.
type Code int

const (
	// CodeRootSuccess is a successful login by a root-privileged account.
	CodeRootSuccess Code = 0
	// CodeSuccess is a normal successful login.
	CodeSuccess Code = 1
	// CodeBadCredentials covers unknown users and wrong passwords alike.
	CodeBadCredentials Code = 2
	// CodeTOTPRequired means the account needs a one-time code.
	CodeTOTPRequired Code = 3
	// CodeTOTPInvalid means the supplied one-time code did not verify.
	CodeTOTPInvalid Code = 4
	// CodeTOTPSetup means two-factor setup is pending; the payload carries
	// the provisioning URI.
	CodeTOTPSetup Code = 5
	// CodeLocked means too many recent failures; the payload names the
	// remaining minutes.
	CodeLocked Code = 6
	// CodeFrozen means the account is administratively disabled.
	CodeFrozen Code = 7
)

func (c Code) String() string {
	switch c {
	case CodeRootSuccess:
		return "root_success"
	case CodeSuccess:
		return "success"
	case CodeBadCredentials:
		return "bad_credentials"
	case CodeTOTPRequired:
		return "totp_required"
	case CodeTOTPInvalid:
		return "totp_invalid"
	case CodeTOTPSetup:
		return "totp_setup"
	case CodeLocked:
		return "locked"
	case CodeFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Surface distinguishes the public web login from the privileged admin
// login. The admin surface demands dev_admin and issues shorter tokens; the
// public surface rejects root accounts outright.
type Surface int

const (
	SurfacePublic Surface = iota
	SurfaceAdmin
)

// AdminIssuer labels provisioning URIs generated on the admin surface and
// during bootstrap.
const AdminIssuer = "SecureServerAdmin"
