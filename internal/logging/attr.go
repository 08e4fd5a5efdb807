package logging

import "log/slog"

// Attribute helpers use the empty Attr pattern for nil safety, so callers can
// write log.Info("msg", logging.Error(err)) without explicit nil checks.

// Error creates an attribute for a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Username creates an attribute for a (sanitized) username.
func Username(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("username", Sanitize(name))
}

// UserID creates an attribute for a user id.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Token creates an attribute for the redacted form of a bearer token.
func Token(safeLog string) slog.Attr {
	if safeLog == "" {
		return slog.Attr{}
	}
	return slog.String("token", safeLog)
}

// File creates an attribute for an on-disk file path.
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// ClientIP creates an attribute for client IP addresses.
func ClientIP(ip string) slog.Attr {
	return slog.String("client_ip", ip)
}

// Action creates an attribute for admin action names.
func Action(action string) slog.Attr {
	return slog.String("action", Sanitize(action))
}
