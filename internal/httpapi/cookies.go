package httpapi

import (
	"net/http"

	"github.com/securevault/secureserver/internal/token"
)

// setAuthCookies installs the three login cookies. auth_token and auth_key
// are HttpOnly and SameSite=Strict; csrf_token must be readable by scripts
// so it can be mirrored into the request header, and uses SameSite=Lax.
func (h *Handler) setAuthCookies(w http.ResponseWriter, creds token.Credentials) {
	maxAge := h.cfg.TokenAgeSec

	http.SetCookie(w, &http.Cookie{
		Name:     token.CookieAuthToken,
		Value:    creds.Token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.UseHTTPS,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     token.CookieAuthKey,
		Value:    creds.AuthKey,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.UseHTTPS,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     token.CookieCSRF,
		Value:    creds.CSRF,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: false,
		Secure:   h.cfg.UseHTTPS,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookies drops all three login cookies.
func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{token.CookieAuthToken, token.CookieAuthKey, token.CookieCSRF} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Secure:   h.cfg.UseHTTPS,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
