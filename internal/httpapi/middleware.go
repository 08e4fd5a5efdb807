package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/ratelimiter"
)

// securityHeaders applies the response headers required on every route.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		next.ServeHTTP(w, r)
	})
}

// rateLimited wraps a handler with a per-client budget keyed by route name.
func (h *Handler) rateLimited(route string, cfg ratelimiter.Config, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		res := h.limiter.Allow(route+":"+ip, cfg)
		if !res.Allowed {
			if h.metrics != nil {
				h.metrics.RateLimited(route)
			}
			h.log.Info("rate limit exceeded",
				logging.Component("httpapi"),
				logging.ClientIP(ip),
				logging.Action(route),
			)
			retry := int(res.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeJSON(w, http.StatusTooManyRequests, payload{
				"success": false,
				"message": "Too many requests. Please slow down.",
			})
			return
		}
		next(w, r)
	}
}

// clientIP resolves the originating address, preferring proxy headers in
// trust order before falling back to the socket peer.
func clientIP(r *http.Request) string {
	for _, header := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		if v := r.Header.Get(header); v != "" {
			if ip := net.ParseIP(v); ip != nil {
				return ip.String()
			}
		}
	}
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		// Leftmost entry is the original client.
		first, _, _ := strings.Cut(v, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
