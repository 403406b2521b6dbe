package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// bearerToken extracts the credential from an Authorization header value.
// Both the raw key and the "Bearer <key>" form are accepted; harvesting
// scripts send whichever is convenient.
func bearerToken(authorization string) string {
	if strings.HasPrefix(authorization, "Bearer ") {
		return authorization[len("Bearer "):]
	}
	return authorization
}

// checkAdminKey authorizes a request against the admin key. On failure it
// writes the error response and returns false.
func (s *Server) checkAdminKey(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.Gateway.AdminKey == "" {
		writeError(w, http.StatusInternalServerError, "admin key not configured")
		return false
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeError(w, http.StatusUnauthorized, "missing Authorization header")
		return false
	}

	if !safeEqual(bearerToken(auth), s.cfg.Gateway.AdminKey) {
		s.log.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("admin auth failed")
		writeError(w, http.StatusUnauthorized, "invalid admin key")
		return false
	}
	return true
}

// checkAPIKey authorizes a chat request. An unset API key disables the check.
func (s *Server) checkAPIKey(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.Gateway.APIKey == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeError(w, http.StatusUnauthorized, "missing Authorization header")
		return false
	}

	if !safeEqual(bearerToken(auth), s.cfg.Gateway.APIKey) {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return false
	}
	return true
}

// safeEqual performs a constant-time string comparison to prevent timing attacks.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
