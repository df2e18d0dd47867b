// internal/handlers/utils.go
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marousta/njmpu-api/internal/auth"
)

// extractCookieToken extracts a named cookie value from the "Cookie" header,
// or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// requireUser authenticates the request's auth_token cookie and resolves the
// acting user. On failure it writes the HTTP error itself and returns false.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, time.Time, bool) {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	if token == "" {
		http.Error(w, "missing auth token", http.StatusUnauthorized)
		return uuid.Nil, time.Time{}, false
	}
	userIDStr, expiry, err := auth.AuthenticateJWT(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return uuid.Nil, time.Time{}, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user id in token", http.StatusForbidden)
		return uuid.Nil, time.Time{}, false
	}
	return userID, expiry, true
}
