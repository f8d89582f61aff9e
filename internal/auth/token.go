package auth

import (
	"net/http"
	"strings"
)

const ClientCookieName = "client_token"

// ExtractAccessToken prefers the named cookie and falls back to the
// Authorization header.
func ExtractAccessToken(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ExtractBearer(r)
}

func ExtractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}
