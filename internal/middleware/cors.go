package middleware

import (
	"net/http"
	"slices"
	"strings"

	"techwire-be/internal/transport"
)

var (
	allowedMethods = strings.Join([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}, ", ")
	allowedHeaders = strings.Join([]string{"Content-Type", "Authorization", "X-Request-ID", "X-Device-ID"}, ", ")
)

// CORS echoes allowed origins with credentials enabled so the client
// session cookie travels cross-site. Preflight requests end here.
func CORS(origins []string) transport.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && slices.Contains(origins, origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", allowedMethods)
				h.Set("Access-Control-Allow-Headers", allowedHeaders)
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
