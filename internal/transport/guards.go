package transport

import "net/http"

type Middleware = func(http.Handler) http.Handler

// Guards bundles the access-control middleware handed to each module's
// RegisterRoutes so modules never construct their own.
type Guards struct {
	Client Middleware
	Admin  Middleware
	Super  Middleware
	Strict Middleware
}

func passthrough(next http.Handler) http.Handler { return next }

// OrPass returns m, or a no-op middleware when m is nil.
func OrPass(m Middleware) Middleware {
	if m == nil {
		return passthrough
	}
	return m
}
