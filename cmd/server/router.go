package main

import (
	"net/http"

	"techwire-be/internal/logger"
	"techwire-be/internal/middleware"
	"techwire-be/internal/transport"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type module interface {
	RegisterRoutes(r chi.Router, g transport.Guards)
}

type routerDeps struct {
	Guards      transport.Guards
	Limiter     *middleware.RateLimiter
	CORSOrigins []string
	Modules     []module
	// Webhook is mounted outside the rate limiter; nil leaves it unregistered.
	Webhook interface{ RegisterRoutes(r chi.Router) }
	Media   http.Handler
}

func setupRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.CORS(d.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		transport.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if d.Media != nil {
		r.Handle("/media/*", http.StripPrefix("/media", d.Media))
	}
	if d.Webhook != nil {
		d.Webhook.RegisterRoutes(r)
	}

	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(d.Limiter.General)
		}
		for _, m := range d.Modules {
			m.RegisterRoutes(r, d.Guards)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		transport.Error(w, http.StatusNotFound, "route not found")
	})
	return r
}
