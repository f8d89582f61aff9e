package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"techwire-be/internal/logger"
	"techwire-be/internal/middleware"
	"techwire-be/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init("test", "error")
	os.Exit(m.Run())
}

type stubModule struct{}

func (stubModule) RegisterRoutes(r chi.Router, g transport.Guards) {
	r.With(transport.OrPass(g.Client)).Get("/api/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/api/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
}

type stubWebhook struct{}

func (stubWebhook) RegisterRoutes(r chi.Router) {
	r.Post("/api/payment/webhook", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestSetupRouter(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/logo.png", []byte("png-bytes"), 0o644))

	denyClient := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			transport.Error(w, http.StatusUnauthorized, "Unauthorized: No token provided.")
		})
	}

	router := setupRouter(routerDeps{
		Guards:      transport.Guards{Client: denyClient},
		CORSOrigins: []string{"http://shop.local"},
		Modules:     []module{stubModule{}},
		Media:       http.FileServer(afero.NewHttpFs(fs)),
	})

	t.Run("health", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("guards are passed to modules", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/ping").Code)
	})

	t.Run("panics become 500", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, serve(router, http.MethodGet, "/api/panic").Code)
	})

	t.Run("media served from blob fs", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/media/logo.png")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "png-bytes", rr.Body.String())
	})

	t.Run("webhook absent without secret", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/api/payment/webhook").Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/ping", nil)
		req.Header.Set("Origin", "http://shop.local")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "http://shop.local", rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSetupRouter_WebhookAndLimiter(t *testing.T) {
	router := setupRouter(routerDeps{
		Limiter: middleware.NewRateLimiter(""),
		Modules: []module{stubModule{}},
		Webhook: stubWebhook{},
	})

	assert.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/api/payment/webhook").Code)

	// General tier allows a burst of 20 per identity.
	var last int
	for i := 0; i < 40; i++ {
		last = serve(router, http.MethodGet, "/api/ping").Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
