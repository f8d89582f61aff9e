package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAccessToken(t *testing.T) {
	t.Run("Cookie Preferred", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "cookie_token"})
		req.Header.Set("Authorization", "Bearer header_token")

		assert.Equal(t, "cookie_token", ExtractAccessToken(req, ClientCookieName))
	})

	t.Run("Header Fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer header_token")

		assert.Equal(t, "header_token", ExtractAccessToken(req, ClientCookieName))
	})

	t.Run("Empty Cookie Falls Back to Header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: ""})
		req.Header.Set("Authorization", "Bearer header_token")

		assert.Equal(t, "header_token", ExtractAccessToken(req, ClientCookieName))
	})

	t.Run("Bearer only ignores cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "cookie_token"})

		assert.Empty(t, ExtractBearer(req))
	})

	t.Run("Malformed Header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic user:pass")

		assert.Empty(t, ExtractAccessToken(req, ClientCookieName))
	})
}

func TestJWT(t *testing.T) {
	j := NewJWT("secret", 2*time.Hour)

	t.Run("roundtrip", func(t *testing.T) {
		token, exp, err := j.Issue(Claims{Subject: "c-1", Email: "a@b.co", Name: "Ann", Role: "client"})
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(2*time.Hour), exp, time.Minute)

		claims, err := j.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "c-1", claims.Subject)
		assert.Equal(t, "a@b.co", claims.Email)
		assert.Equal(t, "client", claims.Role)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewJWT("secret", time.Hour)
		old.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
		token, _, err := old.Issue(Claims{Subject: "c-1"})
		require.NoError(t, err)

		_, err = j.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := NewJWT("other", time.Hour).Issue(Claims{Subject: "c-1"})
		require.NoError(t, err)

		_, err = j.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := j.Verify(context.Background(), "")
		assert.ErrorIs(t, err, ErrMissingToken)
	})
}
