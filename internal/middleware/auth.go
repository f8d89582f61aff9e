package middleware

import (
	"context"
	"errors"
	"net/http"

	"techwire-be/internal/admin"
	"techwire-be/internal/auth"
	"techwire-be/internal/logger"
	"techwire-be/internal/transport"
	"techwire-be/internal/utils"

	"go.uber.org/zap"
)

// AdminAuthenticator resolves verified claims to an admin record.
type AdminAuthenticator interface {
	Authenticate(ctx context.Context, claims *auth.Claims) (*admin.Admin, error)
}

// ClientAuth accepts a client token from the session cookie or a bearer
// header and stores the subject on the request context.
func ClientAuth(verifier auth.Verifier) transport.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ExtractAccessToken(r, auth.ClientCookieName)
			if token == "" {
				transport.Error(w, http.StatusUnauthorized, "Unauthorized: No token provided.")
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.FromCtx(r.Context()).Info("client token rejected", zap.Error(err))
				transport.Error(w, http.StatusUnauthorized, tokenMessage(err))
				return
			}
			if claims.Role != "" && claims.Role != utils.RoleClient {
				transport.Error(w, http.StatusUnauthorized, "Unauthorized: Invalid token.")
				return
			}

			ctx := utils.SetUserContext(r.Context(), claims.Subject, claims.Email, utils.RoleClient)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuth requires a bearer token whose subject maps to a registered admin.
func AdminAuth(verifier auth.Verifier, admins AdminAuthenticator) transport.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ExtractBearer(r)
			if token == "" {
				transport.Error(w, http.StatusUnauthorized, "Unauthorized: No token provided or invalid format.")
				return
			}

			log := logger.FromCtx(r.Context())
			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Info("admin token rejected", zap.Error(err))
				transport.Error(w, http.StatusUnauthorized, tokenMessage(err))
				return
			}

			a, err := admins.Authenticate(r.Context(), claims)
			switch {
			case errors.Is(err, admin.ErrNotRegistered):
				transport.Error(w, http.StatusForbidden, "Forbidden: User not registered as an admin.")
				return
			case errors.Is(err, admin.ErrUIDConflict):
				transport.Error(w, http.StatusConflict, "Conflict: Email is linked to a different account.")
				return
			case err != nil:
				log.Error("admin lookup failed", zap.Error(err))
				transport.Error(w, http.StatusInternalServerError, "Internal Server Error during authentication.")
				return
			}

			ctx := utils.SetUserContext(r.Context(), claims.Subject, a.Email, utils.RoleAdmin)
			ctx = utils.SetAdminContext(ctx, a.ID, a.SuperAdmin)
			ctx = admin.WithAdmin(ctx, a)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SuperAdminOnly must run after AdminAuth.
func SuperAdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !utils.IsSuperAdmin(r.Context()) {
			transport.Error(w, http.StatusForbidden, "Forbidden: Super Admin rights required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenMessage(err error) string {
	if errors.Is(err, auth.ErrTokenExpired) {
		return "Unauthorized: Token expired."
	}
	return "Unauthorized: Invalid token."
}
