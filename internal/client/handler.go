package client

import (
	"errors"
	"net/http"
	"time"

	"techwire-be/internal/auth"
	"techwire-be/internal/logger"
	"techwire-be/internal/transport"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	service      Service
	verifier     auth.Verifier
	cookieSecure bool
}

func NewHandler(service Service, verifier auth.Verifier, cookieSecure bool) *Handler {
	return &Handler{service: service, verifier: verifier, cookieSecure: cookieSecure}
}

func (h *Handler) RegisterRoutes(r chi.Router, g transport.Guards) {
	r.Route("/api/clients", func(r chi.Router) {
		r.With(transport.OrPass(g.Strict)).Post("/signup", h.signup)
		r.With(transport.OrPass(g.Strict)).Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.Get("/verify-token", h.verifyToken)
		r.With(transport.OrPass(g.Admin), transport.OrPass(g.Super)).Get("/list", h.list)
	})
}

func (h *Handler) setCookie(w http.ResponseWriter, value string, expires time.Time, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.ClientCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteNoneMode,
	})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var in SignupInput
	if err := transport.DecodeJSON(r, &in); err != nil {
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.service.Signup(r.Context(), in)
	switch {
	case errors.Is(err, ErrValidation):
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrEmailExists):
		transport.Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		transport.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	transport.Respond(w, http.StatusCreated, map[string]any{
		"message":  "Client created successfully.",
		"clientId": c.ID,
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrValidation):
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrInvalidCredentials):
		transport.Error(w, http.StatusUnauthorized, "Invalid credentials.")
		return
	case err != nil:
		transport.Error(w, http.StatusInternalServerError, "Authentication failed.")
		return
	}

	h.setCookie(w, res.Token, res.ExpiresAt, 0)
	transport.Respond(w, http.StatusOK, map[string]any{
		"message": "Login successful.",
		"client":  res.Client,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.setCookie(w, "", time.Unix(0, 0), -1)
	transport.Respond(w, http.StatusOK, map[string]string{"message": "Logout successful."})
}

// verifyToken always answers 200; the body says whether the caller is signed in.
func (h *Handler) verifyToken(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractAccessToken(r, auth.ClientCookieName)
	if token == "" {
		transport.Respond(w, http.StatusOK, map[string]any{"isAuthenticated": false, "client": nil})
		return
	}

	claims, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		logger.FromCtx(r.Context()).Info("client token rejected", zap.Error(err))
		h.setCookie(w, "", time.Unix(0, 0), -1)
		msg := "Invalid token."
		if errors.Is(err, auth.ErrTokenExpired) {
			msg = "Token expired."
		}
		transport.Respond(w, http.StatusOK, map[string]any{"isAuthenticated": false, "error": msg, "client": nil})
		return
	}

	transport.Respond(w, http.StatusOK, map[string]any{
		"isAuthenticated": true,
		"client": map[string]string{
			"id":          claims.Subject,
			"email":       claims.Email,
			"name":        claims.Name,
			"phoneNumber": claims.Phone,
			"role":        claims.Role,
		},
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.List(r.Context())
	if err != nil {
		transport.Error(w, http.StatusInternalServerError, "Could not fetch clients.")
		return
	}
	if clients == nil {
		clients = []Client{}
	}
	transport.Respond(w, http.StatusOK, clients)
}
