package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"techwire-be/internal/logger"
	"techwire-be/internal/transport"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router, g transport.Guards) {
	adminOnly := transport.OrPass(g.Admin)

	r.With(adminOnly).Post("/api/auth/verify", h.verify)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(adminOnly, transport.OrPass(g.Super))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	a, ok := FromContext(r.Context())
	if !ok {
		transport.Error(w, http.StatusUnauthorized, "Unauthorized: No token provided or invalid format.")
		return
	}
	transport.Respond(w, http.StatusOK, map[string]any{
		"message":  "Token is valid and user is authorized.",
		"id":       a.ID,
		"uid":      a.UID,
		"username": a.Username,
		"email":    a.Email,
		"name":     a.Name,
		"role":     a.Role(),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	admins, err := h.service.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	transport.Respond(w, http.StatusOK, admins)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := transport.DecodeJSON(r, &in); err != nil {
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.service.Create(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	transport.Respond(w, http.StatusCreated, map[string]any{
		"message": "Admin record created and sign-up invitation queued.",
		"admin":   a,
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		transport.Error(w, http.StatusBadRequest, "Invalid Admin ID format.")
		return
	}

	var requester int64
	if a, ok := FromContext(r.Context()); ok {
		requester = a.ID
	}

	if err := h.service.Delete(r.Context(), requester, id); err != nil {
		respondError(w, r, err)
		return
	}
	transport.Respond(w, http.StatusOK, map[string]string{"message": "Admin deleted successfully."})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		transport.Error(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
	case errors.Is(err, ErrEmailExists):
		transport.Error(w, http.StatusConflict, "Admin with this email already exists.")
	case errors.Is(err, ErrUsernameExists):
		transport.Error(w, http.StatusConflict, "Admin with this username already exists.")
	case errors.Is(err, ErrSelfDelete):
		transport.Error(w, http.StatusForbidden, "Admins cannot delete their own account.")
	case errors.Is(err, ErrAdminNotFound):
		transport.Error(w, http.StatusNotFound, "Admin not found.")
	default:
		logger.FromCtx(r.Context()).Error("admin request failed", zap.Error(err))
		transport.Error(w, http.StatusInternalServerError, "Failed to process admin request.")
	}
}
