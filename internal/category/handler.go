package category

import (
	"net/http"

	"techwire-be/internal/transport"
	"techwire-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router, _ transport.Guards) {
	r.Get("/api/categories", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := utils.ParsePagination(q.Get("page"), q.Get("limit"))

	p, err := h.service.List(r.Context(), q.Get("filter"), page, limit)
	if err != nil {
		transport.Error(w, http.StatusInternalServerError, "Failed to fetch categories.")
		return
	}
	transport.Respond(w, http.StatusOK, p)
}
