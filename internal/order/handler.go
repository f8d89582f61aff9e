package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"techwire-be/internal/logger"
	"techwire-be/internal/transport"
	"techwire-be/internal/utils"

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
	client, admin := transport.OrPass(g.Client), transport.OrPass(g.Admin)

	r.Route("/api/orders", func(r chi.Router) {
		r.With(client, transport.OrPass(g.Strict)).Post("/", h.placeOrder)
		r.With(client).Get("/mine", h.listMine)
		r.With(admin).Get("/", h.list)
		r.With(admin).Get("/completed", h.listCompleted)
		r.With(admin).Patch("/{orderId}/status", h.updateStatus)
		r.With(admin).Patch("/{orderId}/details", h.updateDetails)
	})
}

type placeOrderRequest struct {
	Products []LineItemRequest `json:"products"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	clientID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		transport.Error(w, http.StatusUnauthorized, "Client authentication failed.")
		return
	}

	var req placeOrderRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.service.PlaceOrder(r.Context(), clientID, req.Products)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	transport.Respond(w, http.StatusCreated, o)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context())
	if err != nil {
		transport.Error(w, http.StatusInternalServerError, "Failed to fetch orders.")
		return
	}
	transport.Respond(w, http.StatusOK, orders)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	clientID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		transport.Error(w, http.StatusUnauthorized, "Client authentication failed.")
		return
	}
	orders, err := h.service.ListMine(r.Context(), clientID)
	if err != nil {
		transport.Error(w, http.StatusInternalServerError, "Failed to fetch orders.")
		return
	}
	transport.Respond(w, http.StatusOK, orders)
}

func (h *Handler) listCompleted(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListCompleted(r.Context())
	if err != nil {
		transport.Error(w, http.StatusInternalServerError, "Failed to fetch completed orders.")
		return
	}
	transport.Respond(w, http.StatusOK, orders)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "orderId"), req.Status)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	transport.Respond(w, http.StatusOK, o)
}

func (h *Handler) updateDetails(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := transport.DecodeJSON(r, &fields); err != nil {
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.service.UpdateDetails(r.Context(), chi.URLParam(r, "orderId"), fields)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	transport.Respond(w, http.StatusOK, map[string]any{"message": "Order updated successfully", "order": o})
}

// RespondError maps order errors onto HTTP responses. Retryable failures get
// 503 with retryable=true.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrVariantNotFound):
		transport.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrValidation):
		transport.Error(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
	case errors.Is(err, ErrInvalidStatus):
		transport.Error(w, http.StatusBadRequest, "Invalid status update.")
	case errors.Is(err, ErrImmutableField):
		transport.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrClientNotFound):
		transport.Error(w, http.StatusNotFound, "Client profile not found.")
	case errors.Is(err, ErrOrderNotFound):
		transport.Error(w, http.StatusNotFound, "Order not found.")
	case errors.Is(err, ErrConflict):
		transport.Error(w, http.StatusConflict, "Order could not be created, please retry.")
	case IsRetryable(err):
		transport.Retryable(w, "The order could not be completed right now. Please try again.")
	default:
		logger.FromCtx(r.Context()).Error("unhandled order error", zap.Error(err))
		transport.Error(w, http.StatusInternalServerError, "Server error while placing the order.")
	}
}
