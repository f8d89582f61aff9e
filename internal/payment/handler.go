package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"techwire-be/internal/order"
	"techwire-be/internal/transport"
	"techwire-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router, g transport.Guards) {
	strict := transport.OrPass(g.Strict)

	r.Route("/api/payment", func(r chi.Router) {
		r.With(transport.OrPass(g.Client), strict).Post("/create-order", h.createOrder)
		r.With(strict).Post("/verify-payment", h.verifyPayment)
	})
}

type createOrderRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	CartItems       []CartItem      `json:"cart_items"`
	ShippingAddress json.RawMessage `json:"shippingAddress"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	clientID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		transport.Error(w, http.StatusUnauthorized, "Client authentication failed.")
		return
	}

	var req createOrderRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.InitiatePayment(r.Context(), InitiateInput{
		ClientID:        clientID,
		Amount:          req.Amount,
		Items:           req.CartItems,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	transport.Respond(w, http.StatusOK, map[string]any{
		"success":       true,
		"razorpayOrder": res.ProviderOrder,
		"internalOrder": res.Order,
	})
}

type verifyPaymentRequest struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Signature string `json:"signature"`
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := transport.DecodeJSON(r, &req); err != nil {
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.service.ConfirmPayment(r.Context(), Confirmation{
		ProviderOrderID: req.OrderID,
		PaymentID:       req.PaymentID,
		Signature:       req.Signature,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	transport.Respond(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Payment verified & stock updated",
		"order":   o,
	})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSignatureMismatch):
		transport.Error(w, http.StatusBadRequest, "Payment verification failed: Signature mismatch.")
	case errors.Is(err, ErrValidation):
		transport.Error(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
	case errors.Is(err, ErrAmountMismatch):
		transport.Error(w, http.StatusBadRequest, "Amount does not match the cart total.")
	case errors.Is(err, ErrProviderUnavailable):
		transport.Retryable(w, "Payment provider is unavailable. Please try again.")
	default:
		order.RespondError(w, r, err)
	}
}
