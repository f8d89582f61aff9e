package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"techwire-be/internal/logger"
	"techwire-be/internal/order"
	"techwire-be/internal/payment"
	"techwire-be/internal/transport"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	SignatureHeader = "X-Razorpay-Signature"
	maxBodyBytes    = 1 << 20
)

// Payload is the subset of the provider's webhook body we act on.
type Payload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type Handler struct {
	service payment.Service
	secret  string
}

func NewHandler(service payment.Service, secret string) *Handler {
	return &Handler{service: service, secret: secret}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/payment/webhook", h.Handle)
}

// Handle authenticates the raw body and settles or fails the order. Events
// we do not act on are acknowledged so the provider stops redelivering.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context()).With(zap.String("layer", "webhook"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		transport.Error(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if !payment.VerifyBody(h.secret, body, r.Header.Get(SignatureHeader)) {
		log.Warn("webhook signature rejected")
		transport.Error(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		transport.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	entity := p.Payload.Payment.Entity
	log = log.With(
		zap.String("event", p.Event),
		zap.String("provider_order_id", entity.OrderID),
		zap.String("payment_id", entity.ID),
	)

	switch p.Event {
	case "payment.captured", "order.paid":
		_, err = h.service.Settle(r.Context(), entity.OrderID, entity.ID, "")
	case "payment.failed":
		var changed bool
		changed, err = h.service.MarkFailed(r.Context(), entity.OrderID)
		if err == nil && !changed {
			log.Info("failed payment ignored; order missing or already settled")
		}
	default:
		log.Debug("webhook event ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			// Not ours, or already discarded. Redelivery would not help.
			log.Warn("webhook for unknown order")
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Error("failed to apply webhook", zap.Error(err))
		transport.Error(w, http.StatusInternalServerError, "failed to update order")
		return
	}

	transport.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
