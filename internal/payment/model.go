package payment

import (
	"encoding/json"

	"techwire-be/internal/order"

	"github.com/shopspring/decimal"
)

// CartItem is one checkout line. Items without a size are priced and
// stocked at product level.
type CartItem struct {
	ID          string `json:"id"`
	Quantity    int    `json:"quantity"`
	VariantSize string `json:"variantSize,omitempty"`
}

type InitiateInput struct {
	ClientID        string
	Amount          decimal.Decimal
	Items           []CartItem
	ShippingAddress json.RawMessage
}

type InitiateResult struct {
	ProviderOrder *ProviderOrder `json:"razorpayOrder"`
	Order         *order.Order   `json:"internalOrder"`
}

// Confirmation is what the checkout widget hands back after a payment.
type Confirmation struct {
	ProviderOrderID string
	PaymentID       string
	Signature       string
}

type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type ProviderOrder struct {
	ID         string `json:"id"`
	Entity     string `json:"entity,omitempty"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at,omitempty"`
}
