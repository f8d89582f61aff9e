package order

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending         Status = "Pending"
	StatusConfirmed       Status = "Confirmed"
	StatusReadyToDispatch Status = "Ready to dispatch"
	StatusCompleted       Status = "Completed"
	StatusCancelled       Status = "Cancelled"
)

// AssignableStatuses are the values an admin may set directly. Confirmed is
// reserved for payment confirmation.
var AssignableStatuses = []Status{StatusPending, StatusReadyToDispatch, StatusCompleted, StatusCancelled}

func ParseAssignableStatus(s string) (Status, bool) {
	for _, st := range AssignableStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Flow records which path owns the order's stock decrement.
type Flow string

const (
	// FlowReserveFirst orders have stock taken when the order is placed.
	FlowReserveFirst Flow = "reserve_first"
	// FlowPayFirst orders have stock taken when payment is confirmed.
	FlowPayFirst Flow = "pay_first"
)

// LineItem is the priced snapshot stored on the order. It is copied by value
// at order time and never re-derived from the catalog.
type LineItem struct {
	ProductID string          `json:"productId"`
	VariantID *int64          `json:"variantId,omitempty"`
	Title     string          `json:"title"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type LineItems []LineItem

func (li LineItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range li {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (li LineItems) Value() (driver.Value, error) {
	if li == nil {
		li = LineItems{}
	}
	b, err := json.Marshal(li)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (li *LineItems) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*li = nil
		return nil
	case []byte:
		return json.Unmarshal(v, li)
	case string:
		return json.Unmarshal([]byte(v), li)
	default:
		return fmt.Errorf("order: cannot scan %T into LineItems", src)
	}
}

type Order struct {
	ID               int64           `json:"id"`
	OrderID          string          `json:"orderId"`
	ClientID         string          `json:"clientId"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	PhoneNumber      string          `json:"phoneNumber"`
	ShippingAddress  json.RawMessage `json:"shippingAddress,omitempty"`
	Products         LineItems       `json:"products"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Status           Status          `json:"status"`
	PaymentStatus    PaymentStatus   `json:"paymentStatus"`
	Flow             Flow            `json:"flow"`
	StockApplied     bool            `json:"stockApplied"`
	ProviderOrderID  *string         `json:"providerOrderId,omitempty"`
	PaymentID        *string         `json:"paymentId,omitempty"`
	PaymentSignature *string         `json:"-"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// LineItemRequest is one validated cart line as received from a client.
type LineItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// DetailsPatch carries the only fields an admin may edit after creation.
type DetailsPatch struct {
	Name            *string
	Email           *string
	PhoneNumber     *string
	ShippingAddress json.RawMessage
}

func (p DetailsPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.PhoneNumber == nil && p.ShippingAddress == nil
}

type ListFilter struct {
	ClientID string
	Status   Status
	Limit    int
	Offset   int
}
