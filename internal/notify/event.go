package notify

import (
	"context"
	"time"
)

type Kind string

const (
	KindOrderCreated Kind = "order.created"
	KindOrderPaid    Kind = "order.paid"
	KindAdminInvited Kind = "admin.invited"
	KindUploadReport Kind = "upload.report"
)

// Event is the payload handed to notifiers. Order fields are a copy of the
// committed order, never a live reference.
type Event struct {
	Kind       Kind
	OccurredAt time.Time

	OrderID       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	TotalAmount   string
	ItemCount     int
	Lines         []Line

	// Direct recipient for invitation and report mails.
	Recipient string
	Name      string
	URL       string
	Status    string
}

type Line struct {
	Title    string
	Size     string
	Quantity int
	Price    string
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
