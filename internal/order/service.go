package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"techwire-be/internal/client"
	"techwire-be/internal/db"
	"techwire-be/internal/logger"
	"techwire-be/internal/metrics"
	"techwire-be/internal/notify"
	"techwire-be/internal/stock"
	"techwire-be/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("techwire-be/internal/order")

type Service interface {
	PlaceOrder(ctx context.Context, clientID string, items []LineItemRequest) (*Order, error)
	UpdateStatus(ctx context.Context, orderID, status string) (*Order, error)
	UpdateDetails(ctx context.Context, orderID string, fields map[string]json.RawMessage) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListMine(ctx context.Context, clientID string) ([]Order, error)
	ListCompleted(ctx context.Context) ([]Order, error)
}

type Options struct {
	AcquireWait time.Duration
	Timeout     time.Duration
}

type service struct {
	repo      Repository
	stock     stock.Repository
	clients   client.Repository
	txm       db.TxManager
	publisher notify.Publisher
	txOpts    db.TxOptions
	metrics   *metrics.Orders
}

func NewService(
	repo Repository,
	stockRepo stock.Repository,
	clients client.Repository,
	txm db.TxManager,
	publisher notify.Publisher,
	opts Options,
) Service {
	m, err := metrics.NewOrders(otel.Meter("techwire-be/internal/order"))
	if err != nil {
		logger.L().Warn("order metrics disabled", zap.Error(err))
	}
	return &service{
		repo:      repo,
		stock:     stockRepo,
		clients:   clients,
		txm:       txm,
		publisher: publisher,
		metrics:   m,
		txOpts: db.TxOptions{
			Isolation:   sql.LevelReadCommitted,
			AcquireWait: opts.AcquireWait,
			Timeout:     opts.Timeout,
		},
	}
}

// ValidateLineItems rejects an empty cart or any malformed line.
func ValidateLineItems(items []LineItemRequest) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: A non-empty products array is required.", ErrValidation)
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductID) == "" || strings.TrimSpace(it.Size) == "" || it.Quantity <= 0 {
			return fmt.Errorf("%w: Each item in products must have a valid productId, size, and a quantity greater than 0.", ErrValidation)
		}
	}
	return nil
}

// PlaceOrder converts a cart into a committed order. Resolution, stock checks,
// decrements and the order insert run in one transaction that row-locks the
// variants (FOR UPDATE, in id order), so a waiter re-reads the committed
// quantity and fails with ErrInsufficientStock instead of a serialization
// error. Any failure leaves the ledger untouched. Admins are notified after
// commit.
func (s *service) PlaceOrder(ctx context.Context, clientID string, items []LineItemRequest) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.PlaceOrder")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID), attribute.Int("order.lines", len(items)))

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "PlaceOrder"),
		zap.String("client_id", clientID),
	)

	if err := ValidateLineItems(items); err != nil {
		s.metrics.Rejected(ctx, "validation")
		return nil, err
	}

	c, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			s.metrics.Rejected(ctx, "client_not_found")
			return nil, ErrClientNotFound
		}
		log.Error("failed to load client", zap.Error(err))
		return nil, err
	}

	timer := metrics.StartTimer()
	var created *Order
	err = s.txm.WithinTx(ctx, s.txOpts, func(ctx context.Context, tx db.DBTX) error {
		lines, err := s.reserve(ctx, tx, items)
		if err != nil {
			return err
		}

		o := &Order{
			OrderID:       utils.GenerateOrderCode(),
			ClientID:      c.ID,
			Name:          utils.OrNA(c.Name),
			Email:         c.Email,
			PhoneNumber:   utils.OrNA(c.PhoneNumber),
			Products:      lines,
			TotalAmount:   lines.Total(),
			Status:        StatusPending,
			PaymentStatus: PaymentPending,
			Flow:          FlowReserveFirst,
			StockApplied:  true,
		}
		if err := s.repo.Insert(ctx, tx, o); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		err = TranslateTxError(err)
		s.metrics.Rejected(ctx, rejectionReason(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsRetryable(err) {
			log.Warn("order transaction aborted", zap.Error(err))
		} else {
			log.Info("order rejected", zap.Error(err))
		}
		return nil, err
	}

	s.metrics.Placed(ctx, timer)
	span.SetAttributes(attribute.String("order.id", created.OrderID))
	log.Info("order placed",
		zap.String("order_id", created.OrderID),
		zap.String("total", created.TotalAmount.StringFixed(2)),
		zap.Duration("tx_duration", timer.Duration()),
	)

	s.publisher.Dispatch(ctx, OrderEvent(notify.KindOrderCreated, created))
	return created, nil
}

// reserve resolves every line in one locking lookup, checks all of them and
// only then decrements. The first shortfall aborts the whole order.
func (s *service) reserve(ctx context.Context, tx db.DBTX, items []LineItemRequest) (LineItems, error) {
	keys := make([]stock.Key, len(items))
	for i, it := range items {
		keys[i] = stock.Key{ProductID: it.ProductID, Size: it.Size}
	}

	resolved, err := s.stock.ResolveForUpdate(ctx, tx, keys)
	if err != nil {
		return nil, err
	}

	// remaining tracks repeated lines for the same variant within one cart.
	remaining := make(map[int64]int, len(resolved))
	lines := make(LineItems, 0, len(items))
	for i, it := range items {
		v, ok := resolved[keys[i]]
		if !ok {
			return nil, &VariantNotFoundError{ProductID: it.ProductID, Size: it.Size}
		}

		available, seen := remaining[v.ID]
		if !seen {
			available = v.Quantity
		}
		if available < it.Quantity {
			return nil, &InsufficientStockError{
				VariantID: v.ID,
				ProductID: v.ProductID,
				Title:     v.Title,
				Size:      v.Size,
				Requested: it.Quantity,
				Available: available,
			}
		}
		remaining[v.ID] = available - it.Quantity

		variantID := v.ID
		lines = append(lines, LineItem{
			ProductID: v.ProductID,
			VariantID: &variantID,
			Title:     v.Title,
			Size:      v.Size,
			Quantity:  it.Quantity,
			Price:     v.Price,
		})
	}

	for _, l := range lines {
		ok, err := s.stock.Decrement(ctx, tx, *l.VariantID, l.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			// The row lock makes this unreachable unless the schema lost its
			// constraint; treat it exactly like a failed check.
			return nil, &InsufficientStockError{
				VariantID: *l.VariantID,
				ProductID: l.ProductID,
				Title:     l.Title,
				Size:      l.Size,
				Requested: l.Quantity,
			}
		}
	}

	return lines, nil
}

// TranslateTxError maps classified store failures onto order errors.
func TranslateTxError(err error) error {
	switch {
	case errors.Is(err, db.ErrSerialization):
		return fmt.Errorf("%w: %v", ErrSerializationFailure, err)
	case errors.Is(err, db.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, db.ErrUniqueViolation):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrVariantNotFound):
		return "variant_not_found"
	case errors.Is(err, ErrSerializationFailure):
		return "serialization"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// OrderEvent builds the notification payload from a committed order.
func OrderEvent(kind notify.Kind, o *Order) notify.Event {
	lines := make([]notify.Line, len(o.Products))
	count := 0
	for i, l := range o.Products {
		lines[i] = notify.Line{Title: l.Title, Size: l.Size, Quantity: l.Quantity, Price: l.Price.StringFixed(2)}
		count += l.Quantity
	}
	return notify.Event{
		Kind:          kind,
		OrderID:       o.OrderID,
		CustomerName:  o.Name,
		CustomerEmail: o.Email,
		CustomerPhone: o.PhoneNumber,
		TotalAmount:   o.TotalAmount.StringFixed(2),
		ItemCount:     count,
		Lines:         lines,
	}
}

func (s *service) UpdateStatus(ctx context.Context, orderID, status string) (*Order, error) {
	st, ok := ParseAssignableStatus(status)
	if !ok {
		return nil, ErrInvalidStatus
	}

	o, err := s.repo.SetStatus(ctx, orderID, st)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			logger.FromCtx(ctx).Error("failed to update order status",
				zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, err
	}
	return o, nil
}

var detailFields = map[string]struct{}{
	"name":            {},
	"email":           {},
	"phoneNumber":     {},
	"shippingAddress": {},
}

// UpdateDetails edits contact and shipping fields only. Any other key,
// including the priced snapshot, is rejected before anything is written.
func (s *service) UpdateDetails(ctx context.Context, orderID string, fields map[string]json.RawMessage) (*Order, error) {
	for k := range fields {
		if _, ok := detailFields[k]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrImmutableField, k)
		}
	}

	var patch DetailsPatch
	str := func(key string) (*string, error) {
		raw, ok := fields[key]
		if !ok {
			return nil, nil
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %s must be a string", ErrValidation, key)
		}
		v = strings.TrimSpace(v)
		return &v, nil
	}

	var err error
	if patch.Name, err = str("name"); err != nil {
		return nil, err
	}
	if patch.Email, err = str("email"); err != nil {
		return nil, err
	}
	if patch.Email != nil {
		if _, perr := mail.ParseAddress(*patch.Email); perr != nil {
			return nil, fmt.Errorf("%w: email is invalid", ErrValidation)
		}
	}
	if patch.PhoneNumber, err = str("phoneNumber"); err != nil {
		return nil, err
	}
	if raw, ok := fields["shippingAddress"]; ok {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("%w: shippingAddress must be an object", ErrValidation)
		}
		patch.ShippingAddress = raw
	}
	if patch.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	return s.repo.UpdateDetails(ctx, orderID, patch)
}

func (s *service) List(ctx context.Context) ([]Order, error) {
	return s.repo.List(ctx, ListFilter{})
}

func (s *service) ListMine(ctx context.Context, clientID string) ([]Order, error) {
	return s.repo.List(ctx, ListFilter{ClientID: clientID})
}

func (s *service) ListCompleted(ctx context.Context) ([]Order, error) {
	return s.repo.List(ctx, ListFilter{Status: StatusCompleted})
}
