package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"techwire-be/internal/client"
	"techwire-be/internal/db"
	"techwire-be/internal/logger"
	"techwire-be/internal/metrics"
	"techwire-be/internal/notify"
	"techwire-be/internal/order"
	"techwire-be/internal/stock"
	"techwire-be/internal/utils"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("techwire-be/internal/payment")

type Service interface {
	// InitiatePayment records a pay-first order and opens the matching
	// provider order. Stock is untouched until the payment is confirmed.
	InitiatePayment(ctx context.Context, in InitiateInput) (*InitiateResult, error)
	// ConfirmPayment checks the checkout signature and then settles.
	ConfirmPayment(ctx context.Context, c Confirmation) (*order.Order, error)
	// Settle marks the order paid and applies its stock exactly once. The
	// caller must already have authenticated the request.
	Settle(ctx context.Context, providerOrderID, paymentID, signature string) (*order.Order, error)
	MarkFailed(ctx context.Context, providerOrderID string) (bool, error)
}

type Options struct {
	Secret      string
	Currency    string
	AcquireWait time.Duration
	Timeout     time.Duration
}

type service struct {
	orders    order.Repository
	stock     stock.Repository
	clients   client.Repository
	txm       db.TxManager
	gateway   Gateway
	publisher notify.Publisher
	secret    string
	currency  string
	txOpts    db.TxOptions
	metrics   *metrics.Payments
}

func NewService(
	orders order.Repository,
	stockRepo stock.Repository,
	clients client.Repository,
	txm db.TxManager,
	gateway Gateway,
	publisher notify.Publisher,
	opts Options,
) Service {
	m, err := metrics.NewPayments(otel.Meter("techwire-be/internal/payment"))
	if err != nil {
		logger.L().Warn("payment metrics disabled", zap.Error(err))
	}
	currency := opts.Currency
	if currency == "" {
		currency = "INR"
	}
	return &service{
		orders:    orders,
		stock:     stockRepo,
		clients:   clients,
		txm:       txm,
		gateway:   gateway,
		publisher: publisher,
		secret:    opts.Secret,
		currency:  currency,
		metrics:   m,
		txOpts: db.TxOptions{
			Isolation:   sql.LevelReadCommitted,
			AcquireWait: opts.AcquireWait,
			Timeout:     opts.Timeout,
		},
	}
}

func validateInitiate(in InitiateInput) error {
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: cart_items must not be empty", ErrValidation)
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.ID) == "" || it.Quantity <= 0 {
			return fmt.Errorf("%w: every cart item needs an id and a quantity greater than 0", ErrValidation)
		}
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}
	return nil
}

func (s *service) InitiatePayment(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	ctx, span := tracer.Start(ctx, "payment.InitiatePayment")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", in.ClientID), attribute.Int("order.lines", len(in.Items)))

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "InitiatePayment"),
		zap.String("client_id", in.ClientID),
	)

	fail := func(err error) (*InitiateResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := validateInitiate(in); err != nil {
		return fail(err)
	}

	c, err := s.clients.GetByID(ctx, in.ClientID)
	if err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			return fail(order.ErrClientNotFound)
		}
		log.Error("failed to load client", zap.Error(err))
		return fail(err)
	}

	var created *order.Order
	err = s.txm.WithinTx(ctx, s.txOpts, func(ctx context.Context, tx db.DBTX) error {
		lines, err := s.price(ctx, tx, in.Items)
		if err != nil {
			return err
		}

		total := lines.Total()
		if !total.Equal(in.Amount) {
			return fmt.Errorf("%w: expected %s", ErrAmountMismatch, total.StringFixed(2))
		}

		o := &order.Order{
			OrderID:         utils.GenerateOrderCode(),
			ClientID:        c.ID,
			Name:            utils.OrNA(c.Name),
			Email:           c.Email,
			PhoneNumber:     utils.OrNA(c.PhoneNumber),
			ShippingAddress: in.ShippingAddress,
			Products:        lines,
			TotalAmount:     total,
			Status:          order.StatusPending,
			PaymentStatus:   order.PaymentPending,
			Flow:            order.FlowPayFirst,
			StockApplied:    false,
		}
		if err := s.orders.Insert(ctx, tx, o); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		err = order.TranslateTxError(err)
		log.Info("payment initiation rejected", zap.Error(err))
		return fail(err)
	}

	po, err := s.gateway.CreateOrder(ctx, CreateOrderRequest{
		Amount:   minorUnits(created.TotalAmount),
		Currency: s.currency,
		Receipt:  created.OrderID,
		Notes:    map[string]string{"internalOrderId": strconv.FormatInt(created.ID, 10)},
	})
	if err != nil {
		s.discard(ctx, created)
		return fail(fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
	}

	err = s.txm.WithinTx(ctx, s.txOpts, func(ctx context.Context, tx db.DBTX) error {
		return s.orders.SetProviderOrderID(ctx, tx, created.ID, po.ID)
	})
	if err != nil {
		log.Error("failed to link provider order", zap.String("provider_order_id", po.ID), zap.Error(err))
		s.discard(ctx, created)
		return fail(order.TranslateTxError(err))
	}
	created.ProviderOrderID = &po.ID

	s.metrics.Initiated(ctx)
	span.SetAttributes(attribute.String("order.id", created.OrderID), attribute.String("provider.order_id", po.ID))
	log.Info("payment initiated",
		zap.String("order_id", created.OrderID),
		zap.String("provider_order_id", po.ID),
		zap.String("total", created.TotalAmount.StringFixed(2)),
	)

	return &InitiateResult{ProviderOrder: po, Order: created}, nil
}

// discard deletes an order whose provider side never came into existence.
// It runs detached so a cancelled request still cleans up.
func (s *service) discard(ctx context.Context, o *order.Order) {
	ctx = context.WithoutCancel(ctx)
	log := logger.FromCtx(ctx).With(zap.String("order_id", o.OrderID))

	err := s.txm.WithinTx(ctx, s.txOpts, func(ctx context.Context, tx db.DBTX) error {
		return s.orders.Delete(ctx, tx, o.ID)
	})
	if err != nil {
		log.Error("failed to discard unpaid order", zap.Error(err))
		return
	}
	log.Warn("unpaid order discarded after provider failure")
}

// price builds the line snapshot from current catalog prices. Sized lines
// must resolve to a variant holding enough stock right now; the stock is not
// held, so confirmation may still find it gone.
func (s *service) price(ctx context.Context, q db.DBTX, items []CartItem) (order.LineItems, error) {
	var (
		keys []stock.Key
		ids  []string
	)
	for _, it := range items {
		if it.VariantSize != "" {
			keys = append(keys, stock.Key{ProductID: it.ID, Size: it.VariantSize})
		} else {
			ids = append(ids, it.ID)
		}
	}

	variants, err := s.stock.Resolve(ctx, q, keys)
	if err != nil {
		return nil, err
	}
	products, err := s.stock.LookupProducts(ctx, q, ids)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int64]int)
	lines := make(order.LineItems, 0, len(items))
	for _, it := range items {
		if it.VariantSize == "" {
			p, ok := products[it.ID]
			if !ok {
				return nil, fmt.Errorf("%w: Product with ID %s not found.", ErrValidation, it.ID)
			}
			lines = append(lines, order.LineItem{ProductID: p.ID, Title: p.Title, Quantity: it.Quantity, Price: p.Price})
			continue
		}

		v, ok := variants[stock.Key{ProductID: it.ID, Size: it.VariantSize}]
		if !ok {
			return nil, &order.VariantNotFoundError{ProductID: it.ID, Size: it.VariantSize}
		}
		wanted[v.ID] += it.Quantity
		if wanted[v.ID] > v.Quantity {
			return nil, &order.InsufficientStockError{
				VariantID: v.ID,
				ProductID: v.ProductID,
				Title:     v.Title,
				Size:      v.Size,
				Requested: wanted[v.ID],
				Available: v.Quantity,
			}
		}
		variantID := v.ID
		lines = append(lines, order.LineItem{
			ProductID: v.ProductID,
			VariantID: &variantID,
			Title:     v.Title,
			Size:      v.Size,
			Quantity:  it.Quantity,
			Price:     v.Price,
		})
	}
	return lines, nil
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (s *service) ConfirmPayment(ctx context.Context, c Confirmation) (*order.Order, error) {
	if c.ProviderOrderID == "" || c.PaymentID == "" || c.Signature == "" {
		return nil, fmt.Errorf("%w: order_id, payment_id and signature are required", ErrValidation)
	}
	if !Verify(s.secret, c.ProviderOrderID, c.PaymentID, c.Signature) {
		logger.FromCtx(ctx).Warn("payment signature mismatch",
			zap.String("provider_order_id", c.ProviderOrderID),
			zap.String("payment_id", c.PaymentID),
		)
		return nil, ErrSignatureMismatch
	}
	return s.Settle(ctx, c.ProviderOrderID, c.PaymentID, c.Signature)
}

func (s *service) Settle(ctx context.Context, providerOrderID, paymentID, signature string) (*order.Order, error) {
	ctx, span := tracer.Start(ctx, "payment.ConfirmPayment")
	defer span.End()
	span.SetAttributes(attribute.String("provider.order_id", providerOrderID), attribute.String("payment.id", paymentID))

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Settle"),
		zap.String("provider_order_id", providerOrderID),
		zap.String("payment_id", paymentID),
	)

	var (
		settled   *order.Order
		duplicate bool
		skipped   int
	)
	err := s.txm.WithinTx(ctx, s.txOpts, func(ctx context.Context, tx db.DBTX) error {
		o, err := s.orders.GetByProviderOrderIDForUpdate(ctx, tx, providerOrderID)
		if err != nil {
			return err
		}
		if o.PaymentStatus == order.PaymentPaid {
			duplicate = true
			settled = o
			return nil
		}

		if err := s.orders.MarkPaid(ctx, tx, o.ID, paymentID, signature); err != nil {
			return err
		}
		o.PaymentStatus = order.PaymentPaid
		o.Status = order.StatusConfirmed
		o.PaymentID = &paymentID
		o.PaymentSignature = utils.NilIfEmpty(signature)

		if o.Flow == order.FlowPayFirst && !o.StockApplied {
			if skipped, err = s.applyStock(ctx, tx, o); err != nil {
				return err
			}
			if err := s.orders.MarkStockApplied(ctx, tx, o.ID); err != nil {
				return err
			}
			o.StockApplied = true
		}
		settled = o
		return nil
	})
	if err != nil {
		err = order.TranslateTxError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, order.ErrOrderNotFound) {
			log.Warn("payment for unknown provider order")
		} else {
			log.Error("payment confirmation failed", zap.Error(err))
		}
		return nil, err
	}

	s.metrics.Confirmed(ctx, duplicate)
	if duplicate {
		log.Info("payment already confirmed", zap.String("order_id", settled.OrderID))
		return settled, nil
	}

	log.Info("payment confirmed",
		zap.String("order_id", settled.OrderID),
		zap.Int("stock_lines_skipped", skipped),
	)
	s.publisher.Dispatch(ctx, order.OrderEvent(notify.KindOrderPaid, settled))
	return settled, nil
}

// applyStock decrements each captured line under its own savepoint. A failed
// line is rolled back to its savepoint, logged and skipped; money has moved,
// so the confirmation itself must not fail on inventory bookkeeping.
func (s *service) applyStock(ctx context.Context, tx db.DBTX, o *order.Order) (int, error) {
	log := logger.FromCtx(ctx).With(zap.String("order_id", o.OrderID))

	skipped := 0
	for i, line := range o.Products {
		sp := "stock_line_" + strconv.Itoa(i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			return skipped, err
		}

		var (
			outcome stock.Outcome
			err     error
		)
		if line.Size != "" {
			outcome, err = s.stock.DecrementBySize(ctx, tx, line.ProductID, line.Size, line.Quantity)
		} else {
			outcome, err = s.stock.DecrementProductStock(ctx, tx, line.ProductID, line.Quantity)
		}

		lineLog := log.With(
			zap.String("product_id", line.ProductID),
			zap.String("size", line.Size),
			zap.Int("quantity", line.Quantity),
		)
		if err != nil {
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				return skipped, rbErr
			}
			lineLog.Error("stock adjustment failed, line skipped", zap.Error(err))
			s.metrics.StockSkipped(ctx, "error")
			skipped++
			continue
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			return skipped, err
		}
		if outcome != stock.Applied {
			lineLog.Warn("stock adjustment skipped", zap.Stringer("outcome", outcome))
			s.metrics.StockSkipped(ctx, outcome.String())
			skipped++
		}
	}
	return skipped, nil
}

func (s *service) MarkFailed(ctx context.Context, providerOrderID string) (bool, error) {
	changed, err := s.orders.MarkFailed(ctx, providerOrderID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to mark payment failed",
			zap.String("provider_order_id", providerOrderID), zap.Error(err))
		return false, err
	}
	return changed, nil
}
