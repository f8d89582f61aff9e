package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Orders holds the order engine instruments. A nil *Orders records nothing.
type Orders struct {
	placed     metric.Int64Counter
	rejected   metric.Int64Counter
	txDuration metric.Float64Histogram
}

func NewOrders(meter metric.Meter) (*Orders, error) {
	placed, err := meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Orders committed by the order engine"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("orders_rejected_total",
		metric.WithDescription("Order attempts rolled back, by reason"))
	if err != nil {
		return nil, err
	}
	txDuration, err := meter.Float64Histogram("order_tx_duration_ms",
		metric.WithDescription("Wall time of the order transaction"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &Orders{placed: placed, rejected: rejected, txDuration: txDuration}, nil
}

func (o *Orders) Placed(ctx context.Context, t *Timer) {
	if o == nil {
		return
	}
	o.placed.Add(ctx, 1)
	o.txDuration.Record(ctx, float64(t.Duration().Microseconds())/1000)
}

func (o *Orders) Rejected(ctx context.Context, reason string) {
	if o == nil {
		return
	}
	o.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Payments holds the payment reconciliation instruments.
type Payments struct {
	initiated    metric.Int64Counter
	confirmed    metric.Int64Counter
	stockSkipped metric.Int64Counter
}

func NewPayments(meter metric.Meter) (*Payments, error) {
	initiated, err := meter.Int64Counter("payments_initiated_total")
	if err != nil {
		return nil, err
	}
	confirmed, err := meter.Int64Counter("payments_confirmed_total",
		metric.WithDescription("Payment confirmations, labelled duplicate when already paid"))
	if err != nil {
		return nil, err
	}
	stockSkipped, err := meter.Int64Counter("payment_stock_skipped_total",
		metric.WithDescription("Line items whose stock adjustment was skipped on confirmation"))
	if err != nil {
		return nil, err
	}
	return &Payments{initiated: initiated, confirmed: confirmed, stockSkipped: stockSkipped}, nil
}

func (p *Payments) Initiated(ctx context.Context) {
	if p == nil {
		return
	}
	p.initiated.Add(ctx, 1)
}

func (p *Payments) Confirmed(ctx context.Context, duplicate bool) {
	if p == nil {
		return
	}
	p.confirmed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("duplicate", duplicate)))
}

func (p *Payments) StockSkipped(ctx context.Context, outcome string) {
	if p == nil {
		return
	}
	p.stockSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
