package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/kgo"
)

const OrderEventSchemaText = `{
	"type": "record",
	"name": "OrderEvent",
	"namespace": "techwire.orders",
	"fields": [
		{"name": "kind", "type": "string"},
		{"name": "order_id", "type": "string"},
		{"name": "customer_name", "type": "string"},
		{"name": "customer_email", "type": "string"},
		{"name": "total_amount", "type": "string"},
		{"name": "item_count", "type": "int"},
		{"name": "occurred_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

var orderEventSchema = avro.MustParse(OrderEventSchemaText)

type OrderEvent struct {
	Kind          string    `avro:"kind"`
	OrderID       string    `avro:"order_id"`
	CustomerName  string    `avro:"customer_name"`
	CustomerEmail string    `avro:"customer_email"`
	TotalAmount   string    `avro:"total_amount"`
	ItemCount     int       `avro:"item_count"`
	OccurredAt    time.Time `avro:"occurred_at"`
}

type ProducerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

func NewKafkaClient(ctx context.Context, seedBrokers []string, topic string) (*kgo.Client, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(seedBrokers...),
		kgo.DefaultProduceTopicAlways(),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, err
	}
	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, err
	}
	return cl, nil
}

// KafkaPublisher emits avro-encoded order events keyed by order id.
type KafkaPublisher struct {
	cl ProducerClient
}

func NewKafkaPublisher(cl ProducerClient) *KafkaPublisher {
	return &KafkaPublisher{cl: cl}
}

func (p *KafkaPublisher) Notify(ctx context.Context, e Event) error {
	const op = "KafkaPublisher.Notify"

	if e.Kind != KindOrderCreated && e.Kind != KindOrderPaid {
		return nil
	}

	v, err := avro.Marshal(orderEventSchema, OrderEvent{
		Kind:          string(e.Kind),
		OrderID:       e.OrderID,
		CustomerName:  e.CustomerName,
		CustomerEmail: e.CustomerEmail,
		TotalAmount:   e.TotalAmount,
		ItemCount:     e.ItemCount,
		OccurredAt:    e.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}

	res := p.cl.ProduceSync(ctx, &kgo.Record{Key: []byte(e.OrderID), Value: v})
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.cl.Close()
}
