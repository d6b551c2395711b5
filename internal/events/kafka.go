package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/storefront-orders/internal/domain/order"
)

// HeaderKind carries the event kind on every Kafka message.
const HeaderKind = "event-kind"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ order.Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes order events to a Kafka topic keyed by order id.
type KafkaPublisher struct {
	writer messageWriter
}

// Events are published one at a time on the request path, so the writer
// flushes every message instead of waiting to fill a batch.
const (
	batchSize    = 1
	batchTimeout = 5 * time.Millisecond
	writeTimeout = 5 * time.Second
)

// NewKafkaPublisher returns a publisher writing to topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: newWriter(brokers, topic)}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              batchSize,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}
}

// Publish writes a single event and waits for the broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, e order.Event) error {
	msg := kafka.Message{
		Key:   Key(e),
		Value: Encode(e),
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: HeaderKind, Value: []byte(e.Kind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s event for order %d", e.Kind, e.OrderID)
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
