package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-orders/internal/domain/order"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func stateChanged() order.Event {
	return order.Event{
		Kind:    order.EventOrderStateChanged,
		OrderID: 42,
		From:    order.StatePending,
		State:   order.StatePreparing,
		Total:   decimal.RequireFromString("42.50"),
		At:      time.Date(2024, 12, 24, 18, 30, 0, 0, time.UTC),
	}
}

func TestEncode(t *testing.T) {
	fields := map[string]string{}
	var orderID int64

	data := Encode(stateChanged())
	require.True(t, json.Valid(data), string(data))

	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key == "order_id" {
			v, err := d.Int64()
			orderID = v
			return err
		}
		v, err := d.Str()
		fields[key] = v
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), orderID)
	assert.Equal(t, map[string]string{
		"kind":  "order.state_changed",
		"from":  "PENDING",
		"state": "PREPARING",
		"total": "42.5",
		"at":    "2024-12-24T18:30:00Z",
	}, fields)
}

func TestEncode_OmitsEmptyFrom(t *testing.T) {
	e := stateChanged()
	e.Kind = order.EventOrderPlaced
	e.From = ""

	data := Encode(e)
	require.True(t, json.Valid(data), string(data))
	assert.NotContains(t, string(data), `"from"`)
	assert.JSONEq(t, `{
		"kind": "order.placed",
		"order_id": 42,
		"state": "PREPARING",
		"total": "42.5",
		"at": "2024-12-24T18:30:00Z"
	}`, string(data))
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), stateChanged()))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.True(t, json.Valid(msg.Value), string(msg.Value))
	assert.JSONEq(t, string(Encode(stateChanged())), string(msg.Value))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, HeaderKind, msg.Headers[0].Key)
	assert.Equal(t, "order.state_changed", string(msg.Headers[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}}

	err := p.Publish(context.Background(), stateChanged())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "order 42")
}

func TestDiscard(t *testing.T) {
	require.NoError(t, Discard{}.Publish(context.Background(), stateChanged()))
}

func TestNewKafkaPublisher_FlushesEachMessage(t *testing.T) {
	p := NewKafkaPublisher([]string{"kafka-1:9092", "kafka-2:9092"}, "order-events")

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "order-events", w.Topic)
	assert.Equal(t, 1, w.BatchSize)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
	assert.Positive(t, w.BatchTimeout)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
