// Package events publishes order events to external consumers.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-orders/internal/domain/order"
)

var _ order.Publisher = Discard{}

// Discard drops every event. It is used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, order.Event) error { return nil }

// Encode renders the event as a JSON object.
func Encode(e order.Event) []byte {
	var enc jx.Encoder
	enc.ObjStart()
	enc.FieldStart("kind")
	enc.Str(string(e.Kind))
	enc.FieldStart("order_id")
	enc.Int64(e.OrderID)
	if e.From != "" {
		enc.FieldStart("from")
		enc.Str(e.From.String())
	}
	enc.FieldStart("state")
	enc.Str(e.State.String())
	enc.FieldStart("total")
	enc.Str(e.Total.String())
	enc.FieldStart("at")
	enc.Str(e.At.UTC().Format(time.RFC3339Nano))
	enc.ObjEnd()
	return enc.Bytes()
}

// Key partitions events by order so consumers see them in order.
func Key(e order.Event) []byte {
	return strconv.AppendInt(nil, e.OrderID, 10)
}
