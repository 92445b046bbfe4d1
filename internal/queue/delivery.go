package queue

import (
	"context"
	"errors"
)

// ErrTransportLost is reported when a subscription ends without the broker
// supplying a reason.
var ErrTransportLost = errors.New("broker transport lost")

// Delivery is one message handed to the consumer. Exactly one of Ack or Nack
// must be called per delivery; both act on this delivery's tag only.
type Delivery struct {
	Tag         uint64
	Body        []byte
	Redelivered bool
	MessageID   string
	Headers     map[string]string

	Ack  func() error
	Nack func(requeue bool) error
}

// Subscription is a live consume session. Deliveries is closed when the
// session ends for any reason; Err then reports why (nil on a clean Close).
type Subscription interface {
	Deliveries() <-chan Delivery
	Err() error
	Close() error
}

// Subscriber opens consume sessions. Each call owns a fresh connection.
type Subscriber interface {
	Subscribe(ctx context.Context) (Subscription, error)
}
