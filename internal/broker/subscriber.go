package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/notifyhub/event-notifier/internal/queue"
)

// Subscriber opens manual-ack consume sessions on the durable queue.
type Subscriber struct {
	client   *Client
	prefetch int
}

func NewSubscriber(client *Client, prefetch int) *Subscriber {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Subscriber{client: client, prefetch: prefetch}
}

var _ queue.Subscriber = (*Subscriber)(nil)

// Subscribe opens a session, limits unacked deliveries to the prefetch count,
// and starts consuming with autoAck disabled.
func (s *Subscriber) Subscribe(ctx context.Context) (queue.Subscription, error) {
	sess, err := s.client.Open(ctx)
	if err != nil {
		return nil, err
	}

	if err := sess.ch.Qos(s.prefetch, 0, false); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	// Registered before Consume so a close racing the subscribe is not missed.
	connClosed := sess.conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := sess.ch.NotifyClose(make(chan *amqp.Error, 1))

	tag := "notifier-" + uuid.NewString()
	msgs, err := sess.ch.Consume(
		sess.queue,
		tag,
		false, // autoAck: every delivery is acked or nacked explicitly
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("consume %q: %w", sess.queue, err)
	}

	sub := &subscription{
		sess: sess,
		out:  make(chan queue.Delivery),
		done: make(chan struct{}),
	}
	go sub.forward(msgs, connClosed, chClosed)
	return sub, nil
}

type subscription struct {
	sess *Session
	out  chan queue.Delivery
	done chan struct{}
	once sync.Once

	err error // written before out is closed
}

func (s *subscription) Deliveries() <-chan queue.Delivery { return s.out }

// Err is meaningful once Deliveries has been closed.
func (s *subscription) Err() error { return s.err }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.sess.Close()
	})
	return err
}

// forward converts amqp deliveries until the broker stops sending or Close
// is called, then records why and closes out.
func (s *subscription) forward(msgs <-chan amqp.Delivery, connClosed, chClosed <-chan *amqp.Error) {
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case m, ok := <-msgs:
			if !ok {
				s.err = closeReason(connClosed, chClosed)
				return
			}
			select {
			case s.out <- toDelivery(m):
			case <-s.done:
				return
			}
		}
	}
}

func toDelivery(m amqp.Delivery) queue.Delivery {
	return queue.Delivery{
		Tag:         m.DeliveryTag,
		Body:        m.Body,
		Redelivered: m.Redelivered,
		MessageID:   m.MessageId,
		Headers:     stringHeaders(m.Headers),
		Ack:         func() error { return m.Ack(false) },
		Nack:        func(requeue bool) error { return m.Nack(false, requeue) },
	}
}

// stringHeaders keeps the string-valued headers, which is all the trace
// propagators write.
func stringHeaders(t amqp.Table) map[string]string {
	if len(t) == 0 {
		return nil
	}
	out := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// closeReason picks the broker-supplied error if one is buffered.
func closeReason(connClosed, chClosed <-chan *amqp.Error) error {
	for _, c := range []<-chan *amqp.Error{connClosed, chClosed} {
		select {
		case e, ok := <-c:
			if ok && e != nil {
				return fmt.Errorf("%w: %v", queue.ErrTransportLost, e)
			}
		default:
		}
	}
	return queue.ErrTransportLost
}
