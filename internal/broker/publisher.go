package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/notifyhub/event-notifier/internal/message"
	"github.com/notifyhub/event-notifier/internal/tracing"
)

// ErrPublishNotConfirmed means the broker negatively confirmed a publish.
var ErrPublishNotConfirmed = errors.New("broker did not confirm publish")

// Publisher sends notifications to the durable queue. It keeps no
// connection between calls.
type Publisher struct {
	client *Client
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish encodes n and sends it as a persistent message on the default
// exchange, then waits for the broker's publisher confirm.
func (p *Publisher) Publish(ctx context.Context, n message.Notification) error {
	body, err := message.Encode(n)
	if err != nil {
		return err
	}
	return p.PublishRaw(ctx, n.ID, body)
}

// PublishRaw sends an already-encoded body. The outbox relay uses it so the
// bytes committed with the event are exactly the bytes published.
func (p *Publisher) PublishRaw(ctx context.Context, eventID int64, body []byte) error {
	s, err := p.client.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	ctx, span := tracing.Tracer("notifier.broker").Start(ctx, "publish "+s.queue,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.Int64("event.id", eventID)),
	)
	defer span.End()

	headers := amqp.Table{}
	for k, v := range tracing.Inject(ctx) {
		headers[k] = v
	}

	if err := s.ch.Confirm(false); err != nil {
		return fmt.Errorf("enable publisher confirms: %w", err)
	}

	confirm, err := s.ch.PublishWithDeferredConfirmWithContext(ctx,
		"",      // default exchange routes by queue name
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		newPublishing(eventID, body, headers),
	)
	if err != nil {
		return fmt.Errorf("publish event %d: %w", eventID, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for event %d: %w", eventID, err)
	}
	if !acked {
		return fmt.Errorf("event %d: %w", eventID, ErrPublishNotConfirmed)
	}
	return nil
}

// newPublishing builds a persistent message so it survives a broker restart
// while queued.
func newPublishing(eventID int64, body []byte, headers amqp.Table) amqp.Publishing {
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["event_id"] = strconv.FormatInt(eventID, 10)
	return amqp.Publishing{
		ContentType:  message.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         "event.created",
		Headers:      headers,
		Body:         body,
	}
}
