package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/notifyhub/event-notifier/internal/message"
	"github.com/notifyhub/event-notifier/internal/queue"
	"github.com/notifyhub/event-notifier/internal/supervisor"
	"github.com/notifyhub/event-notifier/internal/tracing"
)

// State is the consumer loop's position in its lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateProcessing:
		return "processing"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Handler performs the side-effect work for one notification. A nil return
// acks the delivery; any error nacks it with requeue.
type Handler interface {
	Handle(ctx context.Context, n message.Notification) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, n message.Notification) error

func (f HandlerFunc) Handle(ctx context.Context, n message.Notification) error { return f(ctx, n) }

// ConsumerHooks carries metric callbacks injected by main. Nil fields are no-ops.
type ConsumerHooks struct {
	OnAck       func()
	OnNack      func()
	OnReconnect func()
	OnHandled   func(time.Duration)
}

// Consumer keeps one subscription alive for the lifetime of its context.
// Transport loss and exhausted connection attempts both lead back to
// Disconnected, a fixed wait, and a fresh subscription; neither ends Run.
type Consumer struct {
	sub            queue.Subscriber
	handler        Handler
	reconnectDelay time.Duration
	sleep          supervisor.Sleeper
	logger         *zap.Logger
	hooks          ConsumerHooks

	state atomic.Int32
}

// NewConsumer builds a consumer. A nil sleep uses supervisor.SleepContext.
func NewConsumer(
	sub queue.Subscriber,
	handler Handler,
	reconnectDelay time.Duration,
	logger *zap.Logger,
	hooks ConsumerHooks,
	sleep supervisor.Sleeper,
) *Consumer {
	if sleep == nil {
		sleep = supervisor.SleepContext
	}
	if hooks.OnAck == nil {
		hooks.OnAck = func() {}
	}
	if hooks.OnNack == nil {
		hooks.OnNack = func() {}
	}
	if hooks.OnReconnect == nil {
		hooks.OnReconnect = func() {}
	}
	if hooks.OnHandled == nil {
		hooks.OnHandled = func(time.Duration) {}
	}
	return &Consumer{
		sub:            sub,
		handler:        handler,
		reconnectDelay: reconnectDelay,
		sleep:          sleep,
		logger:         logger,
		hooks:          hooks,
	}
}

// State is safe to call from any goroutine, e.g. a health handler.
func (c *Consumer) State() State { return State(c.state.Load()) }

func (c *Consumer) setState(s State) { c.state.Store(int32(s)) }

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("consumer started")
	defer func() {
		c.setState(StateDisconnected)
		c.logger.Info("consumer stopped")
	}()

	for {
		c.setState(StateConnecting)
		sub, err := c.sub.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.setState(StateDisconnected)
			c.logger.Error("consumer could not connect, waiting before retry",
				zap.Error(err), zap.Duration("retry_in", c.reconnectDelay))
			if !c.wait(ctx) {
				return
			}
			continue
		}

		c.setState(StateSubscribed)
		c.logger.Info("consumer subscribed, waiting for messages")

		err = c.consume(ctx, sub)
		if cerr := sub.Close(); cerr != nil {
			c.logger.Debug("closing subscription", zap.Error(cerr))
		}
		if ctx.Err() != nil {
			return
		}

		c.setState(StateDisconnected)
		c.logger.Warn("broker connection lost, reconnecting",
			zap.Error(err), zap.Duration("retry_in", c.reconnectDelay))
		if !c.wait(ctx) {
			return
		}
	}
}

// wait sleeps the fixed reconnect delay. It returns false if ctx ended.
func (c *Consumer) wait(ctx context.Context) bool {
	c.hooks.OnReconnect()
	return c.sleep(ctx, c.reconnectDelay) == nil
}

// consume processes deliveries until the subscription ends or ctx is done.
// The returned error describes the transport loss; it is nil on cancellation.
func (c *Consumer) consume(ctx context.Context, sub queue.Subscription) error {
	deliveries := sub.Deliveries()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if err := sub.Err(); err != nil {
					return err
				}
				return queue.ErrTransportLost
			}
			c.process(ctx, d)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d queue.Delivery) {
	c.setState(StateProcessing)
	defer c.setState(StateSubscribed)

	start := time.Now()

	// Continue the producer's trace, if the message carries one.
	ctx, span := tracing.Tracer("notifier.consumer").Start(tracing.Extract(ctx, d.Headers), "process notification",
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	log := c.logger.With(
		zap.Uint64("delivery_tag", d.Tag),
		zap.Bool("redelivered", d.Redelivered),
	).With(tracing.Fields(ctx)...)

	err := c.handle(ctx, d, log)

	// Interrupted by shutdown: leave the delivery unsettled so the broker
	// redelivers it once the channel closes.
	if err != nil && ctx.Err() != nil {
		log.Info("shutdown during processing, leaving message unacknowledged")
		return
	}

	c.settle(d, err, log)
	c.hooks.OnHandled(time.Since(start))
}

// handle decodes and runs the handler, converting panics to errors.
func (c *Consumer) handle(ctx context.Context, d queue.Delivery, log *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("message handler panic",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	n, err := message.Decode(d.Body)
	if err != nil {
		log.Error("could not decode message", zap.Error(err), zap.ByteString("body", d.Body))
		return err
	}

	if err := c.handler.Handle(ctx, n); err != nil {
		log.Error("message handling failed",
			zap.Int64("event_id", n.ID), zap.Error(err))
		return err
	}
	return nil
}

// settle sends exactly one ack or nack for this delivery tag.
func (c *Consumer) settle(d queue.Delivery, handleErr error, log *zap.Logger) {
	if handleErr == nil {
		if err := d.Ack(); err != nil {
			log.Error("ack failed", zap.Error(err))
			return
		}
		c.hooks.OnAck()
		return
	}

	// Requeue, never dead-letter: a message that always fails is redelivered
	// indefinitely.
	if err := d.Nack(true); err != nil {
		log.Error("nack failed", zap.Error(err))
		return
	}
	c.hooks.OnNack()
	if errors.Is(handleErr, message.ErrMalformed) {
		log.Warn("malformed message requeued; it will be redelivered until removed from the queue")
	}
}
