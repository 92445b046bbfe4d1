// Package broker is the RabbitMQ side of the pipeline. Every operation
// (one publish, one subscription, one health probe) opens its own Session
// through the connection supervisor and closes it before returning.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/notifyhub/event-notifier/internal/config"
	"github.com/notifyhub/event-notifier/internal/supervisor"
)

// Config identifies the broker and the durable queue.
type Config struct {
	Host        string
	Port        int // 0 means the AMQP default, 5672
	User        string
	Password    string
	VHost       string
	Queue       string
	DialTimeout time.Duration
}

// ConfigFrom extracts the broker settings from the process configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Host:        cfg.BrokerHost,
		Port:        cfg.BrokerPort,
		User:        cfg.BrokerUser,
		Password:    cfg.BrokerPassword,
		VHost:       cfg.BrokerVHost,
		Queue:       cfg.BrokerQueue,
		DialTimeout: cfg.BrokerDialTimeout,
	}
}

// URL renders the AMQP connection URL.
func (c Config) URL() string {
	port := c.Port
	if port == 0 {
		port = 5672
	}
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     port,
		Username: c.User,
		Password: c.Password,
		Vhost:    vhost,
	}.String()
}

// Session is one AMQP connection plus one channel on it, with the durable
// queue already declared. It is owned by a single operation.
type Session struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// Close releases the channel and then the connection.
func (s *Session) Close() error {
	var chErr, connErr error
	if s.ch != nil {
		chErr = s.ch.Close()
	}
	if s.conn != nil && !s.conn.IsClosed() {
		connErr = s.conn.Close()
	}
	if errors.Is(chErr, amqp.ErrClosed) {
		chErr = nil
	}
	if errors.Is(connErr, amqp.ErrClosed) {
		connErr = nil
	}
	return errors.Join(chErr, connErr)
}

// Client opens sessions under the supervisor's backoff policy.
type Client struct {
	cfg Config
	sup *supervisor.Supervisor
}

func NewClient(cfg Config, sup *supervisor.Supervisor) *Client {
	return &Client{cfg: cfg, sup: sup}
}

func (c *Client) Queue() string { return c.cfg.Queue }

// Open returns a ready-to-use session or a *supervisor.ConnectionError.
func (c *Client) Open(ctx context.Context) (*Session, error) {
	return supervisor.Acquire(ctx, c.sup, supervisor.TargetBroker, c.dial)
}

func (c *Client) dial(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := c.cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := amqp.DialConfig(c.cfg.URL(), amqp.Config{
		Dial:       amqp.DefaultDial(timeout),
		Properties: amqp.Table{"connection_name": "event-notifier"},
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareQueue(ch, c.cfg.Queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Session{conn: conn, ch: ch, queue: c.cfg.Queue}, nil
}

// queueDeclarer is the part of *amqp.Channel used to declare the queue.
type queueDeclarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

// declareQueue is idempotent: redeclaring with identical properties is a no-op.
func declareQueue(ch queueDeclarer, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // no TTL or other arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", name, err)
	}
	return nil
}

// Ping opens and closes a session. Used by health endpoints.
func (c *Client) Ping(ctx context.Context) error {
	s, err := c.Open(ctx)
	if err != nil {
		return err
	}
	return s.Close()
}

// Reachable reports whether a session could be opened.
func (c *Client) Reachable(ctx context.Context) bool {
	return c.Ping(ctx) == nil
}

// QueueStats is a snapshot of the durable queue.
type QueueStats struct {
	Messages  int `json:"messages"`
	Consumers int `json:"consumers"`
}

// Stats reads queue depth with a passive declare, which fails rather than
// creates when the queue is missing.
func (c *Client) Stats(ctx context.Context) (QueueStats, error) {
	s, err := c.Open(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	defer s.Close() //nolint:errcheck

	q, err := s.ch.QueueDeclarePassive(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return QueueStats{}, fmt.Errorf("inspect queue %q: %w", c.cfg.Queue, err)
	}
	return QueueStats{Messages: q.Messages, Consumers: q.Consumers}, nil
}
