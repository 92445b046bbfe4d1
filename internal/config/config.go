package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// PublishMode selects how the server hands committed events to the broker.
type PublishMode string

const (
	// PublishDirect publishes right after commit; failures are logged only.
	PublishDirect PublishMode = "direct"
	// PublishOutbox writes an outbox row in the same transaction and lets
	// the relay worker publish it.
	PublishOutbox PublishMode = "outbox"
)

// Config holds all runtime configuration loaded from environment variables.
// Both processes share it; each reads only the fields it needs.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	HealthTimeout   time.Duration

	// Database
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrationsPath string

	// Connection supervisor
	ConnectAttempts  int
	ConnectBaseDelay time.Duration

	// Broker
	BrokerHost        string
	BrokerPort        int
	BrokerUser        string
	BrokerPassword    string
	BrokerVHost       string
	BrokerQueue       string
	BrokerDialTimeout time.Duration

	// Consumer
	ConsumerPrefetch       int
	ConsumerReconnectDelay time.Duration
	DispatchWorkDelay      time.Duration

	// Outbound notification delivery
	NotifyWebhookURL string
	NotifyTimeout    time.Duration
	NotifyRateLimit  int
	NotifyRecipients []string

	// Producer
	PublishMode     PublishMode
	OutboxInterval  time.Duration
	OutboxBatchSize int
}

// LoadServer loads configuration for the event API process.
// DATABASE_URL is required there.
func LoadServer() (*Config, error) {
	cfg, err := load("5001")
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

// LoadNotifier loads configuration for the notifier process. The database is
// optional: without it recipients come from NOTIFY_RECIPIENTS.
func LoadNotifier() (*Config, error) {
	return load("5003")
}

func load(defaultPort string) (*Config, error) {
	mode := PublishMode(getEnv("PUBLISH_MODE", string(PublishDirect)))
	if mode != PublishDirect && mode != PublishOutbox {
		return nil, fmt.Errorf("PUBLISH_MODE must be %q or %q, got %q", PublishDirect, PublishOutbox, mode)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", defaultPort),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 40*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthTimeout:   getDuration("HEALTH_TIMEOUT", 35*time.Second),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxConns:     int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:     int32(getInt("DB_MIN_CONNS", 1)),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		ConnectAttempts:  getInt("CONNECT_ATTEMPTS", 5),
		ConnectBaseDelay: getDuration("CONNECT_BASE_DELAY", time.Second),

		BrokerHost:        getEnv("BROKER_HOST", "rabbitmq"),
		BrokerPort:        getInt("BROKER_PORT", 5672),
		BrokerUser:        getEnv("BROKER_USER", "guest"),
		BrokerPassword:    getEnv("BROKER_PASSWORD", "guest"),
		BrokerVHost:       getEnv("BROKER_VHOST", "/"),
		BrokerQueue:       getEnv("BROKER_QUEUE", "event_notifications"),
		BrokerDialTimeout: getDuration("BROKER_DIAL_TIMEOUT", 5*time.Second),

		ConsumerPrefetch:       getInt("CONSUMER_PREFETCH", 1),
		ConsumerReconnectDelay: getDuration("CONSUMER_RECONNECT_DELAY", 5*time.Second),
		DispatchWorkDelay:      getDuration("DISPATCH_WORK_DELAY", time.Second),

		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyTimeout:    getDuration("NOTIFY_TIMEOUT", 10*time.Second),
		NotifyRateLimit:  getInt("NOTIFY_RATE_LIMIT", 50),
		NotifyRecipients: getList("NOTIFY_RECIPIENTS"),

		PublishMode:     mode,
		OutboxInterval:  getDuration("OUTBOX_INTERVAL", 2*time.Second),
		OutboxBatchSize: getInt("OUTBOX_BATCH_SIZE", 100),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getList splits a comma-separated value, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
