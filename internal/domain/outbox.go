package domain

import "time"

// OutboxEntry is a notification persisted in the same transaction as its
// event, waiting for the relay worker to publish it.
type OutboxEntry struct {
	ID          int64
	EventID     int64
	Payload     []byte
	Attempts    int
	LastError   *string
	CreatedAt   time.Time
	PublishedAt *time.Time
}
