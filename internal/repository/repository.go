package repository

import (
	"context"
	"time"

	"github.com/notifyhub/event-notifier/internal/domain"
)

// EventRepository persists events. The pgx implementation is in pg_event_repo.go.
// Tests use a hand-written mock (mock_event_repo.go).
type EventRepository interface {
	// Create inserts e and commits; on success e.ID and e.CreatedAt hold the
	// store-assigned values.
	Create(ctx context.Context, e *domain.Event) error
	// CreateWithOutbox inserts e and an outbox row in one transaction.
	// payload is called after the insert so it can see e.ID.
	CreateWithOutbox(ctx context.Context, e *domain.Event, payload func(*domain.Event) ([]byte, error)) error
	List(ctx context.Context) ([]*domain.Event, error)
}

// OutboxRepository is consumed by the relay worker.
type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	CountPending(ctx context.Context) (int, error)
}

// UserRepository persists users and exposes them as notification recipients.
type UserRepository interface {
	// Create returns domain.ErrUsernameTaken on a duplicate username.
	Create(ctx context.Context, u *domain.User) error
	List(ctx context.Context) ([]*domain.User, error)
	ListRecipients(ctx context.Context) ([]domain.Recipient, error)
}
