package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/event-notifier/internal/domain"
)

type pgEventRepository struct {
	pool *pgxpool.Pool
}

// NewPgEventRepository returns an EventRepository backed by PostgreSQL.
func NewPgEventRepository(pool *pgxpool.Pool) EventRepository {
	return &pgEventRepository{pool: pool}
}

const insertEvent = `
	INSERT INTO events (name, description, event_date)
	VALUES ($1, $2, $3)
	RETURNING id, created_at`

func (r *pgEventRepository) Create(ctx context.Context, e *domain.Event) error {
	err := r.pool.QueryRow(ctx, insertEvent, e.Name, e.Description, e.EventDate).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *pgEventRepository) CreateWithOutbox(
	ctx context.Context,
	e *domain.Event,
	payload func(*domain.Event) ([]byte, error),
) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.QueryRow(ctx, insertEvent, e.Name, e.Description, e.EventDate).
		Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	body, err := payload(e)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO notification_outbox (event_id, payload) VALUES ($1, $2)`,
		e.ID, body,
	); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

func (r *pgEventRepository) List(ctx context.Context) ([]*domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, event_date, created_at
		FROM events
		ORDER BY event_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.EventDate, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// ---- outbox ----

type pgOutboxRepository struct {
	pool *pgxpool.Pool
}

// NewPgOutboxRepository returns an OutboxRepository backed by PostgreSQL.
func NewPgOutboxRepository(pool *pgxpool.Pool) OutboxRepository {
	return &pgOutboxRepository{pool: pool}
}

func (r *pgOutboxRepository) FetchPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, payload, attempts, last_error, created_at, published_at
		FROM notification_outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.OutboxEntry, error) {
		var o domain.OutboxEntry
		err := row.Scan(&o.ID, &o.EventID, &o.Payload, &o.Attempts, &o.LastError, &o.CreatedAt, &o.PublishedAt)
		return &o, err
	})
}

func (r *pgOutboxRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_outbox
		SET published_at = $1, attempts = attempts + 1, last_error = NULL
		WHERE id = $2`, at, id)
	return err
}

func (r *pgOutboxRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_outbox
		SET attempts = attempts + 1, last_error = $1
		WHERE id = $2`, errMsg, id)
	return err
}

func (r *pgOutboxRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notification_outbox WHERE published_at IS NULL`).Scan(&n)
	return n, err
}
