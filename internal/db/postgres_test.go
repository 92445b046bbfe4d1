package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/notifyhub/event-notifier/internal/db"
	"github.com/notifyhub/event-notifier/internal/supervisor"
)

// A pool pointed at a port nothing listens on; pgxpool connects lazily, so
// creating it succeeds and every ping fails fast.
func unreachablePool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), "postgres://u:p@127.0.0.1:1/events?connect_timeout=1")
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestHealthcheck_ReportsDatabaseTarget(t *testing.T) {
	var waits []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	sup := supervisor.New(supervisor.Policy{Attempts: 2, BaseDelay: time.Millisecond}, zap.NewNop(), sleep)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := db.Healthcheck(unreachablePool(t), sup)(ctx)

	var ce *supervisor.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConnectionError, got %v", err)
	}
	if ce.Target != supervisor.TargetDatabase || ce.Attempts != 2 {
		t.Fatalf("unexpected connection error %+v", ce)
	}
	if !errors.Is(err, supervisor.ErrConnection) {
		t.Fatal("expected errors.Is(err, ErrConnection)")
	}
	if len(waits) != 1 {
		t.Fatalf("expected one backoff wait between two attempts, got %v", waits)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !db.IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected 23505 to be a unique violation")
	}
	if db.IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if db.IsUniqueViolation(errors.New("boom")) {
		t.Fatal("plain error is not a unique violation")
	}
}
