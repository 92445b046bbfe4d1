package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/event-notifier/internal/config"
	"github.com/notifyhub/event-notifier/internal/supervisor"
)

// Connect creates a pgxpool connection pool and verifies connectivity.
// Every attempt goes through the supervisor's backoff policy; a pool that
// fails its ping is closed before the next attempt.
func Connect(ctx context.Context, cfg *config.Config, sup *supervisor.Supervisor) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns

	return supervisor.Acquire(ctx, sup, supervisor.TargetDatabase, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return pool, nil
	})
}

// Healthcheck returns a probe for the health endpoint. The ping runs under
// the supervisor's policy, so an outage surfaces as a *supervisor.ConnectionError
// naming the database.
func Healthcheck(pool *pgxpool.Pool, sup *supervisor.Supervisor) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := supervisor.Acquire(ctx, sup, supervisor.TargetDatabase, func(ctx context.Context) (struct{}, error) {
			if err := pool.Ping(ctx); err != nil {
				return struct{}{}, fmt.Errorf("ping database: %w", err)
			}
			return struct{}{}, nil
		})
		return err
	}
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Migrate runs all pending up-migrations from dir.
// It is idempotent: already-applied migrations are skipped.
func Migrate(databaseURL, dir string) error {
	// golang-migrate's pgx/v5 driver expects the scheme "pgx5://".
	var rest string
	switch {
	case strings.HasPrefix(databaseURL, "postgresql://"):
		rest = databaseURL[len("postgresql://"):]
	case strings.HasPrefix(databaseURL, "postgres://"):
		rest = databaseURL[len("postgres://"):]
	default:
		rest = databaseURL
	}

	m, err := migrate.New("file://"+dir, "pgx5://"+rest)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
