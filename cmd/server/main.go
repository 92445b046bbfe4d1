package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/notifyhub/event-notifier/internal/api"
	"github.com/notifyhub/event-notifier/internal/api/handler"
	"github.com/notifyhub/event-notifier/internal/broker"
	"github.com/notifyhub/event-notifier/internal/config"
	"github.com/notifyhub/event-notifier/internal/db"
	"github.com/notifyhub/event-notifier/internal/metrics"
	"github.com/notifyhub/event-notifier/internal/repository"
	"github.com/notifyhub/event-notifier/internal/service"
	"github.com/notifyhub/event-notifier/internal/supervisor"
	"github.com/notifyhub/event-notifier/internal/tracing"
	"github.com/notifyhub/event-notifier/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.LoadServer()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	tracing.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- connection supervisor + metrics ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sup := supervisor.New(supervisor.Policy{
		Attempts:  cfg.ConnectAttempts,
		BaseDelay: cfg.ConnectBaseDelay,
	}, logger, nil)
	m.ObserveSupervisor(sup)

	// ---- database ----
	pool, err := db.Connect(ctx, cfg, sup)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	// The broker is not dialled here: every publish opens its own session,
	// so the API serves requests while the broker is down.
	brokerClient := broker.NewClient(broker.ConfigFrom(cfg), sup)
	publisher := broker.NewPublisher(brokerClient)

	events := service.NewEventService(repository.NewPgEventRepository(pool), publisher, cfg.PublishMode, logger)
	events.OnPublish = m.PublishHook()
	users := service.NewUserService(repository.NewPgUserRepository(pool), 0)

	health := handler.NewHealthHandler(cfg.HealthTimeout,
		handler.Check{Key: "db_connected", Probe: db.Healthcheck(pool, sup)},
		handler.Check{Key: "broker_connected", Probe: brokerClient.Ping},
	)

	// ---- HTTP server ----
	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewServerRouter(api.ServerDeps{
			Events: events,
			Users:  users,
			Health: health,
			Queue:  brokerClient,
			Reg:    reg,
			Logger: logger,
		}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("publish_mode", string(cfg.PublishMode)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.PublishMode == config.PublishOutbox {
		relay := worker.NewRelayWorker(
			repository.NewPgOutboxRepository(pool),
			publisher,
			cfg.OutboxInterval,
			cfg.OutboxBatchSize,
			logger,
		)
		relay.OnPending = func(n int) { m.OutboxPending.Set(float64(n)) }
		g.Go(func() error {
			relay.Run(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return
	}
	logger.Info("server stopped cleanly")
}
