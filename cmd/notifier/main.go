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
	"github.com/notifyhub/event-notifier/internal/notify"
	"github.com/notifyhub/event-notifier/internal/ratelimiter"
	"github.com/notifyhub/event-notifier/internal/repository"
	"github.com/notifyhub/event-notifier/internal/service"
	"github.com/notifyhub/event-notifier/internal/supervisor"
	"github.com/notifyhub/event-notifier/internal/tracing"
	"github.com/notifyhub/event-notifier/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.LoadNotifier()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	tracing.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sup := supervisor.New(supervisor.Policy{
		Attempts:  cfg.ConnectAttempts,
		BaseDelay: cfg.ConnectBaseDelay,
	}, logger, nil)
	m.ObserveSupervisor(sup)

	// ---- recipients ----
	var recipients service.RecipientSource = service.NewStaticRecipients(cfg.NotifyRecipients)
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg, sup)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()
		recipients = repository.NewPgUserRepository(pool)
		logger.Info("notifying registered users")
	} else {
		logger.Info("notifying static recipients", zap.Strings("recipients", cfg.NotifyRecipients))
	}

	// ---- delivery ----
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(
			cfg.NotifyWebhookURL,
			cfg.NotifyTimeout,
			ratelimiter.New(cfg.NotifyRateLimit),
		)
		logger.Info("delivering notifications by webhook", zap.String("url", cfg.NotifyWebhookURL))
	}

	// ---- consumer ----
	brokerClient := broker.NewClient(broker.ConfigFrom(cfg), sup)
	dispatch := service.NewDispatchService(recipients, notifier, cfg.DispatchWorkDelay, nil, logger)
	consumer := worker.NewConsumer(
		broker.NewSubscriber(brokerClient, cfg.ConsumerPrefetch),
		dispatch,
		cfg.ConsumerReconnectDelay,
		logger,
		m.ConsumerHooks(),
		nil,
	)

	// ---- HTTP (health + metrics) ----
	health := handler.NewHealthHandler(cfg.HealthTimeout,
		handler.Check{Key: "broker_connected", Probe: brokerClient.Ping},
	)
	health.Details = func() map[string]any {
		return map[string]any{"consumer_state": consumer.State().String()}
	}
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewNotifierRouter(health, reg, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		consumer.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("notifier http starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("notifier exited with error", zap.Error(err))
		return
	}
	logger.Info("notifier stopped cleanly")
}
