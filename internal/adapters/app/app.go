// Package app wires the adapters and services of each service mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/teamworkery/kakao-order/internal/adapters/auth"
	"github.com/teamworkery/kakao-order/internal/adapters/db/repository"
	"github.com/teamworkery/kakao-order/internal/adapters/handlers"
	"github.com/teamworkery/kakao-order/internal/adapters/metrics"
	"github.com/teamworkery/kakao-order/internal/adapters/microservices/dispatcher"
	"github.com/teamworkery/kakao-order/internal/adapters/microservices/notifications"
	"github.com/teamworkery/kakao-order/internal/adapters/microservices/order"
	"github.com/teamworkery/kakao-order/internal/adapters/microservices/relay"
	"github.com/teamworkery/kakao-order/internal/adapters/rabbitmq"
	"github.com/teamworkery/kakao-order/internal/adapters/realtime"
	"github.com/teamworkery/kakao-order/internal/adapters/storage"
	"github.com/teamworkery/kakao-order/internal/adapters/webhook"
	"github.com/teamworkery/kakao-order/internal/core/services"
	"github.com/teamworkery/kakao-order/pkg/config"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

// ConnectDB opens the Postgres pool used by every mode except the subscriber.
func ConnectDB(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*repository.Repository, error) {
	repo, err := repository.NewRepository(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("", "db_connection_failed", "Database is unreachable after all retries", err, nil)
		return nil, err
	}
	logger.Info("", "db_connected", "Connected to PostgreSQL database", map[string]interface{}{"duration_ms": repo.DurationMs})
	return repo, nil
}

func connectFeed(cfg *config.Config, logger *logger.Logger) (*realtime.NATSFeed, error) {
	start := time.Now()
	feed, err := realtime.NewNATSFeed(cfg.NATS, logger)
	if err != nil {
		logger.Error("", "nats_connection_failed", "Cannot connect to NATS", err, nil)
		return nil, err
	}
	logger.Info("", "nats_connected", "Connected to NATS "+cfg.NATS.URL, map[string]interface{}{"duration_ms": time.Since(start).Milliseconds()})
	return feed, nil
}

func Order(ctx context.Context, cfg *config.Config, logger *logger.Logger, repo *repository.Repository, flags services.Flags) error {
	feed, err := connectFeed(cfg, logger)
	if err != nil {
		return err
	}
	defer feed.Close()

	m := metrics.New()
	identity := services.NewIdentityService(auth.NewClient(cfg.Auth, nil), repo, logger)
	menu := services.NewMenuService(repo, repo, logger)
	orders := services.NewOrderService(repo, repo, repo, logger)
	checkout := services.NewCheckoutService(repo, orders, identity, cfg.Checkout.DraftTTL, logger)

	h := handlers.NewHandler(handlers.Deps{
		Identity: identity,
		Menu:     menu,
		Orders:   orders,
		Checkout: checkout,
		Commands: services.NewCommandService(menu, orders, identity),
		Storage:  storage.NewClient(cfg.Storage, nil),
		Feed:     feed,
		Health:   repo,
		Metrics:  m,
		Logger:   logger,
		Config:   cfg,
	})
	return order.NewOrderService(h.Routes(), flags.Order.Port, cfg.Server, logger).Run(ctx)
}

func Relay(ctx context.Context, cfg *config.Config, logger *logger.Logger, repo *repository.Repository, flags services.Flags) error {
	broker, err := rabbitmq.NewOrderRabbit(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error("", "rabbitmq_connection_failed", "Cannot connect to RabbitMQ", err, nil)
		return err
	}
	defer broker.Close()

	feed, err := connectFeed(cfg, logger)
	if err != nil {
		return err
	}
	defer feed.Close()

	m := metrics.New()
	go serveMetrics(ctx, cfg.Server.MetricsPort, m, logger)

	orders := services.NewOrderService(repo, repo, repo, logger)
	checkout := services.NewCheckoutService(repo, orders, nil, cfg.Checkout.DraftTTL, logger)
	svc := relay.NewRelayService(repo, broker, feed, checkout, m, relay.Options{
		BatchSize:    flags.Relay.BatchSize,
		PollInterval: flags.Relay.PollInterval,
		PurgeEvery:   cfg.Relay.PurgeEvery,
	}, logger)
	return svc.Run(ctx)
}

func Dispatcher(ctx context.Context, cfg *config.Config, logger *logger.Logger, repo *repository.Repository, flags services.Flags) error {
	consumer, err := rabbitmq.NewWebhookRabbit(cfg.RabbitMQ, flags.Dispatcher.Prefetch, logger)
	if err != nil {
		logger.Error("", "rabbitmq_connection_failed", "Cannot connect to RabbitMQ", err, nil)
		return err
	}
	defer consumer.Close()

	m := metrics.New()
	go serveMetrics(ctx, cfg.Server.MetricsPort, m, logger)

	notifier := services.NewWebhookNotifier(webhook.NewClient(cfg.Webhooks, nil), repo, flags.Dispatcher.MaxAttempts, logger)
	return dispatcher.NewDispatcherService(consumer, notifier, m, logger).Run(ctx)
}

func Notifications(ctx context.Context, cfg *config.Config, logger *logger.Logger, flags services.Flags) error {
	feed, err := connectFeed(cfg, logger)
	if err != nil {
		return err
	}
	defer feed.Close()

	m := metrics.New()
	go serveMetrics(ctx, cfg.Server.MetricsPort, m, logger)
	return notifications.NewNotificationService(feed, flags.Subscriber, os.Stdout, m, logger).Run(ctx)
}

func Migrate(ctx context.Context, logger *logger.Logger, repo *repository.Repository) error {
	if err := repo.Migrate(ctx); err != nil {
		logger.Error("", "migration_failed", "Schema could not be applied", err, nil)
		return err
	}
	logger.Info("", "migration_applied", "Schema is up to date", nil)
	return nil
}

// serveMetrics exposes /metrics for the worker modes until ctx is done.
func serveMetrics(ctx context.Context, port int, m *metrics.Metrics, logger *logger.Logger) {
	if port == 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("", "metrics_server_failed", "Metrics endpoint stopped", err, map[string]interface{}{"port": port})
	}
}
