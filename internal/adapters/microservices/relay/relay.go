package relay

import (
	"context"
	"time"

	"github.com/teamworkery/kakao-order/internal/adapters/metrics"
	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/internal/core/services"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

// RelayService drains the order_events outbox into the durable webhook queue
// and the realtime feed.
type RelayService struct {
	outbox       ports.OutboxRepository
	broker       ports.MessageBrokerInterface
	feed         ports.OrderFeed
	checkout     *services.CheckoutService
	metrics      *metrics.Metrics
	batchSize    int
	pollInterval time.Duration
	purgeEvery   time.Duration
	logger       *logger.Logger
}

var _ ports.ServiceInterface = (*RelayService)(nil)

type Options struct {
	BatchSize    int
	PollInterval time.Duration
	PurgeEvery   time.Duration
}

func NewRelayService(outbox ports.OutboxRepository, broker ports.MessageBrokerInterface, feed ports.OrderFeed, checkout *services.CheckoutService, m *metrics.Metrics, opts Options, logger *logger.Logger) *RelayService {
	return &RelayService{
		outbox:       outbox,
		broker:       broker,
		feed:         feed,
		checkout:     checkout,
		metrics:      m,
		batchSize:    opts.BatchSize,
		pollInterval: opts.PollInterval,
		purgeEvery:   opts.PurgeEvery,
		logger:       logger,
	}
}

func (s *RelayService) Run(ctx context.Context) error {
	s.logger.Info("", "service_started", "Outbox relay started", map[string]interface{}{
		"batch_size":    s.batchSize,
		"poll_interval": s.pollInterval.String(),
	})

	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()
	var purge <-chan time.Time
	if s.checkout != nil && s.purgeEvery > 0 {
		t := time.NewTicker(s.purgeEvery)
		defer t.Stop()
		purge = t.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("", "graceful_shutdown", "Outbox relay stopped", nil)
			return nil
		case <-poll.C:
			// Keep draining while full batches come back.
			for s.Drain(ctx) == s.batchSize && ctx.Err() == nil {
			}
		case <-purge:
			s.purge(ctx)
		}
	}
}

// Drain publishes one batch and returns how many events were marked published.
func (s *RelayService) Drain(ctx context.Context) int {
	n, err := s.outbox.PublishPending(ctx, s.batchSize, s.publish)
	if err != nil {
		s.logger.Error("", "outbox_publish_failed", "Outbox batch stopped early", err, map[string]interface{}{"published": n})
	} else if n > 0 {
		s.logger.Debug("", "outbox_published", "Outbox batch published", map[string]interface{}{"published": n})
	}
	return n
}

// publish hands the event to the broker first; it is only marked published once
// the durable path accepted it. The realtime feed is best effort.
func (s *RelayService) publish(ctx context.Context, event domain.OrderEvent) error {
	if err := s.broker.PublishOrderEvent(ctx, event); err != nil {
		return err
	}
	if err := s.feed.Publish(ctx, event); err != nil {
		s.logger.Warn(event.Payload.OrderNumber, "realtime_publish_failed", "Dashboards were not woken up for this event", map[string]interface{}{
			"event": string(event.Type),
			"error": err.Error(),
		})
	}
	s.metrics.OutboxPublished.WithLabelValues(string(event.Type)).Inc()
	return nil
}

func (s *RelayService) purge(ctx context.Context) {
	n, err := s.checkout.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("", "draft_purge_failed", "Expired checkout drafts could not be purged", err, nil)
		return
	}
	if n > 0 {
		s.logger.Info("", "drafts_purged", "Expired checkout drafts purged", map[string]interface{}{"count": n})
	}
}
