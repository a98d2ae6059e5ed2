package dispatcher

import (
	"context"
	"fmt"

	"github.com/teamworkery/kakao-order/internal/adapters/metrics"
	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/internal/core/services"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

// DispatcherService consumes the webhook queue and delivers each event to the
// operator webhook for its type.
type DispatcherService struct {
	consumer ports.EventConsumerInterface
	notifier *services.WebhookNotifier
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

var _ ports.ServiceInterface = (*DispatcherService)(nil)

func NewDispatcherService(consumer ports.EventConsumerInterface, notifier *services.WebhookNotifier, m *metrics.Metrics, logger *logger.Logger) *DispatcherService {
	return &DispatcherService{consumer: consumer, notifier: notifier, metrics: m, logger: logger}
}

func (d *DispatcherService) Run(ctx context.Context) error {
	d.logger.Info("", "service_started", "Webhook dispatcher started", nil)
	if err := d.consumer.ConsumeOrderEvents(ctx, d.Handle); err != nil {
		return err
	}
	d.logger.Info("", "graceful_shutdown", "Webhook dispatcher stopped", nil)
	return nil
}

// Handle maps a delivery outcome onto the broker's ack semantics.
func (d *DispatcherService) Handle(ctx context.Context, event domain.OrderEvent) error {
	outcome := d.notifier.Deliver(ctx, event)
	d.metrics.WebhookDeliveries.WithLabelValues(string(event.Type), outcome.String()).Inc()

	switch outcome {
	case services.Retry:
		return ports.ErrRetry
	case services.DeadLetter:
		d.logger.Warn(event.Payload.OrderNumber, "webhook_dead_lettered", "Giving up on webhook delivery", map[string]interface{}{
			"event":    string(event.Type),
			"order_id": event.OrderID,
			"attempts": event.Attempt + 1,
		})
		return fmt.Errorf("webhook %s for order %s dead-lettered after %d attempts", event.Type, event.OrderID, event.Attempt+1)
	}
	return nil
}
