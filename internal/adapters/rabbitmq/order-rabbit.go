package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/config"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

const attemptHeader = "x-attempt"

// OrderRabbit publishes outbox events to the orders topic.
type OrderRabbit struct {
	*Rabbit
}

var _ ports.MessageBrokerInterface = (*OrderRabbit)(nil)

func NewOrderRabbit(cfg config.RabbitMQConfig, logger *logger.Logger) (*OrderRabbit, error) {
	r, err := newRabbit(cfg.URL(), withConfirms(setupOrdersExchange), logger)
	if err != nil {
		return nil, err
	}
	return &OrderRabbit{Rabbit: r}, nil
}

// PublishOrderEvent returns nil only after the broker confirms the message, so the
// outbox row is never marked published for an event the broker dropped.
func (r *OrderRabbit) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	// Routing key: order.{created|accepted}.{store_id}
	if err := r.publishConfirmed(ctx, OrdersExchange, event.RoutingKey(), msg); err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}
	return nil
}

func newPublishing(event domain.OrderEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    event.ID,
		Type:         string(event.Type),
		Timestamp:    event.CreatedAt,
		Headers:      amqp.Table{attemptHeader: int32(event.Attempt)},
		Body:         body,
		DeliveryMode: amqp.Persistent, // make message persistent
	}, nil
}

// decodeEvent reads an event back from a delivery. The attempt header wins over
// the body so retries survive re-routing.
func decodeEvent(body []byte, headers amqp.Table) (domain.OrderEvent, error) {
	var event domain.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.OrderEvent{}, fmt.Errorf("decode order event: %w", err)
	}
	if !event.Type.Valid() || event.OrderID == "" {
		return domain.OrderEvent{}, fmt.Errorf("decode order event: missing type or order id")
	}
	switch v := headers[attemptHeader].(type) {
	case int32:
		event.Attempt = int(v)
	case int64:
		event.Attempt = int(v)
	case int:
		event.Attempt = v
	}
	return event, nil
}
