package ports

import (
	"context"
	"errors"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

type MessageBrokerInterface interface {
	PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error
}

// EventHandler processes one delivered event. A nil error acknowledges it.
type EventHandler func(ctx context.Context, event domain.OrderEvent) error

type EventConsumerInterface interface {
	ConsumeOrderEvents(ctx context.Context, handler EventHandler) error
}

type Subscription interface {
	Unsubscribe() error
}

// OrderFeed is the realtime change feed. Delivery is at-most-once with no replay.
type OrderFeed interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
	// Subscribe delivers events for storeID, or for every store when storeID is empty.
	Subscribe(storeID string, fn func(domain.OrderEvent)) (Subscription, error)
}

// ErrRetry asks the consumer to redeliver the event later with its attempt count increased.
var ErrRetry = errors.New("retry delivery later")
