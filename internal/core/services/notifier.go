package services

import (
	"context"
	"errors"
	"time"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

type DeliveryOutcome int

const (
	Delivered DeliveryOutcome = iota
	// Duplicate means the inbox already holds a successful delivery for the key.
	Duplicate
	// Skipped means no webhook URL is configured for the event.
	Skipped
	Retry
	DeadLetter
)

func (o DeliveryOutcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Duplicate:
		return "duplicate"
	case Skipped:
		return "skipped"
	case Retry:
		return "retry"
	case DeadLetter:
		return "dead_letter"
	}
	return "unknown"
}

// deliveryLease bounds how long a crashed worker can hold an inbox key.
const deliveryLease = 2 * time.Minute

// WebhookNotifier delivers order events to the operator webhooks at least once,
// suppressing repeats through the delivery inbox.
type WebhookNotifier struct {
	sender      ports.WebhookSender
	inbox       ports.InboxRepository
	maxAttempts int
	lease       time.Duration
	logger      *logger.Logger
}

func NewWebhookNotifier(sender ports.WebhookSender, inbox ports.InboxRepository, maxAttempts int, logger *logger.Logger) *WebhookNotifier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &WebhookNotifier{sender: sender, inbox: inbox, maxAttempts: maxAttempts, lease: deliveryLease, logger: logger}
}

// Deliver sends one event. The inbox key is claimed before the send, so two
// copies of the same event never reach the webhook concurrently. Failures never
// propagate past the returned outcome.
func (n *WebhookNotifier) Deliver(ctx context.Context, event domain.OrderEvent) DeliveryOutcome {
	key := event.IdempotencyKey()
	attempts := event.Attempt + 1
	extra := map[string]interface{}{"event": string(event.Type), "order_id": event.OrderID, "attempt": attempts}
	rec := ports.DeliveryRecord{Key: key, OrderID: event.OrderID, Event: event.Type, Attempts: attempts}

	claim, err := n.inbox.ClaimDelivery(ctx, rec, n.lease)
	if err != nil {
		n.logger.Error(event.Payload.OrderNumber, "inbox_claim_failed", "Delivery inbox unavailable", err, extra)
		return n.failed(ctx, event, rec)
	}
	switch claim {
	case ports.ClaimDelivered:
		n.logger.Debug(event.Payload.OrderNumber, "webhook_duplicate", "Event already delivered", extra)
		return Duplicate
	case ports.ClaimBusy:
		n.logger.Debug(event.Payload.OrderNumber, "webhook_in_flight", "Event is being delivered by another worker", extra)
		return Retry
	}

	err = n.sender.Send(ctx, event)
	switch {
	case errors.Is(err, ports.ErrWebhookNotConfigured):
		n.logger.Warn(event.Payload.OrderNumber, "webhook_not_configured", "Notification not sent: webhook url is not configured", extra)
		n.record(ctx, event, rec)
		return Skipped
	case err != nil:
		n.logger.Error(event.Payload.OrderNumber, "webhook_failed", "Webhook delivery failed", err, extra)
		return n.failed(ctx, event, rec)
	}

	rec.Delivered = true
	// If this fails the lease runs out and a redelivery sends again; the receiver dedupes on Idempotency-Key.
	n.record(ctx, event, rec)
	n.logger.Info(event.Payload.OrderNumber, "webhook_delivered", "Webhook delivered", extra)
	return Delivered
}

// failed releases the claim and decides between another attempt and the dead-letter queue.
func (n *WebhookNotifier) failed(ctx context.Context, event domain.OrderEvent, rec ports.DeliveryRecord) DeliveryOutcome {
	n.record(ctx, event, rec)
	if rec.Attempts < n.maxAttempts {
		return Retry
	}
	return DeadLetter
}

func (n *WebhookNotifier) record(ctx context.Context, event domain.OrderEvent, rec ports.DeliveryRecord) {
	if err := n.inbox.RecordDelivery(ctx, rec); err != nil {
		n.logger.Error(event.Payload.OrderNumber, "inbox_record_failed", "Delivery outcome could not be recorded", err, map[string]interface{}{"key": rec.Key, "delivered": rec.Delivered})
	}
}
