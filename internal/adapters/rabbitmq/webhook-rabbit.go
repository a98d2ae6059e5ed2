package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/config"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

// WebhookRabbit consumes order events from the webhook queue.
type WebhookRabbit struct {
	*Rabbit
	logger *logger.Logger
}

var _ ports.EventConsumerInterface = (*WebhookRabbit)(nil)

func NewWebhookRabbit(cfg config.RabbitMQConfig, prefetch int, logger *logger.Logger) (*WebhookRabbit, error) {
	setup := func(ch *amqp.Channel) error {
		return setupWebhookTopology(ch, prefetch)
	}
	r, err := newRabbit(cfg.URL(), withConfirms(setup), logger)
	if err != nil {
		return nil, err
	}
	return &WebhookRabbit{Rabbit: r, logger: logger}, nil
}

// ConsumeOrderEvents blocks until ctx is done, resubscribing after reconnects.
// A nil handler error acks, ports.ErrRetry schedules a delayed redelivery and any
// other error dead-letters the message.
func (r *WebhookRabbit) ConsumeOrderEvents(ctx context.Context, handler ports.EventHandler) error {
	for {
		msgs, err := r.Channel().Consume(
			WebhooksQueue, // queue
			"",            // consumer tag
			false,         // auto-ack
			false,         // exclusive
			false,         // no-local
			false,         // no-wait
			nil,           // args
		)
		if err != nil {
			r.logger.Error("", "consumer_register_failed", "Failed to register a consumer for "+WebhooksQueue, err, nil)
		} else if r.handleMessages(ctx, msgs, handler) {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// handleMessages returns true when ctx ended and false when the channel closed.
func (r *WebhookRabbit) handleMessages(ctx context.Context, msgs <-chan amqp.Delivery, handler ports.EventHandler) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case d, ok := <-msgs:
			if !ok {
				return false
			}
			r.handle(ctx, d, handler)
		}
	}
}

func (r *WebhookRabbit) handle(ctx context.Context, d amqp.Delivery, handler ports.EventHandler) {
	event, err := decodeEvent(d.Body, d.Headers)
	if err != nil {
		r.logger.Error(d.MessageId, "message_decode_failed", "Malformed order event dead-lettered", err, nil)
		d.Nack(false, false)
		return
	}

	err = handler(ctx, event)
	switch {
	case err == nil:
		d.Ack(false)
	case errors.Is(err, ports.ErrRetry):
		if pubErr := r.publishRetry(ctx, event); pubErr != nil {
			r.logger.Error(event.Payload.OrderNumber, "retry_publish_failed", "Retry could not be scheduled, requeueing", pubErr, nil)
			d.Nack(false, true)
			return
		}
		d.Ack(false)
	default:
		r.logger.Error(event.Payload.OrderNumber, "message_processing_failed", "Unrecoverable processing error, dead-lettering", err, map[string]interface{}{"event": string(event.Type)})
		d.Nack(false, false)
	}
}

func (r *WebhookRabbit) publishRetry(ctx context.Context, event domain.OrderEvent) error {
	event.Attempt++
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}
	if err := r.publishConfirmed(ctx, "", RetryQueue, msg); err != nil {
		return fmt.Errorf("publish retry: %w", err)
	}
	return nil
}
